package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/middleware"
	"github.com/nutricheck-server/internal/notify"
	"github.com/nutricheck-server/internal/wizard"
)

// respondError maps an error to a status code and an APIError body. Internal
// details are logged, never returned.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, message := classify(err)

	fields := logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"path":           c.FullPath(),
		"status":         status,
		"error":          err,
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithFields(fields).Error("Request failed")
	} else {
		s.logger.WithFields(fields).Debug("Request rejected")
	}

	details := ""
	if status < http.StatusInternalServerError {
		details = err.Error()
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func classify(err error) (int, string, string) {
	var (
		verr      *domain.ValidationError
		fieldErrs validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, domain.CodeValidation, verr.Message
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest, domain.CodeValidation, describeFieldErrors(fieldErrs)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, errEmptyBody), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, domain.CodeInvalidInput, "malformed request body"
	case errors.Is(err, domain.ErrInvalidPatientInput), errors.Is(err, domain.ErrInvalidLanguage):
		return http.StatusBadRequest, domain.CodeInvalidInput, "invalid input"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, domain.CodeAuthentication, "authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.CodeForbidden, "access denied"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.CodeNotFound, "not found"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusConflict, domain.CodeAlreadySubmitted, "screening already submitted"
	case errors.Is(err, wizard.ErrCannotAdvance),
		errors.Is(err, wizard.ErrAtFirstStep),
		errors.Is(err, wizard.ErrNotReady),
		errors.Is(err, wizard.ErrCompleteRequired):
		return http.StatusConflict, domain.CodeInvalidInput, "questionnaire step not allowed"
	case errors.Is(err, notify.ErrDelivery):
		return http.StatusBadGateway, domain.CodeNotification, "email delivery failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.CodeInternalServer, "request timed out"
	default:
		return http.StatusInternalServerError, domain.CodeInternalServer, "internal server error"
	}
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}
