package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/events"
	"github.com/nutricheck-server/internal/middleware"
	"github.com/nutricheck-server/internal/service"
)

type screeningPage struct {
	Screenings []*domain.ScreeningRecord `json:"screenings"`
	Total      int64                     `json:"total"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}

func (s *Server) handlePatientCode(c *gin.Context) {
	var req patientCodeRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	code, err := domain.GeneratePatientCode(req.FirstInitial, req.LastInitial, req.BirthDate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient_code": code})
}

func (s *Server) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.svc.Score(req.Answers, req.PatientCode, language(c, req.Language))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	out, err := s.svc.Submit(c.Request.Context(), caller(c), service.SubmitRequest{
		SubmissionID:   req.SubmissionID,
		PatientCode:    req.PatientCode,
		Answers:        req.Answers,
		Language:       language(c, req.Language),
		RecipientEmail: req.RecipientEmail,
	})
	s.respondOutcome(c, out, err, http.StatusCreated)
}

// respondOutcome writes the result of a submission. A repeated submission returns
// the stored screening; a result that could not be stored is still returned.
func (s *Server) respondOutcome(c *gin.Context, out *service.Outcome, err error, created int) {
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) && out != nil {
			c.JSON(http.StatusOK, out)
			return
		}
		s.respondError(c, err)
		return
	}

	if !out.Persisted {
		c.Header("Warning", `199 - "screening was not stored"`)
		c.JSON(http.StatusOK, out)
		return
	}
	c.JSON(created, out)
}

func (s *Server) handleListScreenings(c *gin.Context) {
	s.listScreenings(c, "")
}

func (s *Server) listScreenings(c *gin.Context, practiceID string) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, err)
		return
	}

	list, total, err := s.svc.List(c.Request.Context(), caller(c), practiceID, q.Limit, q.Offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []*domain.ScreeningRecord{}
	}
	if q.Limit == 0 {
		q.Limit = service.DefaultPageSize
	}
	c.JSON(http.StatusOK, screeningPage{Screenings: list, Total: total, Limit: q.Limit, Offset: q.Offset})
}

func (s *Server) handleGetScreening(c *gin.Context) {
	rec, err := s.svc.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, err)
		return
	}

	var lang domain.Language
	if q.Lang != "" {
		lang = language(c, q.Lang)
	}
	body, err := s.svc.Report(c.Request.Context(), caller(c), c.Param("id"), q.Format, lang)
	if err != nil {
		s.respondError(c, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if q.Format == service.FormatHTML {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(body))
}

func (s *Server) handleCounseling(c *gin.Context) {
	var req counselingRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	out, err := s.svc.UpdateCounseling(c.Request.Context(), caller(c), c.Param("id"), *req.WantsCounseling)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleResend(c *gin.Context) {
	out, err := s.svc.Resend(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteScreening(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleOwnPractice(c *gin.Context) {
	p, err := s.svc.OwnPractice(c.Request.Context(), caller(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateOwnPractice(c *gin.Context) {
	var req practiceRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	p, err := s.svc.UpdateOwnPractice(c.Request.Context(), caller(c), req.Name, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// handleLiveFeed streams screening events of the caller's practice. Admins may
// follow one practice with ?practice_id= or every practice without it.
func (s *Server) handleLiveFeed(c *gin.Context) {
	if s.hub == nil {
		s.respondError(c, domain.ErrNotFound)
		return
	}

	identity := caller(c)
	topic := identity.PracticeID()
	if identity.IsAdmin() {
		topic = c.DefaultQuery("practice_id", events.AllPractices)
	}
	if topic == "" {
		s.respondError(c, domain.ErrForbidden)
		return
	}

	if err := s.hub.Serve(c.Writer, c.Request, topic); err != nil {
		// The upgrader has already written the error response.
		s.logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"error":          err,
		}).Warn("WebSocket upgrade failed")
	}
}
