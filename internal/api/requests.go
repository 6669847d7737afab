package api

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/report"
	"github.com/nutricheck-server/internal/session"
)

var errEmptyBody = errors.New("request body is empty")

type patientCodeRequest struct {
	FirstInitial string `json:"first_initial" binding:"required,max=64"`
	LastInitial  string `json:"last_initial" binding:"required,max=64"`
	BirthDate    string `json:"birth_date" binding:"required,datetime=2006-01-02"`
}

type scoreRequest struct {
	PatientCode string                  `json:"patient_code" binding:"required,patientcode"`
	Answers     domain.ScreeningAnswers `json:"answers"`
	Language    string                  `json:"language" binding:"omitempty,language"`
}

type submitRequest struct {
	SubmissionID   string                  `json:"submission_id" binding:"omitempty,max=64"`
	PatientCode    string                  `json:"patient_code" binding:"required,patientcode"`
	Answers        domain.ScreeningAnswers `json:"answers"`
	Language       string                  `json:"language" binding:"omitempty,language"`
	RecipientEmail string                  `json:"recipient_email" binding:"omitempty,email"`
}

type startDraftRequest struct {
	PatientCode string `json:"patient_code" binding:"required,patientcode"`
	BirthDate   string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Language    string `json:"language" binding:"omitempty,language"`
}

type completeDraftRequest struct {
	RecipientEmail string `json:"recipient_email" binding:"omitempty,email"`
}

type counselingRequest struct {
	WantsCounseling *bool `json:"wants_counseling" binding:"required"`
}

type practiceRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"omitempty,email"`
}

type ccEmailRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

type listQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type reportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=text html"`
	Lang   string `form:"lang" binding:"omitempty,language"`
}

var registerOnce sync.Once

// registerValidators teaches gin's validator the custom tags and makes field errors
// use the JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
			_, err := report.ParseLanguage(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("patientcode", func(fl validator.FieldLevel) bool {
			return domain.ValidatePatientCode(fl.Field().String()) == nil
		})
	})
}

func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// language picks the explicit language when it is supported and otherwise
// negotiates one from Accept-Language.
func language(c *gin.Context, explicit string) domain.Language {
	if explicit != "" {
		if lang, err := report.ParseLanguage(explicit); err == nil {
			return lang
		}
	}
	return report.Negotiate(c.GetHeader("Accept-Language"))
}

// caller returns the identity stored by the auth middleware.
func caller(c *gin.Context) *domain.Identity {
	identity, _ := session.FromContext(c.Request.Context())
	return identity
}
