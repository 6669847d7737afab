// Package service ties scoring, storage, notification and the live feed together.
// Every operation takes the authenticated caller and enforces practice scoping.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/events"
	"github.com/nutricheck-server/internal/guard"
	"github.com/nutricheck-server/internal/notify"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/report"
	"github.com/nutricheck-server/internal/scoring"
	"github.com/nutricheck-server/internal/wizard"
)

// Page size limits for listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// IdentityCache forgets cached callers whose practice changed.
type IdentityCache interface {
	ForgetPractice(practiceID string)
}

// ScreeningService implements the screening workflow.
type ScreeningService struct {
	store      records.Store
	practices  domain.PracticeRepository
	identities IdentityCache
	sender     notify.Sender
	guard      guard.Guard
	events     events.Publisher
	drafts     *wizard.Manager
	scorer     *scoring.Scorer
	logger     *logrus.Logger
}

// Dependencies groups the collaborators of ScreeningService.
type Dependencies struct {
	Store      records.Store
	Practices  domain.PracticeRepository
	Identities IdentityCache
	Sender     notify.Sender
	Guard      guard.Guard
	Events     events.Publisher
	Drafts     *wizard.Manager
	Scorer     *scoring.Scorer
	Logger     *logrus.Logger
}

// NewScreeningService creates a new screening service
func NewScreeningService(deps Dependencies) *ScreeningService {
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewScorer(nil)
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Guard == nil {
		deps.Guard = guard.NewMemoryGuard(0)
	}
	if deps.Drafts == nil {
		deps.Drafts = wizard.NewManager(domain.WizardConfig{}, deps.Scorer, deps.Logger)
	}

	return &ScreeningService{
		store:      deps.Store,
		practices:  deps.Practices,
		identities: deps.Identities,
		sender:     deps.Sender,
		guard:      deps.Guard,
		events:     deps.Events,
		drafts:     deps.Drafts,
		scorer:     deps.Scorer,
		logger:     deps.Logger,
	}
}

// ScoreResult is the outcome of stateless scoring.
type ScoreResult struct {
	Result     domain.ScreeningResult `json:"result"`
	ReportText string                 `json:"report_text"`
	Language   domain.Language        `json:"language"`
}

// Score computes a result without storing anything.
func (s *ScreeningService) Score(answers domain.ScreeningAnswers, patientCode string, lang domain.Language) (*ScoreResult, error) {
	if err := validatePatientCode(patientCode); err != nil {
		return nil, err
	}
	answers.Normalize()
	if err := wizard.ValidateAnswers(&answers); err != nil {
		return nil, err
	}
	lang = lang.OrDefault()
	result := s.scorer.Score(answers, patientCode)
	return &ScoreResult{
		Result:     result,
		ReportText: report.FormatText(result, lang),
		Language:   lang,
	}, nil
}

// SubmitRequest is a complete answer set sent in one request.
type SubmitRequest struct {
	SubmissionID   string
	PatientCode    string
	Answers        domain.ScreeningAnswers
	Language       domain.Language
	RecipientEmail string
}

// Outcome reports what happened to a result after scoring.
type Outcome struct {
	Record           *domain.ScreeningRecord `json:"screening"`
	Persisted        bool                    `json:"persisted"`
	PersistError     string                  `json:"persist_error,omitempty"`
	EmailSent        bool                    `json:"email_sent"`
	EmailError       string                  `json:"email_error,omitempty"`
	ReportText       string                  `json:"report_text,omitempty"`
	AlreadySubmitted bool                    `json:"already_submitted,omitempty"`
}

// Submit scores, stores and sends a screening. A reused submission id returns the
// stored record together with domain.ErrAlreadySubmitted.
func (s *ScreeningService) Submit(ctx context.Context, caller *domain.Identity, req SubmitRequest) (*Outcome, error) {
	practiceID := caller.PracticeID()
	if practiceID == "" {
		return nil, fmt.Errorf("%w: caller has no practice", domain.ErrForbidden)
	}
	if err := validatePatientCode(req.PatientCode); err != nil {
		return nil, err
	}

	answers := req.Answers
	answers.Normalize()
	if err := wizard.ValidateAnswers(&answers); err != nil {
		return nil, err
	}

	submissionID := req.SubmissionID
	if submissionID == "" {
		submissionID = uuid.NewString()
	}

	meta := domain.RecordMeta{
		PracticeID:     practiceID,
		Language:       req.Language.OrDefault(),
		RecipientEmail: req.RecipientEmail,
		CreatedBy:      caller.UserID,
		SubmissionID:   submissionID,
	}

	if !s.claim(ctx, meta) {
		return s.alreadySubmitted(ctx, caller, submissionID)
	}

	result := s.scorer.Score(answers, req.PatientCode)
	return s.finalize(ctx, caller, result, meta)
}

// validatePatientCode keeps anything but initials and a birth date out of storage and logs.
func validatePatientCode(code string) error {
	if err := domain.ValidatePatientCode(code); err != nil {
		return domain.NewValidationError("patient_code", err.Error(), nil)
	}
	return nil
}

// claimKey scopes a submission id to the practice that sent it.
func claimKey(meta domain.RecordMeta) string {
	return meta.PracticeID + ":" + meta.SubmissionID
}

// claim reports whether this request may store the submission. An unreachable
// guard lets it through; the unique index on submission_id still holds.
func (s *ScreeningService) claim(ctx context.Context, meta domain.RecordMeta) bool {
	claimed, err := s.guard.Claim(ctx, claimKey(meta))
	if err != nil {
		s.logger.WithError(err).Warn("Submission guard unavailable, relying on the unique index")
		return true
	}
	return claimed
}

// finalize stores a freshly computed result, notifies the practice and publishes the event.
func (s *ScreeningService) finalize(ctx context.Context, caller *domain.Identity, result domain.ScreeningResult, meta domain.RecordMeta) (*Outcome, error) {
	rec := domain.NewScreeningRecord(result, meta)
	out := &Outcome{Record: rec}

	err := s.store.Insert(ctx, rec)
	switch {
	case errors.Is(err, records.ErrDuplicateSubmission):
		return s.alreadySubmitted(ctx, caller, meta.SubmissionID)
	case err != nil:
		s.logger.WithFields(logrus.Fields{
			"patient_code":  rec.PatientCode,
			"submission_id": meta.SubmissionID,
			"error":         err,
		}).Error("Failed to store screening")
		out.PersistError = err.Error()
		// The store may have assigned an id before failing; it names nothing.
		rec.ID = ""
		if rerr := s.guard.Release(ctx, claimKey(meta)); rerr != nil {
			s.logger.WithError(rerr).Warn("Failed to release submission claim")
		}
	default:
		out.Persisted = true
	}

	s.deliver(ctx, out, rec, "")

	if out.Persisted {
		s.publish(ctx, events.ScreeningCreated, rec)
	}

	s.logger.WithFields(logrus.Fields{
		"screening_id":       rec.ID,
		"practice_id":        rec.PracticeID,
		"patient_code":       rec.PatientCode,
		"total_score":        rec.TotalScore,
		"malnutrition_level": rec.MalnutritionLevel,
		"persisted":          out.Persisted,
		"email_sent":         out.EmailSent,
	}).Info("Screening submitted")

	return out, nil
}

// alreadySubmitted returns the stored record of a repeated submission. A record
// the caller may not read is never returned.
func (s *ScreeningService) alreadySubmitted(ctx context.Context, caller *domain.Identity, submissionID string) (*Outcome, error) {
	rec, err := s.store.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Claimed but not stored yet; the first request is still running.
			return nil, domain.ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("loading submitted screening: %w", err)
	}
	if !caller.CanAccess(rec.PracticeID) {
		s.logger.WithFields(logrus.Fields{
			"submission_id": submissionID,
			"practice_id":   caller.PracticeID(),
		}).Warn("Submission id already used by another practice")
		return nil, domain.ErrAlreadySubmitted
	}
	return &Outcome{Record: rec, Persisted: true, AlreadySubmitted: true}, domain.ErrAlreadySubmitted
}

// deliver sends the screening email and records the result in out. An empty
// to means the practice address.
func (s *ScreeningService) deliver(ctx context.Context, out *Outcome, rec *domain.ScreeningRecord, to string) {
	result := rec.Result()
	fail := func(err error) {
		out.EmailSent = false
		out.EmailError = err.Error()
		out.ReportText = report.FormatText(result, rec.Language)
	}

	if s.sender == nil {
		out.ReportText = report.FormatText(result, rec.Language)
		return
	}

	cc := ""
	if to == "" && s.practices != nil {
		to = rec.RecipientEmail
		if to == "" {
			practice, err := s.practices.GetPractice(ctx, rec.PracticeID)
			if err != nil {
				fail(fmt.Errorf("loading practice: %w", err))
				return
			}
			to = practice.Email
		}
		if addr, err := s.practices.GetSetting(ctx, domain.SettingCCEmail); err == nil {
			cc = addr
		} else {
			s.logger.WithError(err).Warn("Failed to load copy address")
		}
	} else if to == "" {
		to = rec.RecipientEmail
	}
	if to == "" {
		fail(fmt.Errorf("%w: practice has no email address", notify.ErrInvalidMessage))
		return
	}

	msg, err := notify.BuildMessage(result, rec.Language, to, cc)
	if err != nil {
		fail(err)
		return
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		fail(err)
		return
	}
	out.EmailSent = true
	out.EmailError = ""
	out.ReportText = ""
}

func (s *ScreeningService) publish(ctx context.Context, typ string, rec *domain.ScreeningRecord) {
	s.events.Publish(ctx, events.Event{
		Type:              typ,
		PracticeID:        rec.PracticeID,
		ScreeningID:       rec.ID,
		PatientCode:       rec.PatientCode,
		MalnutritionLevel: string(rec.MalnutritionLevel),
		TotalScore:        rec.TotalScore,
	})
}

// Get returns a screening the caller may see.
func (s *ScreeningService) Get(ctx context.Context, caller *domain.Identity, id string) (*domain.ScreeningRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(rec.PracticeID) {
		return nil, fmt.Errorf("%w: screening belongs to another practice", domain.ErrForbidden)
	}
	return rec, nil
}

// List returns screenings of a practice, newest first. An empty practiceID means
// the caller's own practice.
func (s *ScreeningService) List(ctx context.Context, caller *domain.Identity, practiceID string, limit, offset int) ([]*domain.ScreeningRecord, int64, error) {
	if practiceID == "" {
		practiceID = caller.PracticeID()
	}
	if practiceID == "" || !caller.CanAccess(practiceID) {
		return nil, 0, fmt.Errorf("%w: no access to practice", domain.ErrForbidden)
	}
	limit, offset = page(limit, offset)

	list, err := s.store.ListByPractice(ctx, practiceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing screenings: %w", err)
	}
	total, err := s.store.Count(ctx, practiceID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting screenings: %w", err)
	}
	return list, total, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Report output formats.
const (
	FormatText = "text"
	FormatHTML = "html"
)

// Report renders a stored screening. An invalid lang falls back to the screening's language.
func (s *ScreeningService) Report(ctx context.Context, caller *domain.Identity, id, format string, lang domain.Language) (string, error) {
	rec, err := s.Get(ctx, caller, id)
	if err != nil {
		return "", err
	}
	if !lang.IsValid() {
		lang = rec.Language
	}

	switch format {
	case "", FormatText:
		return report.FormatText(rec.Result(), lang), nil
	case FormatHTML:
		return report.FormatHTML(rec.Result(), lang)
	default:
		return "", domain.NewValidationError("format", "format must be text or html", format)
	}
}

// UpdateCounseling appends the counseling choice and sends the updated report.
func (s *ScreeningService) UpdateCounseling(ctx context.Context, caller *domain.Identity, id string, wants bool) (*Outcome, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCounseling(ctx, id, wants); err != nil {
		return nil, fmt.Errorf("updating counseling: %w", err)
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Record: rec, Persisted: true}
	s.deliver(ctx, out, rec, "")
	s.publish(ctx, events.ScreeningUpdated, rec)

	s.logger.WithFields(logrus.Fields{
		"screening_id":     id,
		"wants_counseling": wants,
		"email_sent":       out.EmailSent,
	}).Info("Counseling choice recorded")
	return out, nil
}

// Resend sends the screening email again. Admins receive it at the copy address
// when one is configured; practice staff at the practice address.
func (s *ScreeningService) Resend(ctx context.Context, caller *domain.Identity, id string) (*Outcome, error) {
	rec, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	to := ""
	if caller.IsAdmin() && s.practices != nil {
		addr, err := s.practices.GetSetting(ctx, domain.SettingCCEmail)
		if err != nil {
			return nil, fmt.Errorf("loading copy address: %w", err)
		}
		to = addr
	}

	out := &Outcome{Record: rec, Persisted: true}
	s.deliver(ctx, out, rec, to)
	return out, nil
}

// Delete removes a screening.
func (s *ScreeningService) Delete(ctx context.Context, caller *domain.Identity, id string) error {
	rec, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting screening: %w", err)
	}
	s.publish(ctx, events.ScreeningDeleted, rec)

	s.logger.WithFields(logrus.Fields{
		"screening_id": id,
		"practice_id":  rec.PracticeID,
		"deleted_by":   caller.UserID,
	}).Info("Screening deleted")
	return nil
}
