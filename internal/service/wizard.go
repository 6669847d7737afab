package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/wizard"
)

// StartDraft opens a questionnaire for the caller's practice.
func (s *ScreeningService) StartDraft(caller *domain.Identity, patientCode, birthDate string, lang domain.Language) (wizard.Snapshot, error) {
	practiceID := caller.PracticeID()
	if practiceID == "" {
		return wizard.Snapshot{}, fmt.Errorf("%w: caller has no practice", domain.ErrForbidden)
	}
	return s.drafts.Start(wizard.StartParams{
		PatientCode: patientCode,
		BirthDate:   birthDate,
		Language:    lang,
		PracticeID:  practiceID,
		CreatedBy:   caller.UserID,
	})
}

// GetDraft returns a draft the caller may see.
func (s *ScreeningService) GetDraft(caller *domain.Identity, id string) (wizard.Snapshot, error) {
	snap, err := s.drafts.Get(id)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	if !caller.CanAccess(snap.PracticeID) {
		// Drafts of other practices are not revealed.
		return wizard.Snapshot{}, wizard.ErrDraftNotFound
	}
	return snap, nil
}

// AnswerDraft merges an answer patch into a draft.
func (s *ScreeningService) AnswerDraft(caller *domain.Identity, id string, patch []byte) (wizard.Snapshot, error) {
	if _, err := s.GetDraft(caller, id); err != nil {
		return wizard.Snapshot{}, err
	}
	return s.drafts.Answer(id, patch)
}

// NextStep advances a draft.
func (s *ScreeningService) NextStep(caller *domain.Identity, id string) (wizard.Snapshot, error) {
	if _, err := s.GetDraft(caller, id); err != nil {
		return wizard.Snapshot{}, err
	}
	return s.drafts.Next(id)
}

// PreviousStep moves a draft back along its recorded path.
func (s *ScreeningService) PreviousStep(caller *domain.Identity, id string) (wizard.Snapshot, error) {
	if _, err := s.GetDraft(caller, id); err != nil {
		return wizard.Snapshot{}, err
	}
	return s.drafts.Back(id)
}

// AbandonDraft discards a draft.
func (s *ScreeningService) AbandonDraft(caller *domain.Identity, id string) error {
	if _, err := s.GetDraft(caller, id); err != nil {
		return err
	}
	return s.drafts.Abandon(id)
}

// CompleteDraft scores a finished questionnaire once, stores it and notifies the
// practice. Repeated calls return the stored screening with domain.ErrAlreadySubmitted.
func (s *ScreeningService) CompleteDraft(ctx context.Context, caller *domain.Identity, id, recipientEmail string) (*Outcome, error) {
	if _, err := s.GetDraft(caller, id); err != nil {
		return nil, err
	}
	meta, err := s.drafts.Meta(id)
	if err != nil {
		return nil, err
	}
	meta.RecipientEmail = recipientEmail

	result, _, err := s.drafts.Complete(id)
	switch {
	case errors.Is(err, domain.ErrAlreadySubmitted):
		// A completed draft whose earlier store failed may be stored again.
		if _, gerr := s.store.GetBySubmission(ctx, meta.SubmissionID); !errors.Is(gerr, domain.ErrNotFound) {
			return s.alreadySubmitted(ctx, caller, meta.SubmissionID)
		}
	case err != nil:
		return nil, err
	}

	if !s.claim(ctx, meta) {
		return s.alreadySubmitted(ctx, caller, meta.SubmissionID)
	}

	return s.finalize(ctx, caller, result, meta)
}
