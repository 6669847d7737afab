package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/scoring"
)

var (
	// ErrDraftNotFound is returned for unknown, expired or abandoned drafts.
	ErrDraftNotFound = fmt.Errorf("questionnaire draft %w", domain.ErrNotFound)
	// ErrCannotAdvance is returned when the current step is not fully answered.
	ErrCannotAdvance = errors.New("current step is not answered")
	// ErrAtFirstStep is returned by Back on the first question.
	ErrAtFirstStep = errors.New("already at the first step")
	// ErrNotReady is returned by Complete before the last question is answered.
	ErrNotReady = errors.New("questionnaire is not ready to complete")
	// ErrCompleteRequired is returned by Next on the last question; use Complete.
	ErrCompleteRequired = errors.New("last step must be completed, not advanced")
)

// StartParams describes a new questionnaire.
type StartParams struct {
	PatientCode string
	BirthDate   string
	Language    domain.Language
	PracticeID  string
	CreatedBy   string
}

// Manager holds questionnaire drafts in memory. Idle drafts expire; a completed
// draft stays readable until it expires so repeated completions get the same result.
type Manager struct {
	drafts *expirable.LRU[string, *Draft]
	scorer *scoring.Scorer
	now    func() time.Time
	logger *logrus.Logger
}

// NewManager creates a draft manager
func NewManager(cfg domain.WizardConfig, scorer *scoring.Scorer, logger *logrus.Logger) *Manager {
	if cfg.DraftTTL == 0 {
		cfg.DraftTTL = 2 * time.Hour
	}
	if cfg.MaxDrafts == 0 {
		cfg.MaxDrafts = 10000
	}
	if scorer == nil {
		scorer = scoring.NewScorer(nil)
	}

	m := &Manager{
		scorer: scorer,
		now:    time.Now,
		logger: logger,
	}
	m.drafts = expirable.NewLRU[string, *Draft](cfg.MaxDrafts, m.onEvict, cfg.DraftTTL)
	return m
}

func (m *Manager) onEvict(id string, d *Draft) {
	m.logger.WithFields(logrus.Fields{
		"draft_id":     id,
		"patient_code": d.patientCode,
	}).Debug("Questionnaire draft evicted")
}

// Start opens a new draft at the first step.
func (m *Manager) Start(p StartParams) (Snapshot, error) {
	if err := domain.ValidatePatientCode(p.PatientCode); err != nil {
		return Snapshot{}, domain.NewValidationError("patient_code", err.Error(), nil)
	}
	if p.BirthDate != "" {
		if _, err := domain.ParseBirthDate(p.BirthDate); err != nil {
			return Snapshot{}, domain.NewValidationError("birth_date", err.Error(), p.BirthDate)
		}
	}

	now := m.now().UTC()
	d := &Draft{
		id:          uuid.NewString(),
		patientCode: p.PatientCode,
		language:    p.Language.OrDefault(),
		practiceID:  p.PracticeID,
		createdBy:   p.CreatedBy,
		answers:     domain.ScreeningAnswers{BirthDate: p.BirthDate},
		current:     FirstStep,
		state:       NotSubmitted,
		createdAt:   now,
		updatedAt:   now,
	}
	m.drafts.Add(d.id, d)

	m.logger.WithFields(logrus.Fields{
		"draft_id":     d.id,
		"patient_code": d.patientCode,
		"language":     d.language,
	}).Info("Questionnaire started")

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot(), nil
}

// Get returns the current state of a draft.
func (m *Manager) Get(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(d *Draft) error {
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

// Answer merges a JSON answer patch into the draft. It does not move the step.
func (m *Manager) Answer(id string, patch []byte) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(d *Draft) error {
		if d.state == Submitted {
			return domain.ErrAlreadySubmitted
		}
		merged, err := mergeAnswers(d.answers, patch)
		if err != nil {
			return err
		}
		d.answers = merged
		m.touch(d)
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

// Next leaves the current step once its gate passes.
func (m *Manager) Next(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(d *Draft) error {
		if d.state == Submitted {
			return domain.ErrAlreadySubmitted
		}
		if !CanAdvance(d.current, &d.answers) {
			return fmt.Errorf("%w: %s", ErrCannotAdvance, d.current)
		}
		next, ok := NextStep(d.current, &d.answers)
		if !ok {
			return fmt.Errorf("%w: %s has no successor", ErrCannotAdvance, d.current)
		}
		if next == StepResult {
			return ErrCompleteRequired
		}
		d.history = append(d.history, d.current)
		d.current = next
		m.touch(d)
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

// Back returns to the step the patient came from.
func (m *Manager) Back(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.with(id, func(d *Draft) error {
		if d.state == Submitted {
			return domain.ErrAlreadySubmitted
		}
		if len(d.history) == 0 {
			return ErrAtFirstStep
		}
		d.current = d.history[len(d.history)-1]
		d.history = d.history[:len(d.history)-1]
		m.touch(d)
		snap = d.snapshot()
		return nil
	})
	return snap, err
}

// Complete scores the draft exactly once. A repeated call returns the stored result
// together with domain.ErrAlreadySubmitted.
func (m *Manager) Complete(id string) (domain.ScreeningResult, Snapshot, error) {
	var (
		result domain.ScreeningResult
		snap   Snapshot
	)
	err := m.with(id, func(d *Draft) error {
		if d.state == Submitted {
			result = *d.result
			snap = d.snapshot()
			return domain.ErrAlreadySubmitted
		}
		next, ok := NextStep(d.current, &d.answers)
		if !ok || next != StepResult || !CanAdvance(d.current, &d.answers) {
			return fmt.Errorf("%w: at step %s", ErrNotReady, d.current)
		}

		result = m.scorer.Score(d.answers, d.patientCode)
		d.result = &result
		d.state = Submitted
		d.history = append(d.history, d.current)
		d.current = StepResult
		m.touch(d)
		snap = d.snapshot()

		m.logger.WithFields(logrus.Fields{
			"draft_id":           d.id,
			"patient_code":       d.patientCode,
			"total_score":        result.TotalScore,
			"malnutrition_level": result.MalnutritionLevel,
		}).Info("Questionnaire completed")
		return nil
	})
	return result, snap, err
}

// Abandon discards a draft.
func (m *Manager) Abandon(id string) error {
	if !m.drafts.Remove(id) {
		return ErrDraftNotFound
	}
	return nil
}

// Len returns the number of live drafts.
func (m *Manager) Len() int {
	return m.drafts.Len()
}

// Meta returns the filing data of a draft for persistence.
func (m *Manager) Meta(id string) (domain.RecordMeta, error) {
	var meta domain.RecordMeta
	err := m.with(id, func(d *Draft) error {
		meta = domain.RecordMeta{
			PracticeID:   d.practiceID,
			Language:     d.language,
			CreatedBy:    d.createdBy,
			SubmissionID: d.id,
		}
		return nil
	})
	return meta, err
}

func (m *Manager) with(id string, fn func(d *Draft) error) error {
	d, ok := m.drafts.Get(id)
	if !ok {
		return ErrDraftNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d)
}

// touch must be called with d.mu held. Re-adding renews the draft's expiry.
func (m *Manager) touch(d *Draft) {
	d.updatedAt = m.now().UTC()
	m.drafts.Add(d.id, d)
}
