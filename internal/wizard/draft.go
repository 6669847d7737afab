package wizard

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nutricheck-server/internal/domain"
)

// SubmitState guards the one-shot completion of a draft.
type SubmitState int

const (
	NotSubmitted SubmitState = iota
	Submitted
)

func (s SubmitState) String() string {
	if s == Submitted {
		return "submitted"
	}
	return "not_submitted"
}

// MarshalJSON renders the state by name.
func (s SubmitState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Draft is one questionnaire in progress. All access goes through the Manager,
// which holds mu while reading or changing it.
type Draft struct {
	mu sync.Mutex

	id          string
	patientCode string
	language    domain.Language
	practiceID  string
	createdBy   string

	answers domain.ScreeningAnswers
	current Step
	history []Step

	state  SubmitState
	result *domain.ScreeningResult

	createdAt time.Time
	updatedAt time.Time
}

// Snapshot is a read-only copy of a draft handed out to callers.
type Snapshot struct {
	ID          string                  `json:"id"`
	PatientCode string                  `json:"patient_code"`
	Language    domain.Language         `json:"language"`
	PracticeID  string                  `json:"practice_id,omitempty"`
	Step        Step                    `json:"step"`
	History     []Step                  `json:"history"`
	CanAdvance  bool                    `json:"can_advance"`
	Answers     domain.ScreeningAnswers `json:"answers"`
	State       SubmitState             `json:"state"`
	Result      *domain.ScreeningResult `json:"result,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// snapshot must be called with d.mu held.
func (d *Draft) snapshot() Snapshot {
	answers, _ := cloneAnswers(d.answers)
	var result *domain.ScreeningResult
	if d.result != nil {
		r := *d.result
		result = &r
	}
	return Snapshot{
		ID:          d.id,
		PatientCode: d.patientCode,
		Language:    d.language,
		PracticeID:  d.practiceID,
		Step:        d.current,
		History:     append([]Step(nil), d.history...),
		CanAdvance:  d.state == NotSubmitted && CanAdvance(d.current, &d.answers),
		Answers:     answers,
		State:       d.state,
		Result:      result,
		CreatedAt:   d.createdAt,
		UpdatedAt:   d.updatedAt,
	}
}

// cloneAnswers deep-copies answers so a failed patch cannot leak into the draft.
func cloneAnswers(a domain.ScreeningAnswers) (domain.ScreeningAnswers, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return domain.ScreeningAnswers{}, fmt.Errorf("copying answers: %w", err)
	}
	var out domain.ScreeningAnswers
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.ScreeningAnswers{}, fmt.Errorf("copying answers: %w", err)
	}
	return out, nil
}

// mergeAnswers applies a JSON patch onto a copy of base. Fields absent from the patch
// keep their value; an explicit null clears one.
func mergeAnswers(base domain.ScreeningAnswers, patch []byte) (domain.ScreeningAnswers, error) {
	merged, err := cloneAnswers(base)
	if err != nil {
		return domain.ScreeningAnswers{}, err
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return domain.ScreeningAnswers{}, domain.NewValidationError("answers", "malformed answer patch", err.Error())
	}
	merged.Normalize()
	if err := ValidateAnswers(&merged); err != nil {
		return domain.ScreeningAnswers{}, err
	}
	return merged, nil
}

// ValidateAnswers checks ranges and enum values of the answered questions.
func ValidateAnswers(a *domain.ScreeningAnswers) error {
	if a.Gender != nil && !a.Gender.IsValid() {
		return domain.NewValidationError("gender", domain.ErrInvalidGender.Error(), *a.Gender)
	}
	if a.Height != nil && (*a.Height <= 0 || *a.Height > 300) {
		return domain.NewValidationError("height", "height must be between 0 and 300 cm", *a.Height)
	}
	if a.Weight != nil && (*a.Weight <= 0 || *a.Weight > 500) {
		return domain.NewValidationError("weight", "weight must be between 0 and 500 kg", *a.Weight)
	}
	if a.NormalWeight != nil && (*a.NormalWeight <= 0 || *a.NormalWeight > 500) {
		return domain.NewValidationError("normal_weight", "normal weight must be between 0 and 500 kg", *a.NormalWeight)
	}
	if a.WeightLossAmount != nil && !a.WeightLossAmount.IsValid() {
		return domain.NewValidationError("weight_loss_amount", domain.ErrInvalidWeightLoss.Error(), *a.WeightLossAmount)
	}
	if a.MealsPerDay != nil && *a.MealsPerDay < 1 {
		return domain.NewValidationError("meals_per_day", "at least one meal per day", *a.MealsPerDay)
	}
	if a.PortionSize != nil && !domain.ValidPortionSize(*a.PortionSize) {
		return domain.NewValidationError("portion_size", domain.ErrInvalidPortionSize.Error(), *a.PortionSize)
	}
	if a.BirthDate != "" {
		if _, err := domain.ParseBirthDate(a.BirthDate); err != nil {
			return domain.NewValidationError("birth_date", err.Error(), a.BirthDate)
		}
	}
	return nil
}
