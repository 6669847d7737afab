package domain

import (
	"time"
)

// ScoreBreakdown is the per-component result of scoring. BMI is display only.
type ScoreBreakdown struct {
	BMI                    float64 `json:"bmi"`
	WeightLossScore        int     `json:"weight_loss_score"`
	NutritionScore         int     `json:"nutrition_score"`
	DiseaseScore           int     `json:"disease_score"`
	PhysicalConditionScore int     `json:"physical_condition_score"`
	SwallowingScore        int     `json:"swallowing_score"`
}

// Total sums the five scored components.
func (s ScoreBreakdown) Total() int {
	return s.WeightLossScore +
		s.NutritionScore +
		s.DiseaseScore +
		s.PhysicalConditionScore +
		s.SwallowingScore
}

// Recommendations is the daily nutrition-therapy target for an at-risk patient.
type Recommendations struct {
	Energy  int     `json:"energy"`  // kcal per day
	Protein float64 `json:"protein"` // g per day, one decimal
}

// ScreeningResult is computed once per questionnaire and read-only afterwards,
// except for the counseling choice.
type ScreeningResult struct {
	PatientCode       string            `json:"patient_code"`
	Answers           ScreeningAnswers  `json:"answers"`
	Scores            ScoreBreakdown    `json:"scores"`
	TotalScore        int               `json:"total_score"`
	MalnutritionLevel MalnutritionLevel `json:"malnutrition_level"`
	IsAtRisk          bool              `json:"is_at_risk"`
	Recommendations   *Recommendations  `json:"recommendations,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// WantsCounseling returns the counseling choice, or nil when it was never made.
func (r *ScreeningResult) WantsCounseling() *bool {
	return r.Answers.WantsNutritionCounseling
}

// ScreeningRecord is the persisted form of a result, filed under a practice.
type ScreeningRecord struct {
	ID                string            `json:"id"`
	PracticeID        string            `json:"practice_id"`
	PatientCode       string            `json:"patient_code"`
	PatientBirthDate  string            `json:"patient_birth_date"`
	Language          Language          `json:"language"`
	Answers           ScreeningAnswers  `json:"answers"`
	Scores            ScoreBreakdown    `json:"scores"`
	TotalScore        int               `json:"total_score"`
	MalnutritionLevel MalnutritionLevel `json:"malnutrition_level"`
	IsAtRisk          bool              `json:"is_at_risk"`
	Recommendations   *Recommendations  `json:"recommendations,omitempty"`
	WantsCounseling   *bool             `json:"wants_counseling"`
	RecipientEmail    string            `json:"recipient_email,omitempty"`
	CreatedBy         string            `json:"created_by,omitempty"`
	SubmissionID      string            `json:"submission_id"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// RecordMeta is the filing information attached to a result when it is persisted.
type RecordMeta struct {
	PracticeID     string
	Language       Language
	RecipientEmail string
	CreatedBy      string
	SubmissionID   string
}

// NewScreeningRecord files a computed result under a practice.
func NewScreeningRecord(result ScreeningResult, meta RecordMeta) *ScreeningRecord {
	return &ScreeningRecord{
		PracticeID:        meta.PracticeID,
		PatientCode:       result.PatientCode,
		PatientBirthDate:  result.Answers.BirthDate,
		Language:          meta.Language.OrDefault(),
		Answers:           result.Answers,
		Scores:            result.Scores,
		TotalScore:        result.TotalScore,
		MalnutritionLevel: result.MalnutritionLevel,
		IsAtRisk:          result.IsAtRisk,
		Recommendations:   result.Recommendations,
		WantsCounseling:   result.Answers.WantsNutritionCounseling,
		RecipientEmail:    meta.RecipientEmail,
		CreatedBy:         meta.CreatedBy,
		SubmissionID:      meta.SubmissionID,
		CreatedAt:         result.CreatedAt,
	}
}

// Result rebuilds the scoring result from a stored record, including a counseling
// choice appended after the fact.
func (r *ScreeningRecord) Result() ScreeningResult {
	answers := r.Answers
	if r.WantsCounseling != nil {
		answers.WantsNutritionCounseling = Bool(*r.WantsCounseling)
	}
	return ScreeningResult{
		PatientCode:       r.PatientCode,
		Answers:           answers,
		Scores:            r.Scores,
		TotalScore:        r.TotalScore,
		MalnutritionLevel: r.MalnutritionLevel,
		IsAtRisk:          r.IsAtRisk,
		Recommendations:   r.Recommendations,
		CreatedAt:         r.CreatedAt,
	}
}

// Practice is a medical practice using the dashboard.
type Practice struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile links an authenticated user to a practice and a role.
type Profile struct {
	UserID     string `json:"user_id"`
	PracticeID string `json:"practice_id"`
	Role       Role   `json:"role"`
}

// Identity is the authenticated caller of the dashboard API.
type Identity struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Practice *Practice `json:"practice,omitempty"`
}

// IsAdmin reports whether the caller may act across practices.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// PracticeID returns the caller's practice id or "" if the caller has none.
func (i *Identity) PracticeID() string {
	if i == nil || i.Practice == nil {
		return ""
	}
	return i.Practice.ID
}

// CanAccess reports whether the caller may read or change records of practiceID.
func (i *Identity) CanAccess(practiceID string) bool {
	if i.IsAdmin() {
		return true
	}
	return practiceID != "" && i.PracticeID() == practiceID
}

// AppSetting is a global key/value setting maintained by admins.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingCCEmail is the admin copy address for screening emails.
const SettingCCEmail = "cc_email"
