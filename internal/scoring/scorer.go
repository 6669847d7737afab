// Package scoring computes the malnutrition risk of a questionnaire.
//
// Score is a pure, total function: unanswered questions contribute zero and it never
// fails. BMI is reported for display but is not part of the total.
package scoring

import (
	"math"
	"time"

	"github.com/nutricheck-server/internal/domain"
)

// Level thresholds on the total score.
const (
	MildThreshold   = 3
	SevereThreshold = 5
)

// Daily therapy targets per kilogram of body weight.
const (
	EnergyPerKg  = 30.0 // kcal
	ProteinPerKg = 1.0  // g
)

// Disease weights. Conditions not listed here are recorded but not scored.
const (
	cancerWeight                  = 2
	heartFailureWeight            = 2
	diarrheaWeight                = 1
	nauseaVomitingWeight          = 1
	gastrointestinalSurgeryWeight = 1
)

// Clock returns the current time.
type Clock func() time.Time

// Scorer computes screening results. The zero value uses the wall clock.
type Scorer struct {
	now Clock
}

// NewScorer creates a scorer that stamps results with now(). A nil clock means time.Now.
func NewScorer(now Clock) *Scorer {
	return &Scorer{now: now}
}

var defaultScorer = &Scorer{}

// Score scores answers with the wall clock. See Scorer.Score.
func Score(answers domain.ScreeningAnswers, patientCode string) domain.ScreeningResult {
	return defaultScorer.Score(answers, patientCode)
}

// Score maps an answer set to its breakdown, level and recommendations.
func (s *Scorer) Score(answers domain.ScreeningAnswers, patientCode string) domain.ScreeningResult {
	scores := domain.ScoreBreakdown{
		BMI:                    bmiOf(answers),
		WeightLossScore:        WeightLossScore(answers),
		NutritionScore:         NutritionScore(answers.MealsPerDay, answers.PortionSize),
		DiseaseScore:           DiseaseScore(answers.AcuteDiseases, answers.ChronicDiseases),
		PhysicalConditionScore: PhysicalConditionScore(answers),
		SwallowingScore:        SwallowingScore(answers),
	}

	total := scores.Total()
	result := domain.ScreeningResult{
		PatientCode:       patientCode,
		Answers:           answers,
		Scores:            scores,
		TotalScore:        total,
		MalnutritionLevel: ClassifyLevel(total),
		IsAtRisk:          total >= MildThreshold,
		CreatedAt:         s.clock().UTC(),
	}

	if weight, ok := answers.KnownWeight(); ok && result.IsAtRisk {
		result.Recommendations = Recommend(weight)
	}

	return result
}

func (s *Scorer) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now()
	}
	return s.now()
}

// ClassifyLevel maps a total score onto the three risk tiers.
func ClassifyLevel(total int) domain.MalnutritionLevel {
	switch {
	case total >= SevereThreshold:
		return domain.LevelSevere
	case total >= MildThreshold:
		return domain.LevelMild
	default:
		return domain.LevelNone
	}
}

// CalculateBMI returns weight / (height in m)^2, or 0 when either value is missing.
func CalculateBMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

func bmiOf(a domain.ScreeningAnswers) float64 {
	weight, ok := a.KnownWeight()
	if !ok || a.Height == nil {
		return 0
	}
	return CalculateBMI(weight, *a.Height)
}

// WeightLossScore scores confirmed loss 1-3, or 1 for loose clothing when the weight is unknown.
func WeightLossScore(a domain.ScreeningAnswers) int {
	if a.WeightUnknown {
		if domain.IsTrue(a.ClothingLoose) {
			return 1
		}
		return 0
	}
	if !domain.IsTrue(a.HasWeightLoss) || a.WeightLossAmount == nil {
		return 0
	}
	switch *a.WeightLossAmount {
	case domain.WeightLossOver6:
		return 3
	case domain.WeightLoss3To6:
		return 2
	case domain.WeightLoss1To3:
		return 1
	default:
		return 0
	}
}

// NutritionScore rates intake adequacy from meal count and portion size. Both are required.
func NutritionScore(mealsPerDay, portionSize *int) int {
	if mealsPerDay == nil || portionSize == nil {
		return 0
	}

	mealsPoints := 0
	if *mealsPerDay <= 2 {
		mealsPoints = 1
	}

	effectiveMeals := float64(*mealsPerDay) * float64(*portionSize) / 100
	base := 0
	switch {
	case effectiveMeals < 1.5:
		base = 2
	case effectiveMeals < 3:
		base = 1
	}

	return max(base, mealsPoints)
}

// DiseaseScore sums the weights of the scored conditions that are present.
func DiseaseScore(acute domain.AcuteDiseases, chronic domain.ChronicDiseases) int {
	score := 0
	if domain.IsTrue(acute.Cancer) {
		score += cancerWeight
	}
	if domain.IsTrue(chronic.HeartFailure) {
		score += heartFailureWeight
	}
	if domain.IsTrue(chronic.Diarrhea) {
		score += diarrheaWeight
	}
	if domain.IsTrue(chronic.NauseaVomiting) {
		score += nauseaVomitingWeight
	}
	if domain.IsTrue(chronic.GastrointestinalSurgery) {
		score += gastrointestinalSurgeryWeight
	}
	return score
}

// PhysicalConditionScore is 1 when any decline symptom is reported. It does not accumulate.
func PhysicalConditionScore(a domain.ScreeningAnswers) int {
	if domain.IsTrue(a.FeelsWeaker) ||
		domain.IsTrue(a.MuscleLoss) ||
		domain.IsTrue(a.FrequentInfections) ||
		domain.IsTrue(a.DifficultyGettingUp) ||
		domain.IsTrue(a.ShortnessOfBreath) {
		return 1
	}
	return 0
}

// SwallowingScore is 1 when swallowing problems are reported.
func SwallowingScore(a domain.ScreeningAnswers) int {
	if domain.IsTrue(a.HasSwallowingIssues) {
		return 1
	}
	return 0
}

// Recommend returns the daily energy and protein targets for a body weight.
func Recommend(weightKg float64) *domain.Recommendations {
	return &domain.Recommendations{
		Energy:  int(math.Round(EnergyPerKg * weightKg)),
		Protein: math.Round(weightKg*ProteinPerKg*10) / 10,
	}
}

// CalculateAge returns completed years between birthDate (YYYY-MM-DD) and now.
// It is used for display only; age does not change the score.
func CalculateAge(birthDate string, now time.Time) (int, bool) {
	born, err := time.Parse(domain.BirthDateLayout, birthDate)
	if err != nil || born.After(now) {
		return 0, false
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age, true
}
