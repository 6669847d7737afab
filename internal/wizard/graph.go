// Package wizard drives a patient through the screening questionnaire.
//
// The question order is an explicit directed graph: every step lists its outgoing
// edges as (condition, next step) pairs and the first matching edge wins. Each step
// also has a gate that must pass before the patient may leave it.
package wizard

import (
	"github.com/nutricheck-server/internal/domain"
)

// Step identifies one question screen.
type Step string

const (
	StepGender              Step = "gender"
	StepHeight              Step = "height"
	StepWeight              Step = "weight"
	StepNormalWeight        Step = "normalWeight"
	StepWeightLoss          Step = "weightLoss"
	StepWeightLossAmount    Step = "weightLossAmount"
	StepClothingLoose       Step = "clothingLoose"
	StepMealsPerDay         Step = "mealsPerDay"
	StepPortionSize         Step = "portionSize"
	StepAppetiteByOthers    Step = "appetiteByOthers"
	StepFruitPerWeek        Step = "fruitPerWeek"
	StepVegetablesPerWeek   Step = "vegetablesPerWeek"
	StepSweetPreference     Step = "sweetPreference"
	StepMeatPerWeek         Step = "meatPerWeek"
	StepCarbsPerWeek        Step = "carbsPerWeek"
	StepAcuteDiseases       Step = "acuteDiseases"
	StepChronicDiseases     Step = "chronicDiseases"
	StepPhysicalCondition   Step = "physicalCondition"
	StepDrinkingAmount      Step = "drinkingAmount"
	StepSwallowing          Step = "swallowing"
	StepMedication          Step = "medication"
	StepSupplements         Step = "supplements"
	StepNutritionTherapy    Step = "nutritionTherapy"
	StepInfusions           Step = "infusions"
	StepNutritionCounseling Step = "nutritionCounseling"
	StepResult              Step = "result"
)

// FirstStep is where every questionnaire starts.
const FirstStep = StepGender

type condition func(a *domain.ScreeningAnswers) bool

type edge struct {
	when condition
	to   Step
}

func always(*domain.ScreeningAnswers) bool { return true }

func to(next Step) []edge {
	return []edge{{when: always, to: next}}
}

var graph = map[Step][]edge{
	StepGender:       to(StepHeight),
	StepHeight:       to(StepWeight),
	StepWeight:       to(StepNormalWeight),
	StepNormalWeight: to(StepWeightLoss),
	StepWeightLoss: {
		{when: func(a *domain.ScreeningAnswers) bool {
			return domain.IsTrue(a.HasWeightLoss) && !a.WeightUnknown
		}, to: StepWeightLossAmount},
		{when: func(a *domain.ScreeningAnswers) bool { return a.WeightUnknown }, to: StepClothingLoose},
		{when: always, to: StepMealsPerDay},
	},
	StepWeightLossAmount:    to(StepMealsPerDay),
	StepClothingLoose:       to(StepMealsPerDay),
	StepMealsPerDay:         to(StepPortionSize),
	StepPortionSize:         to(StepAppetiteByOthers),
	StepAppetiteByOthers:    to(StepFruitPerWeek),
	StepFruitPerWeek:        to(StepVegetablesPerWeek),
	StepVegetablesPerWeek:   to(StepSweetPreference),
	StepSweetPreference:     to(StepMeatPerWeek),
	StepMeatPerWeek:         to(StepCarbsPerWeek),
	StepCarbsPerWeek:        to(StepAcuteDiseases),
	StepAcuteDiseases:       to(StepChronicDiseases),
	StepChronicDiseases:     to(StepPhysicalCondition),
	StepPhysicalCondition:   to(StepDrinkingAmount),
	StepDrinkingAmount:      to(StepSwallowing),
	StepSwallowing:          to(StepMedication),
	StepMedication:          to(StepSupplements),
	StepSupplements:         to(StepNutritionTherapy),
	StepNutritionTherapy:    to(StepInfusions),
	StepInfusions:           to(StepNutritionCounseling),
	StepNutritionCounseling: to(StepResult),
	StepResult:              nil,
}

// Disease lists are checkbox screens: nothing ticked is a valid answer.
var gates = map[Step]condition{
	StepGender: func(a *domain.ScreeningAnswers) bool { return a.Gender != nil },
	StepHeight: func(a *domain.ScreeningAnswers) bool { return a.Height != nil && *a.Height > 0 },
	StepWeight: func(a *domain.ScreeningAnswers) bool {
		return a.WeightUnknown || (a.Weight != nil && *a.Weight > 0)
	},
	StepNormalWeight:     always,
	StepWeightLoss:       func(a *domain.ScreeningAnswers) bool { return a.HasWeightLoss != nil },
	StepWeightLossAmount: func(a *domain.ScreeningAnswers) bool { return a.WeightLossAmount != nil },
	StepClothingLoose:    func(a *domain.ScreeningAnswers) bool { return a.ClothingLoose != nil },
	StepMealsPerDay:      func(a *domain.ScreeningAnswers) bool { return a.MealsPerDay != nil && *a.MealsPerDay >= 1 },
	StepPortionSize: func(a *domain.ScreeningAnswers) bool {
		return a.PortionSize != nil && domain.ValidPortionSize(*a.PortionSize)
	},
	StepAppetiteByOthers:    func(a *domain.ScreeningAnswers) bool { return a.AppetiteByOthers != nil },
	StepFruitPerWeek:        func(a *domain.ScreeningAnswers) bool { return a.FruitPerWeek != nil },
	StepVegetablesPerWeek:   func(a *domain.ScreeningAnswers) bool { return a.VegetablesPerWeek != nil },
	StepSweetPreference:     func(a *domain.ScreeningAnswers) bool { return a.SweetPreference != nil },
	StepMeatPerWeek:         func(a *domain.ScreeningAnswers) bool { return a.MeatPerWeek != nil },
	StepCarbsPerWeek:        func(a *domain.ScreeningAnswers) bool { return a.CarbsPerWeek != nil },
	StepAcuteDiseases:       always,
	StepChronicDiseases:     always,
	StepPhysicalCondition:   func(a *domain.ScreeningAnswers) bool { return a.PhysicalConditionAnswered() },
	StepDrinkingAmount:      func(a *domain.ScreeningAnswers) bool { return a.DrinkingAmount != nil },
	StepSwallowing:          func(a *domain.ScreeningAnswers) bool { return a.HasSwallowingIssues != nil },
	StepMedication:          func(a *domain.ScreeningAnswers) bool { return a.TakesMedication != nil },
	StepSupplements:         func(a *domain.ScreeningAnswers) bool { return a.HasSupplementExperience != nil },
	StepNutritionTherapy:    func(a *domain.ScreeningAnswers) bool { return a.HadNutritionTherapy != nil },
	StepInfusions:           func(a *domain.ScreeningAnswers) bool { return a.HadNutrientInfusions != nil },
	StepNutritionCounseling: func(a *domain.ScreeningAnswers) bool { return a.WantsNutritionCounseling != nil },
	StepResult:              func(*domain.ScreeningAnswers) bool { return false },
}

// IsValid reports whether s is a step of the questionnaire.
func (s Step) IsValid() bool {
	_, ok := graph[s]
	return ok
}

// CanAdvance reports whether the answers satisfy the gate of step.
func CanAdvance(step Step, a *domain.ScreeningAnswers) bool {
	gate, ok := gates[step]
	return ok && gate(a)
}

// NextStep follows the first matching edge out of step. It ignores the gate.
func NextStep(step Step, a *domain.ScreeningAnswers) (Step, bool) {
	for _, e := range graph[step] {
		if e.when(a) {
			return e.to, true
		}
	}
	return "", false
}

// Paths enumerates every route from FirstStep to StepResult, taking each edge
// regardless of its condition.
func Paths() [][]Step {
	var paths [][]Step
	var walk func(step Step, path []Step)
	walk = func(step Step, path []Step) {
		path = append(path, step)
		edges := graph[step]
		if len(edges) == 0 {
			paths = append(paths, append([]Step(nil), path...))
			return
		}
		seen := make(map[Step]bool, len(edges))
		for _, e := range edges {
			if seen[e.to] {
				continue
			}
			seen[e.to] = true
			walk(e.to, path)
		}
	}
	walk(FirstStep, nil)
	return paths
}
