package wizard

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/scoring"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewManager(domain.WizardConfig{DraftTTL: time.Minute, MaxDrafts: 100}, scoring.NewScorer(nil), logger)
}

// answersFor returns a patch that satisfies the gate of step.
func answersFor(step Step, weightUnknown, weightLoss bool) string {
	switch step {
	case StepGender:
		return `{"gender":"female"}`
	case StepHeight:
		return `{"height":165}`
	case StepWeight:
		if weightUnknown {
			return `{"weight_unknown":true}`
		}
		return `{"weight":70}`
	case StepNormalWeight:
		return `{}`
	case StepWeightLoss:
		if weightLoss {
			return `{"has_weight_loss":true}`
		}
		return `{"has_weight_loss":false}`
	case StepWeightLossAmount:
		return `{"weight_loss_amount":">6kg"}`
	case StepClothingLoose:
		return `{"clothing_loose":true}`
	case StepMealsPerDay:
		return `{"meals_per_day":1}`
	case StepPortionSize:
		return `{"portion_size":50}`
	case StepAppetiteByOthers:
		return `{"appetite_by_others":"limited"}`
	case StepFruitPerWeek:
		return `{"fruit_per_week":"1-2"}`
	case StepVegetablesPerWeek:
		return `{"vegetables_per_week":"3-4"}`
	case StepSweetPreference:
		return `{"sweet_preference":"like"}`
	case StepMeatPerWeek:
		return `{"meat_per_week":"0"}`
	case StepCarbsPerWeek:
		return `{"carbs_per_week":"daily"}`
	case StepAcuteDiseases:
		return `{"acute_diseases":{"cancer":true,"cancer_type":"Kolon"}}`
	case StepChronicDiseases:
		return `{}`
	case StepPhysicalCondition:
		return `{"feels_weaker":true,"muscle_loss":false,"frequent_infections":false,"difficulty_getting_up":false,"shortness_of_breath":false}`
	case StepDrinkingAmount:
		return `{"drinking_amount":"1-1.5L"}`
	case StepSwallowing:
		return `{"has_swallowing_issues":false}`
	case StepMedication:
		return `{"takes_medication":false}`
	case StepSupplements:
		return `{"has_supplement_experience":false}`
	case StepNutritionTherapy:
		return `{"had_nutrition_therapy":false}`
	case StepInfusions:
		return `{"had_nutrient_infusions":false}`
	case StepNutritionCounseling:
		return `{"wants_nutrition_counseling":true}`
	}
	return `{}`
}

func walkToEnd(t *testing.T, m *Manager, id string, weightUnknown, weightLoss bool) []Step {
	t.Helper()
	var visited []Step
	for i := 0; i < 50; i++ {
		snap, err := m.Get(id)
		require.NoError(t, err)
		visited = append(visited, snap.Step)

		_, err = m.Answer(id, []byte(answersFor(snap.Step, weightUnknown, weightLoss)))
		require.NoError(t, err)

		_, err = m.Next(id)
		if errors.Is(err, ErrCompleteRequired) {
			return visited
		}
		require.NoError(t, err, "step %s", snap.Step)
	}
	t.Fatal("questionnaire did not reach the last step")
	return nil
}

func TestPaths_AllEndAtResult(t *testing.T) {
	paths := Paths()

	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.Equal(t, FirstStep, p[0])
		assert.Equal(t, StepResult, p[len(p)-1])
		for _, step := range p {
			assert.True(t, step.IsValid(), "step %s", step)
		}
	}
}

func TestGraph_EveryStepHasAGate(t *testing.T) {
	for step := range graph {
		_, ok := gates[step]
		assert.True(t, ok, "missing gate for %s", step)
	}
}

func TestNextStep_WeightLossBranches(t *testing.T) {
	tests := []struct {
		name     string
		answers  domain.ScreeningAnswers
		expected Step
	}{
		{"loss with known weight", domain.ScreeningAnswers{HasWeightLoss: domain.Bool(true), Weight: domain.Float(70)}, StepWeightLossAmount},
		{"unknown weight", domain.ScreeningAnswers{HasWeightLoss: domain.Bool(true), WeightUnknown: true}, StepClothingLoose},
		{"unknown weight without loss", domain.ScreeningAnswers{HasWeightLoss: domain.Bool(false), WeightUnknown: true}, StepClothingLoose},
		{"no loss", domain.ScreeningAnswers{HasWeightLoss: domain.Bool(false), Weight: domain.Float(70)}, StepMealsPerDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextStep(StepWeightLoss, &tt.answers)
			require.True(t, ok)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestManager_FullWalkAndComplete(t *testing.T) {
	tests := []struct {
		name          string
		weightUnknown bool
		weightLoss    bool
		branch        Step
		skipped       Step
	}{
		{"weight loss amount branch", false, true, StepWeightLossAmount, StepClothingLoose},
		{"clothing branch", true, true, StepClothingLoose, StepWeightLossAmount},
		{"no loss branch", false, false, StepMealsPerDay, StepWeightLossAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			snap, err := m.Start(StartParams{PatientCode: "MS-07-03-1950", BirthDate: "1950-03-07", Language: domain.LanguageGerman})
			require.NoError(t, err)

			visited := walkToEnd(t, m, snap.ID, tt.weightUnknown, tt.weightLoss)
			assert.Contains(t, visited, tt.branch)
			assert.NotContains(t, visited, tt.skipped)
			assert.Equal(t, StepNutritionCounseling, visited[len(visited)-1])

			result, snap, err := m.Complete(snap.ID)
			require.NoError(t, err)
			assert.Equal(t, StepResult, snap.Step)
			assert.Equal(t, Submitted, snap.State)
			assert.Equal(t, "MS-07-03-1950", result.PatientCode)
			assert.True(t, domain.IsTrue(result.Answers.WantsNutritionCounseling))
			assert.True(t, result.IsAtRisk)
		})
	}
}

func TestManager_CompleteOnlyOnce(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)
	walkToEnd(t, m, snap.ID, false, true)

	first, _, err := m.Complete(snap.ID)
	require.NoError(t, err)

	second, snap2, err := m.Complete(snap.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	assert.Equal(t, first, second)
	assert.Equal(t, Submitted, snap2.State)

	_, err = m.Answer(snap.ID, []byte(`{"gender":"male"}`))
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	_, err = m.Back(snap.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
}

func TestManager_ConcurrentCompleteScoresOnce(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)
	walkToEnd(t, m, snap.ID, false, false)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Complete(snap.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestManager_GatingBlocksNext(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)
	assert.False(t, snap.CanAdvance)

	_, err = m.Next(snap.ID)
	assert.ErrorIs(t, err, ErrCannotAdvance)

	snap, err = m.Answer(snap.ID, []byte(`{"gender":"diverse"}`))
	require.NoError(t, err)
	assert.True(t, snap.CanAdvance)

	snap, err = m.Next(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StepHeight, snap.Step)
}

func TestManager_PhysicalConditionNeedsAllAnswers(t *testing.T) {
	a := domain.ScreeningAnswers{FeelsWeaker: domain.Bool(true), MuscleLoss: domain.Bool(false)}
	assert.False(t, CanAdvance(StepPhysicalCondition, &a))

	a.FrequentInfections = domain.Bool(false)
	a.DifficultyGettingUp = domain.Bool(false)
	a.ShortnessOfBreath = domain.Bool(false)
	assert.True(t, CanAdvance(StepPhysicalCondition, &a))
}

func TestManager_BackInvertsNext(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	_, err = m.Back(snap.ID)
	assert.ErrorIs(t, err, ErrAtFirstStep)

	var forward []Step
	for i := 0; i < 8; i++ {
		cur, err := m.Get(snap.ID)
		require.NoError(t, err)
		forward = append(forward, cur.Step)
		_, err = m.Answer(snap.ID, []byte(answersFor(cur.Step, true, true)))
		require.NoError(t, err)
		_, err = m.Next(snap.ID)
		require.NoError(t, err)
	}
	assert.Contains(t, forward, StepClothingLoose)

	for i := len(forward) - 1; i >= 0; i-- {
		back, err := m.Back(snap.ID)
		require.NoError(t, err)
		assert.Equal(t, forward[i], back.Step)
	}

	_, err = m.Back(snap.ID)
	assert.ErrorIs(t, err, ErrAtFirstStep)
}

func TestManager_CompleteBeforeReady(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	_, _, err = m.Complete(snap.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManager_AnswerValidationKeepsDraft(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	_, err = m.Answer(snap.ID, []byte(`{"weight":72,"portion_size":100}`))
	require.NoError(t, err)

	_, err = m.Answer(snap.ID, []byte(`{"weight":80,"portion_size":60}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "portion_size", verr.Field)

	_, err = m.Answer(snap.ID, []byte(`{"gender":"robot"}`))
	require.ErrorAs(t, err, &verr)

	_, err = m.Answer(snap.ID, []byte(`not json`))
	require.ErrorAs(t, err, &verr)

	cur, err := m.Get(snap.ID)
	require.NoError(t, err)
	require.NotNil(t, cur.Answers.Weight)
	assert.Equal(t, 72.0, *cur.Answers.Weight)
	assert.Equal(t, 100, *cur.Answers.PortionSize)
	assert.Nil(t, cur.Answers.Gender)
}

func TestManager_AnswerMergesAndClears(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	_, err = m.Answer(snap.ID, []byte(`{"chronic_diseases":{"heart_failure":true}}`))
	require.NoError(t, err)
	cur, err := m.Answer(snap.ID, []byte(`{"chronic_diseases":{"diarrhea":true}}`))
	require.NoError(t, err)
	assert.True(t, domain.IsTrue(cur.Answers.ChronicDiseases.HeartFailure))
	assert.True(t, domain.IsTrue(cur.Answers.ChronicDiseases.Diarrhea))

	cur, err = m.Answer(snap.ID, []byte(`{"weight":70}`))
	require.NoError(t, err)
	cur, err = m.Answer(snap.ID, []byte(`{"weight_unknown":true}`))
	require.NoError(t, err)
	assert.Nil(t, cur.Answers.Weight)

	cur, err = m.Answer(snap.ID, []byte(`{"chronic_diseases":{"heart_failure":null}}`))
	require.NoError(t, err)
	assert.Nil(t, cur.Answers.ChronicDiseases.HeartFailure)
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)
	snap, err = m.Answer(snap.ID, []byte(`{"height":180}`))
	require.NoError(t, err)

	*snap.Answers.Height = 1

	cur, err := m.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 180.0, *cur.Answers.Height)
}

func TestManager_AbandonAndExpiry(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	require.NoError(t, m.Abandon(snap.ID))
	_, err = m.Get(snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, m.Abandon(snap.ID), ErrDraftNotFound)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	short := NewManager(domain.WizardConfig{DraftTTL: 20 * time.Millisecond, MaxDrafts: 10}, nil, logger)
	snap, err = short.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = short.Get(snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestManager_StartValidation(t *testing.T) {
	m := newTestManager(t)

	var verr *domain.ValidationError
	for _, code := range []string{"", "Erika Musterfrau", "EM 01.01.1960"} {
		_, err := m.Start(StartParams{PatientCode: code})
		require.ErrorAs(t, err, &verr, "code %q", code)
		assert.Equal(t, "patient_code", verr.Field)
	}
	assert.Zero(t, m.Len())

	_, err := m.Start(StartParams{PatientCode: "AB-01-01-1960", BirthDate: "01.01.1960"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "birth_date", verr.Field)

	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960", Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageGerman, snap.Language)
}

func TestSnapshot_JSON(t *testing.T) {
	m := newTestManager(t)
	snap, err := m.Start(StartParams{PatientCode: "AB-01-01-1960"})
	require.NoError(t, err)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"not_submitted"`)
	assert.Contains(t, string(raw), `"step":"gender"`)
}
