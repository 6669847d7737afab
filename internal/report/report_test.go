package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/scoring"
)

func severeResult() domain.ScreeningResult {
	answers := domain.ScreeningAnswers{
		BirthDate:        "1950-03-07",
		Height:           domain.Float(165),
		Weight:           domain.Float(70),
		HasWeightLoss:    domain.Bool(true),
		WeightLossAmount: domain.Ptr(domain.WeightLossOver6),
		MealsPerDay:      domain.Int(1),
		PortionSize:      domain.Int(50),
		AcuteDiseases:    domain.AcuteDiseases{Cancer: domain.Bool(true)},
		FeelsWeaker:      domain.Bool(true),
	}
	scorer := scoring.NewScorer(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })
	return scorer.Score(answers, "MS-07-03-1950")
}

func TestFormatText_AtRisk(t *testing.T) {
	text := FormatText(severeResult(), domain.LanguageGerman)

	expected := strings.Join([]string{
		"Patient: MS-07-03-1950",
		"NRS-2002 Score: 8",
		"Einstufung: Schwerer Mangelernährungszustand",
		"",
		"Risikobewertung: RISIKO FÜR MANGELERNÄHRUNG",
		"",
		"Therapie-Empfehlung:",
		"• Energiebedarf: 2100 kcal/Tag",
		"• Proteinbedarf: 70.0 g/Tag",
		"",
		"Score-Aufschlüsselung:",
		"• Gewichtsverlust: 3",
		"• Nahrungszufuhr: 2",
		"• Erkrankungen: 2",
		"• Körperliches Befinden: 1",
		"• Schluckbeschwerden: 0",
		"• BMI (nicht im Score): 25.7",
		"• Gesamt: 8",
	}, "\n")
	assert.Equal(t, expected, text)
}

func TestFormatText_NotAtRiskHasNoRecommendation(t *testing.T) {
	result := scoring.Score(domain.ScreeningAnswers{Weight: domain.Float(80), Height: domain.Float(180)}, "AB-01-01-1960")

	text := FormatText(result, domain.LanguageGerman)

	assert.Contains(t, text, "Risikobewertung: Kein erhöhtes Risiko")
	assert.NotContains(t, text, "Therapie-Empfehlung")
	assert.NotContains(t, text, "Ernährungsberatung")
}

func TestFormatText_CounselingLine(t *testing.T) {
	result := severeResult()
	result.Answers.WantsNutritionCounseling = domain.Bool(true)
	assert.True(t, strings.HasSuffix(FormatText(result, domain.LanguageGerman), "Patient wünscht Ernährungsberatung"))

	result.Answers.WantsNutritionCounseling = domain.Bool(false)
	assert.True(t, strings.HasSuffix(FormatText(result, domain.LanguageGerman), "Ernährungsberatung: nicht gewünscht"))
}

func TestFormatText_Languages(t *testing.T) {
	result := severeResult()

	assert.Contains(t, FormatText(result, domain.LanguageEnglish), "Classification: Severe Malnutrition")
	assert.Contains(t, FormatText(result, domain.LanguageEnglish), "• Energy requirement: 2100 kcal/day")
	assert.Contains(t, FormatText(result, domain.LanguageRussian), "Оценка: Тяжёлое недоедание")
	assert.Equal(t, FormatText(result, domain.LanguageGerman), FormatText(result, "xx"))
}

func TestFormat_Idempotent(t *testing.T) {
	result := severeResult()
	result.Answers.WantsNutritionCounseling = domain.Bool(true)

	for _, lang := range []domain.Language{domain.LanguageGerman, domain.LanguageEnglish, domain.LanguageRussian} {
		assert.Equal(t, FormatText(result, lang), FormatText(result, lang))

		first, err := FormatHTML(result, lang)
		require.NoError(t, err)
		second, err := FormatHTML(result, lang)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestFormatHTML_Content(t *testing.T) {
	result := severeResult()
	result.Answers.WantsNutritionCounseling = domain.Bool(true)

	html, err := FormatHTML(result, domain.LanguageGerman)
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="de">`)
	assert.Contains(t, html, "Schweres Risiko")
	assert.Contains(t, html, "&ge;5 Punkte")
	assert.Contains(t, html, "MS-07-03-1950")
	assert.Contains(t, html, "07.03.1950")
	assert.Contains(t, html, "Therapie-Empfehlung")
	assert.Contains(t, html, "2100 kcal/Tag")
	assert.Contains(t, html, "70.0 g/Tag")
	assert.Contains(t, html, "Patient wünscht Ernährungsberatung")
	assert.Contains(t, html, "#ef4444")
	assert.Contains(t, html, "DSGVO")
}

func TestFormatHTML_NoRiskWithoutRecommendation(t *testing.T) {
	result := scoring.Score(domain.ScreeningAnswers{}, "AB-01-01-1960")

	html, err := FormatHTML(result, domain.LanguageGerman)
	require.NoError(t, err)

	assert.Contains(t, html, "Kein Risiko")
	assert.Contains(t, html, "0&ndash;2 Punkte")
	assert.Contains(t, html, "Ernährungsberatung: nicht gewünscht")
	assert.NotContains(t, html, "Therapie-Empfehlung")
	assert.Contains(t, html, ">–<", "missing birth date renders a dash")
}

func TestFormatHTML_EscapesPatientInput(t *testing.T) {
	result := severeResult()
	result.PatientCode = `<script>alert(1)</script>`

	html, err := FormatHTML(result, domain.LanguageGerman)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestFormatHTML_InvalidLevel(t *testing.T) {
	result := severeResult()
	result.MalnutritionLevel = "unknown"

	_, err := FormatHTML(result, domain.LanguageGerman)
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "NutriCheck Screening: MS-07-03-1950 – Schweres Risiko",
		Subject("MS-07-03-1950", domain.LevelSevere, domain.LanguageGerman))
	assert.Equal(t, "NutriCheck Screening: AB-01-01-1960 – Mild risk",
		Subject("AB-01-01-1960", domain.LevelMild, domain.LanguageEnglish))
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		header   string
		expected domain.Language
	}{
		{"", domain.LanguageGerman},
		{"de-DE,de;q=0.9", domain.LanguageGerman},
		{"en-US,en;q=0.8", domain.LanguageEnglish},
		{"ru", domain.LanguageRussian},
		{"fr-FR,ru;q=0.5", domain.LanguageRussian},
		{"ja", domain.LanguageGerman},
		{";;;", domain.LanguageGerman},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.expected, Negotiate(tt.header))
		})
	}
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("en-GB")
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageEnglish, lang)

	lang, err = ParseLanguage("ru")
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageRussian, lang)

	_, err = ParseLanguage("fr")
	assert.ErrorIs(t, err, domain.ErrInvalidLanguage)

	_, err = ParseLanguage("!!")
	assert.ErrorIs(t, err, domain.ErrInvalidLanguage)
}
