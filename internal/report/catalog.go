// Package report renders screening results as plain text for copy-paste and as the
// HTML body of the practice notification email. Output depends only on its
// arguments; the language is always passed in explicitly.
package report

import (
	"github.com/nutricheck-server/internal/domain"
)

// Labels holds every user-visible string of one report language.
type Labels struct {
	Patient        string
	Score          string
	Classification string
	RiskAssessment string
	AtRisk         string
	NotAtRisk      string

	LevelTitle map[domain.MalnutritionLevel]string // result screen headline
	LevelShort map[domain.MalnutritionLevel]string // email banner and subject

	Therapy     string
	Energy      string
	Protein     string
	KcalPerDay  string
	GramsPerDay string

	Breakdown    string
	WeightLoss   string
	Nutrition    string
	Disease      string
	Physical     string
	Swallowing   string
	BMINotScored string
	Total        string
	Points       string

	CounselingWanted    string
	CounselingNotWanted string

	EmailHeading string
	PatientData  string
	PatientCode  string
	BirthDate    string
	Footer       string
	DateLayout   string

	// spreadsheet export
	Created    string
	Counseling string
	Yes        string
	No         string
}

var catalog = map[domain.Language]Labels{
	domain.LanguageGerman: {
		Patient:        "Patient",
		Score:          "NRS-2002 Score",
		Classification: "Einstufung",
		RiskAssessment: "Risikobewertung",
		AtRisk:         "RISIKO FÜR MANGELERNÄHRUNG",
		NotAtRisk:      "Kein erhöhtes Risiko",
		LevelTitle: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "Kein Mangelernährungszustand",
			domain.LevelMild:   "Leichter Mangelernährungszustand",
			domain.LevelSevere: "Schwerer Mangelernährungszustand",
		},
		LevelShort: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "Kein Risiko",
			domain.LevelMild:   "Leichtes Risiko",
			domain.LevelSevere: "Schweres Risiko",
		},
		Therapy:             "Therapie-Empfehlung",
		Energy:              "Energiebedarf",
		Protein:             "Proteinbedarf",
		KcalPerDay:          "kcal/Tag",
		GramsPerDay:         "g/Tag",
		Breakdown:           "Score-Aufschlüsselung",
		WeightLoss:          "Gewichtsverlust",
		Nutrition:           "Nahrungszufuhr",
		Disease:             "Erkrankungen",
		Physical:            "Körperliches Befinden",
		Swallowing:          "Schluckbeschwerden",
		BMINotScored:        "BMI (nicht im Score)",
		Total:               "Gesamt",
		Points:              "Punkte",
		CounselingWanted:    "Patient wünscht Ernährungsberatung",
		CounselingNotWanted: "Ernährungsberatung: nicht gewünscht",
		EmailHeading:        "Screening-Ergebnis",
		PatientData:         "Patientendaten",
		PatientCode:         "Patienten-Code",
		BirthDate:           "Geburtsdatum",
		Footer: "Diese E-Mail wurde automatisch vom NutriCheck Screening-System generiert. " +
			"Die enthaltenen Daten sind vertraulich und ausschließlich für den angegebenen Empfänger bestimmt. " +
			"Bitte beachten Sie die geltenden Datenschutzbestimmungen (DSGVO) bei der Verarbeitung patientenbezogener Informationen.",
		DateLayout: "02.01.2006",
		Created:    "Erstellt am",
		Counseling: "Ernährungsberatung",
		Yes:        "Ja",
		No:         "Nein",
	},
	domain.LanguageEnglish: {
		Patient:        "Patient",
		Score:          "NRS-2002 Score",
		Classification: "Classification",
		RiskAssessment: "Risk assessment",
		AtRisk:         "AT RISK OF MALNUTRITION",
		NotAtRisk:      "No increased risk",
		LevelTitle: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "No Malnutrition",
			domain.LevelMild:   "Mild Malnutrition",
			domain.LevelSevere: "Severe Malnutrition",
		},
		LevelShort: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "No risk",
			domain.LevelMild:   "Mild risk",
			domain.LevelSevere: "Severe risk",
		},
		Therapy:             "Therapy Recommendation",
		Energy:              "Energy requirement",
		Protein:             "Protein requirement",
		KcalPerDay:          "kcal/day",
		GramsPerDay:         "g/day",
		Breakdown:           "Score Breakdown",
		WeightLoss:          "Weight Loss",
		Nutrition:           "Food Intake",
		Disease:             "Diseases",
		Physical:            "Physical Condition",
		Swallowing:          "Swallowing Issues",
		BMINotScored:        "BMI (not scored)",
		Total:               "Total",
		Points:              "points",
		CounselingWanted:    "Patient requests nutrition counseling",
		CounselingNotWanted: "Nutrition counseling: not requested",
		EmailHeading:        "Screening result",
		PatientData:         "Patient data",
		PatientCode:         "Patient code",
		BirthDate:           "Date of birth",
		Footer: "This email was generated automatically by the NutriCheck screening system. " +
			"The data it contains is confidential and intended solely for the named recipient. " +
			"Please observe the applicable data protection regulations (GDPR) when processing patient-related information.",
		DateLayout: "2006-01-02",
		Created:    "Created",
		Counseling: "Nutrition counseling",
		Yes:        "Yes",
		No:         "No",
	},
	domain.LanguageRussian: {
		Patient:        "Пациент",
		Score:          "Баллы NRS-2002",
		Classification: "Оценка",
		RiskAssessment: "Оценка риска",
		AtRisk:         "РИСК НЕДОЕДАНИЯ",
		NotAtRisk:      "Повышенного риска нет",
		LevelTitle: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "Недоедание отсутствует",
			domain.LevelMild:   "Лёгкое недоедание",
			domain.LevelSevere: "Тяжёлое недоедание",
		},
		LevelShort: map[domain.MalnutritionLevel]string{
			domain.LevelNone:   "Нет риска",
			domain.LevelMild:   "Лёгкий риск",
			domain.LevelSevere: "Высокий риск",
		},
		Therapy:             "Рекомендация по терапии",
		Energy:              "Потребность в энергии",
		Protein:             "Потребность в белке",
		KcalPerDay:          "ккал/день",
		GramsPerDay:         "г/день",
		Breakdown:           "Расшифровка баллов",
		WeightLoss:          "Потеря веса",
		Nutrition:           "Питание",
		Disease:             "Заболевания",
		Physical:            "Физическое состояние",
		Swallowing:          "Проблемы с глотанием",
		BMINotScored:        "ИМТ (не учитывается)",
		Total:               "Итого",
		Points:              "баллов",
		CounselingWanted:    "Пациент желает консультацию по питанию",
		CounselingNotWanted: "Консультация по питанию: не требуется",
		EmailHeading:        "Результат скрининга",
		PatientData:         "Данные пациента",
		PatientCode:         "Код пациента",
		BirthDate:           "Дата рождения",
		Footer: "Это письмо автоматически создано системой скрининга NutriCheck. " +
			"Содержащиеся данные конфиденциальны и предназначены исключительно для указанного получателя. " +
			"Соблюдайте действующие правила защиты данных (GDPR) при обработке информации о пациентах.",
		DateLayout: "02.01.2006",
		Created:    "Создано",
		Counseling: "Консультация по питанию",
		Yes:        "Да",
		No:         "Нет",
	},
}

// For returns the labels of lang, falling back to German.
func For(lang domain.Language) Labels {
	return catalog[lang.OrDefault()]
}

// LevelTitle returns the headline of a level in lang.
func LevelTitle(level domain.MalnutritionLevel, lang domain.Language) string {
	return For(lang).LevelTitle[level]
}

// Subject builds the notification subject line, e.g. "NutriCheck Screening: MS-07-03-1950 – Schweres Risiko".
func Subject(patientCode string, level domain.MalnutritionLevel, lang domain.Language) string {
	return "NutriCheck Screening: " + patientCode + " \u2013 " + For(lang).LevelShort[level]
}
