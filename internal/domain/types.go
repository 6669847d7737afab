// Package domain contains the core entities of the NutriCheck malnutrition screening:
// questionnaire answers, score breakdowns, screening results and the practice records
// they are filed under.
//
// The scoring loosely adapts the Nutritional Risk Screening 2002 (NRS-2002).
// Reference: Kondrup J et al. (2003) Nutritional risk screening (NRS 2002): a new method
// based on an analysis of controlled clinical trials. Clin Nutr. 22(3):321-36.
package domain

import (
	"errors"
)

// MalnutritionLevel is the three-tier classification derived from the total score.
type MalnutritionLevel string

const (
	LevelNone   MalnutritionLevel = "none"
	LevelMild   MalnutritionLevel = "mild"
	LevelSevere MalnutritionLevel = "severe"
)

// Gender of the patient as captured by the questionnaire.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderDiverse Gender = "diverse"
)

// WeightLossAmount is the self-reported unintended loss over the last three months.
type WeightLossAmount string

const (
	WeightLoss1To3  WeightLossAmount = "1-3kg"
	WeightLoss3To6  WeightLossAmount = "3-6kg"
	WeightLossOver6 WeightLossAmount = ">6kg"
)

// Frequency is how many days per week a food group is eaten. Descriptive only.
type Frequency string

const (
	FrequencyNever Frequency = "0"
	Frequency1To2  Frequency = "1-2"
	Frequency3To4  Frequency = "3-4"
	Frequency5To7  Frequency = "5-7"
	FrequencyDaily Frequency = "daily"
)

// Appetite as judged by relatives or carers.
type Appetite string

const (
	AppetiteNormal  Appetite = "normal"
	AppetiteLimited Appetite = "limited"
)

// SweetPreference records whether the patient likes sweet food.
type SweetPreference string

const (
	SweetLike    SweetPreference = "like"
	SweetDislike SweetPreference = "dislike"
)

// DrinkingAmount is the daily fluid intake bracket.
type DrinkingAmount string

const (
	DrinkingUnder1L DrinkingAmount = "<1L"
	Drinking1To15L  DrinkingAmount = "1-1.5L"
	Drinking15To2L  DrinkingAmount = "1.5-2L"
	DrinkingOver2L  DrinkingAmount = ">2L"
)

// Role distinguishes platform administrators from practice staff.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Language is the patient-facing language of a screening.
type Language string

const (
	LanguageGerman  Language = "de"
	LanguageEnglish Language = "en"
	LanguageRussian Language = "ru"
)

// DefaultLanguage is used whenever no valid language was selected.
const DefaultLanguage = LanguageGerman

// Validation errors for screening data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrAlreadySubmitted    = errors.New("screening already submitted")
	ErrInvalidLevel        = errors.New("invalid malnutrition level")
	ErrInvalidGender       = errors.New("invalid gender")
	ErrInvalidWeightLoss   = errors.New("invalid weight loss amount")
	ErrInvalidPortionSize  = errors.New("invalid portion size")
	ErrInvalidLanguage     = errors.New("invalid language")
	ErrInvalidPatientInput = errors.New("invalid patient initials or birth date")
)

// IsValid reports whether l is one of the three defined tiers.
func (l MalnutritionLevel) IsValid() bool {
	switch l {
	case LevelNone, LevelMild, LevelSevere:
		return true
	default:
		return false
	}
}

// ScoreRange returns the human-readable point range that maps to the level.
func (l MalnutritionLevel) ScoreRange() string {
	switch l {
	case LevelMild:
		return "3-4"
	case LevelSevere:
		return ">=5"
	default:
		return "0-2"
	}
}

// IsValid reports whether g is a known gender.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderDiverse:
		return true
	default:
		return false
	}
}

// IsValid reports whether a is one of the three loss brackets.
func (a WeightLossAmount) IsValid() bool {
	switch a {
	case WeightLoss1To3, WeightLoss3To6, WeightLossOver6:
		return true
	default:
		return false
	}
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// IsValid reports whether l is a supported patient language.
func (l Language) IsValid() bool {
	switch l {
	case LanguageGerman, LanguageEnglish, LanguageRussian:
		return true
	default:
		return false
	}
}

// OrDefault returns l when valid and DefaultLanguage otherwise.
func (l Language) OrDefault() Language {
	if l.IsValid() {
		return l
	}
	return DefaultLanguage
}

// ValidPortionSize reports whether p is one of the plate sizes offered (percent of a normal portion).
func ValidPortionSize(p int) bool {
	switch p {
	case 100, 75, 50, 25:
		return true
	default:
		return false
	}
}
