package domain

// AcuteDiseases holds the acute conditions asked for on the disease step.
type AcuteDiseases struct {
	Cancer                *bool  `json:"cancer"`
	CancerType            string `json:"cancer_type,omitempty"`
	AcuteInfection        *bool  `json:"acute_infection"`
	AcuteInfectionDetails string `json:"acute_infection_details,omitempty"`
}

// ChronicDiseases holds the chronic conditions. Only some of them are scored.
type ChronicDiseases struct {
	HeartFailure            *bool `json:"heart_failure"`
	Rheumatism              *bool `json:"rheumatism"`
	LungDisease             *bool `json:"lung_disease"`
	KidneyDisease           *bool `json:"kidney_disease"`
	Stroke                  *bool `json:"stroke"`
	Diarrhea                *bool `json:"diarrhea"`
	NauseaVomiting          *bool `json:"nausea_vomiting"`
	GastrointestinalSurgery *bool `json:"gastrointestinal_surgery"`
}

// ScreeningAnswers is one questionnaire instance. Every field stays nil until answered.
type ScreeningAnswers struct {
	BirthDate string  `json:"birth_date"`
	Gender    *Gender `json:"gender"`

	Height        *float64 `json:"height"`
	Weight        *float64 `json:"weight"`
	WeightUnknown bool     `json:"weight_unknown"`
	NormalWeight  *float64 `json:"normal_weight"`

	HasWeightLoss    *bool             `json:"has_weight_loss"`
	WeightLossAmount *WeightLossAmount `json:"weight_loss_amount"`
	ClothingLoose    *bool             `json:"clothing_loose"`

	MealsPerDay      *int      `json:"meals_per_day"`
	PortionSize      *int      `json:"portion_size"`
	AppetiteByOthers *Appetite `json:"appetite_by_others"`

	FruitPerWeek      *Frequency       `json:"fruit_per_week"`
	VegetablesPerWeek *Frequency       `json:"vegetables_per_week"`
	SweetPreference   *SweetPreference `json:"sweet_preference"`
	MeatPerWeek       *Frequency       `json:"meat_per_week"`
	CarbsPerWeek      *Frequency       `json:"carbs_per_week"`

	AcuteDiseases   AcuteDiseases   `json:"acute_diseases"`
	ChronicDiseases ChronicDiseases `json:"chronic_diseases"`

	FeelsWeaker         *bool `json:"feels_weaker"`
	MuscleLoss          *bool `json:"muscle_loss"`
	FrequentInfections  *bool `json:"frequent_infections"`
	DifficultyGettingUp *bool `json:"difficulty_getting_up"`
	ShortnessOfBreath   *bool `json:"shortness_of_breath"`

	DrinkingAmount *DrinkingAmount `json:"drinking_amount"`

	HasSwallowingIssues *bool  `json:"has_swallowing_issues"`
	SwallowingDetails   string `json:"swallowing_details,omitempty"`

	TakesMedication         *bool  `json:"takes_medication"`
	MedicationDetails       string `json:"medication_details,omitempty"`
	HasSupplementExperience *bool  `json:"has_supplement_experience"`
	SupplementDetails       string `json:"supplement_details,omitempty"`
	HadNutritionTherapy     *bool  `json:"had_nutrition_therapy"`
	NutritionTherapyDetails string `json:"nutrition_therapy_details,omitempty"`
	HadNutrientInfusions    *bool  `json:"had_nutrient_infusions"`
	InfusionDetails         string `json:"infusion_details,omitempty"`

	WantsNutritionCounseling *bool `json:"wants_nutrition_counseling"`
}

// PhysicalConditionAnswered reports whether all five physical-condition questions have an answer.
func (a *ScreeningAnswers) PhysicalConditionAnswered() bool {
	return a.FeelsWeaker != nil &&
		a.MuscleLoss != nil &&
		a.FrequentInfections != nil &&
		a.DifficultyGettingUp != nil &&
		a.ShortnessOfBreath != nil
}

// KnownWeight returns the current weight when it was entered and not marked unknown.
func (a *ScreeningAnswers) KnownWeight() (float64, bool) {
	if a.WeightUnknown || a.Weight == nil || *a.Weight <= 0 {
		return 0, false
	}
	return *a.Weight, true
}

// Normalize drops values that contradict each other, such as a weight next to the
// "weight unknown" flag.
func (a *ScreeningAnswers) Normalize() {
	if a.WeightUnknown {
		a.Weight = nil
	} else {
		a.ClothingLoose = nil
	}
	if a.HasWeightLoss != nil && !*a.HasWeightLoss {
		a.WeightLossAmount = nil
	}
}

// IsTrue treats an unanswered question as false.
func IsTrue(b *bool) bool {
	return b != nil && *b
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Ptr returns a pointer to any value; handy for the enum-typed answers.
func Ptr[T any](v T) *T { return &v }
