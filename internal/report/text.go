package report

import (
	"fmt"
	"strings"

	"github.com/nutricheck-server/internal/domain"
)

// FormatText renders the clipboard report of a result.
func FormatText(result domain.ScreeningResult, lang domain.Language) string {
	l := For(lang)
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", l.Patient, result.PatientCode)
	fmt.Fprintf(&b, "%s: %d\n", l.Score, result.TotalScore)
	fmt.Fprintf(&b, "%s: %s\n", l.Classification, l.LevelTitle[result.MalnutritionLevel])
	b.WriteString("\n")

	assessment := l.NotAtRisk
	if result.IsAtRisk {
		assessment = l.AtRisk
	}
	fmt.Fprintf(&b, "%s: %s\n", l.RiskAssessment, assessment)

	if result.IsAtRisk && result.Recommendations != nil {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s:\n", l.Therapy)
		fmt.Fprintf(&b, "• %s: %d %s\n", l.Energy, result.Recommendations.Energy, l.KcalPerDay)
		fmt.Fprintf(&b, "• %s: %.1f %s\n", l.Protein, result.Recommendations.Protein, l.GramsPerDay)
	}

	s := result.Scores
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s:\n", l.Breakdown)
	fmt.Fprintf(&b, "• %s: %d\n", l.WeightLoss, s.WeightLossScore)
	fmt.Fprintf(&b, "• %s: %d\n", l.Nutrition, s.NutritionScore)
	fmt.Fprintf(&b, "• %s: %d\n", l.Disease, s.DiseaseScore)
	fmt.Fprintf(&b, "• %s: %d\n", l.Physical, s.PhysicalConditionScore)
	fmt.Fprintf(&b, "• %s: %d\n", l.Swallowing, s.SwallowingScore)
	fmt.Fprintf(&b, "• %s: %.1f\n", l.BMINotScored, s.BMI)
	fmt.Fprintf(&b, "• %s: %d", l.Total, result.TotalScore)

	if wants := result.WantsCounseling(); wants != nil {
		b.WriteString("\n\n")
		if *wants {
			b.WriteString(l.CounselingWanted)
		} else {
			b.WriteString(l.CounselingNotWanted)
		}
	}

	return b.String()
}
