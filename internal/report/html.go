package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/nutricheck-server/internal/domain"
)

const (
	brandColor      = "#2268B2"
	brandLightColor = "#eaf1fb"
	brandDarkColor  = "#1a4f8a"
)

type levelStyle struct {
	color   template.CSS
	lightBg template.CSS
}

var levelStyles = map[domain.MalnutritionLevel]levelStyle{
	domain.LevelNone:   {color: "#2268B2", lightBg: "#eaf1fb"},
	domain.LevelMild:   {color: "#f59e0b", lightBg: "#fffbeb"},
	domain.LevelSevere: {color: "#ef4444", lightBg: "#fef2f2"},
}

type scoreRow struct {
	Label      string
	Value      int
	Background template.CSS
	ValueColor template.CSS
	ValueBg    template.CSS
}

type emailView struct {
	Lang          string
	L             Labels
	LevelLabel    string
	LevelColor    template.CSS
	LevelLightBg  template.CSS
	LevelRange    template.HTML
	Brand         template.CSS
	BrandLight    template.CSS
	BrandDark     template.CSS
	PatientCode   string
	BirthDate     string
	TotalScore    int
	Rows          []scoreRow
	BMI           string
	BMIBackground template.CSS
	Rec           *domain.Recommendations
	Protein       string
	Counseling    bool
}

var emailTemplate = template.Must(template.New("email").Parse(emailHTML))

// FormatHTML renders the notification email body for a result.
// Patient-supplied strings are escaped by html/template.
func FormatHTML(result domain.ScreeningResult, lang domain.Language) (string, error) {
	lang = lang.OrDefault()
	l := For(lang)
	style, ok := levelStyles[result.MalnutritionLevel]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLevel, result.MalnutritionLevel)
	}

	s := result.Scores
	values := []struct {
		label string
		value int
	}{
		{l.WeightLoss, s.WeightLossScore},
		{l.Nutrition, s.NutritionScore},
		{l.Disease, s.DiseaseScore},
		{l.Physical, s.PhysicalConditionScore},
		{l.Swallowing, s.SwallowingScore},
	}
	rows := make([]scoreRow, 0, len(values))
	for i, v := range values {
		row := scoreRow{Label: v.label, Value: v.value, Background: zebra(i)}
		if v.value > 0 {
			row.ValueColor, row.ValueBg = "#b45309", "#fef3c7"
		} else {
			row.ValueColor, row.ValueBg = "#9ca3af", "#f3f4f6"
		}
		rows = append(rows, row)
	}

	view := emailView{
		Lang:          string(lang),
		L:             l,
		LevelLabel:    l.LevelShort[result.MalnutritionLevel],
		LevelColor:    style.color,
		LevelLightBg:  style.lightBg,
		LevelRange:    levelRange(result.MalnutritionLevel, l),
		Brand:         brandColor,
		BrandLight:    brandLightColor,
		BrandDark:     brandDarkColor,
		PatientCode:   result.PatientCode,
		BirthDate:     formatBirthDate(result.Answers.BirthDate, l.DateLayout),
		TotalScore:    result.TotalScore,
		Rows:          rows,
		BMI:           fmt.Sprintf("%.1f", s.BMI),
		BMIBackground: zebra(len(rows)),
		Counseling:    domain.IsTrue(result.WantsCounseling()),
	}
	if result.IsAtRisk && result.Recommendations != nil {
		view.Rec = result.Recommendations
		view.Protein = fmt.Sprintf("%.1f", result.Recommendations.Protein)
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering email: %w", err)
	}
	return buf.String(), nil
}

func zebra(i int) template.CSS {
	if i%2 == 0 {
		return "#ffffff"
	}
	return "#f9fafb"
}

func levelRange(level domain.MalnutritionLevel, l Labels) template.HTML {
	var r string
	switch level {
	case domain.LevelSevere:
		r = "&ge;5"
	case domain.LevelMild:
		r = "3&ndash;4"
	default:
		r = "0&ndash;2"
	}
	return template.HTML(r + " " + template.HTMLEscapeString(l.Points))
}

func formatBirthDate(birthDate, layout string) string {
	born, err := time.Parse(domain.BirthDateLayout, birthDate)
	if err != nil {
		return "–"
	}
	return born.Format(layout)
}

const emailHTML = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>NutriCheck Screening</title>
</head>
<body style="margin:0;padding:0;background:#f3f4f6;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" border="0" style="background:#f3f4f6;padding:32px 0;">
    <tr><td align="center">
      <table width="600" cellpadding="0" cellspacing="0" border="0" style="background:#ffffff;border-radius:12px;overflow:hidden;">
        <tr>
          <td style="background:#ffffff;padding:32px 40px 20px;border-bottom:3px solid {{.Brand}};">
            <span style="font-size:26px;font-weight:700;color:#111827;">Nutri</span><span style="font-size:26px;font-weight:700;color:{{.Brand}};">Check</span>
            <p style="margin:8px 0 0;font-size:14px;color:#6b7280;">{{.L.EmailHeading}}</p>
          </td>
        </tr>
        <tr>
          <td style="padding:24px 40px 20px;">
            <table width="100%" cellpadding="0" cellspacing="0" border="0" style="background:{{.LevelColor}};border-radius:10px;">
              <tr>
                <td style="padding:20px 24px;text-align:center;">
                  <span style="font-size:22px;font-weight:700;color:#ffffff;">{{.LevelLabel}}</span>
                  <br />
                  <span style="font-size:13px;color:#ffffff;">Score {{.TotalScore}} &mdash; {{.LevelRange}}</span>
                </td>
              </tr>
            </table>
          </td>
        </tr>
        <tr>
          <td style="padding:8px 40px 24px;">
            <p style="margin:0 0 10px;font-size:11px;font-weight:700;color:#9ca3af;text-transform:uppercase;">{{.L.PatientData}}</p>
            <table width="100%" cellpadding="0" cellspacing="0" border="0" style="border:1px solid #e5e7eb;border-radius:8px;">
              <tr style="background:#f9fafb;">
                <td style="padding:10px 16px;font-size:13px;color:#6b7280;width:160px;">{{.L.PatientCode}}</td>
                <td style="padding:10px 16px;font-size:14px;font-weight:700;color:#111827;">{{.PatientCode}}</td>
              </tr>
              <tr style="background:#ffffff;">
                <td style="padding:10px 16px;font-size:13px;color:#6b7280;">{{.L.BirthDate}}</td>
                <td style="padding:10px 16px;font-size:14px;font-weight:700;color:#111827;">{{.BirthDate}}</td>
              </tr>
            </table>
          </td>
        </tr>
        <tr>
          <td style="padding:0 40px 28px;">
            <p style="margin:0 0 10px;font-size:11px;font-weight:700;color:#9ca3af;text-transform:uppercase;">{{.L.Breakdown}}</p>
            <table width="100%" cellpadding="0" cellspacing="0" border="0" style="border:1px solid #e5e7eb;border-radius:8px;">
{{- range .Rows}}
              <tr style="background:{{.Background}};">
                <td style="padding:11px 16px;font-size:14px;color:#374151;">{{.Label}}</td>
                <td style="padding:11px 16px;font-size:14px;font-weight:700;text-align:right;">
                  <span style="background:{{.ValueBg}};color:{{.ValueColor}};padding:2px 14px;border-radius:12px;">{{.Value}}</span>
                </td>
              </tr>
{{- end}}
              <tr style="background:{{.BMIBackground}};">
                <td style="padding:11px 16px;font-size:13px;color:#9ca3af;font-style:italic;">{{.L.BMINotScored}}</td>
                <td style="padding:11px 16px;font-size:14px;font-weight:700;text-align:right;">
                  <span style="background:#f3f4f6;color:#9ca3af;padding:2px 14px;border-radius:12px;">{{.BMI}}</span>
                </td>
              </tr>
              <tr style="background:{{.LevelLightBg}};">
                <td style="padding:13px 16px;font-size:15px;font-weight:700;color:#111827;">{{.L.Total}}</td>
                <td style="padding:13px 16px;text-align:right;">
                  <span style="background:{{.LevelColor}};color:#ffffff;font-size:15px;font-weight:700;padding:4px 18px;border-radius:14px;">{{.TotalScore}} {{.L.Points}}</span>
                </td>
              </tr>
            </table>
          </td>
        </tr>
{{- with .Rec}}
        <tr>
          <td style="padding:0 40px 28px;">
            <table width="100%" cellpadding="0" cellspacing="0" style="background:{{$.BrandLight}};border:1px solid #b8d4f0;border-radius:8px;">
              <tr><td style="padding:18px 20px;color:{{$.BrandDark}};font-size:14px;">
                <strong style="font-size:15px;">{{$.L.Therapy}}</strong><br />
                {{$.L.Energy}}: <strong>{{.Energy}} {{$.L.KcalPerDay}}</strong><br />
                {{$.L.Protein}}: <strong>{{$.Protein}} {{$.L.GramsPerDay}}</strong>
              </td></tr>
            </table>
          </td>
        </tr>
{{- end}}
        <tr>
          <td style="padding:0 40px 28px;">
{{- if .Counseling}}
            <table width="100%" cellpadding="0" cellspacing="0" style="background:{{.BrandLight}};border:2px solid {{.Brand}};border-radius:8px;">
              <tr><td style="padding:16px 20px;font-size:14px;color:{{.BrandDark}};font-weight:700;">&#10003;&ensp;{{.L.CounselingWanted}}</td></tr>
            </table>
{{- else}}
            <table width="100%" cellpadding="0" cellspacing="0" style="background:#f9fafb;border:1px solid #e5e7eb;border-radius:8px;">
              <tr><td style="padding:14px 20px;font-size:13px;color:#9ca3af;">{{.L.CounselingNotWanted}}</td></tr>
            </table>
{{- end}}
          </td>
        </tr>
        <tr>
          <td style="background:#f9fafb;padding:24px 40px;border-top:1px solid #e5e7eb;">
            <p style="margin:0;font-size:11px;color:#9ca3af;line-height:1.6;">{{.L.Footer}}</p>
          </td>
        </tr>
      </table>
    </td></tr>
  </table>
</body>
</html>
`
