// Package notify delivers screening reports to the practice by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/report"
)

// ErrInvalidMessage is returned for messages missing a required field.
var ErrInvalidMessage = errors.New("invalid notification message")

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one screening email.
type Message struct {
	To      string
	CC      []string
	Subject string
	HTML    string
	Text    string
	Data    *domain.ScreeningResult
}

// Validate checks the fields every screening email needs.
func (m Message) Validate() error {
	var missing []string
	if m.To == "" {
		missing = append(missing, "practice_email")
	}
	if m.Data == nil {
		missing = append(missing, "patient_code", "total_score", "malnutrition_level", "scores")
	} else {
		if m.Data.PatientCode == "" {
			missing = append(missing, "patient_code")
		}
		if !m.Data.MalnutritionLevel.IsValid() {
			missing = append(missing, "malnutrition_level")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidMessage, missing)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient %q is not an email address", ErrInvalidMessage, m.To)
	}
	return nil
}

// Recipients returns To followed by the copy addresses, without duplicates.
func (m Message) Recipients() []string {
	seen := map[string]bool{m.To: true}
	out := []string{m.To}
	for _, cc := range m.CC {
		if cc == "" || seen[cc] {
			continue
		}
		seen[cc] = true
		out = append(out, cc)
	}
	return out
}

// BuildMessage renders the subject and both bodies of a screening email.
func BuildMessage(result domain.ScreeningResult, lang domain.Language, to string, cc ...string) (Message, error) {
	html, err := report.FormatHTML(result, lang)
	if err != nil {
		return Message{}, fmt.Errorf("rendering email body: %w", err)
	}

	var copies []string
	for _, c := range cc {
		if c != "" && c != to {
			copies = append(copies, c)
		}
	}

	return Message{
		To:      to,
		CC:      copies,
		Subject: report.Subject(result.PatientCode, result.MalnutritionLevel, lang),
		HTML:    html,
		Text:    report.FormatText(result, lang),
		Data:    &result,
	}, nil
}
