package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
)

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a sender for development setups without an email provider.
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"to":           msg.To,
		"cc":           msg.CC,
		"subject":      msg.Subject,
		"patient_code": msg.Data.PatientCode,
		"level":        msg.Data.MalnutritionLevel,
	}).Info("Screening email (not sent, log provider)")
	return nil
}

// NewSender picks the sender for the configured provider.
func NewSender(cfg domain.EmailConfig, logger *logrus.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(logger), nil
	case "resend":
		return NewResendSender(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
