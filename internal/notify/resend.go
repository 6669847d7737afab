package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nutricheck-server/internal/domain"
)

// ErrDelivery is returned when the email provider did not accept a message.
var ErrDelivery = errors.New("email delivery failed")

// resendRequest is the body of POST /emails.
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// ResendSender sends email through the Resend HTTP API.
type ResendSender struct {
	client  *resty.Client
	from    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewResendSender creates a sender from the email settings.
func NewResendSender(cfg domain.EmailConfig, logger *logrus.Logger) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Resend",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ResendSender{
		client:  client,
		from:    cfg.From,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger,
	}, nil
}

// Send delivers msg. It fails fast while the provider's circuit is open.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, msg)
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"patient_code": msg.Data.PatientCode,
			"error":        err,
		}).Error("Failed to send screening email")
		if errors.Is(err, ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_code": msg.Data.PatientCode,
		"email_id":     result.(string),
		"recipients":   len(msg.Recipients()),
	}).Info("Screening email sent")
	return nil
}

func (s *ResendSender) post(ctx context.Context, msg Message) (string, error) {
	var out resendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    s.from,
			To:      []string{msg.To},
			CC:      msg.CC,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		}).
		SetResult(&out).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: provider returned %d: %s", ErrDelivery, resp.StatusCode(), resp.String())
	}
	return out.ID, nil
}

// State reports the breaker state, for health output.
func (s *ResendSender) State() string {
	return s.breaker.State().String()
}
