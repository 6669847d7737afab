package service

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/export"
)

func requireAdmin(caller *domain.Identity) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

func validatePractice(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("name", "practice name is required", name)
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return domain.NewValidationError("email", "invalid email address", email)
		}
	}
	return nil
}

// OwnPractice returns the caller's practice.
func (s *ScreeningService) OwnPractice(ctx context.Context, caller *domain.Identity) (*domain.Practice, error) {
	id := caller.PracticeID()
	if id == "" {
		return nil, fmt.Errorf("%w: caller has no practice", domain.ErrForbidden)
	}
	return s.practices.GetPractice(ctx, id)
}

// UpdateOwnPractice changes the name and contact email of the caller's practice.
func (s *ScreeningService) UpdateOwnPractice(ctx context.Context, caller *domain.Identity, name, email string) (*domain.Practice, error) {
	id := caller.PracticeID()
	if id == "" {
		return nil, fmt.Errorf("%w: caller has no practice", domain.ErrForbidden)
	}
	return s.updatePractice(ctx, caller, id, name, email)
}

// ListPractices returns every practice. Admin only.
func (s *ScreeningService) ListPractices(ctx context.Context, caller *domain.Identity) ([]*domain.Practice, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.practices.ListPractices(ctx)
}

// UpdatePractice changes any practice. Admin only.
func (s *ScreeningService) UpdatePractice(ctx context.Context, caller *domain.Identity, id, name, email string) (*domain.Practice, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.updatePractice(ctx, caller, id, name, email)
}

func (s *ScreeningService) updatePractice(ctx context.Context, caller *domain.Identity, id, name, email string) (*domain.Practice, error) {
	if err := validatePractice(name, email); err != nil {
		return nil, err
	}
	p := &domain.Practice{ID: id, Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := s.practices.UpdatePractice(ctx, p); err != nil {
		return nil, err
	}
	s.forgetPractice(id)

	s.logger.WithFields(logrus.Fields{
		"practice_id": id,
		"updated_by":  caller.UserID,
	}).Info("Practice settings updated")
	return s.practices.GetPractice(ctx, id)
}

// forgetPractice drops cached identities that still carry the old practice.
func (s *ScreeningService) forgetPractice(id string) {
	if s.identities != nil {
		s.identities.ForgetPractice(id)
	}
}

// DeletePractice removes a practice and its screenings. Admin only.
func (s *ScreeningService) DeletePractice(ctx context.Context, caller *domain.Identity, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.practices.DeletePractice(ctx, id); err != nil {
		return err
	}
	s.forgetPractice(id)

	s.logger.WithFields(logrus.Fields{
		"practice_id": id,
		"deleted_by":  caller.UserID,
	}).Warn("Practice deleted")
	return nil
}

// ExportPractice writes the screenings of a practice as an XLSX workbook. Admin only.
func (s *ScreeningService) ExportPractice(ctx context.Context, caller *domain.Identity, practiceID string, lang domain.Language, w io.Writer) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if _, err := s.practices.GetPractice(ctx, practiceID); err != nil {
		return err
	}

	list, err := s.store.ListByPractice(ctx, practiceID, MaxExportRows, 0)
	if err != nil {
		return fmt.Errorf("listing screenings: %w", err)
	}
	return export.WriteScreeningsXLSX(w, list, lang.OrDefault())
}

// MaxExportRows caps the rows of one spreadsheet export.
const MaxExportRows = 100000

// CCEmail returns the admin copy address. Admin only.
func (s *ScreeningService) CCEmail(ctx context.Context, caller *domain.Identity) (string, error) {
	if err := requireAdmin(caller); err != nil {
		return "", err
	}
	return s.practices.GetSetting(ctx, domain.SettingCCEmail)
}

// SetCCEmail changes the admin copy address; an empty value disables the copy. Admin only.
func (s *ScreeningService) SetCCEmail(ctx context.Context, caller *domain.Identity, email string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return domain.NewValidationError("email", "invalid email address", email)
		}
	}
	return s.practices.SetSetting(ctx, domain.SettingCCEmail, email)
}
