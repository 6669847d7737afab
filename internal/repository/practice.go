package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
)

// PracticeRepository handles practices, user profiles and global settings.
type PracticeRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db *pgxpool.Pool, logger *logrus.Logger) *PracticeRepository {
	return &PracticeRepository{
		db:  db,
		log: logger,
	}
}

// CreatePractice inserts a new practice
func (r *PracticeRepository) CreatePractice(ctx context.Context, p *domain.Practice) error {
	query := `
		INSERT INTO practices (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.Name, p.Email).Scan(&p.CreatedAt)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"practice_id": p.ID,
			"error":       err,
		}).Error("Failed to create practice")
		return fmt.Errorf("creating practice: %w", err)
	}

	r.log.WithField("practice_id", p.ID).Info("Practice created")
	return nil
}

// ListPractices returns all practices ordered by name
func (r *PracticeRepository) ListPractices(ctx context.Context) ([]*domain.Practice, error) {
	query := `
		SELECT id, name, email, created_at
		FROM practices
		ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to list practices")
		return nil, fmt.Errorf("listing practices: %w", err)
	}
	defer rows.Close()

	var practices []*domain.Practice
	for rows.Next() {
		var p domain.Practice
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning practice: %w", err)
		}
		practices = append(practices, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating practices: %w", err)
	}

	return practices, nil
}

// GetPractice retrieves a practice by its ID
func (r *PracticeRepository) GetPractice(ctx context.Context, id string) (*domain.Practice, error) {
	query := `
		SELECT id, name, email, created_at
		FROM practices
		WHERE id = $1`

	var p domain.Practice
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("practice not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"practice_id": id,
			"error":       err,
		}).Error("Failed to get practice")
		return nil, fmt.Errorf("getting practice: %w", err)
	}

	return &p, nil
}

// UpdatePractice changes the name and contact email of a practice
func (r *PracticeRepository) UpdatePractice(ctx context.Context, p *domain.Practice) error {
	query := `
		UPDATE practices
		SET name = $2, email = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Email)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"practice_id": p.ID,
			"error":       err,
		}).Error("Failed to update practice")
		return fmt.Errorf("updating practice: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("practice not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("practice_id", p.ID).Info("Practice updated")
	return nil
}

// DeletePractice removes a practice; its screenings are removed by the foreign key cascade
func (r *PracticeRepository) DeletePractice(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM practices WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"practice_id": id,
			"error":       err,
		}).Error("Failed to delete practice")
		return fmt.Errorf("deleting practice: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("practice not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("practice_id", id).Info("Practice deleted")
	return nil
}

// UpsertProfile assigns a user to a practice with a role
func (r *PracticeRepository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if !p.Role.IsValid() {
		return domain.NewValidationError("role", "role must be admin or user", p.Role)
	}

	query := `
		INSERT INTO profiles (user_id, practice_id, role)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (user_id) DO UPDATE SET
			practice_id = EXCLUDED.practice_id,
			role = EXCLUDED.role`

	if _, err := r.db.Exec(ctx, query, p.UserID, p.PracticeID, string(p.Role)); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the profile of an authenticated user
func (r *PracticeRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, COALESCE(practice_id, ''), role
		FROM profiles
		WHERE user_id = $1`

	var p domain.Profile
	var role string
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.PracticeID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	p.Role = domain.Role(role)

	return &p, nil
}

// GetSetting returns a global setting, or "" when it was never set
func (r *PracticeRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting creates or replaces a global setting
func (r *PracticeRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, key, value, time.Now().UTC()); err != nil {
		r.log.WithFields(logrus.Fields{
			"key":   key,
			"error": err,
		}).Error("Failed to save setting")
		return fmt.Errorf("saving setting %s: %w", key, err)
	}

	r.log.WithField("key", key).Info("Setting updated")
	return nil
}
