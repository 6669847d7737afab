package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"

	"github.com/nutricheck-server/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint violation.
const uniqueViolation = "23505"

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a new PostgreSQL screening store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, now: time.Now}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL screening store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, cfg domain.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Insert stores a new screening record.
func (s *PostgresStore) Insert(ctx context.Context, rec *domain.ScreeningRecord) error {
	if err := prepareInsert(rec, s.now().UTC()); err != nil {
		return err
	}
	enc, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO screenings (
			id, practice_id, patient_code, patient_birth_date, language,
			answers, scores, total_score, malnutrition_level, is_at_risk,
			recommendations, wants_counseling, recipient_email, created_by, submission_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.PracticeID, rec.PatientCode, rec.PatientBirthDate, string(rec.Language),
		enc.answers, enc.scores, rec.TotalScore, string(rec.MalnutritionLevel), rec.IsAtRisk,
		enc.recommendations, enc.wantsCounseling, rec.RecipientEmail, rec.CreatedBy, rec.SubmissionID,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateSubmission, rec.SubmissionID)
		}
		return fmt.Errorf("failed to insert screening: %w", err)
	}
	return nil
}

// Get retrieves a screening record by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM screenings WHERE id = $1", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screening: %w", err)
	}
	return rec, nil
}

// GetBySubmission retrieves the record stored for a submission id.
func (s *PostgresStore) GetBySubmission(ctx context.Context, submissionID string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM screenings WHERE submission_id = $1", submissionID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("submission " + submissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screening: %w", err)
	}
	return rec, nil
}

// ListByPractice returns a practice's records, newest first.
func (s *PostgresStore) ListByPractice(ctx context.Context, practiceID string, limit, offset int) ([]*domain.ScreeningRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+`
		FROM screenings
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, practiceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenings: %w", err)
	}
	return collect(rows)
}

// List returns records of all practices, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.ScreeningRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+`
		FROM screenings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenings: %w", err)
	}
	return collect(rows)
}

// UpdateCounseling records the counseling choice.
func (s *PostgresStore) UpdateCounseling(ctx context.Context, id string, wants bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE screenings SET wants_counseling = $1, updated_at = $2 WHERE id = $3",
		wants, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update counseling: %w", err)
	}
	return expectRow(res, id)
}

// Delete removes a screening record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM screenings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete screening: %w", err)
	}
	return expectRow(res, id)
}

// Count returns the number of records of a practice, or of all practices.
func (s *PostgresStore) Count(ctx context.Context, practiceID string) (int64, error) {
	var count int64
	var err error
	if practiceID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenings").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenings WHERE practice_id = $1", practiceID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count screenings: %w", err)
	}
	return count, nil
}

// ExportJSON exports the records of a practice, or of all practices, as JSON.
func (s *PostgresStore) ExportJSON(ctx context.Context, practiceID string, writer io.Writer) error {
	var (
		all []*domain.ScreeningRecord
		err error
	)
	if practiceID == "" {
		all, err = s.List(ctx, maxExportLimit, 0)
	} else {
		all, err = s.ListByPractice(ctx, practiceID, maxExportLimit, 0)
	}
	if err != nil {
		return fmt.Errorf("failed to list screenings: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports records from an export.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader, practiceID string) (imported int, skipped int, err error) {
	return importRecords(ctx, s, reader, practiceID)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
