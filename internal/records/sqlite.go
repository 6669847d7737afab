package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nutricheck-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite screening store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS screenings (
		id TEXT PRIMARY KEY,
		practice_id TEXT NOT NULL,
		patient_code TEXT NOT NULL,
		patient_birth_date TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'de',
		answers TEXT NOT NULL,
		scores TEXT NOT NULL,
		total_score INTEGER NOT NULL,
		malnutrition_level TEXT NOT NULL,
		is_at_risk INTEGER NOT NULL DEFAULT 0,
		recommendations TEXT,
		wants_counseling INTEGER,
		recipient_email TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		submission_id TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_screenings_practice_created ON screenings(practice_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_screenings_created_at ON screenings(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Insert stores a new screening record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *domain.ScreeningRecord) error {
	if err := prepareInsert(rec, s.now().UTC()); err != nil {
		return err
	}
	enc, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO screenings (
			id, practice_id, patient_code, patient_birth_date, language,
			answers, scores, total_score, malnutrition_level, is_at_risk,
			recommendations, wants_counseling, recipient_email, created_by, submission_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.PracticeID, rec.PatientCode, rec.PatientBirthDate, string(rec.Language),
		enc.answers, enc.scores, rec.TotalScore, string(rec.MalnutritionLevel), rec.IsAtRisk,
		enc.recommendations, enc.wantsCounseling, rec.RecipientEmail, rec.CreatedBy, rec.SubmissionID,
		rec.CreatedAt.UTC(), rec.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateSubmission, rec.SubmissionID)
		}
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a screening record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM screenings WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// GetBySubmission retrieves the record stored for a submission id.
func (s *SQLiteStore) GetBySubmission(ctx context.Context, submissionID string) (*domain.ScreeningRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM screenings WHERE submission_id = ?", submissionID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("submission " + submissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// ListByPractice returns a practice's records, newest first.
func (s *SQLiteStore) ListByPractice(ctx context.Context, practiceID string, limit, offset int) ([]*domain.ScreeningRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+`
		FROM screenings
		WHERE practice_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, practiceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// List returns records of all practices, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.ScreeningRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+`
		FROM screenings
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*domain.ScreeningRecord, error) {
	defer rows.Close()

	var result []*domain.ScreeningRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// UpdateCounseling records the counseling choice.
func (s *SQLiteStore) UpdateCounseling(ctx context.Context, id string, wants bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE screenings SET wants_counseling = ?, updated_at = ? WHERE id = ?",
		wants, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update counseling: %w", err)
	}
	return expectRow(res, id)
}

// Delete removes a screening record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM screenings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// Count returns the number of records of a practice, or of all practices.
func (s *SQLiteStore) Count(ctx context.Context, practiceID string) (int64, error) {
	var count int64
	var err error
	if practiceID == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenings").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM screenings WHERE practice_id = ?", practiceID).Scan(&count)
	}
	return count, err
}

// ExportJSON exports the records of a practice, or of all practices, as JSON.
func (s *SQLiteStore) ExportJSON(ctx context.Context, practiceID string, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader, practiceID string) (imported int, skipped int, err error) {
	return importRecords(ctx, s, reader, practiceID)
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
