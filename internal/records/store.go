// Package records stores completed screenings. PostgresStore backs the full server,
// SQLiteStore the standalone MCP server; both keep the same table layout.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nutricheck-server/internal/domain"
)

// ErrDuplicateSubmission is returned when a submission id was already stored.
var ErrDuplicateSubmission = errors.New("screening already stored for this submission")

// Store defines the interface for screening record storage.
type Store interface {
	// Insert stores a new record and fills in ID and timestamps.
	// A reused submission id yields ErrDuplicateSubmission.
	Insert(ctx context.Context, rec *domain.ScreeningRecord) error

	// Get returns a record by id or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ScreeningRecord, error)

	// GetBySubmission returns the record stored for a submission id.
	GetBySubmission(ctx context.Context, submissionID string) (*domain.ScreeningRecord, error)

	// ListByPractice returns a practice's records, newest first.
	ListByPractice(ctx context.Context, practiceID string, limit, offset int) ([]*domain.ScreeningRecord, error)

	// List returns records of all practices, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.ScreeningRecord, error)

	// UpdateCounseling records the counseling choice made after the result.
	UpdateCounseling(ctx context.Context, id string, wants bool) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// Count returns the number of records of a practice, or of all when practiceID is empty.
	Count(ctx context.Context, practiceID string) (int64, error)

	// ExportJSON writes the records of a practice (all when empty) as JSON.
	ExportJSON(ctx context.Context, practiceID string, writer io.Writer) error

	// ImportJSON reads an export and inserts records whose submission is unknown.
	// A non-empty practiceID files every imported record under that practice.
	ImportJSON(ctx context.Context, reader io.Reader, practiceID string) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ScreeningExport represents the JSON export format.
type ScreeningExport struct {
	Version    string                    `json:"version"`
	ExportedAt time.Time                 `json:"exported_at"`
	Count      int                       `json:"count"`
	Screenings []*domain.ScreeningRecord `json:"screenings"`
}

// maxExportLimit is the maximum number of records exported at once.
const maxExportLimit = 1000000

// recordColumns is the select list every query scans with scanRecord.
const recordColumns = `id, practice_id, patient_code, patient_birth_date, language,
	answers, scores, total_score, malnutrition_level, is_at_risk,
	recommendations, wants_counseling, recipient_email, created_by, submission_id,
	created_at, updated_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row selected with recordColumns.
func scanRecord(s scanner) (*domain.ScreeningRecord, error) {
	rec := &domain.ScreeningRecord{}
	var (
		language, level string
		answers, scores string
		recs            sql.NullString
		wants           sql.NullBool
	)

	err := s.Scan(
		&rec.ID, &rec.PracticeID, &rec.PatientCode, &rec.PatientBirthDate, &language,
		&answers, &scores, &rec.TotalScore, &level, &rec.IsAtRisk,
		&recs, &wants, &rec.RecipientEmail, &rec.CreatedBy, &rec.SubmissionID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Language = domain.Language(language)
	rec.MalnutritionLevel = domain.MalnutritionLevel(level)
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return nil, fmt.Errorf("decoding answers of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
		return nil, fmt.Errorf("decoding scores of %s: %w", rec.ID, err)
	}
	if recs.Valid && recs.String != "" && recs.String != "null" {
		rec.Recommendations = &domain.Recommendations{}
		if err := json.Unmarshal([]byte(recs.String), rec.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations of %s: %w", rec.ID, err)
		}
	}
	if wants.Valid {
		rec.WantsCounseling = domain.Bool(wants.Bool)
	}
	return rec, nil
}

// encodedRecord holds the column values of a record that need encoding.
type encodedRecord struct {
	answers         string
	scores          string
	recommendations sql.NullString
	wantsCounseling sql.NullBool
}

func encodeRecord(rec *domain.ScreeningRecord) (*encodedRecord, error) {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return nil, fmt.Errorf("encoding answers: %w", err)
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return nil, fmt.Errorf("encoding scores: %w", err)
	}

	enc := &encodedRecord{answers: string(answers), scores: string(scores)}
	if rec.Recommendations != nil {
		raw, err := json.Marshal(rec.Recommendations)
		if err != nil {
			return nil, fmt.Errorf("encoding recommendations: %w", err)
		}
		enc.recommendations = sql.NullString{String: string(raw), Valid: true}
	}
	if rec.WantsCounseling != nil {
		enc.wantsCounseling = sql.NullBool{Bool: *rec.WantsCounseling, Valid: true}
	}
	return enc, nil
}

// prepareInsert validates a record and fills in the fields the store owns.
func prepareInsert(rec *domain.ScreeningRecord, now time.Time) error {
	if rec.PracticeID == "" {
		return domain.NewValidationError("practice_id", "practice is required", rec.PracticeID)
	}
	if err := domain.ValidatePatientCode(rec.PatientCode); err != nil {
		return domain.NewValidationError("patient_code", err.Error(), rec.PatientCode)
	}
	if !rec.MalnutritionLevel.IsValid() {
		return domain.NewValidationError("malnutrition_level", domain.ErrInvalidLevel.Error(), rec.MalnutritionLevel)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SubmissionID == "" {
		rec.SubmissionID = rec.ID
	}
	rec.Language = rec.Language.OrDefault()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("screening %s %w", id, domain.ErrNotFound)
}

func writeExport(writer io.Writer, all []*domain.ScreeningRecord) error {
	export := &ScreeningExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Screenings: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importRecords inserts every record of an export, skipping known submissions.
// Records re-filed under another practice get a fresh id.
func importRecords(ctx context.Context, store Store, reader io.Reader, practiceID string) (imported int, skipped int, err error) {
	var export ScreeningExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Screenings {
		if rec == nil {
			continue
		}
		if practiceID != "" && rec.PracticeID != practiceID {
			rec.PracticeID = practiceID
			rec.ID = ""
		}
		if rec.SubmissionID != "" {
			_, err := store.GetBySubmission(ctx, rec.SubmissionID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}
		err := store.Insert(ctx, rec)
		if errors.Is(err, ErrDuplicateSubmission) {
			skipped++
			continue
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import %s: %w", rec.SubmissionID, err)
		}
		imported++
	}

	return imported, skipped, nil
}
