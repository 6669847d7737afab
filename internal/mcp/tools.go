package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/export"
	"github.com/nutricheck-server/internal/report"
	"github.com/nutricheck-server/internal/service"
)

// ScoreScreeningParams defines parameters for the score_screening tool. Answers are a
// free-form object so partially answered questionnaires validate; unknown keys are ignored.
type ScoreScreeningParams struct {
	PatientCode string         `json:"patient_code" jsonschema:"pseudonymous patient code, e.g. MM-01-03-1950"`
	Answers     map[string]any `json:"answers" jsonschema:"questionnaire answers keyed by field name, e.g. height, weight, meals_per_day"`
	Language    string         `json:"language,omitempty" jsonschema:"report language: de, en or ru"`
}

// FormatReportParams defines parameters for the format_report tool
type FormatReportParams struct {
	ScreeningID string `json:"screening_id" jsonschema:"id of a stored screening"`
	Format      string `json:"format,omitempty" jsonschema:"text (default) or html"`
	Language    string `json:"language,omitempty" jsonschema:"de, en or ru; defaults to the screening's language"`
}

// GeneratePatientCodeParams defines parameters for the generate_patient_code tool
type GeneratePatientCodeParams struct {
	FirstInitial string `json:"first_initial" jsonschema:"first name or its initial"`
	LastInitial  string `json:"last_initial" jsonschema:"last name or its initial"`
	BirthDate    string `json:"birth_date" jsonschema:"birth date as YYYY-MM-DD"`
}

// SaveScreeningParams defines parameters for the save_screening tool
type SaveScreeningParams struct {
	SubmissionID string         `json:"submission_id,omitempty" jsonschema:"client id that makes retries idempotent"`
	PatientCode  string         `json:"patient_code" jsonschema:"pseudonymous patient code"`
	Answers      map[string]any `json:"answers" jsonschema:"questionnaire answers keyed by field name"`
	Language     string         `json:"language,omitempty" jsonschema:"de, en or ru"`
}

// ListScreeningsParams defines parameters for the list_screenings tool
type ListScreeningsParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 50, max 500"`
	Offset int `json:"offset,omitempty" jsonschema:"number of screenings to skip"`
}

// ExportScreeningsParams defines parameters for the export_screenings tool
type ExportScreeningsParams struct {
	Format   string `json:"format,omitempty" jsonschema:"json (default) or xlsx"`
	Language string `json:"language,omitempty" jsonschema:"spreadsheet language for xlsx"`
}

// ImportScreeningsParams defines parameters for the import_screenings tool
type ImportScreeningsParams struct {
	Path string `json:"path" jsonschema:"path of a JSON export file"`
}

// ListScreeningsResult defines the result of list_screenings
type ListScreeningsResult struct {
	Screenings []*domain.ScreeningRecord `json:"screenings"`
	Total      int64                     `json:"total"`
}

// ExportScreeningsResult defines the result of export_screenings
type ExportScreeningsResult struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// ImportScreeningsResult defines the result of import_screenings
type ImportScreeningsResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func (s *Server) handleScoreScreening(ctx context.Context, req *mcp.CallToolRequest, params ScoreScreeningParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "score_screening").Info("Tool invoked")

	if strings.TrimSpace(params.PatientCode) == "" {
		return s.createErrorResult("Missing required parameter", errors.New("patient_code is required")), nil, nil
	}
	answers, err := decodeAnswers(params.Answers)
	if err != nil {
		return s.createErrorResult("Invalid answers", err), nil, nil
	}

	res, err := s.svc.Score(answers, params.PatientCode, s.lang(params.Language))
	if err != nil {
		return s.createErrorResult("Scoring failed", err), nil, nil
	}
	return s.jsonResult(res)
}

func (s *Server) handleFormatReport(ctx context.Context, req *mcp.CallToolRequest, params FormatReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "format_report").Info("Tool invoked")

	if params.ScreeningID == "" {
		return s.createErrorResult("Missing required parameter", errors.New("screening_id is required")), nil, nil
	}
	caller, err := s.identity.Current(ctx)
	if err != nil {
		return nil, nil, err
	}

	var lang domain.Language
	if params.Language != "" {
		lang = s.lang(params.Language)
	}
	body, err := s.svc.Report(ctx, caller, params.ScreeningID, params.Format, lang)
	if err != nil {
		return s.createErrorResult("Report failed", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: body}},
	}, nil, nil
}

func (s *Server) handleGeneratePatientCode(ctx context.Context, req *mcp.CallToolRequest, params GeneratePatientCodeParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "generate_patient_code").Info("Tool invoked")

	code, err := domain.GeneratePatientCode(params.FirstInitial, params.LastInitial, params.BirthDate)
	if err != nil {
		return s.createErrorResult("Invalid patient data", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: code}},
	}, nil, nil
}

func (s *Server) handleSaveScreening(ctx context.Context, req *mcp.CallToolRequest, params SaveScreeningParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "save_screening").Info("Tool invoked")

	answers, err := decodeAnswers(params.Answers)
	if err != nil {
		return s.createErrorResult("Invalid answers", err), nil, nil
	}
	caller, err := s.identity.Current(ctx)
	if err != nil {
		return nil, nil, err
	}

	out, err := s.svc.Submit(ctx, caller, service.SubmitRequest{
		SubmissionID: params.SubmissionID,
		PatientCode:  params.PatientCode,
		Answers:      answers,
		Language:     s.lang(params.Language),
	})
	if err != nil && !(errors.Is(err, domain.ErrAlreadySubmitted) && out != nil) {
		return s.createErrorResult("Saving screening failed", err), nil, nil
	}
	return s.jsonResult(out)
}

func (s *Server) handleListScreenings(ctx context.Context, req *mcp.CallToolRequest, params ListScreeningsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_screenings").Info("Tool invoked")

	caller, err := s.identity.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	list, total, err := s.svc.List(ctx, caller, "", params.Limit, params.Offset)
	if err != nil {
		return s.createErrorResult("Listing screenings failed", err), nil, nil
	}
	if list == nil {
		list = []*domain.ScreeningRecord{}
	}
	return s.jsonResult(ListScreeningsResult{Screenings: list, Total: total})
}

func (s *Server) handleExportScreenings(ctx context.Context, req *mcp.CallToolRequest, params ExportScreeningsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_screenings").Info("Tool invoked")

	format := strings.ToLower(params.Format)
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "xlsx" {
		return s.createErrorResult("Invalid parameter", fmt.Errorf("format must be json or xlsx, got %q", params.Format)), nil, nil
	}
	if s.exportDir == "" {
		return s.createErrorResult("Export unavailable", errors.New("no export directory configured")), nil, nil
	}

	caller, err := s.identity.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	practiceID := caller.PracticeID()

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return s.createErrorResult("Export failed", err), nil, nil
	}
	path := filepath.Join(s.exportDir, fmt.Sprintf("screenings_%s.%s", time.Now().Format("20060102_150405"), format))
	f, err := os.Create(path)
	if err != nil {
		return s.createErrorResult("Export failed", err), nil, nil
	}
	defer f.Close()

	if format == "json" {
		err = s.store.ExportJSON(ctx, practiceID, f)
	} else {
		list, lerr := s.store.ListByPractice(ctx, practiceID, service.MaxExportRows, 0)
		if lerr != nil {
			err = lerr
		} else {
			err = export.WriteScreeningsXLSX(f, list, s.lang(params.Language))
		}
	}
	if err != nil {
		return s.createErrorResult("Export failed", err), nil, nil
	}

	count, err := s.store.Count(ctx, practiceID)
	if err != nil {
		return s.createErrorResult("Export failed", err), nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"path":   path,
		"format": format,
		"count":  count,
	}).Info("Screenings exported")
	return s.jsonResult(ExportScreeningsResult{Path: path, Count: count})
}

func (s *Server) handleImportScreenings(ctx context.Context, req *mcp.CallToolRequest, params ImportScreeningsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "import_screenings").Info("Tool invoked")

	if params.Path == "" {
		return s.createErrorResult("Missing required parameter", errors.New("path is required")), nil, nil
	}
	f, err := os.Open(params.Path)
	if err != nil {
		return s.createErrorResult("Import failed", err), nil, nil
	}
	defer f.Close()

	imported, skipped, err := s.store.ImportJSON(ctx, f, s.practice)
	if err != nil {
		return s.createErrorResult("Import failed", err), nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"path":     params.Path,
		"imported": imported,
		"skipped":  skipped,
	}).Info("Screenings imported")
	return s.jsonResult(ImportScreeningsResult{Imported: imported, Skipped: skipped})
}

// lang resolves a requested language, falling back to the server default.
func (s *Server) lang(requested string) domain.Language {
	if requested == "" {
		return s.language
	}
	lang, err := report.ParseLanguage(requested)
	if err != nil {
		return s.language
	}
	return lang
}

func decodeAnswers(raw map[string]any) (domain.ScreeningAnswers, error) {
	var answers domain.ScreeningAnswers
	if raw == nil {
		return answers, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return answers, err
	}
	if err := json.Unmarshal(data, &answers); err != nil {
		return answers, domain.NewValidationError("answers", "malformed answers", err.Error())
	}
	return answers, nil
}

func (s *Server) jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// createErrorResult reports a tool failure to the client instead of a protocol error.
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
