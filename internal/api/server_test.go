package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/events"
	"github.com/nutricheck-server/internal/export"
	"github.com/nutricheck-server/internal/notify"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePractices struct {
	mu        sync.Mutex
	practices map[string]*domain.Practice
	settings  map[string]string
}

func newFakePractices() *fakePractices {
	return &fakePractices{
		practices: map[string]*domain.Practice{
			"p-a": {ID: "p-a", Name: "Praxis A", Email: "a@example.com"},
			"p-b": {ID: "p-b", Name: "Praxis B", Email: "b@example.com"},
		},
		settings: map[string]string{},
	}
}

func (f *fakePractices) ListPractices(context.Context) ([]*domain.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Practice
	for _, p := range f.practices {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakePractices) GetPractice(_ context.Context, id string) (*domain.Practice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.practices[id]
	if !ok {
		return nil, fmt.Errorf("practice %s %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePractices) UpdatePractice(_ context.Context, p *domain.Practice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.practices[p.ID]; !ok {
		return fmt.Errorf("practice %s %w", p.ID, domain.ErrNotFound)
	}
	cp := *p
	f.practices[p.ID] = &cp
	return nil
}

func (f *fakePractices) DeletePractice(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.practices[id]; !ok {
		return fmt.Errorf("practice %s %w", id, domain.ErrNotFound)
	}
	delete(f.practices, id)
	return nil
}

func (f *fakePractices) GetProfile(context.Context, string) (*domain.Profile, error) {
	return nil, domain.ErrNotFound
}

func (f *fakePractices) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings[key], nil
}

func (f *fakePractices) SetSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

type tokenAuth map[string]*domain.Identity

func (a tokenAuth) Authenticate(_ context.Context, token string) (*domain.Identity, error) {
	id, ok := a[token]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return id, nil
}

type testServer struct {
	handler   http.Handler
	practices *fakePractices
	hub       *events.Hub
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := records.NewSQLiteStore(filepath.Join(t.TempDir(), "screenings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	practices := newFakePractices()
	hub := events.NewHub(nil, logger)
	svc := service.NewScreeningService(service.Dependencies{
		Store:     store,
		Practices: practices,
		Sender:    notify.NewLogSender(logger),
		Events:    hub,
		Logger:    logger,
	})

	auth := tokenAuth{
		"staff-a": {UserID: "u-a", Role: domain.RoleUser, Practice: practices.practices["p-a"]},
		"staff-b": {UserID: "u-b", Role: domain.RoleUser, Practice: practices.practices["p-b"]},
		"admin":   {UserID: "admin", Role: domain.RoleAdmin},
	}

	srv := NewServer(Options{
		Config:  domain.ServerConfig{RateLimit: 0},
		Service: svc,
		Auth:    auth,
		Hub:     hub,
		Checks:  checks,
		Logger:  logger,
		Version: "test",
	})
	return &testServer{handler: srv.Handler(), practices: practices, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const answersJSON = `{
	"birth_date": "1950-03-01",
	"gender": "female",
	"height": 165,
	"weight": 70,
	"has_weight_loss": true,
	"weight_loss_amount": ">6kg",
	"meals_per_day": 1,
	"portion_size": 50,
	"appetite_by_others": "limited",
	"fruit_per_week": "1-2",
	"vegetables_per_week": "3-4",
	"sweet_preference": "like",
	"meat_per_week": "0",
	"carbs_per_week": "daily",
	"acute_diseases": {"cancer": true},
	"feels_weaker": true,
	"muscle_loss": false,
	"frequent_infections": false,
	"difficulty_getting_up": false,
	"shortness_of_breath": false,
	"drinking_amount": "1-1.5L",
	"has_swallowing_issues": false,
	"takes_medication": false,
	"has_supplement_experience": false,
	"had_nutrition_therapy": false,
	"had_nutrient_infusions": false,
	"wants_nutrition_counseling": true
}`

func submitBody(submissionID string) string {
	return fmt.Sprintf(`{"submission_id":%q,"patient_code":"MM-01-03-1950","language":"en","answers":%s}`, submissionID, answersJSON)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])

	ts = newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body = decode[map[string]any](t, w)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/v1/screenings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.CodeAuthentication, decode[domain.APIError](t, w).Code)
}

func TestErrorCarriesCorrelationID(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/screenings/unknown", nil)
	req.Header.Set("Authorization", "Bearer staff-a")
	req.Header.Set("X-Correlation-ID", "corr-42")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "corr-42", w.Header().Get("X-Correlation-ID"))
	body := decode[domain.APIError](t, w)
	assert.Equal(t, domain.CodeNotFound, body.Code)
	assert.Equal(t, "corr-42", body.RequestID)
}

func TestPatientCode(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/patient-code", "staff-a",
		`{"first_initial":"m","last_initial":"Müller","birth_date":"1950-03-01"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MM-01-03-1950", decode[map[string]string](t, w)["patient_code"])

	w = ts.do(t, http.MethodPost, "/api/v1/patient-code", "staff-a",
		`{"first_initial":"m","last_initial":"m","birth_date":"01.03.1950"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeValidation, decode[domain.APIError](t, w).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/patient-code", "staff-a",
		`{"first_initial":"1","last_initial":"m","birth_date":"1950-03-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeInvalidInput, decode[domain.APIError](t, w).Code)
}

func TestScore(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/score",
		bytes.NewReader([]byte(`{"patient_code":"MM-01-03-1950","answers":`+answersJSON+`}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer staff-a")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.ScoreResult](t, w)
	assert.Equal(t, domain.LanguageEnglish, res.Language)
	assert.True(t, res.Result.IsAtRisk)
	assert.Equal(t, 3, res.Result.Scores.WeightLossScore)
	assert.NotEmpty(t, res.ReportText)
}

func TestScore_Invalid(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "empty body", body: "", code: domain.CodeInvalidInput},
		{name: "malformed", body: `{"patient_code":`, code: domain.CodeInvalidInput},
		{name: "missing code", body: `{"answers":{}}`, code: domain.CodeValidation},
		{name: "name as code", body: `{"patient_code":"Maximilian Mustermann","answers":{}}`, code: domain.CodeValidation},
		{name: "bad language", body: `{"patient_code":"MM-01-03-1950","language":"fr","answers":{}}`, code: domain.CodeValidation},
		{name: "bad portion", body: `{"patient_code":"MM-01-03-1950","answers":{"portion_size":60}}`, code: domain.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/score", "staff-a", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[domain.APIError](t, w).Code)
		})
	}
}

func TestSubmitAndRead(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[service.Outcome](t, w)
	assert.True(t, out.Persisted)
	assert.True(t, out.EmailSent)
	assert.Equal(t, domain.LanguageEnglish, out.Record.Language)
	id := out.Record.ID

	// Retried submission
	w = ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[service.Outcome](t, w)
	assert.True(t, again.AlreadySubmitted)
	assert.Equal(t, id, again.Record.ID)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[screeningPage](t, w)
	assert.Equal(t, int64(1), page.Total)
	assert.Len(t, page.Screenings, 1)
	assert.Equal(t, service.DefaultPageSize, page.Limit)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings", "staff-b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[screeningPage](t, w).Screenings)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings?limit=1000", "staff-a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id, "staff-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id, "staff-b", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/unknown", "staff-a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmit_ReusedIDFromOtherPractice(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-b", submitBody("sub-1"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.CodeAlreadySubmitted, decode[domain.APIError](t, w).Code)
	assert.NotContains(t, w.Body.String(), "MM-01-03-1950")

	w = ts.do(t, http.MethodGet, "/api/v1/screenings", "staff-b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[screeningPage](t, w).Screenings)
}

func TestPatientCodeRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "score", path: "/api/v1/score", body: `{"patient_code":"Maximilian Mustermann","answers":` + answersJSON + `}`},
		{name: "submit", path: "/api/v1/screenings", body: `{"submission_id":"sub-9","patient_code":"Maximilian Mustermann","answers":` + answersJSON + `}`},
		{name: "wizard", path: "/api/v1/wizard", body: `{"patient_code":"Maximilian Mustermann","birth_date":"1950-03-01"}`},
		{name: "impossible date", path: "/api/v1/score", body: `{"patient_code":"MM-31-02-1950","answers":` + answersJSON + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, "staff-a", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, domain.CodeValidation, decode[domain.APIError](t, w).Code)
		})
	}

	w := ts.do(t, http.MethodGet, "/api/v1/screenings", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[screeningPage](t, w).Screenings)
}

func TestReport(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[service.Outcome](t, w).Record.ID

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id+"/report", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "MM-01-03-1950")

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id+"/report?format=html&lang=de", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `<html lang="de">`)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id+"/report?format=pdf", "staff-a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCounselingResendDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[service.Outcome](t, w).Record.ID

	w = ts.do(t, http.MethodPatch, "/api/v1/screenings/"+id+"/counseling", "staff-a", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/v1/screenings/"+id+"/counseling", "staff-a", `{"wants_counseling":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[service.Outcome](t, w)
	require.NotNil(t, out.Record.WantsCounseling)
	assert.False(t, *out.Record.WantsCounseling)

	w = ts.do(t, http.MethodPost, "/api/v1/screenings/"+id+"/resend", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[service.Outcome](t, w).EmailSent)

	w = ts.do(t, http.MethodDelete, "/api/v1/screenings/"+id, "staff-b", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/screenings/"+id, "staff-a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/screenings/"+id, "staff-a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWizardFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/wizard", "staff-a",
		`{"patient_code":"MM-01-03-1950","birth_date":"1950-03-01","language":"ru"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := decode[map[string]any](t, w)
	id := snap["id"].(string)
	assert.Equal(t, "gender", snap["step"])
	assert.Equal(t, "ru", snap["language"])

	w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/back", "staff-a", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/next", "staff-a", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "gender is unanswered")

	w = ts.do(t, http.MethodGet, "/api/v1/wizard/"+id, "staff-b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/wizard/"+id+"/answers", "staff-a", `{"portion_size":60}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/wizard/"+id+"/answers", "staff-a", answersJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/complete", "staff-a", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "not at the last step yet")

	for i := 0; ; i++ {
		require.Less(t, i, 40, "questionnaire did not reach the last step")
		w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/next", "staff-a", nil)
		if w.Code == http.StatusConflict {
			break
		}
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/wizard/"+id, "staff-a", nil)
	assert.Equal(t, "nutritionCounseling", decode[map[string]any](t, w)["step"])

	w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/complete", "staff-a", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[service.Outcome](t, w)
	assert.True(t, out.Persisted)
	assert.Equal(t, domain.LanguageRussian, out.Record.Language)

	w = ts.do(t, http.MethodPost, "/api/v1/wizard/"+id+"/complete", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[service.Outcome](t, w)
	assert.True(t, again.AlreadySubmitted)
	assert.Equal(t, out.Record.ID, again.Record.ID)

	w = ts.do(t, http.MethodDelete, "/api/v1/wizard/"+id, "staff-a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/wizard/"+id, "staff-a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnPractice(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/v1/practice", "staff-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Praxis A", decode[domain.Practice](t, w).Name)

	w = ts.do(t, http.MethodPut, "/api/v1/practice", "staff-a", `{"name":"Praxis A","email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/practice", "staff-a", `{"name":"Praxis Neu","email":"neu@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "neu@example.com", decode[domain.Practice](t, w).Email)

	w = ts.do(t, http.MethodGet, "/api/v1/practice", "admin", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/practices", "staff-a", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/practices", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]domain.Practice](t, w)["practices"], 2)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/practices/p-a/screenings", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[screeningPage](t, w).Total)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/practices/p-a/export", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "screenings-p-a.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = ts.do(t, http.MethodGet, "/api/v1/admin/practices/missing/export", "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/practices/p-b", "admin", `{"name":"Praxis B2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Praxis B2", decode[domain.Practice](t, w).Name)

	w = ts.do(t, http.MethodDelete, "/api/v1/admin/practices/p-b", "admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodDelete, "/api/v1/admin/practices/p-b", "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCCEmail(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPut, "/api/v1/admin/settings/cc-email", "admin", `{"email":"not-an-address"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/settings/cc-email", "admin", `{"email":"copy@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/settings/cc-email", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "copy@example.com", decode[map[string]string](t, w)["email"])
	assert.Equal(t, "copy@example.com", ts.practices.settings[domain.SettingCCEmail])
}

func TestLiveFeed(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/screenings?access_token=staff-a"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return ts.hub.ClientCount("p-a") == 1 }, time.Second, 10*time.Millisecond)

	w := ts.do(t, http.MethodPost, "/api/v1/screenings", "staff-a", submitBody("sub-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event events.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, events.ScreeningCreated, event.Type)
	assert.Equal(t, "p-a", event.PracticeID)
	assert.Equal(t, "MM-01-03-1950", event.PatientCode)
}

func TestLiveFeed_RequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/screenings"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
