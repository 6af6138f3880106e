// handlers_analysis_test.go - Tests for analysis session handlers
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/store"
	"github.com/covid-insights/backend/internal/testutil"
)

// fakeSessionManager implements SessionManager against in-memory state.
type fakeSessionManager struct {
	sessions map[string]*models.AnalysisSession
	stores   map[string]*store.CovidStore
	touched  map[string]int
	startErr error
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{
		sessions: make(map[string]*models.AnalysisSession),
		stores:   make(map[string]*store.CovidStore),
		touched:  make(map[string]int),
	}
}

func (f *fakeSessionManager) StartSession(caseFileID, casePath, vaccinationFileID, vaccinationPath string) (*models.AnalysisSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	sess := models.NewAnalysisSession("sess-1", caseFileID, vaccinationFileID)
	sess.Status = models.SessionStatusLoading
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeSessionManager) Get(id string) (*models.AnalysisSession, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeSessionManager) GetStore(id string) (*store.CovidStore, bool) {
	s, ok := f.stores[id]
	return s, ok
}

func (f *fakeSessionManager) Touch(id string) bool {
	if _, ok := f.sessions[id]; !ok {
		return false
	}
	f.touched[id]++
	return true
}

func (f *fakeSessionManager) Delete(id string) bool {
	if _, ok := f.sessions[id]; !ok {
		return false
	}
	delete(f.sessions, id)
	delete(f.stores, id)
	return true
}

func storageWithDatasets(t *testing.T) *testutil.MockStorage {
	t.Helper()
	st := testutil.NewMockStorage()
	st.AddFile("case-1", "cases.csv", []byte(sampleCasesCSV))
	st.AddFile("vacc-1", "vaccinations.csv", []byte(sampleVaccinationsCSV))
	return st
}

func postAnalysis(t *testing.T, handler AnalysisHandler, body interface{}) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return rec, handler.HandleStartAnalysis(e.NewContext(req, rec))
}

func TestAnalysisHandler_HandleStartAnalysis(t *testing.T) {
	mgr := newFakeSessionManager()
	handler := NewAnalysisHandler(storageWithDatasets(t), mgr)

	rec, err := postAnalysis(t, handler, startAnalysisRequest{
		CaseFileID:        "case-1",
		VaccinationFileID: "vacc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var sess models.AnalysisSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "case-1", sess.CaseFileID)
	assert.Equal(t, models.SessionStatusLoading, sess.Status)
}

func TestAnalysisHandler_StartValidation(t *testing.T) {
	tests := []struct {
		name    string
		request startAnalysisRequest
		status  int
		code    string
	}{
		{
			name:    "missing case file id",
			request: startAnalysisRequest{VaccinationFileID: "vacc-1"},
			status:  http.StatusBadRequest,
			code:    "VALIDATION_ERROR",
		},
		{
			name:    "unknown dataset",
			request: startAnalysisRequest{CaseFileID: "missing", VaccinationFileID: "vacc-1"},
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
		},
		{
			name:    "swapped dataset kinds",
			request: startAnalysisRequest{CaseFileID: "vacc-1", VaccinationFileID: "case-1"},
			status:  http.StatusBadRequest,
			code:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAnalysisHandler(storageWithDatasets(t), newFakeSessionManager())
			_, err := postAnalysis(t, handler, tt.request)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestAnalysisHandler_StartSessionFailure(t *testing.T) {
	mgr := newFakeSessionManager()
	mgr.startErr = errors.New("out of sessions")
	handler := NewAnalysisHandler(storageWithDatasets(t), mgr)

	_, err := postAnalysis(t, handler, startAnalysisRequest{
		CaseFileID:        "case-1",
		VaccinationFileID: "vacc-1",
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestAnalysisHandler_StatusTouchesSession(t *testing.T) {
	mgr := newFakeSessionManager()
	mgr.sessions["sess-1"] = models.NewAnalysisSession("sess-1", "case-1", "vacc-1")
	handler := NewAnalysisHandler(testutil.NewMockStorage(), mgr)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	require.NoError(t, handler.HandleAnalysisStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, mgr.touched["sess-1"])
}

func TestAnalysisHandler_KeepAliveAndDelete(t *testing.T) {
	mgr := newFakeSessionManager()
	mgr.sessions["sess-1"] = models.NewAnalysisSession("sess-1", "case-1", "vacc-1")
	handler := NewAnalysisHandler(testutil.NewMockStorage(), mgr)
	e := echo.New()

	call := func(method string, fn func(echo.Context) error, id string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(method, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("sessionId")
		c.SetParamValues(id)
		return rec, fn(c)
	}

	rec, err := call(http.MethodPost, handler.HandleSessionKeepAlive, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = call(http.MethodPost, handler.HandleSessionKeepAlive, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	rec, err = call(http.MethodDelete, handler.HandleDeleteAnalysis, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := mgr.Get("sess-1")
	assert.False(t, ok)
}

func TestAnalysisHandler_ProgressStreamEndsWhenReady(t *testing.T) {
	mgr := newFakeSessionManager()
	sess := models.NewAnalysisSession("sess-1", "case-1", "vacc-1")
	sess.Status = models.SessionStatusReady
	sess.Progress = 100
	mgr.sessions["sess-1"] = sess
	handler := NewAnalysisHandler(testutil.NewMockStorage(), mgr)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("sess-1")

	done := make(chan error, 1)
	go func() { done <- handler.HandleAnalysisProgressStream(c) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("progress stream did not terminate for a ready session")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}
