package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credence/internal/calibration"
	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T, withHistory bool) *gin.Engine {
	t.Helper()
	cfg := model.DefaultConfig()
	packs := domain.MustNewRegistry()

	deps := Deps{
		Monitor: calibration.NewMonitor(cfg.Calibration, nil),
		Packs:   packs,
		Version: "test",
	}

	var opts []pipeline.Option
	if withHistory {
		st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		opts = append(opts, pipeline.WithRecorder(st))
		deps.History = st
	}
	deps.Scorer = pipeline.NewPipeline(&cfg, packs, opts...)

	cfg.Server.MaxBodyBytes = 4096
	return New(cfg.Server, deps).Router()
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(t, false)

	w := do(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, w.Body.String())
}

func TestHandleScore(t *testing.T) {
	router := setupTestRouter(t, false)

	body := `{"text":"Data breach notification must occur within 72 hours to supervisory authorities.","domain":"gdpr","sources":[" ico.org.uk/for-organisations/guide-to-data-protection/ ",""]}`
	w := do(router, http.MethodPost, "/v1/score", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var a model.Assessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, 87, a.Result.Score)
	assert.Equal(t, model.LevelVeryHigh, a.Result.Level)
	assert.Len(t, a.Sources.Checks, 1)
	assert.NotEmpty(t, a.ID)
}

func TestHandleScore_BadRequests(t *testing.T) {
	router := setupTestRouter(t, false)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing text", `{"domain":"gdpr"}`, http.StatusBadRequest},
		{"not json", `text=hello`, http.StatusBadRequest},
		{"too large", `{"text":"` + strings.Repeat("a", 5000) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/v1/score", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Code)
		})
	}
}

func TestHandleScore_EmptyTextIsLowInformation(t *testing.T) {
	router := setupTestRouter(t, false)

	w := do(router, http.MethodPost, "/v1/score", `{"text":"","domain":"gdpr"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var a model.Assessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, 0, a.Result.Score)
	assert.Equal(t, model.RecommendEscalate, a.Result.Recommendation)
}

func TestOutcomeAndCalibration(t *testing.T) {
	router := setupTestRouter(t, true)

	w := do(router, http.MethodPost, "/v1/score", `{"text":"Report a breach within 72 hours.","domain":"gdpr"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var a model.Assessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))

	w = do(router, http.MethodPost, "/v1/assessments/"+a.ID+"/outcome", `{"correct":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/v1/assessments/does-not-exist/outcome", `{"correct":false}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPost, "/v1/assessments/"+a.ID+"/outcome", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/v1/calibration?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report model.CalibrationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Samples)
	require.Len(t, report.Bins, 1)

	w = do(router, http.MethodGet, "/v1/calibration?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryDisabled(t *testing.T) {
	router := setupTestRouter(t, false)

	assert.Equal(t, http.StatusNotImplemented, do(router, http.MethodPost, "/v1/assessments/x/outcome", `{"correct":true}`).Code)
	assert.Equal(t, http.StatusNotImplemented, do(router, http.MethodGet, "/v1/calibration", "").Code)
}

func TestHandlePacks(t *testing.T) {
	router := setupTestRouter(t, false)

	w := do(router, http.MethodGet, "/v1/packs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var packs []PackSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &packs))

	names := make(map[string]PackSummary)
	for _, p := range packs {
		names[p.Name] = p
	}
	require.Contains(t, names, "gdpr")
	require.Contains(t, names, domain.GenericPack)
	assert.Greater(t, names["gdpr"].Primary, 0)
	assert.Greater(t, names["gdpr"].Facts, 0)
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t, false)

	do(router, http.MethodGet, "/healthz", "")
	w := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "credence_http_requests_total")
}
