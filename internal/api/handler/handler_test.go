package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracelens/tracelens/internal/config"
	"github.com/tracelens/tracelens/internal/database"
	"github.com/tracelens/tracelens/internal/engine"
	"github.com/tracelens/tracelens/internal/query"
)

// fakeBackend serves a minimal Jaeger-compatible query API.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	trace := query.Trace{
		TraceID: "abc123",
		Spans: []query.Span{
			{SpanID: "root", OperationName: "HTTP GET /checkout", StartTime: time.Now().Add(-5 * time.Minute).UnixMicro(), Duration: 2_000_000, ProcessID: "p1"},
		},
		Processes: map[string]query.Process{"p1": {ServiceName: "frontend"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/services", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []string{"frontend"}}) //nolint:errcheck
	})
	mux.HandleFunc("/api/services/frontend/operations", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []string{"HTTP GET /checkout"}}) //nolint:errcheck
	})
	mux.HandleFunc("/api/traces", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []query.Trace{trace}}) //nolint:errcheck
	})
	mux.HandleFunc("/api/traces/abc123", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []query.Trace{trace}}) //nolint:errcheck
	})
	mux.HandleFunc("/api/traces/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := fakeBackend(t)
	cfg := &config.Config{
		Query:           &config.QueryConfig{URL: backend.URL, SearchLimit: 20, LookbackHours: 1, TimeoutSeconds: 5},
		Cache:           &config.CacheConfig{Type: config.CacheTypeMemory, TTLSeconds: 60},
		RefreshSchedule: "*/5 * * * *",
	}

	db, err := database.New(":memory:")
	require.NoError(t, err)

	eng, err := engine.New(cfg, db)
	require.NoError(t, err)

	h := New(eng)
	router := gin.New()
	router.GET("/api/services", h.Services)
	router.GET("/api/search", h.Search)
	router.GET("/api/traces/:id", h.Trace)
	router.GET("/api/pins", h.ListPins)
	router.POST("/api/pins", h.CreatePin)
	router.DELETE("/api/pins/:id", h.DeletePin)
	router.GET("/api/searches/recent", h.RecentSearches)
	router.POST("/api/jobs/:id/run", h.RunJob)
	return router
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServicesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/api/services", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Name           string `json:"name"`
			OperationCount int    `json:"operationCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "frontend", resp.Data[0].Name)
	assert.Equal(t, 1, resp.Data[0].OperationCount)
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/api/search?service=frontend", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			TraceID  string `json:"traceID"`
			Duration string `json:"duration"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "abc123", resp.Data[0].TraceID)
	assert.Equal(t, "2s", resp.Data[0].Duration)
}

func TestSearchEndpointRejectsBadLimit(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/api/search?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTraceEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/api/traces/abc123", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			TraceID  string `json:"traceID"`
			Duration string `json:"duration"`
			Spans    []struct {
				PercentOfTrace float64 `json:"percentOfTrace"`
			} `json:"spans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.Data.TraceID)
	assert.Equal(t, "2s", resp.Data.Duration)
	require.Len(t, resp.Data.Spans, 1)
	assert.InDelta(t, 100, resp.Data.Spans[0].PercentOfTrace, 1e-9)

	w = doRequest(router, "GET", "/api/traces/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentSearchesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "GET", "/api/search?service=frontend&operation=HTTP%20GET%20%2Fcheckout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "GET", "/api/searches/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Service   string `json:"service"`
			Operation string `json:"operation"`
			Limit     int    `json:"limit"`
			When      string `json:"when"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "frontend", resp.Data[0].Service)
	assert.Equal(t, "HTTP GET /checkout", resp.Data[0].Operation)
	assert.Equal(t, 20, resp.Data[0].Limit)
	assert.NotEmpty(t, resp.Data[0].When)

	w = doRequest(router, "GET", "/api/searches/recent?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunJobEndpointRejectsUnknownJob(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/api/jobs/does-not-exist/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPinEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, "POST", "/api/pins", map[string]string{"traceID": "abc123", "title": "slow checkout"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Pinning twice conflicts.
	w = doRequest(router, "POST", "/api/pins", map[string]string{"traceID": "abc123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Pinning an unknown trace fails with 404.
	w = doRequest(router, "POST", "/api/pins", map[string]string{"traceID": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, "GET", "/api/pins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []struct {
			TraceID string `json:"traceID"`
			Title   string `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "slow checkout", resp.Data[0].Title)

	w = doRequest(router, "DELETE", "/api/pins/abc123", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
