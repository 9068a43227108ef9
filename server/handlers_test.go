package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huetone/chromind/config"
	"github.com/huetone/chromind/embedding"
	"github.com/huetone/chromind/intel"
	"github.com/huetone/chromind/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RateLimitRPS = 0 // tests exercise the limiter explicitly
	if mutate != nil {
		mutate(cfg)
	}

	mem := store.NewMemoryStore()
	srv, err := NewServer(cfg, Deps{
		Store:    mem,
		Logs:     mem,
		Intel:    intel.NewService(nil),
		Embedder: embedding.NewFeatureEmbedder(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	w := doJSON(t, srv.Routes(), http.MethodGet, "/health", nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	decodeBody(t, w, &body)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["embedder"] != "feature" {
		t.Errorf("embedder = %v", body["embedder"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAnalyzeHex(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
		map[string]string{"hex": "#1E90FF"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var res analyzeResult
	decodeBody(t, w, &res)
	if res.Hex != "#1e90ff" {
		t.Errorf("hex = %q, want canonical lowercase", res.Hex)
	}
	if res.Name == "" || res.Description == "" {
		t.Errorf("metadata missing: name=%q description=%q", res.Name, res.Description)
	}
	if res.Source != "fallback" {
		t.Errorf("source = %q, want fallback without a provider", res.Source)
	}
	if res.Cached {
		t.Error("first analysis reported as cached")
	}
	if !strings.HasPrefix(res.CSS, "oklch(") {
		t.Errorf("css = %q", res.CSS)
	}

	// Second request for the same color is served from the cache.
	w = doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
		map[string]string{"hex": "#1e90ff"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	decodeBody(t, w, &res)
	if !res.Cached {
		t.Error("second analysis not served from cache")
	}
}

func TestAnalyzeAccessCount(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Cache.Enabled = false // force every analyze through the store
	})
	routes := srv.Routes()

	w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
		map[string]string{"hex": "#1e90ff"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res analyzeResult
	decodeBody(t, w, &res)
	if res.AccessCount != 1 {
		t.Errorf("first analyze access_count = %d, want 1", res.AccessCount)
	}

	w = doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
		map[string]string{"hex": "#1e90ff"}, nil)
	decodeBody(t, w, &res)
	if res.AccessCount != 2 {
		t.Errorf("second analyze access_count = %d, want 2", res.AccessCount)
	}
}

func TestAnalyzeOKLCHObject(t *testing.T) {
	srv := newTestServer(t, nil)
	body := map[string]interface{}{
		"color": map[string]float64{"l": 0.45, "c": 0.31, "h": 264, "alpha": 1},
	}
	w := doJSON(t, srv.Routes(), http.MethodPost, "/v1/colors/analyze", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res analyzeResult
	decodeBody(t, w, &res)
	if !strings.HasPrefix(res.Hex, "#") {
		t.Errorf("hex = %q", res.Hex)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	testCases := []struct {
		name        string
		body        interface{}
		wantCode    string
		wantDetails int
	}{
		{
			name:     "bad hex",
			body:     map[string]string{"hex": "#12"},
			wantCode: "invalid_color",
		},
		{
			name: "out of range fields",
			body: map[string]interface{}{
				"color": map[string]float64{"l": 1.5, "c": 0.9, "h": 400, "alpha": -1},
			},
			wantCode:    "invalid_color",
			wantDetails: 4,
		},
		{
			name:     "neither hex nor color",
			body:     map[string]string{},
			wantCode: "invalid_color",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var apiErr apiError
			decodeBody(t, w, &apiErr)
			if apiErr.Error.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Error.Code, tc.wantCode)
			}
			if tc.wantDetails > 0 && len(apiErr.Error.Details) != tc.wantDetails {
				t.Errorf("details = %v, want %d entries", apiErr.Error.Details, tc.wantDetails)
			}
		})
	}
}

func TestBatch(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.BatchLimit = 3
	})
	routes := srv.Routes()

	colors := []map[string]string{{"hex": "#ff0000"}, {"hex": "#00ff00"}, {"hex": "#0000ff"}}
	w := doJSON(t, routes, http.MethodPost, "/v1/colors/batch",
		map[string]interface{}{"colors": colors}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res batchResponse
	decodeBody(t, w, &res)
	if res.Count != 3 || len(res.Records) != 3 {
		t.Errorf("count = %d, records = %d", res.Count, len(res.Records))
	}

	// One over the limit is rejected.
	colors = append(colors, map[string]string{"hex": "#ffffff"})
	w = doJSON(t, routes, http.MethodPost, "/v1/colors/batch",
		map[string]interface{}{"colors": colors}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized batch status = %d, want 400", w.Code)
	}
	var apiErr apiError
	decodeBody(t, w, &apiErr)
	if apiErr.Error.Code != "batch_too_large" {
		t.Errorf("code = %q", apiErr.Error.Code)
	}

	// Empty batch is rejected.
	w = doJSON(t, routes, http.MethodPost, "/v1/colors/batch",
		map[string]interface{}{"colors": []map[string]string{}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", w.Code)
	}
}

func TestHarmonies(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	w := doJSON(t, routes, http.MethodGet, "/v1/colors/harmonies?color=%231e90ff", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Base          colorOut   `json:"base"`
		Complementary colorOut   `json:"complementary"`
		Analogous     []colorOut `json:"analogous"`
		Triadic       []colorOut `json:"triadic"`
		Tetradic      []colorOut `json:"tetradic"`
		Tones         []colorOut `json:"tones"`
	}
	decodeBody(t, w, &body)
	if body.Base.Hex != "#1e90ff" {
		t.Errorf("base hex = %q", body.Base.Hex)
	}
	if len(body.Analogous) != 2 || len(body.Triadic) != 2 || len(body.Tetradic) != 3 {
		t.Errorf("harmony sizes: analogous=%d triadic=%d tetradic=%d",
			len(body.Analogous), len(body.Triadic), len(body.Tetradic))
	}
	if len(body.Tones) != 11 {
		t.Errorf("tones = %d, want 11", len(body.Tones))
	}

	// Missing parameter.
	w = doJSON(t, routes, http.MethodGet, "/v1/colors/harmonies", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing color status = %d, want 400", w.Code)
	}
}

func TestContrast(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	w := doJSON(t, routes, http.MethodGet, "/v1/colors/contrast?fg=%23000000&bg=%23ffffff", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Ratio  float64           `json:"ratio"`
		Levels map[string]string `json:"levels"`
	}
	decodeBody(t, w, &body)
	if body.Ratio < 20.9 || body.Ratio > 21.0 {
		t.Errorf("ratio = %g, want 21", body.Ratio)
	}
	if body.Levels["normal_text"] != "aaa" {
		t.Errorf("normal_text level = %q", body.Levels["normal_text"])
	}

	w = doJSON(t, routes, http.MethodGet, "/v1/colors/contrast?fg=%23000000", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing bg status = %d, want 400", w.Code)
	}
}

func TestSimilar(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	// Seed the store with a few analyzed colors.
	for _, hex := range []string{"#1e90ff", "#87ceeb", "#dc143c"} {
		w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
			map[string]string{"hex": hex}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("seed analyze %s: status %d", hex, w.Code)
		}
	}

	w := doJSON(t, routes, http.MethodPost, "/v1/colors/similar",
		map[string]interface{}{"hex": "#4169e1", "limit": 2}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Results []store.SimilarRecord `json:"results"`
		Count   int                   `json:"count"`
	}
	decodeBody(t, w, &body)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	// Royal blue should rank the blues above crimson.
	for _, rec := range body.Results {
		if rec.Hex == "#dc143c" {
			t.Errorf("crimson ranked in top 2 for a blue query: %+v", body.Results)
		}
	}
	if body.Results[0].Similarity < body.Results[1].Similarity {
		t.Error("results not ordered by similarity")
	}
}

// recordingEmbedder wraps the feature embedder and remembers the points it
// was asked to embed.
type recordingEmbedder struct {
	inner  *embedding.FeatureEmbedder
	points []embedding.ColorPoint
}

func (e *recordingEmbedder) Name() string { return e.inner.Name() }
func (e *recordingEmbedder) Close() error { return e.inner.Close() }
func (e *recordingEmbedder) Embed(ctx context.Context, p embedding.ColorPoint) ([]float32, error) {
	e.points = append(e.points, p)
	return e.inner.Embed(ctx, p)
}

// The similar query must embed the same composed text shape stored records
// were embedded from, or text-backed embedders would rank apples against
// oranges.
func TestSimilarQueryEmbedsSameTextShape(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimitRPS = 0
	mem := store.NewMemoryStore()
	rec := &recordingEmbedder{inner: embedding.NewFeatureEmbedder()}
	srv, err := NewServer(cfg, Deps{
		Store:    mem,
		Logs:     mem,
		Intel:    intel.NewService(nil),
		Embedder: rec,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	routes := srv.Routes()

	w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
		map[string]string{"hex": "#1e90ff"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", w.Code)
	}
	w = doJSON(t, routes, http.MethodPost, "/v1/colors/similar",
		map[string]interface{}{"hex": "#1e90ff", "limit": 1}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("similar status = %d", w.Code)
	}

	if len(rec.points) != 2 {
		t.Fatalf("embed calls = %d, want 2", len(rec.points))
	}
	stored, query := rec.points[0], rec.points[1]
	if query.Name == "" || query.Description == "" {
		t.Fatalf("query point missing metadata text: %+v", query)
	}
	if query.Name != stored.Name || query.Description != stored.Description {
		t.Errorf("query text differs from stored text: %q/%q vs %q/%q",
			query.Name, query.Description, stored.Name, stored.Description)
	}
}

func TestRecordsPage(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	for _, hex := range []string{"#111111", "#222222", "#333333"} {
		doJSON(t, routes, http.MethodPost, "/v1/colors/analyze", map[string]string{"hex": hex}, nil)
	}

	w := doJSON(t, routes, http.MethodGet, "/v1/colors/records?limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Records []store.ColorRecord `json:"records"`
		Total   int                 `json:"total"`
		Limit   int                 `json:"limit"`
	}
	decodeBody(t, w, &body)
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
	if len(body.Records) != 2 || body.Limit != 2 {
		t.Errorf("records = %d limit = %d", len(body.Records), body.Limit)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.APIKeys = []string{"secret-key"}
	})
	routes := srv.Routes()

	testCases := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "missing key", headers: nil, wantStatus: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"X-API-Key": "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "x-api-key", headers: map[string]string{"X-API-Key": "secret-key"}, wantStatus: http.StatusOK},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer secret-key"}, wantStatus: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, routes, http.MethodPost, "/v1/colors/analyze",
				map[string]string{"hex": "#abcdef"}, tc.headers)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus == http.StatusUnauthorized {
				var apiErr apiError
				decodeBody(t, w, &apiErr)
				if apiErr.Error.Code != "unauthorized" {
					t.Errorf("code = %q", apiErr.Error.Code)
				}
			}
		})
	}

	// Health stays open without a key.
	w := doJSON(t, routes, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 2
	})
	routes := srv.Routes()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := doJSON(t, routes, http.MethodGet, "/v1/colors/contrast?fg=%23000000&bg=%23ffffff", nil, nil)
		statuses = append(statuses, w.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests failed: %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", statuses[2])
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	w := doJSON(t, srv.Routes(), http.MethodGet, "/v1/colors/nonsense", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var apiErr apiError
	decodeBody(t, w, &apiErr)
	if apiErr.Error.Code != "not_found" {
		t.Errorf("code = %q", apiErr.Error.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/colors/analyze"},
		{http.MethodPost, "/v1/colors/harmonies"},
		{http.MethodPost, "/v1/logs"},
	} {
		w := doJSON(t, routes, tc.method, tc.path, nil, nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tc.method, tc.path, w.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.APIKeys = []string{"secret-key"} // preflight must not require auth
	})
	req := httptest.NewRequest(http.MethodOptions, "/v1/colors/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want origin echo", got)
	}
	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("missing Allow-Headers")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want the client's value", got)
	}
}

func TestBatchLimitFromConfig(t *testing.T) {
	srv := newTestServer(t, nil)
	routes := srv.Routes()

	colors := make([]map[string]string, 65)
	for i := range colors {
		colors[i] = map[string]string{"hex": fmt.Sprintf("#%06x", i*1000)}
	}
	w := doJSON(t, routes, http.MethodPost, "/v1/colors/batch",
		map[string]interface{}{"colors": colors}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("65-color batch status = %d, want 400 with default limit 64", w.Code)
	}
}
