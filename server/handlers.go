package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/huetone/chromind/colormath"
	"github.com/huetone/chromind/embedding"
	"github.com/huetone/chromind/store"
)

// apiError is the JSON error envelope every non-2xx response carries.
type apiError struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiError{Error: errorBody{Code: code, Message: message, Details: details}}); err != nil {
		log.Printf("[Server] Failed to write error response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Failed to write response: %v", err)
	}
}

// colorInput is the color reference accepted by the POST endpoints: either a
// hex string or an OKLCH object.
type colorInput struct {
	Hex   string           `json:"hex,omitempty"`
	Color *colormath.OKLCH `json:"color,omitempty"`
}

// resolve canonicalizes the input to an in-gamut OKLCH color and its hex key.
func (in colorInput) resolve() (colormath.OKLCH, string, []string) {
	switch {
	case in.Hex != "":
		rgb, alpha, err := colormath.ParseHex(in.Hex)
		if err != nil {
			return colormath.OKLCH{}, "", []string{err.Error()}
		}
		return colormath.RGBToOKLCH(rgb, alpha), rgb.Hex(), nil
	case in.Color != nil:
		if errs := in.Color.Validate(); len(errs) > 0 {
			details := make([]string, len(errs))
			for i, e := range errs {
				details[i] = e.Error()
			}
			return colormath.OKLCH{}, "", details
		}
		c := colormath.MapToGamut(*in.Color)
		return c, colormath.OKLCHToRGB(c).Hex(), nil
	default:
		return colormath.OKLCH{}, "", []string{"either hex or color must be provided"}
	}
}

// colorOut is a color rendered for responses as both hex and OKLCH.
type colorOut struct {
	Hex   string          `json:"hex"`
	OKLCH colormath.OKLCH `json:"oklch"`
}

func renderColor(c colormath.OKLCH) colorOut {
	return colorOut{Hex: colormath.OKLCHToRGB(c).Hex(), OKLCH: c}
}

// handleHealth provides a simple health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storage := "memory"
	if s.config.Database.Enabled {
		storage = "postgres"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"service":       "chromind",
		"embedder":      s.embedder.Name(),
		"model_enabled": s.intel.ModelEnabled(),
		"storage":       storage,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no such endpoint: %s", r.URL.Path), nil)
}

// analyzeResult is the analyze response: the stored record plus derived
// presentation fields.
type analyzeResult struct {
	store.ColorRecord
	CSS          string `json:"css"`
	NearestNamed string `json:"nearest_named"`
	Cached       bool   `json:"cached"`
}

// analyze runs the full pipeline for one resolved color: cache lookup, model
// or fallback metadata, embedding, persistence.
func (s *Server) analyze(ctx context.Context, requestID string, c colormath.OKLCH, hex string) (analyzeResult, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(hex); ok {
			res := v.(analyzeResult)
			res.Cached = true
			s.logAnalysis(requestID, hex, "analyze", "cache", http.StatusOK)
			return res, nil
		}
	}

	meta := s.intel.Describe(ctx, c, hex)

	vec, err := s.embedder.Embed(ctx, embedding.ColorPoint{
		Color:       c,
		Hex:         hex,
		Name:        meta.Name,
		Description: meta.Description,
	})
	if err != nil {
		return analyzeResult{}, fmt.Errorf("embedding failed: %w", err)
	}

	rec := store.ColorRecord{
		ID:          uuid.NewString(),
		Hex:         hex,
		L:           c.L,
		C:           c.C,
		H:           c.H,
		Alpha:       c.Alpha,
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        meta.Tags,
		Source:      meta.Source,
		Embedding:   vec,
		CreatedAt:   time.Now().UTC(),
		AccessCount: 1,
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return analyzeResult{}, fmt.Errorf("failed to save record: %w", err)
	}
	// Re-read so repeated analyses of the same hex report the stored
	// identity and access count.
	if stored, ok, err := s.store.GetByHex(ctx, hex); err == nil && ok {
		rec = stored
	}

	nearest, _ := colormath.NearestNamed(c)
	res := analyzeResult{
		ColorRecord:  rec,
		CSS:          c.String(),
		NearestNamed: nearest,
	}
	if s.cache != nil {
		s.cache.Put(hex, res)
	}
	s.logAnalysis(requestID, hex, "analyze", meta.Source, http.StatusOK)
	return res, nil
}

// logAnalysis appends to the analysis log without blocking the response.
func (s *Server) logAnalysis(requestID, hex, operation, source string, status int) {
	if s.logs == nil {
		return
	}
	entry := store.LogEntry{
		RequestID: requestID,
		Hex:       hex,
		Operation: operation,
		Source:    source,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.logs.InsertLog(ctx, entry); err != nil {
			log.Printf("[Server] ⚠️  Failed to insert log entry: %v", err)
		}
	}()
}

// handleAnalyze analyzes a single color.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
		return
	}

	var in colorInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", nil)
		return
	}
	c, hex, details := in.resolve()
	if details != nil {
		writeError(w, http.StatusBadRequest, "invalid_color", "color failed validation", details)
		return
	}

	res, err := s.analyze(r.Context(), r.Header.Get("X-Request-ID"), c, hex)
	if err != nil {
		log.Printf("[Server] ❌ Analyze failed for %s: %v", hex, err)
		writeError(w, http.StatusInternalServerError, "analyze_failed", "analysis failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Colors []colorInput `json:"colors"`
}

type batchResponse struct {
	Records []analyzeResult `json:"records"`
	Count   int             `json:"count"`
}

// handleBatch analyzes up to the configured limit of colors in one request.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", nil)
		return
	}
	if len(req.Colors) == 0 {
		writeError(w, http.StatusBadRequest, "empty_batch", "colors must contain at least one entry", nil)
		return
	}
	if len(req.Colors) > s.config.BatchLimit {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			fmt.Sprintf("batch size %d exceeds the limit of %d", len(req.Colors), s.config.BatchLimit), nil)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	results := make([]analyzeResult, 0, len(req.Colors))
	for i, in := range req.Colors {
		c, hex, details := in.resolve()
		if details != nil {
			prefixed := make([]string, len(details))
			for j, d := range details {
				prefixed[j] = fmt.Sprintf("colors[%d]: %s", i, d)
			}
			writeError(w, http.StatusBadRequest, "invalid_color", "color failed validation", prefixed)
			return
		}
		res, err := s.analyze(r.Context(), requestID, c, hex)
		if err != nil {
			log.Printf("[Server] ❌ Batch analyze failed for %s: %v", hex, err)
			writeError(w, http.StatusInternalServerError, "analyze_failed", "analysis failed", nil)
			return
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, batchResponse{Records: results, Count: len(results)})
}

// handleHarmonies returns the harmony wheel and tone scale for a hex color.
func (s *Server) handleHarmonies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
		return
	}

	raw := r.URL.Query().Get("color")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", "color query parameter is required", nil)
		return
	}
	rgb, alpha, err := colormath.ParseHex(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_color", err.Error(), nil)
		return
	}
	base := colormath.RGBToOKLCH(rgb, alpha)
	h := colormath.HarmoniesFor(base)

	renderAll := func(cs []colormath.OKLCH) []colorOut {
		out := make([]colorOut, len(cs))
		for i, c := range cs {
			out[i] = renderColor(c)
		}
		return out
	}
	tones := colormath.ToneScale(base)
	toneOut := make([]colorOut, len(tones))
	for i, c := range tones {
		toneOut[i] = renderColor(c)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"base":                renderColor(base),
		"complementary":       renderColor(h.Complementary),
		"analogous":           renderAll(h.Analogous),
		"triadic":             renderAll(h.Triadic),
		"split_complementary": renderAll(h.SplitComplementary),
		"tetradic":            renderAll(h.Tetradic),
		"tones":               toneOut,
		"tone_stops":          colormath.ScaleTones,
	})
}

// handleContrast computes the WCAG contrast ratio between two hex colors.
func (s *Server) handleContrast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
		return
	}

	fgRaw := r.URL.Query().Get("fg")
	bgRaw := r.URL.Query().Get("bg")
	if fgRaw == "" || bgRaw == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", "fg and bg query parameters are required", nil)
		return
	}
	fg, _, err := colormath.ParseHex(fgRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_color", err.Error(), nil)
		return
	}
	bg, _, err := colormath.ParseHex(bgRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_color", err.Error(), nil)
		return
	}

	ratio := colormath.ContrastRatio(fg, bg)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fg":    fg.Hex(),
		"bg":    bg.Hex(),
		"ratio": ratio,
		"levels": map[string]string{
			"normal_text": colormath.WCAGLevel(ratio, false),
			"large_text":  colormath.WCAGLevel(ratio, true),
		},
	})
}

type similarRequest struct {
	colorInput
	Limit int `json:"limit"`
}

// handleSimilar returns stored records nearest to the query color by
// embedding cosine similarity.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
		return
	}

	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", nil)
		return
	}
	c, hex, details := req.resolve()
	if details != nil {
		writeError(w, http.StatusBadRequest, "invalid_color", "color failed validation", details)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	// Embed the query from the same composed metadata text stored records
	// carry, so text-backed embedders compare like with like.
	meta := s.intel.Describe(r.Context(), c, hex)
	vec, err := s.embedder.Embed(r.Context(), embedding.ColorPoint{
		Color:       c,
		Hex:         hex,
		Name:        meta.Name,
		Description: meta.Description,
	})
	if err != nil {
		log.Printf("[Server] ❌ Embedding failed for %s: %v", hex, err)
		writeError(w, http.StatusInternalServerError, "embedding_failed", "could not embed query color", nil)
		return
	}

	results, err := s.store.Nearest(r.Context(), vec, limit)
	if err != nil {
		log.Printf("[Server] ❌ Similarity search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "similarity search failed", nil)
		return
	}
	s.logAnalysis(r.Header.Get("X-Request-ID"), hex, "similar", "store", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   colorOut{Hex: hex, OKLCH: c},
		"results": results,
		"count":   len(results),
	})
}

// handleRecords returns a page of stored records, newest first.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
		return
	}

	limit, offset := pageParams(r, 50)
	records, err := s.store.ListRecords(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[Server] ❌ Failed to list records: %v", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list records", nil)
		return
	}
	total, err := s.store.CountRecords(r.Context())
	if err != nil {
		log.Printf("[Server] ⚠️  Failed to count records: %v", err)
		total = -1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleLogs returns a page of the analysis log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
		return
	}
	if s.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_unavailable", "analysis logging is not enabled", nil)
		return
	}

	limit, offset := pageParams(r, 100)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := s.logs.GetLogs(ctx, limit, offset)
	if err != nil {
		log.Printf("[Server] ❌ Failed to retrieve logs: %v", err)
		writeError(w, http.StatusInternalServerError, "logs_failed", "failed to retrieve logs", nil)
		return
	}
	total, err := s.logs.GetLogsCount(ctx)
	if err != nil {
		log.Printf("[Server] ⚠️  Failed to get logs count: %v", err)
		total = -1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// pageParams parses limit/offset query parameters with a default page size.
func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
