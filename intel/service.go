package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/huetone/chromind/colormath"
	"github.com/huetone/chromind/processor"
	"github.com/huetone/chromind/providers"
)

// Metadata sources.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Service generates descriptive metadata for a color: a display name, a
// short description and mood tags. It asks the configured hosted model and
// falls back to deterministic naming when no provider is configured or the
// call fails; model trouble never surfaces as a request error.
type Service struct {
	client   *http.Client
	provider providers.Provider
	timeout  time.Duration
	logCalls bool
}

// Option configures the service.
type Option func(*Service)

// WithClient overrides the HTTP client (used by tests).
func WithClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithTimeout sets the per-call model timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithCallLogging enables logging of model request/response content.
func WithCallLogging(enabled bool) Option {
	return func(s *Service) { s.logCalls = enabled }
}

// NewService creates a metadata service. A nil provider means
// fallback-only operation.
func NewService(provider providers.Provider, opts ...Option) *Service {
	s := &Service{
		client:   &http.Client{},
		provider: provider,
		timeout:  20 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelEnabled reports whether a hosted model is configured.
func (s *Service) ModelEnabled() bool {
	return s.provider != nil
}

// Describe produces metadata for the given color.
func (s *Service) Describe(ctx context.Context, c colormath.OKLCH, hex string) processor.Metadata {
	if s.provider == nil {
		return s.fallback(c)
	}

	meta, err := s.callModel(ctx, c, hex)
	if err != nil {
		log.Printf("[Intel] Model call failed, using fallback naming: %v", err)
		return s.fallback(c)
	}
	meta.Source = SourceModel
	return meta
}

// callModel sends one chat completion and parses the structured reply.
func (s *Service) callModel(ctx context.Context, c colormath.OKLCH, hex string) (processor.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := s.provider.BuildChatBody(systemPrompt, userPrompt(c, hex))
	payload, err := json.Marshal(body)
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.ChatURL(), bytes.NewReader(payload))
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	s.provider.SetAuthHeaders(req)

	if s.logCalls {
		log.Printf("[Intel] -> %s: %s", s.provider.GetName(), string(payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to call %s: %w", s.provider.GetName(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return processor.Metadata{}, fmt.Errorf("%s returned status %d: %s", s.provider.GetName(), resp.StatusCode, truncate(string(respBody), 200))
	}

	if s.logCalls {
		log.Printf("[Intel] <- %s: %s", s.provider.GetName(), truncate(string(respBody), 500))
	}

	var data map[string]interface{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to parse %s response: %w", s.provider.GetName(), err)
	}

	text, err := s.provider.ExtractResponseText(data)
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("failed to extract response text: %w", err)
	}

	meta, err := processor.ParseMetadata(text)
	if err != nil {
		return processor.Metadata{}, fmt.Errorf("model output unusable: %w", err)
	}
	return meta, nil
}

// fallback builds deterministic metadata from the nearest CSS named color.
func (s *Service) fallback(c colormath.OKLCH) processor.Metadata {
	name, dist := colormath.NearestNamed(c)

	qualifier := ""
	// Distances in OKLab: below ~0.02 is visually the same color.
	switch {
	case dist < 0.02:
		// Exact enough to use the bare name.
	case c.L >= 0.75:
		qualifier = "light "
	case c.L <= 0.35:
		qualifier = "dark "
	case c.C <= 0.04:
		qualifier = "muted "
	default:
		qualifier = "vivid "
	}

	tags := []string{toneTag(c)}
	if c.C <= 0.04 {
		tags = append(tags, "neutral")
	} else if warmHue(c.H) {
		tags = append(tags, "warm")
	} else {
		tags = append(tags, "cool")
	}

	return processor.Metadata{
		Name:        qualifier + name,
		Description: fmt.Sprintf("A %s tone close to %s.", toneTag(c), name),
		Tags:        tags,
		Source:      SourceFallback,
	}
}

func toneTag(c colormath.OKLCH) string {
	switch {
	case c.L >= 0.75:
		return "light"
	case c.L <= 0.35:
		return "dark"
	default:
		return "mid"
	}
}

// warmHue reports whether an OKLCH hue angle reads as warm (reds through
// yellows into yellow-greens).
func warmHue(h float64) bool {
	return h < 140 || h >= 330
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
