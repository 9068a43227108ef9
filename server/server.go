package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/huetone/chromind/cache"
	"github.com/huetone/chromind/config"
	"github.com/huetone/chromind/embedding"
	"github.com/huetone/chromind/intel"
	"github.com/huetone/chromind/store"
)

// Server is the HTTP front of the color intelligence service.
type Server struct {
	config   *config.Config
	store    store.ColorStore
	logs     store.AnalysisLog
	intel    *intel.Service
	embedder embedding.Embedder
	cache    *cache.Cache

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Deps carries the wired components the server serves.
type Deps struct {
	Store    store.ColorStore
	Logs     store.AnalysisLog
	Intel    *intel.Service
	Embedder embedding.Embedder
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Intel == nil {
		deps.Intel = intel.NewService(nil)
	}

	var analysisCache *cache.Cache
	if cfg.Cache.Enabled {
		analysisCache = cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.MaxEntries)
	}

	return &Server{
		config:   cfg,
		store:    deps.Store,
		logs:     deps.Logs,
		intel:    deps.Intel,
		embedder: deps.Embedder,
		cache:    analysisCache,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting color intelligence service on port %s", s.config.ListenPort)
	log.Printf("Embedder: %s", s.embedder.Name())
	if s.intel.ModelEnabled() {
		log.Printf("Hosted model metadata enabled (%s)", s.config.Provider.Type)
	} else {
		log.Println("Hosted model disabled, using deterministic naming")
	}
	if s.config.Database.Enabled {
		log.Println("Database storage enabled")
	} else {
		log.Println("Using in-memory storage")
	}

	server := &http.Server{
		Addr:         s.config.ListenPort,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// StartWithErrorHandling starts the server and exits the process on failure.
func (s *Server) StartWithErrorHandling() {
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// Routes builds the service mux. Split out from Start so tests can drive the
// full middleware stack through httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.public(s.handleHealth))
	mux.HandleFunc("/v1/colors/analyze", s.protected("analyze", s.handleAnalyze))
	mux.HandleFunc("/v1/colors/batch", s.protected("batch", s.handleBatch))
	mux.HandleFunc("/v1/colors/harmonies", s.protected("harmonies", s.handleHarmonies))
	mux.HandleFunc("/v1/colors/contrast", s.protected("contrast", s.handleContrast))
	mux.HandleFunc("/v1/colors/similar", s.protected("similar", s.handleSimilar))
	mux.HandleFunc("/v1/colors/records", s.protected("records", s.handleRecords))
	mux.HandleFunc("/v1/logs", s.protected("logs", s.handleLogs))
	mux.HandleFunc("/v1/", s.public(s.handleNotFound))
	return mux
}

// Close closes the server's resources.
func (s *Server) Close() error {
	var err error
	if s.embedder != nil {
		if closeErr := s.embedder.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			if err != nil {
				return fmt.Errorf("errors closing embedder and store: %w, %v", err, closeErr)
			}
			return closeErr
		}
	}
	return err
}

// corsHandler adds CORS headers to the response.
func (s *Server) corsHandler(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "false")
	} else {
		// Echo the origin back so credentialed requests work
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// public wraps a handler with CORS, a request ID and panic recovery, but no
// authentication or rate limiting.
func (s *Server) public(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			s.corsHandler(w, r)
			w.WriteHeader(http.StatusOK)
			return
		}
		s.corsHandler(w, r)
		s.ensureRequestID(w, r)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer s.recoverPanic(rec, r)
		h(rec, r)
	}
}

// protected wraps a handler with the full middleware stack: CORS, request ID,
// API key auth, per-key rate limiting, panic recovery and request logging.
func (s *Server) protected(operation string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			s.corsHandler(w, r)
			w.WriteHeader(http.StatusOK)
			return
		}
		s.corsHandler(w, r)
		requestID := s.ensureRequestID(w, r)

		key, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key", nil)
			return
		}

		if !s.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "request rate limit exceeded", nil)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer s.recoverPanic(rec, r)

		start := time.Now()
		h(rec, r)

		if s.config.Logging.LogRequests {
			log.Printf("[Server] %s %s -> %d (%s) request_id=%s",
				r.Method, operation, rec.status, time.Since(start).Round(time.Millisecond), requestID)
		}
		if rec.status >= 500 && sentry.CurrentHub().Client() != nil {
			sentry.CaptureMessage(fmt.Sprintf("%s %s returned %d", r.Method, r.URL.Path, rec.status))
		}
	}
}

// ensureRequestID assigns a UUID request ID when the client did not send one
// and reflects it on the response.
func (s *Server) ensureRequestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
		r.Header.Set("X-Request-ID", id)
	}
	w.Header().Set("X-Request-ID", id)
	return id
}

// authenticate checks the client API key against the configured set. The
// returned key is the rate-limiting identity. When no keys are configured
// auth is disabled and the client IP becomes the identity.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	if len(s.config.APIKeys) == 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return host, true
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if key == "" {
		return "", false
	}
	for _, accepted := range s.config.APIKeys {
		if key == accepted {
			return key, true
		}
	}
	return "", false
}

// allow applies the per-key token bucket.
func (s *Server) allow(key string) bool {
	if s.config.RateLimitRPS <= 0 {
		return true
	}

	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.config.RateLimitRPS), s.config.RateLimitBurst)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()

	return limiter.Allow()
}

// recoverPanic converts a handler panic into a 500 JSON error and reports it.
func (s *Server) recoverPanic(w http.ResponseWriter, r *http.Request) {
	if rec := recover(); rec != nil {
		log.Printf("[Server] ❌ Panic serving %s %s: %v", r.Method, r.URL.Path, rec)
		if sentry.CurrentHub().Client() != nil {
			sentry.CurrentHub().Recover(rec)
			sentry.Flush(2 * time.Second)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(b)
}
