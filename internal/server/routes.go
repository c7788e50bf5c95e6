package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/orchestrator"
	"github.com/Kerastion/trioflow/types"
)

// SessionGuard serializes access to a session shared between the run loop
// and HTTP handlers. The session itself is single-goroutine; every caller
// goes through the guard.
type SessionGuard struct {
	mu   sync.Mutex
	sess *orchestrator.Session
}

// NewSessionGuard wraps sess.
func NewSessionGuard(sess *orchestrator.Session) *SessionGuard {
	return &SessionGuard{sess: sess}
}

// Step advances the conversation one turn.
func (g *SessionGuard) Step(ctx context.Context) (*orchestrator.StepView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Step(ctx)
}

// RateUtterance forwards a user rating.
func (g *SessionGuard) RateUtterance(turn, rating int, comment string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.RateUtterance(turn, rating, comment)
}

// History returns a copy of the conversation.
func (g *SessionGuard) History() types.History {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.History()
}

// Stats returns the per-role evolution stats.
func (g *SessionGuard) Stats() map[types.Role]evolution.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Arena().AllStats()
}

// Snapshot returns the latest analyzer output, nil before the first step.
func (g *SessionGuard) Snapshot() *analysis.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Snapshot()
}

// Close finishes the session.
func (g *SessionGuard) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Close(ctx)
}

// ID returns the session id.
func (g *SessionGuard) ID() string { return g.sess.ID() }

// RouterConfig wires the HTTP routes.
type RouterConfig struct {
	Session   *SessionGuard
	Hub       *Hub
	Provider  llm.Provider        // optional, probed by /healthz
	Gatherer  prometheus.Gatherer // optional, defaults to the global gatherer
	JWTSecret string
	Logger    *zap.Logger
}

// NewRouter assembles the full HTTP surface. /healthz and /metrics stay
// open; everything else sits behind the bearer middleware when a secret is
// configured.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "router"))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(cfg.Provider))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	api := http.NewServeMux()
	if cfg.Hub != nil {
		api.Handle("GET /ws", cfg.Hub)
	}
	if cfg.Session != nil {
		api.HandleFunc("POST /sessions/{id}/feedback", feedbackHandler(cfg.Session, logger))
		api.HandleFunc("GET /sessions/{id}/history", historyHandler(cfg.Session))
		api.HandleFunc("GET /sessions/{id}/stats", statsHandler(cfg.Session))
	}
	mux.Handle("/", JWTMiddleware(cfg.JWTSecret, logger)(api))

	return mux
}

func healthHandler(provider llm.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		status := http.StatusOK

		if provider != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			hs, err := provider.HealthCheck(ctx)
			switch {
			case err != nil:
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["provider_error"] = err.Error()
			case !hs.Healthy:
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			default:
				body["provider_latency_ms"] = hs.Latency.Milliseconds()
			}
		}
		writeJSON(w, status, body)
	}
}

type feedbackRequest struct {
	Turn    int    `json:"turn"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func feedbackHandler(guard *SessionGuard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != guard.ID() {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed body")
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			writeJSONError(w, http.StatusBadRequest, "rating must be 1..5")
			return
		}
		if err := guard.RateUtterance(req.Turn, req.Rating, req.Comment); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Info("feedback recorded",
			zap.Int("turn", req.Turn),
			zap.Int("rating", req.Rating))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

func historyHandler(guard *SessionGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != guard.ID() {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": guard.ID(),
			"history":    guard.History(),
		})
	}
}

func statsHandler(guard *SessionGuard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != guard.ID() {
			writeJSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": guard.ID(),
			"stats":      guard.Stats(),
			"snapshot":   guard.Snapshot(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
