package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	payoutservice "solmine/contexts/mining-core/payout-service"
	sessionservice "solmine/contexts/mining-core/session-service"
	"solmine/internal/platform/ratelimit"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "solmine/internal/platform/httpserver/docs"
)

// maxBodyBytes caps request bodies; mining payloads are a wallet plus a
// point count, anything larger is abuse.
const maxBodyBytes = 1 << 10

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	mining        sessionservice.Module
	payouts       payoutservice.Module
	ipLimiter     *ratelimit.Limiter
	walletLimiter *ratelimit.Limiter
}

func New(
	mining sessionservice.Module,
	payouts payoutservice.Module,
	ipLimiter *ratelimit.Limiter,
	walletLimiter *ratelimit.Limiter,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		mining:        mining,
		payouts:       payouts,
		ipLimiter:     ipLimiter,
		walletLimiter: walletLimiter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /api/session", s.withIPLimit(s.handleSessionState))
	s.mux.HandleFunc("POST /api/session", s.withIPLimit(s.handleJoinSession))
	s.mux.HandleFunc("POST /api/mine", s.withIPLimit(s.handleSubmitPoints))
	s.mux.HandleFunc("GET /api/history", s.withIPLimit(s.handleHistory))

	s.mux.HandleFunc("POST /api/distribute", s.withIPLimit(s.handleDistribute))
	s.mux.HandleFunc("GET /api/pool", s.withIPLimit(s.handlePool))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeMiningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}
