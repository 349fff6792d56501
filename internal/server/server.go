package server

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sprobst76/vibedterm-sub001/internal/auth"
	"github.com/sprobst76/vibedterm-sub001/internal/storage"
)

// Server is the sync server: a bearer-authenticated HTTP surface over a
// one-record-per-owner vault repository.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	signer *auth.JWTSigner
	repo   storage.VaultRepository
	log    *zap.Logger
	clock  func() time.Time

	rlPushIP    *multiLimiter
	rlPushOwner *multiLimiter
}

func New(cfg Config, repo storage.VaultRepository, signer *auth.JWTSigner, log *zap.Logger) *Server {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		signer: signer,
		repo:   repo,
		log:    log,
		clock:  time.Now,
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }
	s.rlPushIP = newMultiLimiter(rate.Limit(perWindow(60, time.Minute)), 60, time.Hour)
	s.rlPushOwner = newMultiLimiter(rate.Limit(perWindow(30, time.Minute)), 30, time.Hour)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/vault/status", s.handleStatus)
	s.mux.HandleFunc("/api/vault", s.handlePull)
	s.mux.HandleFunc("/api/vault/push", s.handlePush)
	s.mux.HandleFunc("/api/vault/force-overwrite", s.handleForceOverwrite)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic in handler", zap.Any("panic", rec), zap.String("path", r.URL.Path))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") && !s.isPublic(path) {
		auth.AuthRequired(s.signer)(s.mux).ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
