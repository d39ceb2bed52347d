// Package server exposes chat, document and lead intake endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"case-rag/internal/chat"
	"case-rag/internal/ingest"
	"case-rag/internal/models"
)

type Asker interface {
	Ask(ctx context.Context, req chat.AskRequest) (*models.PromptResponse, error)
}

type Ingester interface {
	Ingest(ctx context.Context, up ingest.Upload) (models.DocumentRef, error)
	Delete(ctx context.Context, id string) (models.DocumentRef, error)
}

type DocumentLister interface {
	ListDocuments(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.DocumentRef, error)
}

type LeadStore interface {
	SaveLead(ctx context.Context, lead models.Lead) error
}

// Limiter decides whether a client may submit another lead.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Deps are the services behind the routes. Leads is optional; without it the
// lead endpoint answers 503.
type Deps struct {
	Chat           Asker
	Ingest         Ingester
	Documents      DocumentLister
	Leads          LeadStore
	Limiter        Limiter
	ListLimit      int
	MaxUploadBytes int64
	// TrustedProxies are peers whose X-Forwarded-For is used for the client IP.
	TrustedProxies []netip.Prefix
}

type Server struct {
	router chi.Router
	deps   Deps
	now    func() time.Time
}

func New(deps Deps) *Server {
	if deps.ListLimit <= 0 {
		deps.ListLimit = 200
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 25 << 20
	}
	s := &Server{router: chi.NewRouter(), deps: deps, now: time.Now}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/cases/{caseID}/chat", s.handleChat(models.ScopeCase, "caseID"))
		r.Get("/cases/{caseID}/documents", s.handleListDocuments)
		r.Post("/cases/{caseID}/documents", s.handleUpload)
		r.Post("/documents/{documentID}/chat", s.handleChat(models.ScopeDocument, "documentID"))
		r.Delete("/documents/{documentID}", s.handleDeleteDocument)
		r.Post("/leads", s.handleCreateLead)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("dur", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// clientIP is the socket peer unless that peer is a trusted proxy, in which
// case X-Forwarded-For is walked right to left to the first untrusted hop.
func (s *Server) clientIP(r *http.Request) string {
	peer := remoteAddr(r.RemoteAddr)
	if !peer.IsValid() {
		return r.RemoteAddr
	}
	if !s.trusted(peer) {
		return peer.String()
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		addr = addr.Unmap()
		if !s.trusted(addr) {
			return addr.String()
		}
		peer = addr
	}
	return peer.String()
}

func (s *Server) trusted(addr netip.Addr) bool {
	for _, p := range s.deps.TrustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteAddr(raw string) netip.Addr {
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap()
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
