package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/go-linkboard/internal/clock"
	"github.com/roniherschmann/go-linkboard/internal/config"
	"github.com/roniherschmann/go-linkboard/internal/core"
	"github.com/roniherschmann/go-linkboard/internal/metrics"
)

// Pinger reports store availability for /readyz. It is nil when no store is
// configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	cfg      config.Config
	clock    clock.Clock
	store    Pinger
	recorder *core.Recorder
	reporter *core.Reporter
	limiter  *rateLimiter
	sessions sessions
}

func NewRouter(cfg config.Config, clk clock.Clock, st Pinger, rec *core.Recorder, rep *core.Reporter) http.Handler {
	r := chi.NewRouter()
	// Logging middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeader {
		r.Use(middleware.RealIP)
	}
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	api := &Router{
		cfg:      cfg,
		clock:    clk,
		store:    st,
		recorder: rec,
		reporter: rep,
		limiter:  newRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst),
		sessions: sessions{
			secret: cfg.AdminPassword,
			maxAge: time.Duration(cfg.SessionMaxAgeDays) * 24 * time.Hour,
			secure: cfg.SecureCookie,
			now:    clk.Now,
		},
	}

	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)

	// Metrics
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	// Homepage and tracked redirects
	r.MethodFunc(http.MethodGet, "/", api.handleFront)
	r.MethodFunc(http.MethodGet, "/go/{id}", api.handleLink)
	r.MethodFunc(http.MethodGet, "/go/{id}/backup", api.handleBackup)
	r.MethodFunc(http.MethodGet, "/fgo/{id}", api.handleFriend)

	// Admin
	r.MethodFunc(http.MethodGet, "/admin", api.handleAdmin)
	r.MethodFunc(http.MethodPost, "/admin", api.handleLogin)
	r.MethodFunc(http.MethodGet, "/admin/logout", api.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(api.requireSession)
		r.MethodFunc(http.MethodGet, "/admin/api/logs", api.handleLogs)
		r.MethodFunc(http.MethodGet, "/admin/api/summary", api.handleSummary)
	})

	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if rt.store == nil {
		http.Error(w, "store not configured", http.StatusServiceUnavailable)
		return
	}
	if err := rt.store.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// peerIP keys the login limiter. Forwarded headers are client controlled, so
// they only count when a trusted proxy sets them.
func (rt *Router) peerIP(r *http.Request) string {
	if rt.cfg.TrustProxyHeader {
		return clientIP(r)
	}
	return remoteHost(r)
}

// clientIP is the visitor address stored with each click.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	// Try X-Forwarded-For or Real-IP next
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
