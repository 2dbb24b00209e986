package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"github.com/roniherschmann/go-linkboard/internal/core"
	"github.com/roniherschmann/go-linkboard/internal/metrics"
)

func (rt *Router) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if !rt.sessions.valid(r) {
		rt.renderLogin(w, http.StatusOK, "")
		return
	}

	sum, err := rt.reporter.Summarize(r.Context(), r.URL.Query().Get("d"), rt.cfg.Catalog.Entries())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("dashboard summary")
		http.Error(w, "DB Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	render(w, http.StatusOK, dashboardTmpl, dashboardData{
		Title:      rt.cfg.Title,
		Background: rt.background(),
		LinkCount:  len(rt.cfg.Catalog.Links),
		Summary:    sum,
	})
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	peer := rt.peerIP(r)
	if !rt.limiter.Allow(peer) {
		metrics.LoginAttempts.WithLabelValues("limited").Inc()
		http.Error(w, "too many attempts", http.StatusTooManyRequests)
		return
	}
	if !rt.sessions.enabled() {
		metrics.LoginAttempts.WithLabelValues("disabled").Inc()
		rt.renderLogin(w, http.StatusForbidden, "Admin password is not configured")
		return
	}
	if !rt.sessions.checkPassword(r.PostFormValue("password")) {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		hlog.FromRequest(r).Warn().Str("ip", peer).Msg("admin login rejected")
		rt.renderLogin(w, http.StatusUnauthorized, "Wrong password")
		return
	}

	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	rt.limiter.Reset(peer)
	rt.sessions.issue(w)
	http.Redirect(w, r, "/admin", http.StatusFound)
}

func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	rt.sessions.clear(w)
	http.Redirect(w, r, "/admin", http.StatusFound)
}

func (rt *Router) renderLogin(w http.ResponseWriter, status int, msg string) {
	render(w, status, loginTmpl, loginData{
		Title:      rt.cfg.Title,
		Background: rt.background(),
		Message:    msg,
	})
}

func (rt *Router) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	events, err := rt.reporter.RecentEvents(r.Context(), q.Get("id"), q.Get("d"), limit)
	if err != nil {
		msg := "Log Error"
		if errors.Is(err, core.ErrNoStore) {
			msg = "DB Error"
		}
		hlog.FromRequest(r).Error().Err(err).Str("id", q.Get("id")).Msg("recent events")
		writeJSON(w, errorResp{Error: msg}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, events, http.StatusOK)
}

func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.reporter.Summarize(r.Context(), r.URL.Query().Get("d"), rt.cfg.Catalog.Entries())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("summary")
		writeJSON(w, errorResp{Error: "DB Error"}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, sum, http.StatusOK)
}
