package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/metrics"
	"github.com/roniherschmann/go-linkboard/internal/token"
)

func (rt *Router) handleFront(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, frontTmpl, frontData{
		Title:      rt.cfg.Title,
		Subtitle:   rt.cfg.Subtitle,
		Background: rt.background(),
		ContactURL: rt.cfg.ContactURL,
		Links:      rt.cfg.Catalog.Links,
		Friends:    rt.cfg.Catalog.Friends,
	})
}

func (rt *Router) handleLink(w http.ResponseWriter, r *http.Request) {
	rt.redirectLink(w, r, false)
}

func (rt *Router) handleBackup(w http.ResponseWriter, r *http.Request) {
	rt.redirectLink(w, r, true)
}

func (rt *Router) redirectLink(w http.ResponseWriter, r *http.Request, backup bool) {
	id := chi.URLParam(r, "id")
	link, target, ok := rt.cfg.Catalog.Resolve(id, backup)
	if !ok {
		metrics.RedirectMisses.Inc()
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}

	kind, name := "link", link.Name
	if backup {
		kind, id, name = "backup", catalog.BackupID(id), catalog.BackupName(link.Name)
	}
	rt.track(r, kind, id, name, catalog.CategoryLink)
	http.Redirect(w, r, target, http.StatusFound)
}

func (rt *Router) handleFriend(w http.ResponseWriter, r *http.Request) {
	friend, ok := rt.cfg.Catalog.Friend(chi.URLParam(r, "id"))
	if !ok {
		metrics.RedirectMisses.Inc()
		http.Error(w, "Friend not found", http.StatusNotFound)
		return
	}
	rt.track(r, "friend", friend.ID, friend.Name, catalog.CategoryFriend)
	http.Redirect(w, r, friend.URL, http.StatusFound)
}

// track hands the click to the recorder without waiting for it.
func (rt *Router) track(r *http.Request, kind, id, name string, category catalog.Category) {
	metrics.Redirects.WithLabelValues(kind).Inc()
	rt.recorder.Submit(rt.recorder.NewClick(id, name, category, rt.clock.Now(), clientIP(r), r.UserAgent()))
}

func (rt *Router) background() string {
	if len(rt.cfg.Images) == 0 {
		return ""
	}
	return rt.cfg.Images[token.Index(len(rt.cfg.Images))]
}
