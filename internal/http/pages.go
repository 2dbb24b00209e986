package httpapi

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/core"
)

type frontData struct {
	Title      string
	Subtitle   string
	Background string
	ContactURL string
	Links      []catalog.Link
	Friends    []catalog.Friend
}

type loginData struct {
	Title      string
	Background string
	Message    string
}

type dashboardData struct {
	Title      string
	Background string
	LinkCount  int
	Summary    core.Summary
}

var funcs = template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"isFriend": func(c catalog.Category) bool {
		return c == catalog.CategoryFriend
	},
}

const layoutHead = `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;color:#f1f5f9;background:#0f172a center/cover fixed;min-height:100vh}
.wrap{max-width:960px;margin:0 auto;padding:24px}
.panel{background:rgba(30,41,59,.75);border:1px solid rgba(255,255,255,.15);border-radius:14px;padding:16px;margin-bottom:12px}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(220px,1fr));gap:12px}
a{color:#38bdf8;text-decoration:none}
.muted{color:#cbd5e1;font-size:.85rem}
</style></head>`

var frontTmpl = template.Must(template.New("front").Funcs(funcs).Parse(layoutHead + `
<body style="background-image:url('{{.Background}}')"><div class="wrap">
<div class="panel"><h1>{{.Title}}</h1><p class="muted">{{.Subtitle}}</p></div>
<h3>Featured</h3>
<div class="grid">{{range .Links}}
<div class="panel"><a href="/go/{{.ID}}">{{.Emoji}} <strong>{{.Name}}</strong></a><p class="muted">{{.Note}}</p>
{{if .BackupURL}}<a href="/go/{{.ID}}/backup" class="muted">backup route</a>{{end}}</div>
{{end}}</div>
<h3>Partners</h3>
<div class="grid">{{range .Friends}}<a class="panel" href="/fgo/{{.ID}}" target="_blank">{{.Name}}</a>{{end}}</div>
{{if .ContactURL}}<p><a href="{{.ContactURL}}">Contact support</a></p>{{end}}
</div></body></html>`))

var loginTmpl = template.Must(template.New("login").Funcs(funcs).Parse(layoutHead + `
<body style="background-image:url('{{.Background}}')"><div class="wrap">
<div class="panel"><h1>Sign in</h1>
<form method="POST" action="/admin">
<input type="password" name="password" required placeholder="Admin password" autofocus>
<button>Sign in</button>
</form>
{{if .Message}}<p class="muted">{{.Message}}</p>{{end}}
</div></div></body></html>`))

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(funcs).Parse(layoutHead + `
<body style="background-image:url('{{.Background}}')"><div class="wrap">
{{with .Summary}}
<div class="panel"><h1>Dashboard</h1>
<span class="muted">All time {{.HistoryTotal}}</span> · <a href="/admin/logout">Sign out</a></div>
<div class="grid">
<div class="panel"><div class="muted">Links</div><strong>{{$.LinkCount}}</strong></div>
<div class="panel"><div class="muted">Month total ({{.MonthKey}})</div><strong>{{.MonthTotal}}</strong></div>
<div class="panel"><div class="muted">Active</div><strong>{{.PeriodActive}}</strong></div>
</div>
<div class="panel">
<a href="/admin?d={{.Nav.PrevMonth}}">&laquo;</a>
<a href="/admin?d={{.Nav.PrevDay}}">&lsaquo;</a>
<strong>{{.Period}}</strong>
<a href="/admin?d={{.Nav.NextDay}}">&rsaquo;</a>
<a href="/admin?d={{.Nav.NextMonth}}">&raquo;</a>
· <a href="/admin?d={{.Nav.Today}}">Today</a>
· <a href="/admin?d={{.Nav.ThisMonth}}">This month</a>
</div>
<div class="grid">{{$sum := .}}{{range .Rows}}
<div class="panel">
<div><strong>{{.Emoji}} {{.Name}}</strong> <span class="muted">{{pct .Percent}}%</span></div>
{{if isFriend .Category}}<div>{{.PeriodCount}}</div>{{else}}
<div class="muted">All time {{.LifetimeTotal}} · Today {{.TodayCount}} · {{if $sum.DayMode}}Day{{else}}Month{{end}} {{.PeriodCount}}</div>{{end}}
<div class="muted">Last {{if .LastSeen}}{{.LastSeen}}{{else}}-{{end}} · <a href="/admin/api/logs?id={{.ID}}&d={{$sum.Period}}">records</a></div>
</div>
{{end}}</div>
{{end}}
</div></body></html>`))

func render(w http.ResponseWriter, status int, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", t.Name()).Msg("render page")
	}
}
