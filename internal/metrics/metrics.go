package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Redirects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redirect_requests_total",
		Help: "Redirect requests by route kind (link, backup, friend).",
	}, []string{"kind"})
	RedirectMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_not_found_total",
		Help: "Redirect requests for unknown identifiers.",
	})
	ClicksRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_recorded_total",
		Help: "Clicks processed by the recorder.",
	})
	ClicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clicks_dropped_total",
		Help: "Clicks dropped due to full buffer.",
	})
	RecordFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "click_record_failures_total",
		Help: "Click recording failures by stage (log, counter).",
	}, []string{"stage"})
	ReportQueryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_query_failures_total",
		Help: "Dashboard report queries that failed and were degraded to empty.",
	}, []string{"query"})
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_login_attempts_total",
		Help: "Admin login attempts by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(Redirects, RedirectMisses, ClicksRecorded, ClicksDropped,
		RecordFailures, ReportQueryFailures, LoginAttempts)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
