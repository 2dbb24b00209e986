package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/clock"
	"github.com/roniherschmann/go-linkboard/internal/config"
	"github.com/roniherschmann/go-linkboard/internal/core"
	"github.com/roniherschmann/go-linkboard/internal/period"
	"github.com/roniherschmann/go-linkboard/internal/store"
)

const password = "hunter2"

var zone = period.Zone(8)

type testServer struct {
	handler http.Handler
	store   *store.SQLite
	clock   *clock.Fake
}

func testConfig() config.Config {
	return config.Config{
		AdminPassword:     password,
		Title:             "Portal",
		Images:            []string{"https://img.example/bg.jpg"},
		LoginRateRPS:      0.01,
		LoginRateBurst:    3,
		SessionMaxAgeDays: 30,
		Catalog: catalog.Catalog{
			Links: []catalog.Link{
				{ID: "vpn", Name: "VPN", URL: "https://vpn.example", BackupURL: "https://vpn-backup.example"},
				{ID: "docs", Name: "Docs", URL: "https://docs.example"},
			},
			Friends: []catalog.Friend{{ID: "pal", Name: "Pal", URL: "https://pal.example"}},
		},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func newTestServerWith(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", filepath.Join(t.TempDir(), "http.db"))
	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.NewSQLite(db)

	now, err := time.ParseInLocation(period.TimeLayout, "2024-03-02 12:00:00", zone)
	require.NoError(t, err)
	clk := clock.NewFake(now)

	rec := core.NewRecorder(s, zone, 100)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rep := core.NewReporter(s, clk, zone)
	return &testServer{handler: NewRouter(cfg, clk, s, rec, rep), store: s, clock: clk}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	rr := ts.do(loginRequest(password))
	require.Equal(t, http.StatusFound, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func loginRequest(pw string) *http.Request {
	form := url.Values{"password": {pw}}
	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (ts *testServer) waitTotal(t *testing.T, id string, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := ts.store.Counter(context.Background(), id)
		return err == nil && c.TotalClicks == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRedirects(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path     string
		status   int
		location string
		counted  string
	}{
		{path: "/go/vpn", status: http.StatusFound, location: "https://vpn.example", counted: "vpn"},
		{path: "/go/vpn/backup", status: http.StatusFound, location: "https://vpn-backup.example", counted: "vpn_backup"},
		{path: "/go/docs/backup", status: http.StatusFound, location: "https://docs.example", counted: "docs_backup"},
		{path: "/fgo/pal", status: http.StatusFound, location: "https://pal.example", counted: "pal"},
		{path: "/go/nope", status: http.StatusNotFound},
		{path: "/fgo/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("CF-Connecting-IP", "203.0.113.9")
			req.Header.Set("User-Agent", "browser/1.0")
			rr := ts.do(req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.counted == "" {
				return
			}
			assert.Equal(t, tt.location, rr.Header().Get("Location"))
			ts.waitTotal(t, tt.counted, 1)
		})
	}

	events, err := ts.store.RecentClicks(context.Background(), "vpn", "2024-03-02", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "203.0.113.9", events[0].IP)
	assert.Equal(t, "browser/1.0", events[0].UserAgent)
	assert.Equal(t, "2024-03-02 12:00:00", events[0].Time)

	c, err := ts.store.Counter(context.Background(), "vpn_backup")
	require.NoError(t, err)
	assert.Equal(t, "VPN (backup)", c.Name)

	// fallback backup traffic on docs still gets a dashboard row
	req := httptest.NewRequest(http.MethodGet, "/admin/api/summary?d=2024-03", nil)
	req.AddCookie(ts.login(t))
	rr := ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var sum core.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	var ids []string
	for _, row := range sum.Rows {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"vpn", "vpn_backup", "docs", "docs_backup", "pal"}, ids)
}

func TestFrontPage(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `href="/go/vpn"`)
	assert.Contains(t, body, `href="/go/vpn/backup"`)
	assert.NotContains(t, body, `href="/go/docs/backup"`)
	assert.Contains(t, body, `href="/fgo/pal"`)
}

func TestAdminLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sign in")

	rr = ts.do(loginRequest("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Wrong password")

	cookie := ts.login(t)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/admin?d=2024-03", nil)
	req.AddCookie(cookie)
	rr = ts.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dashboard")
	assert.Contains(t, rr.Body.String(), "2024_03")

	forged := &http.Cookie{Name: sessionCookie, Value: "abc.def"}
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(forged)
	rr = ts.do(req)
	assert.Contains(t, rr.Body.String(), "Sign in")

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/admin/logout", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	require.NotEmpty(t, rr.Result().Cookies())
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, ts.do(loginRequest("wrong")).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, ts.do(loginRequest(password)).Code)
}

func loginFrom(pw, ip string) *http.Request {
	req := loginRequest(pw)
	req.Header.Set("CF-Connecting-IP", ip)
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestLoginRateLimitIgnoresForwardedHeaders(t *testing.T) {
	ts := newTestServer(t)

	var limited int
	for i := 0; i < 20; i++ {
		if ts.do(loginFrom("wrong", fmt.Sprintf("10.0.0.%d", i))).Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 17, limited)
}

func TestLoginRateLimitTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustProxyHeader = true
	ts := newTestServerWith(t, cfg)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, ts.do(loginFrom("wrong", fmt.Sprintf("10.0.0.%d", i))).Code)
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, ts.do(loginFrom("wrong", "10.0.1.1")).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, ts.do(loginFrom(password, "10.0.1.1")).Code)
}

func TestSessionExpires(t *testing.T) {
	cfg := testConfig()
	cfg.SecureCookie = true
	ts := newTestServerWith(t, cfg)

	cookie := ts.login(t)
	assert.True(t, cookie.Secure)

	dashboard := func() string {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(cookie)
		return ts.do(req).Body.String()
	}
	assert.Contains(t, dashboard(), "Dashboard")

	ts.clock.Advance(29 * 24 * time.Hour)
	assert.Contains(t, dashboard(), "Dashboard")

	ts.clock.Advance(2 * 24 * time.Hour)
	assert.Contains(t, dashboard(), "Sign in")

	// the issued-at stamp is covered by the signature
	nonce, rest, _ := strings.Cut(cookie.Value, ".")
	_, sig, _ := strings.Cut(rest, ".")
	tampered := &http.Cookie{Name: sessionCookie, Value: fmt.Sprintf("%s.%d.%s", nonce, ts.clock.Now().Unix(), sig)}
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(tampered)
	assert.Contains(t, ts.do(req).Body.String(), "Sign in")
}

func TestAdminAPIs(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 2; i++ {
		ts.do(httptest.NewRequest(http.MethodGet, "/go/vpn", nil))
	}
	ts.waitTotal(t, "vpn", 2)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin/api/logs?id=vpn&d=2024-03-02", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	cookie := ts.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/logs?id=vpn&d=2024-03-02", nil)
	req.AddCookie(cookie)
	rr = ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "2024-03-02 12:00:00", events[0]["click_time"])
	assert.Contains(t, events[0], "ip_address")
	assert.Contains(t, events[0], "user_agent")

	req = httptest.NewRequest(http.MethodGet, "/admin/api/summary?d=2024-03", nil)
	req.AddCookie(cookie)
	rr = ts.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var sum core.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, "2024-03", sum.Period)
	assert.EqualValues(t, 2, sum.MonthTotal)
	require.Len(t, sum.Rows, 4)
	assert.Equal(t, "vpn", sum.Rows[0].ID)
	assert.EqualValues(t, 2, sum.Rows[0].PeriodCount)
	assert.InDelta(t, 100.0, sum.Rows[0].Percent, 0.001)
	assert.Equal(t, "vpn_backup", sum.Rows[1].ID)
}

func TestWithoutStore(t *testing.T) {
	clk := clock.System{}
	rec := core.NewRecorder(nil, zone, 1)
	rep := core.NewReporter(nil, clk, zone)
	ts := &testServer{handler: NewRouter(testConfig(), clk, nil, rec, rep)}

	// visitors are still redirected
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/go/vpn", nil))
	assert.Equal(t, http.StatusFound, rr.Code)

	cookie := ts.login(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusInternalServerError, ts.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/api/logs?id=vpn", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusInternalServerError, ts.do(req).Code)

	assert.Equal(t, http.StatusServiceUnavailable, ts.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestAdminDisabledWithoutPassword(t *testing.T) {
	cfg := testConfig()
	cfg.AdminPassword = ""
	clk := clock.System{}
	h := NewRouter(cfg, clk, nil, core.NewRecorder(nil, zone, 1), core.NewReporter(nil, clk, zone))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, loginRequest(""))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clicks_dropped_total")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	assert.Equal(t, "198.51.100.2", clientIP(req))

	req.Header.Set("CF-Connecting-IP", "203.0.113.4")
	assert.Equal(t, "203.0.113.4", clientIP(req))
}
