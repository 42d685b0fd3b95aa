package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/absolutelyright/server/internal/accesslog"
	"github.com/absolutelyright/server/internal/config"
	"github.com/absolutelyright/server/internal/hooks"
	"github.com/absolutelyright/server/internal/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const today = "2025-06-15"

type testEnv struct {
	srv       *Server
	ts        *httptest.Server
	days      *store.DayStore
	staticDir string
}

func newTestEnv(t *testing.T, secret string, opts ...ServerOption) *testEnv {
	t.Helper()

	db, err := store.Open(":memory:", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	days := store.NewDayStore(db, store.WithClock(func() time.Time { return fixedNow }))

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>counter</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := config.Defaults()
	cfg.Auth.Secret = secret
	cfg.Server.StaticDir = staticDir

	srv := New(cfg, days, testLog(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts, days: days, staticDir: staticDir}
}

func (e *testEnv) post(t *testing.T, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(e.ts.URL+"/api/set", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) getJSON(t *testing.T, path string, target any) *http.Response {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	var health HealthResponse
	resp := env.getJSON(t, "/health", &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestTodayEmpty(t *testing.T) {
	env := newTestEnv(t, "")

	var got map[string]uint64
	resp := env.getJSON(t, "/api/today", &got)
	assert.Equal(t, map[string]uint64{"total_messages": 0}, got)
	assert.Equal(t, "public, max-age=60", resp.Header.Get("Cache-Control"))
	assert.Empty(t, resp.Header.Get("Pragma"))
}

func TestSetThenToday(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.post(t, `{"day":"`+today+`","count":2,"foo":7,"bar":"nope","total_messages":9}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"ok"`, body)

	var got map[string]uint64
	env.getJSON(t, "/api/today", &got)
	assert.Equal(t, map[string]uint64{"absolutely": 2, "foo": 7, "total_messages": 9}, got)
}

func TestSetReplacesWholeRecord(t *testing.T) {
	env := newTestEnv(t, "")

	resp, _ := env.post(t, `{"day":"`+today+`","absolutely":5,"right":3,"total_messages":40}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.post(t, `{"day":"`+today+`","right":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]uint64
	env.getJSON(t, "/api/today", &got)
	assert.Equal(t, map[string]uint64{"right": 4, "total_messages": 0}, got)
}

func TestHistoryOrderedAndFlattened(t *testing.T) {
	env := newTestEnv(t, "")

	for _, body := range []string{
		`{"day":"2025-06-14","absolutely":1,"total_messages":10}`,
		`{"day":"2025-06-12","right":2}`,
		`{"day":"2025-06-13"}`,
	} {
		resp, _ := env.post(t, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var got []map[string]any
	resp := env.getJSON(t, "/api/history", &got)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))

	require.Len(t, got, 3)
	assert.Equal(t, "2025-06-12", got[0]["day"])
	assert.Equal(t, float64(2), got[0]["right"])
	assert.Equal(t, "2025-06-13", got[1]["day"])
	assert.Equal(t, float64(0), got[1]["total_messages"])
	assert.Equal(t, "2025-06-14", got[2]["day"])
	assert.Equal(t, float64(1), got[2]["absolutely"])
	assert.Equal(t, float64(10), got[2]["total_messages"])
}

func TestHistoryEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, "")

	resp, err := http.Get(env.ts.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "[]", strings.TrimSpace(readBody(t, resp)))
}

func TestSetGate(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		body   string
		want   int
	}{
		{"guarded correct", "S", `{"day":"2025-06-15","secret":"S","absolutely":1}`, http.StatusOK},
		{"guarded wrong", "S", `{"day":"2025-06-15","secret":"T","absolutely":1}`, http.StatusUnauthorized},
		{"guarded missing", "S", `{"day":"2025-06-15","absolutely":1}`, http.StatusUnauthorized},
		{"guarded non-string", "S", `{"day":"2025-06-15","secret":1,"absolutely":1}`, http.StatusUnauthorized},
		{"open with secret", "", `{"day":"2025-06-15","secret":"T","absolutely":1}`, http.StatusOK},
		{"open without secret", "", `{"day":"2025-06-15","absolutely":1}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.secret)
			resp, body := env.post(t, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)

			var got map[string]uint64
			env.getJSON(t, "/api/today", &got)
			if tt.want == http.StatusOK {
				assert.Equal(t, uint64(1), got["absolutely"])
			} else {
				assert.Contains(t, body, "Invalid secret")
				assert.NotContains(t, got, "absolutely")
			}
		})
	}
}

func TestSetSecretNeverStored(t *testing.T) {
	env := newTestEnv(t, "S")
	resp, _ := env.post(t, `{"day":"2025-06-15","secret":"S","absolutely":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	env.getJSON(t, "/api/today", &got)
	assert.NotContains(t, got, "secret")
}

func TestSetBadRequests(t *testing.T) {
	env := newTestEnv(t, "")

	for _, body := range []string{
		`not json`,
		`[1,2]`,
		`{"absolutely":1}`,
		`{"day":"15/06/2025","absolutely":1}`,
	} {
		resp, _ := env.post(t, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestSetWrongMethodIsNotFound(t *testing.T) {
	env := newTestEnv(t, "")

	resp, err := http.Get(env.ts.URL + "/api/set")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t, "")

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		body := readBody(t, resp)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "<h1>counter</h1>", body, path)
		assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"), path)
		assert.Equal(t, "no-cache", resp.Header.Get("Pragma"), path)
		assert.Equal(t, "0", resp.Header.Get("Expires"), path)
	}

	resp, err := http.Get(env.ts.URL + "/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.ts.URL + "/missing.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestStaticDirectoriesWithoutIndexAreNotListed(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.MkdirAll(filepath.Join(env.staticDir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.staticDir, "assets", "secret-draft.txt"), []byte("draft"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(env.staticDir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.staticDir, "docs", "index.html"), []byte("docs"), 0o644))

	for _, path := range []string{"/assets/", "/assets", "/assets/index.html"} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		body := readBody(t, resp)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.NotContains(t, body, "secret-draft", path)
	}

	for path, want := range map[string]string{
		"/assets/secret-draft.txt": "draft",
		"/docs/":                   "docs",
		"/docs/index.html":         "docs",
	} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		body := readBody(t, resp)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, body, path)
	}
}

func TestPageviewsLoggedForHomepage(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pageviews.log")
	env := newTestEnv(t, "", WithPageviews(accesslog.New(logPath, testLog())))

	for _, path := range []string{"/", "/app.js", "/api/today"} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.HasSuffix(string(data), " - Pageview: /\n")
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestCountsUpdatedHook(t *testing.T) {
	hm := hooks.NewManager(testLog())
	days := make(chan string, 1)
	hm.On(hooks.EventCountsUpdated, "test", func(_ context.Context, p hooks.Payload) error {
		days <- p.Data["day"].(string)
		return nil
	})
	env := newTestEnv(t, "", WithHooks(hm))

	resp, _ := env.post(t, `{"day":"2025-06-01","absolutely":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case day := <-days:
		assert.Equal(t, "2025-06-01", day)
	case <-time.After(2 * time.Second):
		t.Fatal("counts_updated not emitted")
	}
}

func dialLive(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLive(t *testing.T, conn *websocket.Conn) LiveMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestLiveFeed(t *testing.T) {
	env := newTestEnv(t, "")
	resp, _ := env.post(t, `{"day":"`+today+`","absolutely":1,"total_messages":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn := dialLive(t, env)

	snap := readLive(t, conn)
	assert.Equal(t, LiveMessageToday, snap.Type)
	assert.Equal(t, today, snap.Day)
	assert.Equal(t, map[string]uint64{"absolutely": 1, "total_messages": 3}, snap.Counts)

	require.Eventually(t, func() bool { return env.srv.live.clients.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Writes to other days are not pushed.
	resp, _ = env.post(t, `{"day":"2025-06-01","absolutely":99}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.post(t, `{"day":"`+today+`","absolutely":2,"total_messages":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The pre-connect write may still be in flight, so skip to the latest state.
	want := map[string]uint64{"absolutely": 2, "total_messages": 5}
	for i := 0; i < 3; i++ {
		update := readLive(t, conn)
		require.Equal(t, today, update.Day)
		if assert.ObjectsAreEqual(want, update.Counts) {
			return
		}
	}
	t.Fatal("live feed never delivered the latest counts")
}

func TestLiveFeedRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, "")

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/live"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServerStart(t *testing.T) {
	db, err := store.Open(":memory:", testLog())
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Defaults()
	cfg.Server.Port = 0 // let OS pick a port
	cfg.Server.Bind = "loopback"
	cfg.Server.StaticDir = t.TempDir()

	hm := hooks.NewManager(testLog())
	events := make(chan string, 2)
	for _, ev := range []string{hooks.EventServerStart, hooks.EventServerStop} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			events <- p.Event
			return nil
		})
	}

	srv := New(cfg, store.NewDayStore(db), testLog(), WithHooks(hm))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	assert.Equal(t, hooks.EventServerStart, <-events)
	assert.Equal(t, "127.0.0.1:0", srv.httpServer.Addr)
	cancel()

	assert.NoError(t, <-errCh)
	assert.Equal(t, hooks.EventServerStop, <-events)
}
