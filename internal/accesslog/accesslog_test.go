package accesslog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/absolutelyright/server/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHomepage(t *testing.T) {
	tests := []struct {
		method, path string
		want         bool
	}{
		{"GET", "/", true},
		{"GET", "/index.html", true},
		{"HEAD", "/", false},
		{"POST", "/", false},
		{"GET", "/api/today", false},
		{"GET", "/app.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHomepage(tt.method, tt.path))
		})
	}
}

func TestLine(t *testing.T) {
	ts := time.Date(2024, 7, 4, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "2024-07-04 09:05:03 - Pageview: /\n", Line(ts, "/"))
}

func TestRecord_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageviews.log")
	pv := New(path, logging.New(nil, "silent"))
	pv.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	pv.Record("/")
	pv.Record("/index.html")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2024-01-02 03:04:05 - Pageview: /\n2024-01-02 03:04:05 - Pageview: /index.html\n",
		string(data))
	assert.Equal(t, path, pv.Path())
}

func TestRecord_UnwritableIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "pageviews.log")
	pv := New(path, logging.New(nil, "silent"))

	assert.NotPanics(t, func() { pv.Record("/") })
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRecord_ConcurrentLinesIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pageviews.log")
	pv := New(path, logging.New(nil, "silent"))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pv.Record("/")
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 25)
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, " - Pageview: /"), l)
	}
}
