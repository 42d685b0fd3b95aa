// Package accesslog appends homepage views to a plain-text log file.
//
// Writing is best-effort: an unopenable or unwritable file is logged at debug
// level and otherwise ignored.
package accesslog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/absolutelyright/server/internal/logging"
)

const timeLayout = "2006-01-02 15:04:05"

// PageviewLog appends one line per homepage view.
type PageviewLog struct {
	path string
	now  func() time.Time
	log  *logging.Logger

	mu sync.Mutex
}

// New creates a pageview log writing to path. The file is opened per write so
// rotation by an external tool needs no signal.
func New(path string, log *logging.Logger) *PageviewLog {
	return &PageviewLog{path: path, now: time.Now, log: log.Sub("pageviews")}
}

// Path returns the file the log appends to.
func (p *PageviewLog) Path() string {
	return p.path
}

// IsHomepage reports whether a request should be recorded as a pageview.
func IsHomepage(method, path string) bool {
	return method == "GET" && (path == "/" || path == "/index.html")
}

// Line formats a single log entry.
func Line(t time.Time, path string) string {
	return fmt.Sprintf("%s - Pageview: %s\n", t.UTC().Format(timeLayout), path)
}

// Record appends a view of path. It never returns an error.
func (p *PageviewLog) Record(path string) {
	line := Line(p.now(), path)

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		p.log.Debug().Err(err).Str("file", p.path).Msg("pageview log unavailable")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		p.log.Debug().Err(err).Str("file", p.path).Msg("pageview write failed")
	}
}
