package gateway

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/today", s.handleToday)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/set", s.handleSet)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.HandleFunc("/api/", handleNotFound)

	mux.Handle("/", staticHandler(s.cfg.Server.StaticDir))
}

// staticHandler serves files from dir. Directory requests resolve to their
// index.html, and /index.html itself is served in place rather than
// redirected to /.
func staticHandler(dir string) http.Handler {
	files := http.FileServer(indexOnlyFS{http.Dir(dir)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w = &staticWriter{ResponseWriter: w}
		if strings.HasSuffix(r.URL.Path, "/index.html") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimSuffix(r.URL.Path, "index.html")
			r2.URL.RawPath = ""
			files.ServeHTTP(w, r2)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// indexOnlyFS hides directories that have no index.html, so they answer
// 404 instead of a generated listing.
type indexOnlyFS struct {
	http.FileSystem
}

func (fsys indexOnlyFS) Open(name string) (http.File, error) {
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.IsDir() {
		return f, nil
	}

	index, err := fsys.FileSystem.Open(path.Join(name, "index.html"))
	if err != nil {
		f.Close()
		return nil, fs.ErrNotExist
	}
	index.Close()
	return f, nil
}

// staticWriter puts back the no-cache headers http.FileServer strips from
// error responses.
type staticWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *staticWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		setNoCache(w.Header())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *staticWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
