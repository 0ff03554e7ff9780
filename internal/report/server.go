package report

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

// Server exposes pipeline artifacts over HTTP and optionally rebuilds the
// pipeline when raw source files change.
type Server struct {
	dataDir      string
	cleanedDir   string
	processedDir string
	port         int
	watch        bool
	rebuild      func(context.Context) error
	logger       *slog.Logger
}

// ServerConfig holds configuration for the artifact server.
type ServerConfig struct {
	// DataDir is watched for raw CSV changes when Watch is set.
	DataDir      string
	CleanedDir   string
	ProcessedDir string
	Port         int
	Watch        bool
	// Rebuild runs the pipeline after a watched file changes.
	Rebuild func(context.Context) error
	Logger  *slog.Logger
}

// NewServer creates an artifact server. A nil logger discards logs.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		dataDir:      cfg.DataDir,
		cleanedDir:   cfg.CleanedDir,
		processedDir: cfg.ProcessedDir,
		port:         cfg.Port,
		watch:        cfg.Watch,
		rebuild:      cfg.Rebuild,
		logger:       logger,
	}
}

// URL returns the address the server listens on.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleIndex)
	r.Handle("/cleaned/*", http.StripPrefix("/cleaned/", http.FileServer(http.Dir(s.cleanedDir))))
	r.Handle("/processed/*", http.StripPrefix("/processed/", http.FileServer(http.Dir(s.processedDir))))

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting artifact server", "addr", s.URL(), "watch", s.watch)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.rebuild != nil {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down artifact server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchFiles re-runs the pipeline when a raw CSV under the data directory
// is written or created.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.dataDir); err != nil {
		s.logger.Error("failed to watch data directory", "error", err)
		// Continue without watching rather than taking the server down
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".csv" {
				continue
			}
			// Output directories live under the data directory; rebuilding
			// on our own writes would loop forever.
			if s.isOutputPath(event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Info("source changed, rebuilding", "file", event.Name)
				if err := s.rebuild(ctx); err != nil {
					s.logger.Error("rebuild failed", "error", err)
				}
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) isOutputPath(path string) bool {
	for _, dir := range []string{s.cleanedDir, s.processedDir} {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

type artifact struct {
	Name     string
	Href     string
	Size     string
	Modified string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>salespipe artifacts</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 48rem; color: #222; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: 0.3rem 0.8rem 0.3rem 0; border-bottom: 1px solid #eee; }
.empty { color: #888; }
</style>
</head>
<body>
<h1>salespipe artifacts</h1>
{{range .Sections}}
<h2>{{.Title}}</h2>
{{if .Artifacts}}
<table>
<tr><th>File</th><th>Size</th><th>Modified</th></tr>
{{range .Artifacts}}
<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Size}}</td><td>{{.Modified}}</td></tr>
{{end}}
</table>
{{else}}
<p class="empty">no files yet</p>
{{end}}
{{end}}
</body>
</html>
`))

type indexSection struct {
	Title     string
	Artifacts []artifact
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Sections []indexSection
	}{
		Sections: []indexSection{
			{Title: "Processed", Artifacts: listArtifacts(s.processedDir, "/processed/")},
			{Title: "Cleaned", Artifacts: listArtifacts(s.cleanedDir, "/cleaned/")},
		},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

func listArtifacts(dir, prefix string) []artifact {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var artifacts []artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{
			Name:     e.Name(),
			Href:     prefix + e.Name(),
			Size:     formatSize(info.Size()),
			Modified: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
