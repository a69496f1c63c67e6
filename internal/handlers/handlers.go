package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"audiofetch/internal/config"
	"audiofetch/internal/download"
	"audiofetch/internal/models"
	"audiofetch/internal/platform"
	"audiofetch/internal/progress"
	"audiofetch/internal/registry"
	"audiofetch/internal/store"
	"audiofetch/templates"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const eventBufferSize = 64

// Downloader is the orchestrator surface the transport layer needs.
type Downloader interface {
	Submit(ctx context.Context, url string, maxSizeMB int, sink progress.Sink) (*download.Result, error)
}

type App struct {
	logger *slog.Logger

	router *chi.Mux
	orch   Downloader
	jobs   *store.Store
	conns  *registry.Registry

	downloadDir string
	staticDir   string

	upgrader websocket.Upgrader
	limiter  *rate.Limiter
}

func NewApp(logger *slog.Logger, orch Downloader, jobs *store.Store, conns *registry.Registry, cfg *config.Config) *App {
	app := &App{
		logger:      logger,
		router:      chi.NewRouter(),
		orch:        orch,
		jobs:        jobs,
		conns:       conns,
		downloadDir: cfg.DownloadDir,
		staticDir:   cfg.StaticDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(a.corsMiddleware)

	a.router.Get("/", a.index)
	a.router.Get("/healthz", a.health)
	a.router.Get("/ws/download", a.wsDownload)

	a.router.Route("/api", func(r chi.Router) {
		r.Use(a.rateLimitMiddleware)
		r.Post("/download/url", a.downloadURL)
		r.Get("/download/status/{id}", a.downloadStatus)
		r.Get("/file/{name}", a.serveFile)
		r.Delete("/cleanup", a.cleanup)
		r.Get("/platforms", a.platforms)
		r.Get("/stats", a.stats)
	})

	staticFS := http.FileServer(http.Dir(a.staticDir))
	a.router.Handle("/static/*", http.StripPrefix("/static/", staticFS))
}

// wsSink adapts a websocket connection to the progress.Sink the relay
// forwards into.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(msg any) error { return s.conn.WriteJSON(msg) }

// wsDownload is the streaming download endpoint: url and maxsize arrive as
// query parameters, progress and the terminal payload leave as a JSON
// message sequence.
func (a *App) wsDownload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	maxSize := download.DefaultMaxSizeMB
	if v := r.URL.Query().Get("maxsize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			// Unparsable limits fail request validation downstream.
			n = -1
		}
		maxSize = n
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	a.conns.Register(connID, conn)
	defer func() {
		a.conns.Unregister(connID)
		_ = conn.Close()
	}()

	relay := progress.NewRelay(eventBufferSize)
	go func() {
		defer relay.Close()
		// The extraction deliberately outlives the connection: a dropped
		// client must not cancel the job, the store stays pollable.
		_, _ = a.orch.Submit(context.Background(), rawURL, maxSize, relay)
	}()

	relay.Forward(wsSink{conn: conn})
}

// downloadURL is the plain request/response variant: same validation, no
// progress streaming, terminal payload only.
func (a *App) downloadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL     string `json:"url"`
		MaxSize int    `json:"maxsize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondJSON(w, http.StatusBadRequest, models.ErrorMessage{Error: "invalid JSON body"})
		return
	}
	if req.MaxSize == 0 {
		req.MaxSize = download.DefaultMaxSizeMB
	}

	res, err := a.orch.Submit(context.Background(), req.URL, req.MaxSize, progress.Discard{})
	if err != nil {
		var perr *download.PlatformError
		if errors.As(err, &perr) && perr.ComingSoon {
			a.respondJSON(w, http.StatusOK, models.ErrorMessage{
				Error:      perr.Error(),
				ComingSoon: true,
				Platform:   perr.Platform,
			})
			return
		}
		a.respondJSON(w, http.StatusBadRequest, models.ErrorMessage{Error: err.Error()})
		return
	}
	if res.Err != nil {
		a.respondJSON(w, http.StatusInternalServerError, models.ErrorMessage{Error: res.Err.Error()})
		return
	}

	a.respondJSON(w, http.StatusOK, models.CompletedMessage{
		Message:      "File ready",
		DownloadURL:  res.DownloadURL,
		FileSizeMB:   res.FileSizeMB,
		ThumbnailURL: res.ThumbnailURL,
	})
}

func (a *App) downloadStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		a.respondJSON(w, http.StatusNotFound, models.ErrorMessage{Error: "download task not found"})
		return
	}
	a.respondJSON(w, http.StatusOK, job)
}

// serveFile maps a bare artifact name to the download directory. Anything
// resembling a path is rejected before touching the filesystem.
func (a *App) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		a.respondJSON(w, http.StatusBadRequest, models.ErrorMessage{Error: "invalid file name"})
		return
	}

	path := filepath.Join(a.downloadDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		a.respondJSON(w, http.StatusNotFound, models.ErrorMessage{Error: "file not found"})
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// cleanup deletes every file in the download directory.
func (a *App) cleanup(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(a.downloadDir)
	if err != nil {
		a.respondJSON(w, http.StatusInternalServerError, models.ErrorMessage{Error: err.Error()})
		return
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(a.downloadDir, entry.Name())); err != nil {
			a.logger.Warn("cleanup could not remove file", "file", entry.Name(), "error", err)
			continue
		}
		deleted++
	}

	a.logger.Info("cleanup completed", "files_deleted", deleted)
	a.respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Deleted " + strconv.Itoa(deleted) + " files",
		"files_deleted": deleted,
	})
}

func (a *App) platforms(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]any{
		"supported": []map[string]any{
			{
				"name":     "YouTube",
				"domains":  platform.SupportedDomains(),
				"status":   "active",
				"features": []string{"MP3 download", "Thumbnail download", "Progress tracking"},
			},
		},
		"coming_soon": []map[string]any{
			{
				"name":     "VK Music",
				"domains":  []string{"vk.com"},
				"status":   "coming_soon",
				"features": []string{"Playlist download", "High quality audio"},
			},
			{
				"name":     "SoundCloud",
				"domains":  []string{"soundcloud.com"},
				"status":   "coming_soon",
				"features": []string{"Track download", "Playlist support"},
			},
			{
				"name":     "Spotify",
				"domains":  []string{"spotify.com"},
				"status":   "planned",
				"features": []string{"Preview download only (due to licensing)"},
			},
		},
	})
}

func (a *App) stats(w http.ResponseWriter, r *http.Request) {
	var mp3Count int
	var totalBytes int64
	if entries, err := os.ReadDir(a.downloadDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
				continue
			}
			mp3Count++
			if info, err := entry.Info(); err == nil {
				totalBytes += info.Size()
			}
		}
	}

	a.respondJSON(w, http.StatusOK, map[string]any{
		"total_downloads":       mp3Count,
		"total_size_mb":         float64(totalBytes) / (1024 * 1024),
		"active_connections":    a.conns.Count(),
		"tracked_jobs":          a.jobs.Len(),
		"supported_platforms":   len(platform.SupportedDomains()),
		"coming_soon_platforms": len(platform.ComingSoonDomains()),
	})
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	custom := filepath.Join(a.staticDir, "index.html")
	if info, err := os.Stat(custom); err == nil && !info.IsDir() {
		http.ServeFile(w, r, custom)
		return
	}
	a.render(w, r, templates.IndexPage())
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *App) render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		a.logger.Error("failed to render template", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			a.respondJSON(w, http.StatusTooManyRequests, models.ErrorMessage{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
