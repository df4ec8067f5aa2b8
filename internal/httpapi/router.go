package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"kino/internal/httpapi/handlers"
	"kino/internal/httpkit"
	"kino/internal/pkg/logger"
	"kino/internal/pkg/middleware"
	"kino/internal/ports"
	"kino/internal/videos"
)

type Deps struct {
	Store    videos.Store
	Producer *videos.Producer
	Pool     *pgxpool.Pool
	RDB      *redis.Client
	SP       ports.StorageProvider
	Log      *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", handlers.CallerHeader},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Store:    d.Store,
		Producer: d.Producer,
		Pool:     d.Pool,
		RDB:      d.RDB,
		SP:       d.SP,
		Log:      log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- VIDEOS ----
	r.Post("/videos", h.PostVideo)
	r.Get("/videos", h.ListVideos)
	r.Get("/videos/{videoId}/status", h.GetVideoStatus)

	// ---- WEBHOOKS ----
	r.Post("/webhooks/video-ready", h.VideoReady)

	// localfs dev mode: serve rendered artifacts directly.
	if os.Getenv("STORAGE_PROVIDER") == "" || os.Getenv("STORAGE_PROVIDER") == "localfs" {
		if root := os.Getenv("STORAGE_LOCAL_ROOT"); root != "" {
			fs := http.StripPrefix("/media/", http.FileServer(http.Dir(root)))
			r.Get("/media/*", fs.ServeHTTP)
		}
	}

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
