package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"kino/internal/pkg/logger"
	"kino/internal/pkg/shutdown"
	"kino/internal/queue"
	"kino/internal/storage"
	"kino/internal/videos"
	"kino/internal/worker"
	"kino/internal/worker/renderer"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "kino-worker",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting kino worker",
		"version", "0.1.0",
	)

	dbURL := mustEnv(log, "DATABASE_URL")
	redisAddr := mustEnv(log, "REDIS_ADDR")
	rendererBaseURL := mustEnv(log, "RENDERER_HTTP_BASEURL")
	queueName := getEnv("VIDEO_QUEUE_NAME", "kino:videos")
	renderTimeout := durEnv(log, "RENDER_TIMEOUT", renderer.DefaultTimeout)
	staleAfter := durEnv(log, "STALE_PROCESSING_AFTER", 30*time.Minute)
	async := getEnv("RENDERER_ASYNC", "false") == "true"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	deps := worker.Deps{
		Store:         videos.NewPGStore(pool),
		Queue:         queue.NewRedisQueue(rdb, queueName),
		Renderer:      renderer.NewHTTPClient(rendererBaseURL, renderTimeout),
		SP:            sp,
		Log:           log,
		Async:         async,
		RenderTimeout: renderTimeout,
		StaleAfter:    staleAfter,
	}

	go func() {
		if err := worker.Run(ctx, deps); err != nil && err != context.Canceled {
			log.Error("worker loop stopped", "error", err.Error())
		}
	}()

	shutdownMgr.Register("worker-loop", func(ctx context.Context) error {
		cancel()
		return nil
	})

	shutdownMgr.WaitWithContext(ctx)
}

func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}

func mustEnv(log *logger.Logger, key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Error("missing required environment variable", "key", key)
		os.Exit(1)
	}
	return v
}

func durEnv(log *logger.Logger, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("invalid duration, using default", "key", key, "value", v)
		return def
	}
	return d
}
