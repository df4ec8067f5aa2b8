package handlers

import (
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"kino/internal/pkg/logger"
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

type Handler struct {
	store    videos.Store
	producer *videos.Producer
	pool     *pgxpool.Pool
	rdb      *redis.Client
	sp       ports.StorageProvider
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store:    d.Store,
		producer: d.Producer,
		pool:     d.Pool,
		rdb:      d.RDB,
		sp:       d.SP,
		log:      log.WithComponent("httpapi"),
	}
}

// CallerHeader carries the authenticated user id, injected by the auth
// layer in front of this service.
const CallerHeader = "X-User-ID"

// callerID returns the requesting identity, or "" when unauthenticated.
func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerHeader))
}
