package worker

import (
	"time"

	"kino/internal/pkg/logger"
	"kino/internal/ports"
	"kino/internal/queue"
	"kino/internal/videos"
	"kino/internal/worker/renderer"
)

type Deps struct {
	Store    videos.Store
	Queue    queue.Transport
	Renderer renderer.Client
	SP       ports.StorageProvider
	Log      *logger.Logger

	// Async: dispatch via /execute-async and let the webhook finalize.
	Async bool
	// DequeueTimeout bounds each BRPOP wait. Defaults to 30s.
	DequeueTimeout time.Duration
	// RenderTimeout is the bound configured on the renderer client,
	// used here only for error wording.
	RenderTimeout time.Duration
	// StaleAfter is how long a video may sit in processing before the
	// reaper fails it. Zero disables the reaper.
	StaleAfter time.Duration
}
