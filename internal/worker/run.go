package worker

import (
	"context"
	"time"

	"kino/internal/pkg/logger"
	"kino/internal/worker/processor"
)

// Run is the worker loop. It polls the queue with a bounded timeout and
// drives each descriptor through the processor. A failed job never stops
// the loop; its failure lands on the record and the loop moves on.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	dequeueTimeout := d.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 30 * time.Second
	}

	p := processor.New(processor.Deps{
		Store:         d.Store,
		Renderer:      d.Renderer,
		SP:            d.SP,
		Log:           log,
		Async:         d.Async,
		RenderTimeout: d.RenderTimeout,
	})

	if d.StaleAfter > 0 {
		go runReaper(ctx, d.Store, d.StaleAfter, log)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		// Bounded wait per pop; el loop vuelve a chequear ctx entre pops.
		popCtx, cancel := context.WithTimeout(ctx, dequeueTimeout+5*time.Second)
		desc, err := d.Queue.Dequeue(popCtx, dequeueTimeout)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			log.Warn("queue dequeue error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if desc == nil {
			continue
		}

		jobCtx := logger.ContextWithVideoID(ctx, desc.VideoID)
		jobLog := log.WithVideoID(desc.VideoID)

		jobLog.Info("processing video")
		startTime := time.Now()

		if err := p.Process(jobCtx, desc); err != nil {
			jobLog.Error("video processing failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			jobLog.Info("video processed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}
