package worker

import (
	"context"
	"fmt"
	"time"

	"kino/internal/pkg/logger"
	"kino/internal/videos"
)

const reaperInterval = time.Minute

// runReaper fails videos stuck in processing longer than staleAfter. A
// worker crash mid-render leaves the record in processing forever
// otherwise. The terminal write goes through the same CAS as everyone
// else, so a render that finishes right as the reaper fires still wins
// if its write lands first.
func runReaper(ctx context.Context, store videos.Store, staleAfter time.Duration, log *logger.Logger) {
	log = log.WithComponent("reaper")
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		reapStale(ctx, store, staleAfter, log)
	}
}

func reapStale(ctx context.Context, store videos.Store, staleAfter time.Duration, log *logger.Logger) {
	cutoff := time.Now().Add(-staleAfter)
	ids, err := store.StaleProcessing(ctx, cutoff)
	if err != nil {
		log.Warn("stale scan failed", "error", err.Error())
		return
	}

	for _, id := range ids {
		msg := fmt.Sprintf("processing stalled for more than %s, marked failed by reaper", staleAfter)
		applied, err := videos.Fail(ctx, store, id, videos.StageFailed, msg)
		if err != nil {
			log.Warn("failed to reap video", "video_id", id, "error", err.Error())
			continue
		}
		if applied {
			log.Warn("reaped stale video", "video_id", id)
		}
	}
}
