package worker

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"kino/internal/pkg/logger"
	"kino/internal/videos"
	"kino/internal/videos/videotest"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}})
}

func TestReapStale(t *testing.T) {
	ctx := context.Background()
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")

	old := time.Now().Add(-time.Hour)
	fresh := time.Now().Add(-time.Minute)

	s.Seed(&videos.Video{ID: "vid_stale", PromptID: "p1", Status: videos.StatusProcessing, ProcessingStartedAt: &old})
	s.Seed(&videos.Video{ID: "vid_fresh", PromptID: "p1", Status: videos.StatusProcessing, ProcessingStartedAt: &fresh})
	s.Seed(&videos.Video{ID: "vid_queued", PromptID: "p1", Status: videos.StatusQueued})

	reapStale(ctx, s, 30*time.Minute, newTestLogger())

	stale, _ := s.Get(ctx, "vid_stale")
	if stale.Status != videos.StatusFailed {
		t.Errorf("expected stale video to be failed, got %s", stale.Status)
	}
	if !strings.Contains(stale.ErrorMessage, "stalled") {
		t.Errorf("unexpected error message %q", stale.ErrorMessage)
	}

	logs, _ := s.Logs(ctx, "vid_stale")
	if len(logs) != 1 || logs[0].Stage != videos.StageFailed {
		t.Errorf("expected one failed-stage log, got %+v", logs)
	}

	if v, _ := s.Get(ctx, "vid_fresh"); v.Status != videos.StatusProcessing {
		t.Errorf("fresh processing video must not be reaped, got %s", v.Status)
	}
	if v, _ := s.Get(ctx, "vid_queued"); v.Status != videos.StatusQueued {
		t.Errorf("queued video must not be reaped, got %s", v.Status)
	}
}

func TestReapStaleLosesToFinishedRender(t *testing.T) {
	ctx := context.Background()
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")

	old := time.Now().Add(-time.Hour)
	s.Seed(&videos.Video{ID: "vid_1", PromptID: "p1", Status: videos.StatusProcessing, ProcessingStartedAt: &old})

	// The render finishes between the stale scan and the reaper's write.
	if _, err := videos.Complete(ctx, s, "vid_1", "https://cdn.example/v.mp4", 10); err != nil {
		t.Fatal(err)
	}

	reapStale(ctx, s, 30*time.Minute, newTestLogger())

	v, _ := s.Get(ctx, "vid_1")
	if v.Status != videos.StatusCompleted {
		t.Errorf("completed video must stay completed, got %s", v.Status)
	}
	if v.ResultURL == "" {
		t.Error("result url must survive the reaper")
	}
}
