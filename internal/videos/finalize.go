package videos

import (
	"context"
)

// Complete applies the terminal completed transition plus its log entry.
// It is the single finalize path shared by the worker, the webhook receiver
// and anything else that learns a render finished. Returns false when the
// record was already terminal — the caller's write is then a no-op.
func Complete(ctx context.Context, s Store, id, resultURL string, durationSecs float64) (bool, error) {
	applied, err := s.SetCompleted(ctx, id, resultURL, durationSecs)
	if err != nil {
		return false, err
	}
	if applied {
		_ = s.AppendLog(ctx, id, StageCompleted, LevelInfo, "video ready: "+resultURL)
	}
	return applied, nil
}

// Fail applies the terminal failed transition. stage records where the
// failure happened (render, upload, ...) so the distinct failure modes stay
// diagnosable in the log trail.
func Fail(ctx context.Context, s Store, id, stage, message string) (bool, error) {
	applied, err := s.SetFailed(ctx, id, message)
	if err != nil {
		return false, err
	}
	if applied {
		_ = s.AppendLog(ctx, id, stage, LevelError, message)
	}
	return applied, nil
}
