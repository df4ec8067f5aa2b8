package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"kino/internal/httpkit"
	"kino/internal/pkg/errors"
	"kino/internal/videos"
)

type videoReadyRequest struct {
	VideoID      string  `json:"video_id"`
	Status       string  `json:"status"`
	ResultURL    string  `json:"result_url,omitempty"`
	DurationSecs float64 `json:"duration_secs,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// VideoReady receives the rendering service's out-of-band completion
// notification. It applies the same finalize transition as the worker, so
// a duplicate delivery or a race against the worker is a safe no-op. A
// webhook log entry is appended even when nothing changed.
func (h *Handler) VideoReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req videoReadyRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	req.VideoID = strings.TrimSpace(req.VideoID)
	if req.VideoID == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "video_id is required", map[string]any{"field": "video_id"})
		return
	}

	status := videos.Status(req.Status)
	if status != videos.StatusCompleted && status != videos.StatusFailed {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "status must be completed or failed", map[string]any{"field": "status"})
		return
	}
	if status == videos.StatusCompleted && strings.TrimSpace(req.ResultURL) == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "result_url is required for completed", map[string]any{"field": "result_url"})
		return
	}

	log = log.WithVideoID(req.VideoID)

	if _, err := h.store.Get(ctx, req.VideoID); err != nil {
		if errors.IsNotFound(err) {
			// Unknown id is a warning, not a failure of the receiver.
			log.Warn("webhook for unknown video")
			httpkit.WriteErr(w, 404, "VIDEO_NOT_FOUND", "video not found", map[string]any{"video_id": req.VideoID})
			return
		}
		httpkit.WriteError(w, err)
		return
	}

	// Receipt is recorded unconditionally, duplicates included.
	_ = h.store.AppendLog(ctx, req.VideoID, videos.StageWebhook, videos.LevelInfo,
		fmt.Sprintf("webhook received: status=%s", status))

	var (
		applied bool
		err     error
	)
	switch status {
	case videos.StatusCompleted:
		applied, err = videos.Complete(ctx, h.store, req.VideoID, strings.TrimSpace(req.ResultURL), req.DurationSecs)
	case videos.StatusFailed:
		msg := strings.TrimSpace(req.ErrorMessage)
		if msg == "" {
			msg = "rendering service reported failure"
		}
		applied, err = videos.Fail(ctx, h.store, req.VideoID, videos.StageFailed, msg)
	}
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	if applied {
		log.Info("video finalized via webhook", "status", string(status))
	} else {
		log.Info("webhook was a no-op, video already terminal")
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"success": true,
		"applied": applied,
	})
}
