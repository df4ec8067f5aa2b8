package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kino/internal/httpkit"
	"kino/internal/pkg/errors"
	"kino/internal/videos"
)

type CreateVideoRequest struct {
	PromptID      string `json:"prompt_id"`
	Quality       string `json:"quality,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// PostVideo queues a render for a prompt the caller owns. The response
// returns as soon as the descriptor is on the queue; clients poll the
// status endpoint for progress.
func (h *Handler) PostVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := callerID(r)
	if user == "" {
		httpkit.WriteErr(w, 401, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	var req CreateVideoRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if strings.TrimSpace(req.PromptID) == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "prompt_id is required", map[string]any{"field": "prompt_id"})
		return
	}

	v, err := h.producer.Dispatch(ctx, videos.DispatchParams{
		PromptID:      strings.TrimSpace(req.PromptID),
		OwnerID:       user,
		Quality:       strings.TrimSpace(req.Quality),
		CorrelationID: strings.TrimSpace(req.CorrelationID),
	})
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{
		"video": map[string]any{
			"id":         v.ID,
			"prompt_id":  v.PromptID,
			"status":     v.Status,
			"created_at": v.CreatedAt,
		},
	})
}

// GetVideoStatus is the polling endpoint. Non-owners get 404, same as a
// missing record, so existence never leaks.
func (h *Handler) GetVideoStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "videoId")

	user := callerID(r)
	if user == "" {
		httpkit.WriteErr(w, 401, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	v, err := h.store.Get(ctx, videoID)
	if err != nil {
		if errors.IsNotFound(err) {
			httpkit.WriteErr(w, 404, "VIDEO_NOT_FOUND", "video not found", map[string]any{"video_id": videoID})
			return
		}
		httpkit.WriteError(w, err)
		return
	}
	if v.OwnerID != user {
		httpkit.WriteErr(w, 404, "VIDEO_NOT_FOUND", "video not found", map[string]any{"video_id": videoID})
		return
	}

	logs, err := h.store.Logs(ctx, videoID)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	resp := map[string]any{
		"video_id":   v.ID,
		"status":     v.Status,
		"created_at": v.CreatedAt,
		"logs":       logs,
	}
	if v.ResultURL != "" {
		resp["result_url"] = v.ResultURL
	}
	if v.ErrorMessage != "" {
		resp["error_message"] = v.ErrorMessage
	}
	if v.DurationSecs > 0 {
		resp["duration_secs"] = v.DurationSecs
	}
	if v.ProcessingStartedAt != nil {
		resp["processing_started_at"] = v.ProcessingStartedAt
	}
	if v.ProcessingCompletedAt != nil {
		resp["processing_completed_at"] = v.ProcessingCompletedAt
	}

	httpkit.WriteJSON(w, 200, resp)
}

// ListVideos returns the caller's videos, newest first.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := callerID(r)
	if user == "" {
		httpkit.WriteErr(w, 401, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	list, err := h.store.ListByOwner(ctx, user, limit)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	type item struct {
		ID        string        `json:"id"`
		PromptID  string        `json:"prompt_id"`
		Status    videos.Status `json:"status"`
		ResultURL string        `json:"result_url,omitempty"`
		CreatedAt time.Time     `json:"created_at"`
	}

	out := make([]item, 0, len(list))
	for _, v := range list {
		out = append(out, item{
			ID:        v.ID,
			PromptID:  v.PromptID,
			Status:    v.Status,
			ResultURL: v.ResultURL,
			CreatedAt: v.CreatedAt,
		})
	}

	httpkit.WriteJSON(w, 200, map[string]any{"videos": out})
}
