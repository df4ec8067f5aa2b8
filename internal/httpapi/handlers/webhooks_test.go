package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"kino/internal/videos"
	"kino/internal/videos/videotest"
)

type webhookResponse struct {
	Success bool `json:"success"`
	Applied bool `json:"applied"`
}

func postWebhook(t *testing.T, s *videotest.Store, body string) (int, webhookResponse) {
	t.Helper()
	r := newTestRouter(s, &fakeTransport{})
	rec := doJSON(t, r, http.MethodPost, "/webhooks/video-ready", "", body)

	var resp webhookResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec.Code, resp
}

func seedProcessing(s *videotest.Store, id string) {
	s.AddPrompt("p1", "user_1", "code")
	now := time.Now().UTC()
	s.Seed(&videos.Video{ID: id, PromptID: "p1", Status: videos.StatusProcessing, ProcessingStartedAt: &now})
}

func TestVideoReadyCompletes(t *testing.T) {
	s := videotest.NewStore()
	seedProcessing(s, "vid_1")

	code, resp := postWebhook(t, s,
		`{"video_id":"vid_1","status":"completed","result_url":"https://cdn.example/v.mp4","duration_secs":30}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !resp.Success || !resp.Applied {
		t.Errorf("expected applied ack, got %+v", resp)
	}

	v, _ := s.Get(context.Background(), "vid_1")
	if v.Status != videos.StatusCompleted {
		t.Errorf("expected completed, got %s", v.Status)
	}
	if v.ResultURL != "https://cdn.example/v.mp4" || v.DurationSecs != 30 {
		t.Errorf("unexpected record %+v", v)
	}

	logs, _ := s.Logs(context.Background(), "vid_1")
	hasWebhook := false
	for _, l := range logs {
		if l.Stage == videos.StageWebhook {
			hasWebhook = true
		}
	}
	if !hasWebhook {
		t.Error("expected a webhook log entry")
	}
}

func TestVideoReadyDuplicateIsNoOp(t *testing.T) {
	s := videotest.NewStore()
	seedProcessing(s, "vid_1")

	body := `{"video_id":"vid_1","status":"completed","result_url":"https://cdn.example/v.mp4"}`

	if code, resp := postWebhook(t, s, body); code != http.StatusOK || !resp.Applied {
		t.Fatalf("first delivery: code=%d resp=%+v", code, resp)
	}
	first, _ := s.Get(context.Background(), "vid_1")

	// Second delivery: still 200, but applied=false and the record is
	// untouched. The receipt itself is logged again.
	code, resp := postWebhook(t, s, body)
	if code != http.StatusOK {
		t.Fatalf("duplicate delivery: expected 200, got %d", code)
	}
	if !resp.Success || resp.Applied {
		t.Errorf("duplicate delivery: expected applied=false, got %+v", resp)
	}

	second, _ := s.Get(context.Background(), "vid_1")
	if !second.ProcessingCompletedAt.Equal(*first.ProcessingCompletedAt) {
		t.Error("completion timestamp changed on duplicate webhook")
	}

	logs, _ := s.Logs(context.Background(), "vid_1")
	webhookEntries := 0
	for _, l := range logs {
		if l.Stage == videos.StageWebhook {
			webhookEntries++
		}
	}
	if webhookEntries != 2 {
		t.Errorf("expected 2 webhook log entries, got %d", webhookEntries)
	}
}

func TestVideoReadyFailure(t *testing.T) {
	s := videotest.NewStore()
	seedProcessing(s, "vid_1")

	code, resp := postWebhook(t, s,
		`{"video_id":"vid_1","status":"failed","error_message":"renderer crashed"}`)
	if code != http.StatusOK || !resp.Applied {
		t.Fatalf("code=%d resp=%+v", code, resp)
	}

	v, _ := s.Get(context.Background(), "vid_1")
	if v.Status != videos.StatusFailed {
		t.Errorf("expected failed, got %s", v.Status)
	}
	if v.ErrorMessage != "renderer crashed" {
		t.Errorf("unexpected error message %q", v.ErrorMessage)
	}
}

func TestVideoReadyFailureDefaultMessage(t *testing.T) {
	s := videotest.NewStore()
	seedProcessing(s, "vid_1")

	code, _ := postWebhook(t, s, `{"video_id":"vid_1","status":"failed"}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	v, _ := s.Get(context.Background(), "vid_1")
	if v.ErrorMessage == "" {
		t.Error("expected a default error message")
	}
}

func TestVideoReadyUnknownVideo(t *testing.T) {
	s := videotest.NewStore()
	code, _ := postWebhook(t, s,
		`{"video_id":"vid_ghost","status":"completed","result_url":"https://cdn.example/v.mp4"}`)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestVideoReadyValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{oops`},
		{"missing video_id", `{"status":"completed","result_url":"x"}`},
		{"bad status", `{"video_id":"vid_1","status":"processing"}`},
		{"completed without url", `{"video_id":"vid_1","status":"completed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := videotest.NewStore()
			seedProcessing(s, "vid_1")
			code, _ := postWebhook(t, s, tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}
}
