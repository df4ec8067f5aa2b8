package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"kino/internal/httpkit"
	"kino/internal/queue"
	"kino/internal/videos"
	"kino/internal/videos/videotest"
)

type fakeTransport struct {
	enqueued   []queue.Descriptor
	enqueueErr error
}

func (f *fakeTransport) Enqueue(ctx context.Context, d queue.Descriptor) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, d)
	return nil
}

func (f *fakeTransport) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Descriptor, error) {
	return nil, nil
}

func newTestRouter(s *videotest.Store, q queue.Transport) *chi.Mux {
	h := New(Deps{
		Store:    s,
		Producer: videos.NewProducer(s, q, nil),
	})
	r := chi.NewRouter()
	r.Post("/videos", h.PostVideo)
	r.Get("/videos", h.ListVideos)
	r.Get("/videos/{videoId}/status", h.GetVideoStatus)
	r.Post("/webhooks/video-ready", h.VideoReady)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(CallerHeader, user)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpkit.ErrorEnvelope {
	t.Helper()
	var env httpkit.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid error envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestPostVideoRequiresIdentity(t *testing.T) {
	r := newTestRouter(videotest.NewStore(), &fakeTransport{})

	rec := doJSON(t, r, http.MethodPost, "/videos", "", `{"prompt_id":"p1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decodeErr(t, rec); env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("unexpected code %s", env.Error.Code)
	}
}

func TestPostVideoValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing prompt_id", `{}`},
		{"blank prompt_id", `{"prompt_id":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(videotest.NewStore(), &fakeTransport{})
			rec := doJSON(t, r, http.MethodPost, "/videos", "user_1", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPostVideoQueuesRender(t *testing.T) {
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "class Scene: pass")
	q := &fakeTransport{}
	r := newTestRouter(s, q)

	rec := doJSON(t, r, http.MethodPost, "/videos", "user_1", `{"prompt_id":"p1","quality":"high"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Video struct {
			ID       string `json:"id"`
			PromptID string `json:"prompt_id"`
			Status   string `json:"status"`
		} `json:"video"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Video.ID == "" || resp.Video.Status != "queued" || resp.Video.PromptID != "p1" {
		t.Errorf("unexpected response %+v", resp.Video)
	}

	if len(q.enqueued) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(q.enqueued))
	}
	if q.enqueued[0].VideoID != resp.Video.ID || q.enqueued[0].OwnerID != "user_1" {
		t.Errorf("unexpected descriptor %+v", q.enqueued[0])
	}
}

func TestPostVideoForeignPromptIs404(t *testing.T) {
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")
	q := &fakeTransport{}
	r := newTestRouter(s, q)

	rec := doJSON(t, r, http.MethodPost, "/videos", "user_2", `{"prompt_id":"p1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(q.enqueued) != 0 {
		t.Errorf("expected no descriptor for rejected request")
	}
	if len(s.Videos) != 0 {
		t.Errorf("expected no record for rejected request")
	}
}

func TestGetVideoStatus(t *testing.T) {
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")
	s.Seed(&videos.Video{
		ID:        "vid_1",
		PromptID:  "p1",
		Status:    videos.StatusCompleted,
		ResultURL: "https://cdn.example/videos/vid_1.mp4",
	})
	s.AppendLog(context.Background(), "vid_1", videos.StageRender, videos.LevelInfo, "render started")
	r := newTestRouter(s, &fakeTransport{})

	rec := doJSON(t, r, http.MethodGet, "/videos/vid_1/status", "user_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		VideoID   string                 `json:"video_id"`
		Status    string                 `json:"status"`
		ResultURL string                 `json:"result_url"`
		Logs      []videos.ProcessingLog `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoID != "vid_1" || resp.Status != "completed" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.ResultURL == "" {
		t.Error("expected result_url for completed video")
	}
	if len(resp.Logs) != 1 || resp.Logs[0].Stage != videos.StageRender {
		t.Errorf("unexpected logs %+v", resp.Logs)
	}
}

func TestGetVideoStatusOwnershipIsolation(t *testing.T) {
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")
	s.Seed(&videos.Video{ID: "vid_1", PromptID: "p1", Status: videos.StatusQueued})
	r := newTestRouter(s, &fakeTransport{})

	// Non-owner and unknown id must be indistinguishable.
	for _, path := range []string{"/videos/vid_1/status", "/videos/vid_ghost/status"} {
		rec := doJSON(t, r, http.MethodGet, path, "user_2", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if env := decodeErr(t, rec); env.Error.Code != "VIDEO_NOT_FOUND" {
			t.Errorf("%s: unexpected code %s", path, env.Error.Code)
		}
	}
}

func TestGetVideoStatusRequiresIdentity(t *testing.T) {
	r := newTestRouter(videotest.NewStore(), &fakeTransport{})
	rec := doJSON(t, r, http.MethodGet, "/videos/vid_1/status", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListVideosOnlyOwn(t *testing.T) {
	s := videotest.NewStore()
	s.AddPrompt("p1", "user_1", "code")
	s.AddPrompt("p2", "user_2", "code")
	s.Seed(&videos.Video{ID: "vid_1", PromptID: "p1", Status: videos.StatusQueued})
	s.Seed(&videos.Video{ID: "vid_2", PromptID: "p2", Status: videos.StatusQueued})
	r := newTestRouter(s, &fakeTransport{})

	rec := doJSON(t, r, http.MethodGet, "/videos", "user_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Videos []struct {
			ID string `json:"id"`
		} `json:"videos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].ID != "vid_1" {
		t.Errorf("unexpected listing %+v", resp.Videos)
	}
}
