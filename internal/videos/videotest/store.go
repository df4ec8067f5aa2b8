// Package videotest provides an in-memory videos.Store for tests.
package videotest

import (
	"context"
	"sync"
	"time"

	"kino/internal/pkg/errors"
	"kino/internal/videos"
)

// Store keeps everything in memory under one mutex. Terminal writes use
// the same check-then-write-under-lock semantics as the SQL store's
// conditional UPDATEs.
type Store struct {
	mu sync.Mutex

	Videos  map[string]*videos.Video
	Prompts map[string]string // prompt id -> owner id
	Scripts map[string]string // prompt id -> code
	LogRows map[string][]videos.ProcessingLog

	// Error injection, one-shot per call site.
	CreateErr error
	GetErr    error
}

func NewStore() *Store {
	return &Store{
		Videos:  make(map[string]*videos.Video),
		Prompts: make(map[string]string),
		Scripts: make(map[string]string),
		LogRows: make(map[string][]videos.ProcessingLog),
	}
}

// AddPrompt registers a prompt with its owner and script.
func (s *Store) AddPrompt(promptID, ownerID, script string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts[promptID] = ownerID
	s.Scripts[promptID] = script
}

// Seed inserts a video directly, bypassing Create.
func (s *Store) Seed(v *videos.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.Videos[v.ID] = &cp
}

func (s *Store) Create(ctx context.Context, v *videos.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return err
	}
	if _, ok := s.Prompts[v.PromptID]; !ok {
		return errors.NotFound("prompt", v.PromptID)
	}
	if v.ID == "" {
		v.ID = videos.NewID()
	}
	if v.Status == "" {
		v.Status = videos.StatusQueued
	}
	v.CreatedAt = time.Now().UTC()
	cp := *v
	cp.OwnerID = s.Prompts[v.PromptID]
	s.Videos[v.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*videos.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		err := s.GetErr
		s.GetErr = nil
		return nil, err
	}
	v, ok := s.Videos[id]
	if !ok {
		return nil, errors.NotFound("video", id)
	}
	cp := *v
	if cp.OwnerID == "" {
		cp.OwnerID = s.Prompts[cp.PromptID]
	}
	return &cp, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]videos.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []videos.Video
	for _, v := range s.Videos {
		owner := v.OwnerID
		if owner == "" {
			owner = s.Prompts[v.PromptID]
		}
		if owner == ownerID {
			cp := *v
			cp.OwnerID = owner
			out = append(out, cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) PromptOwner(ctx context.Context, promptID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.Prompts[promptID]
	if !ok {
		return "", errors.NotFound("prompt", promptID)
	}
	return owner, nil
}

func (s *Store) Script(ctx context.Context, videoID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Videos[videoID]
	if !ok {
		return "", errors.NotFound("video", videoID)
	}
	code, ok := s.Scripts[v.PromptID]
	if !ok {
		return "", errors.NotFound("script for video", videoID)
	}
	return code, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Videos[id]
	if !ok || v.Status != videos.StatusQueued {
		return false, nil
	}
	now := time.Now().UTC()
	v.Status = videos.StatusProcessing
	v.ProcessingStartedAt = &now
	return true, nil
}

func (s *Store) SetCompleted(ctx context.Context, id, resultURL string, durationSecs float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Videos[id]
	if !ok || v.Status.Terminal() {
		return false, nil
	}
	now := time.Now().UTC()
	v.Status = videos.StatusCompleted
	v.ResultURL = resultURL
	v.DurationSecs = durationSecs
	v.ProcessingCompletedAt = &now
	return true, nil
}

func (s *Store) SetFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Videos[id]
	if !ok || v.Status.Terminal() {
		return false, nil
	}
	now := time.Now().UTC()
	v.Status = videos.StatusFailed
	v.ErrorMessage = errorMessage
	v.ProcessingCompletedAt = &now
	return true, nil
}

func (s *Store) AppendLog(ctx context.Context, videoID, stage, level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LogRows[videoID] = append(s.LogRows[videoID], videos.ProcessingLog{
		Stage:     stage,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) Logs(ctx context.Context, videoID string) ([]videos.ProcessingLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]videos.ProcessingLog, len(s.LogRows[videoID]))
	copy(out, s.LogRows[videoID])
	return out, nil
}

func (s *Store) StaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, v := range s.Videos {
		if v.Status == videos.StatusProcessing && v.ProcessingStartedAt != nil && v.ProcessingStartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var _ videos.Store = (*Store)(nil)
