package videos

import (
	"context"
	"time"

	"kino/internal/pkg/errors"
	"kino/internal/pkg/logger"
	"kino/internal/queue"
)

// Producer creates a video record and hands a descriptor to the queue.
// It never waits on render progress; the caller gets the id back as soon
// as the descriptor is durably queued.
type Producer struct {
	store Store
	q     queue.Transport
	log   *logger.Logger
}

func NewProducer(store Store, q queue.Transport, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Producer{store: store, q: q, log: log.WithComponent("producer")}
}

// DispatchParams describes one render request.
type DispatchParams struct {
	PromptID      string
	OwnerID       string
	Quality       string
	CorrelationID string
}

// Dispatch creates the record in queued state and enqueues exactly one
// descriptor for it. If the enqueue fails the record is flipped to failed
// rather than left queued with nothing on the queue behind it.
func (p *Producer) Dispatch(ctx context.Context, params DispatchParams) (*Video, error) {
	if params.PromptID == "" {
		return nil, errors.ValidationField("promptId", "promptId is required")
	}
	if params.OwnerID == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing caller identity")
	}

	owner, err := p.store.PromptOwner(ctx, params.PromptID)
	if err != nil {
		return nil, err
	}
	// Un prompt ajeno se trata como inexistente: no filtrar existencia.
	if owner != params.OwnerID {
		return nil, errors.NotFound("prompt", params.PromptID)
	}

	v := &Video{
		PromptID: params.PromptID,
		Quality:  params.Quality,
		Status:   StatusQueued,
	}
	if err := p.store.Create(ctx, v); err != nil {
		return nil, err
	}
	v.OwnerID = params.OwnerID

	d := queue.Descriptor{
		VideoID:       v.ID,
		OwnerID:       params.OwnerID,
		CorrelationID: params.CorrelationID,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := p.q.Enqueue(ctx, d); err != nil {
		// No dejar el registro queued sin descriptor: marcarlo failed.
		msg := "queue unavailable: " + err.Error()
		if _, failErr := Fail(ctx, p.store, v.ID, StageFailed, msg); failErr != nil {
			p.log.Error("failed to mark video failed after enqueue error",
				"video_id", v.ID,
				"error", failErr.Error(),
			)
		}
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "producer.enqueue", "failed to enqueue video")
	}

	p.log.Info("video dispatched",
		"video_id", v.ID,
		"prompt_id", params.PromptID,
	)
	return v, nil
}
