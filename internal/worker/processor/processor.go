package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"time"

	"kino/internal/pkg/errors"
	"kino/internal/pkg/logger"
	"kino/internal/ports"
	"kino/internal/queue"
	"kino/internal/videos"
	"kino/internal/worker/renderer"
)

type Deps struct {
	Store    videos.Store
	Renderer renderer.Client
	SP       ports.StorageProvider
	Log      *logger.Logger

	// Async hands rendering to the service and lets the webhook finalize.
	Async bool
	// RenderTimeout is only used to word timeout errors; the bound itself
	// lives in the renderer client.
	RenderTimeout time.Duration
}

// Processor drives one job from descriptor to terminal state.
type Processor struct {
	store    videos.Store
	renderer renderer.Client
	sp       ports.StorageProvider
	log      *logger.Logger
	async    bool
	timeout  time.Duration
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	timeout := d.RenderTimeout
	if timeout <= 0 {
		timeout = renderer.DefaultTimeout
	}
	return &Processor{
		store:    d.Store,
		renderer: d.Renderer,
		sp:       d.SP,
		log:      log.WithComponent("processor"),
		async:    d.Async,
		timeout:  timeout,
	}
}

// Process ejecuta el flujo completo de un descriptor. El estado actual del
// registro manda: el descriptor solo aporta el id.
func (p *Processor) Process(ctx context.Context, d *queue.Descriptor) error {
	log := p.log.FromContext(ctx).WithVideoID(d.VideoID)

	v, err := p.store.Get(ctx, d.VideoID)
	if err != nil {
		if errors.IsNotFound(err) {
			// Descriptor huérfano: no hay registro que reconciliar.
			log.Warn("descriptor references unknown video, dropping")
			return nil
		}
		return err
	}

	// Idempotence guard: duplicate delivery, or the webhook finalized it
	// already. Skip without side effects.
	if v.Status != videos.StatusQueued {
		log.Info("skipping video, not in queued state", "status", string(v.Status))
		return nil
	}

	applied, err := p.store.MarkProcessing(ctx, v.ID)
	if err != nil {
		return err
	}
	if !applied {
		// Another worker won the queued->processing transition.
		log.Info("skipping video, claimed by another worker")
		return nil
	}

	_ = p.store.AppendLog(ctx, v.ID, videos.StageRender, videos.LevelInfo, "render started")

	script, err := p.store.Script(ctx, v.ID)
	if err != nil {
		return p.failJob(ctx, v.ID, videos.StageRender, errors.Wrap(err, "processor.script", "failed to load render script"))
	}

	req := renderer.ExecuteRequest{
		VideoID: v.ID,
		Script:  script,
		Quality: v.Quality,
	}

	if p.async {
		if err := p.renderer.ExecuteAsync(ctx, req); err != nil {
			return p.failJob(ctx, v.ID, videos.StageRender, errors.Wrap(err, "processor.render", "async render dispatch failed"))
		}
		log.Info("render dispatched, awaiting webhook")
		return nil
	}

	log.Info("calling renderer", "script_bytes", len(script))
	res, err := p.renderer.Execute(ctx, req)
	if err != nil {
		if isTimeout(err) {
			return p.failJob(ctx, v.ID, videos.StageRender,
				errors.WrapWithCode(err, errors.CodeTimeout, "processor.render",
					fmt.Sprintf("render timed out after %s", p.timeout)))
		}
		return p.failJob(ctx, v.ID, videos.StageRender, errors.Wrap(err, "processor.render", "render call failed"))
	}

	// Temp files go away on every path once the render returned.
	if res.TempDir != "" {
		defer func() {
			if rmErr := os.RemoveAll(res.TempDir); rmErr != nil {
				log.Warn("temp dir cleanup failed", "dir", res.TempDir, "error", rmErr.Error())
			}
		}()
	}

	if !res.Success {
		detail := res.Error
		if detail == "" {
			detail = "renderer reported failure without detail"
		}
		return p.failJob(ctx, v.ID, videos.StageRender, errors.New(errors.CodeInternal, "render failed: "+detail))
	}

	if res.ArtifactPath == "" {
		return p.failJob(ctx, v.ID, videos.StageRender, errors.New(errors.CodeInternal, "render succeeded but no artifact path returned"))
	}
	if _, statErr := os.Stat(res.ArtifactPath); statErr != nil {
		return p.failJob(ctx, v.ID, videos.StageRender, errors.Wrap(statErr, "processor.render", "artifact file not found"))
	}

	resultURL, err := p.upload(ctx, v.ID, res.ArtifactPath)
	if err != nil {
		// Distinct failure mode: the render worked, the upload did not.
		return p.failJob(ctx, v.ID, videos.StageUpload, errors.Wrap(err, "processor.upload", "artifact upload failed"))
	}
	_ = p.store.AppendLog(ctx, v.ID, videos.StageUpload, videos.LevelInfo, "artifact uploaded: "+resultURL)

	done, err := videos.Complete(ctx, p.store, v.ID, resultURL, res.DurationSecs)
	if err != nil {
		return err
	}
	if !done {
		log.Info("video already finalized by another writer")
	}
	return nil
}

func (p *Processor) upload(ctx context.Context, videoID, artifactPath string) (string, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   "videos/" + videoID + ".mp4",
		ContentType: "video/mp4",
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("storage provider %s returned no url", p.sp.Provider())
	}
	return out.URL, nil
}

// failJob records the terminal failed state and returns the cause so the
// run loop can log it. The CAS inside Fail keeps racing finalizers safe.
func (p *Processor) failJob(ctx context.Context, videoID, stage string, cause error) error {
	log := p.log.FromContext(ctx).WithVideoID(videoID)

	msg := cause.Error()
	applied, err := videos.Fail(ctx, p.store, videoID, stage, msg)
	if err != nil {
		log.Error("failed to record job failure", "error", err.Error())
		return cause
	}
	if !applied {
		log.Info("failure not recorded, video already terminal")
	}

	var kerr *errors.Error
	if errors.As(cause, &kerr) {
		log.Error("job failed",
			"code", string(kerr.Code),
			"op", kerr.Op,
			"stage", stage,
		)
	} else {
		log.Error("job failed", "stage", stage, "error", msg)
	}
	return cause
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}
