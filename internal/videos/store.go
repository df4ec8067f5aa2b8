package videos

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kino/internal/httpkit"
	"kino/internal/pkg/errors"
)

// Store is the persistence contract for video records. The worker, the
// webhook receiver and the API all go through it; nobody caches record
// state across calls.
type Store interface {
	Create(ctx context.Context, v *Video) error
	Get(ctx context.Context, id string) (*Video, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Video, error)

	// PromptOwner returns the owning user of a prompt, or a not-found
	// error when the prompt does not exist.
	PromptOwner(ctx context.Context, promptID string) (string, error)

	// Script returns the rendering script attached to the video's prompt.
	Script(ctx context.Context, videoID string) (string, error)

	// MarkProcessing flips queued -> processing and stamps
	// processing_started_at. Returns false when the record was not in
	// queued state (duplicate delivery, or already finalized).
	MarkProcessing(ctx context.Context, id string) (bool, error)

	// SetCompleted and SetFailed are the only terminal writes. Both are
	// single conditional UPDATEs guarded on the record still being
	// non-terminal; they return false when another writer got there first.
	SetCompleted(ctx context.Context, id, resultURL string, durationSecs float64) (bool, error)
	SetFailed(ctx context.Context, id, errorMessage string) (bool, error)

	AppendLog(ctx context.Context, videoID, stage, level, message string) error
	Logs(ctx context.Context, videoID string) ([]ProcessingLog, error)

	// StaleProcessing lists ids stuck in processing since before cutoff.
	StaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, v *Video) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	if v.Status == "" {
		v.Status = StatusQueued
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO videos (id, prompt_id, status, quality)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, v.ID, v.PromptID, v.Status, nullIfEmpty(v.Quality)).Scan(&v.CreatedAt)
	if err != nil {
		if httpkit.IsForeignKeyViolation(err) {
			return errors.NotFound("prompt", v.PromptID)
		}
		return errors.Wrap(err, "videos.create", "failed to insert video")
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Video, error) {
	var (
		v       Video
		quality *string
		result  *string
		errMsg  *string
		dur     *float64
	)
	err := s.db.QueryRow(ctx, `
		SELECT v.id, v.prompt_id, p.user_id, v.status, v.quality,
		       v.result_url, v.error_message, v.duration_secs,
		       v.created_at, v.processing_started_at, v.processing_completed_at
		FROM videos v
		JOIN prompts p ON p.id = v.prompt_id
		WHERE v.id=$1
	`, id).Scan(
		&v.ID, &v.PromptID, &v.OwnerID, &v.Status, &quality,
		&result, &errMsg, &dur,
		&v.CreatedAt, &v.ProcessingStartedAt, &v.ProcessingCompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("video", id)
		}
		return nil, errors.Wrap(err, "videos.get", "failed to query video")
	}
	if quality != nil {
		v.Quality = *quality
	}
	if result != nil {
		v.ResultURL = *result
	}
	if errMsg != nil {
		v.ErrorMessage = *errMsg
	}
	if dur != nil {
		v.DurationSecs = *dur
	}
	return &v, nil
}

func (s *PGStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]Video, error) {
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.prompt_id, p.user_id, v.status,
		       COALESCE(v.result_url,''), COALESCE(v.error_message,''), v.created_at
		FROM videos v
		JOIN prompts p ON p.id = v.prompt_id
		WHERE p.user_id=$1
		ORDER BY v.created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "videos.list", "failed to query videos")
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.PromptID, &v.OwnerID, &v.Status, &v.ResultURL, &v.ErrorMessage, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "videos.list", "row scan failed")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PGStore) PromptOwner(ctx context.Context, promptID string) (string, error) {
	var ownerID string
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM prompts WHERE id=$1`,
		promptID,
	).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", errors.NotFound("prompt", promptID)
		}
		return "", errors.Wrap(err, "videos.prompt_owner", "failed to query prompt")
	}
	return ownerID, nil
}

func (s *PGStore) Script(ctx context.Context, videoID string) (string, error) {
	var code string
	err := s.db.QueryRow(ctx, `
		SELECT cs.code
		FROM videos v
		JOIN code_snippets cs ON cs.prompt_id = v.prompt_id
		WHERE v.id=$1
	`, videoID).Scan(&code)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", errors.NotFound("script for video", videoID)
		}
		return "", errors.Wrap(err, "videos.script", "failed to query script")
	}
	return code, nil
}

func (s *PGStore) MarkProcessing(ctx context.Context, id string) (bool, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE videos
		SET status=$2, processing_started_at=now()
		WHERE id=$1 AND status=$3
	`, id, StatusProcessing, StatusQueued)
	if err != nil {
		return false, errors.Wrap(err, "videos.mark_processing", "update failed")
	}
	return cmd.RowsAffected() == 1, nil
}

// SetCompleted is a compare-and-swap: the WHERE clause is the idempotence
// guard, so racing finalizers (worker vs webhook vs reaper) cannot both win.
func (s *PGStore) SetCompleted(ctx context.Context, id, resultURL string, durationSecs float64) (bool, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE videos
		SET status=$2, result_url=$3, duration_secs=$4, processing_completed_at=now()
		WHERE id=$1 AND status IN ($5,$6)
	`, id, StatusCompleted, resultURL, nullIfZero(durationSecs), StatusQueued, StatusProcessing)
	if err != nil {
		return false, errors.Wrap(err, "videos.set_completed", "update failed")
	}
	return cmd.RowsAffected() == 1, nil
}

func (s *PGStore) SetFailed(ctx context.Context, id, errorMessage string) (bool, error) {
	if len(errorMessage) > 2000 {
		errorMessage = errorMessage[:2000]
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE videos
		SET status=$2, error_message=$3, processing_completed_at=now()
		WHERE id=$1 AND status IN ($4,$5)
	`, id, StatusFailed, errorMessage, StatusQueued, StatusProcessing)
	if err != nil {
		return false, errors.Wrap(err, "videos.set_failed", "update failed")
	}
	return cmd.RowsAffected() == 1, nil
}

func (s *PGStore) AppendLog(ctx context.Context, videoID, stage, level, message string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO video_processing_logs (video_id, stage, level, message)
		VALUES ($1,$2,$3,$4)
	`, videoID, stage, level, message)
	if err != nil {
		return errors.Wrap(err, "videos.append_log", "insert failed")
	}
	return nil
}

func (s *PGStore) Logs(ctx context.Context, videoID string) ([]ProcessingLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT stage, level, message, created_at
		FROM video_processing_logs
		WHERE video_id=$1
		ORDER BY id ASC
	`, videoID)
	if err != nil {
		return nil, errors.Wrap(err, "videos.logs", "failed to query logs")
	}
	defer rows.Close()

	out := []ProcessingLog{}
	for rows.Next() {
		var l ProcessingLog
		if err := rows.Scan(&l.Stage, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "videos.logs", "row scan failed")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) StaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM videos
		WHERE status=$1 AND processing_started_at < $2
	`, StatusProcessing, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "videos.stale", "failed to query stale videos")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "videos.stale", "row scan failed")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

var _ Store = (*PGStore)(nil)
