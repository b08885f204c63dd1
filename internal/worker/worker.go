package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amadeodlp/canalradionov-service/internal/broadcast"
	"github.com/amadeodlp/canalradionov-service/internal/models"
	"github.com/amadeodlp/canalradionov-service/pkg/queue"
	"github.com/amadeodlp/canalradionov-service/pkg/storage"
)

// ArchiveProcessor processes broadcast archive jobs: persist the terminal
// session snapshot to Postgres and mirror it to S3 when storage is configured.
type ArchiveProcessor struct {
	archive *broadcast.Archive
	s3      *storage.S3
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewArchiveProcessor creates a broadcast archive processor. s3 may be nil.
func NewArchiveProcessor(archive *broadcast.Archive, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{archive: archive, s3: s3, queue: q, logger: logger}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeBroadcastArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.BroadcastArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var session models.BroadcastSession
	if err := json.Unmarshal(payload.Session, &session); err != nil {
		return fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	if session.ID == "" {
		session.ID = payload.SessionID
	}

	// Insert is idempotent, so a retried job never duplicates a row.
	if err := p.archive.Insert(ctx, &session, payload.EndedAt); err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}

	if p.s3 != nil {
		key := storage.TranscriptKey(session.ID)
		body := bytes.NewReader(payload.Session)
		if _, err := p.s3.Upload(ctx, p.s3.RecordingsBucket(), key, "application/json", body, int64(len(payload.Session)), false); err != nil {
			// Postgres already holds the record; the S3 mirror is best effort.
			p.logger.Warn("snapshot upload failed", zap.Error(err), zap.String("session_id", session.ID))
		}
	}

	p.logger.Info("broadcast archived", zap.String("session_id", session.ID), zap.Int("listener_count", session.ListenerCount))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
