package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

// Archive persists terminal snapshots of ended sessions. The live registry
// stays volatile; this is the durable record for historical lookups.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive creates a broadcast archive repository.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// Insert stores a final session snapshot. Re-inserting the same id is a
// no-op so a retried archive job stays idempotent.
func (a *Archive) Insert(ctx context.Context, s *models.BroadcastSession, endedAt time.Time) error {
	coHosts, err := json.Marshal(s.CoHosts)
	if err != nil {
		return err
	}
	const q = `INSERT INTO broadcast_archive
		(id, host_id, host_name, title, description, tags, co_hosts, start_time, end_time, stream_url, recording_url, listener_count, is_private)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`
	_, err = a.pool.Exec(ctx, q, s.ID, s.HostID, s.HostName, s.Title, s.Description, s.Tags, coHosts,
		s.StartTime, endedAt, s.StreamURL, s.RecordingURL, s.ListenerCount, s.IsPrivate)
	return err
}

// Delete removes an archived session row. Returns false when the id was not
// archived.
func (a *Archive) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM broadcast_archive WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns archived sessions, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]models.BroadcastSession, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, host_id, host_name, title, description, tags, co_hosts, start_time, stream_url, recording_url, listener_count, is_private
		FROM broadcast_archive ORDER BY end_time DESC LIMIT $1`
	rows, err := a.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.BroadcastSession
	for rows.Next() {
		s, err := scanArchived(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetByID returns one archived session.
func (a *Archive) GetByID(ctx context.Context, id string) (*models.BroadcastSession, error) {
	const q = `SELECT id, host_id, host_name, title, description, tags, co_hosts, start_time, stream_url, recording_url, listener_count, is_private
		FROM broadcast_archive WHERE id = $1`
	s, err := scanArchived(a.pool.QueryRow(ctx, q, id).Scan)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanArchived(scan func(dest ...any) error) (models.BroadcastSession, error) {
	var (
		s       models.BroadcastSession
		coHosts []byte
	)
	err := scan(&s.ID, &s.HostID, &s.HostName, &s.Title, &s.Description, &s.Tags, &coHosts,
		&s.StartTime, &s.StreamURL, &s.RecordingURL, &s.ListenerCount, &s.IsPrivate)
	if err != nil {
		return s, err
	}
	if len(coHosts) > 0 {
		if err := json.Unmarshal(coHosts, &s.CoHosts); err != nil {
			return s, err
		}
	}
	s.Status = models.StatusEnded
	return s, nil
}
