package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Snapshot kinds, one per chart view.
const (
	KindExplainability   = "explainability"
	KindModelComparison  = "model_comparison"
	KindStability        = "stability"
	KindProviderAccuracy = "provider_accuracy"
)

// SnapshotKinds lists every kind the recorder writes.
var SnapshotKinds = []string{KindExplainability, KindModelComparison, KindStability, KindProviderAccuracy}

// ValidKind reports whether kind is a known snapshot kind.
func ValidKind(kind string) bool {
	for _, k := range SnapshotKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Snapshot is a stored, timestamped aggregate of one chart view.
type Snapshot struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	SampleCount int             `json:"sampleCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ListSnapshotsParams contains parameters for listing snapshots.
type ListSnapshotsParams struct {
	Kind  string // empty lists all kinds
	Since *time.Time
	Limit int
}

const snapshotColumns = `id, kind, payload, sample_count, created_at`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var payload []byte
	if err := row.Scan(&s.ID, &s.Kind, &payload, &s.SampleCount, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Payload = payload
	return &s, nil
}

// CreateSnapshot stores payload encoded as JSON.
func (db *DB) CreateSnapshot(ctx context.Context, kind string, payload any, sampleCount int) (*Snapshot, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("unknown snapshot kind %q", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO snapshots (kind, payload, sample_count)
		 VALUES ($1, $2, $3)
		 RETURNING `+snapshotColumns,
		kind, data, sampleCount,
	)
	return scanSnapshot(row)
}

// ListSnapshots returns snapshots newest first.
func (db *DB) ListSnapshots(ctx context.Context, params ListSnapshotsParams) ([]Snapshot, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		 WHERE ($1 = '' OR kind = $1)
		   AND ($2::timestamptz IS NULL OR created_at >= $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		params.Kind, params.Since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// DeleteSnapshotsBefore removes snapshots older than t and returns how many
// were deleted.
func (db *DB) DeleteSnapshotsBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM snapshots WHERE created_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
