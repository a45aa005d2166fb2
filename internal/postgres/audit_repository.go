package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRecord struct {
	EventID      string
	EventType    string
	EventVersion int
	SaleID       string
	Producer     string
	TraceID      string
	OccurredAt   time.Time
	Payload      json.RawMessage
	Partition    int
	Offset       int64
}

// AuditRepository appends sale lifecycle events to sale_events.
type AuditRepository struct{ DB *pgxpool.Pool }

// Insert is idempotent on event_id; inserted is false for a replay.
func (r *AuditRepository) Insert(ctx context.Context, rec AuditRecord) (inserted bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO sale_events(event_id, event_type, event_version, sale_id, producer, trace_id,
			occurred_at, payload, kafka_partition, kafka_offset)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10)
		ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, rec.EventType, rec.EventVersion, rec.SaleID, rec.Producer, rec.TraceID,
		rec.OccurredAt, []byte(rec.Payload), rec.Partition, rec.Offset,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
