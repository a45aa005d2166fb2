package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/postgres"
	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

type Store interface {
	Insert(ctx context.Context, rec postgres.AuditRecord) (bool, error)
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

var knownEvents = map[string]bool{
	sales.EventSaleCreated:              true,
	sales.EventSaleUpdated:              true,
	sales.EventSaleStatusChanged:        true,
	sales.EventSalePaymentStatusChanged: true,
	sales.EventSaleDeleted:              true,
	sales.EventSalePaymentProcessed:     true,
	sales.EventSalePaymentRefunded:      true,
}

// Service writes every sale event from sales.events into the audit trail.
type Service struct {
	Store  Store
	Dedup  Deduper
	Logger *zap.Logger
}

// HandleSaleEvent dipasang sebagai handler consumer. Returning an error makes
// the consumer retry the same event before its partition moves on.
func (s *Service) HandleSaleEvent(ctx context.Context, m kafkago.Message) error {
	log := s.logger()

	if t := kafkax.Header(m.Headers, "x-event-type"); t != "" && !knownEvents[t] {
		return nil
	}

	var env sales.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message
		log.Error("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if !knownEvents[env.EventType] {
		return nil
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		log.Warn("dropping event without valid id", zap.String("event_type", env.EventType))
		return nil
	}

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			log.Warn("dedup lookup failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
		if seen {
			return nil
		}
	}

	saleID := env.CorrelationID
	if saleID == "" {
		p, err := kafkax.UnwrapPayload[struct {
			SaleID string `json:"sale_id"`
		}](env.Payload)
		if err != nil {
			log.Error("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		saleID = p.SaleID
	}
	if _, err := uuid.Parse(saleID); err != nil {
		log.Warn("dropping event without valid sale id", zap.String("event_id", env.EventID))
		return nil
	}
	if len(env.Payload) == 0 {
		env.Payload = json.RawMessage(`{}`)
	}

	inserted, err := s.Store.Insert(ctx, postgres.AuditRecord{
		EventID:      env.EventID,
		EventType:    env.EventType,
		EventVersion: env.EventVersion,
		SaleID:       saleID,
		Producer:     env.Producer,
		TraceID:      env.TraceID,
		OccurredAt:   env.OccurredAt,
		Payload:      env.Payload,
		Partition:    m.Partition,
		Offset:       m.Offset,
	})
	if err != nil {
		return err
	}
	if !inserted {
		log.Debug("event already recorded", zap.String("event_id", env.EventID))
	}

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
