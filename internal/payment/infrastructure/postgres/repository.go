package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/orderly/internal/payment/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/database"
	"github.com/dmehra2102/orderly/pkg/outbox"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id                  TEXT        PRIMARY KEY,
	order_id            TEXT        NOT NULL,
	amount              BIGINT      NOT NULL,
	currency            CHAR(3)     NOT NULL,
	client_reference    TEXT,
	provider            TEXT        NOT NULL,
	status              TEXT        NOT NULL,
	processor_reference TEXT,
	failure_reason      TEXT,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	CONSTRAINT payments_order_uq UNIQUE (order_id)
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema+outbox.Schema); err != nil {
		return fmt.Errorf("postgres: migrate payments: %w", err)
	}
	return nil
}

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, p domain.Payment) error {
	_, err := database.From(ctx, r.pool).Exec(ctx, `INSERT INTO payments
		(id, order_id, amount, currency, client_reference, provider, status, processor_reference, failure_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.OrderID, p.Amount, p.Currency, database.NullableString(p.ClientReference), p.Provider, string(p.Status),
		database.NullableString(p.ProcessorReference), database.NullableString(p.FailureReason), p.CreatedAt, p.UpdatedAt)
	if database.IsUniqueViolation(err, "payments_order_uq") {
		return domain.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("postgres: insert payment: %w", err)
	}
	return nil
}

// OutboxPublisher stores payment events in the caller's transaction, keyed
// by order id so the order service sees them in order.
type OutboxPublisher struct {
	pool   *pgxpool.Pool
	topics map[string]string
}

// NewOutboxPublisher maps event names to topics; unmapped names are
// published to a topic of the same name.
func NewOutboxPublisher(pool *pgxpool.Pool, topics map[string]string) *OutboxPublisher {
	return &OutboxPublisher{pool: pool, topics: topics}
}

func (p *OutboxPublisher) PublishPaymentEvent(ctx context.Context, ev contracts.PaymentEvent) error {
	topic := p.topics[ev.Name]
	if topic == "" {
		topic = ev.Name
	}
	e, err := outbox.NewEvent("payment", ev.Payload.PaymentID, ev.Name, topic, ev.Payload.OrderID, ev,
		ev.Metadata.CorrelationID, ev.Metadata.CausationID, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return outbox.Insert(ctx, database.From(ctx, p.pool), e)
}
