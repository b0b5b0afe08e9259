package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/orderly/pkg/outbox"
)

const clientReferenceIndex = "orders_user_client_reference_uq"

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id               TEXT        PRIMARY KEY,
	user_id          TEXT        NOT NULL,
	status           TEXT        NOT NULL,
	total_amount     BIGINT      NOT NULL,
	currency         CHAR(3)     NOT NULL,
	note             TEXT,
	client_reference TEXT,
	payment_id       TEXT,
	version          BIGINT      NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_user_client_reference_uq
	ON orders (user_id, client_reference) WHERE client_reference IS NOT NULL;
CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_lines (
	order_id    TEXT    NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	position    INT     NOT NULL,
	product_id  TEXT    NOT NULL,
	quantity    INT     NOT NULL,
	unit_amount BIGINT  NOT NULL,
	line_amount BIGINT  NOT NULL,
	currency    CHAR(3) NOT NULL,
	PRIMARY KEY (order_id, position)
);
`

// Migrate creates the order tables and the outbox if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema+outbox.Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
