package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/database"
)

const orderColumns = `id, user_id, status, total_amount, currency, note, client_reference, payment_id, version, created_at, updated_at`

// Repository implements application.OrderRepository. Calls made inside
// database.Transactor.WithinTx run on that transaction.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	tx   *database.Transactor
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, tx *database.Transactor) *Repository {
	return &Repository{log: log, pool: pool, tx: tx}
}

func (r *Repository) Save(ctx context.Context, o domain.Order) (string, error) {
	if o.Version == 0 && o.ID == "" {
		o.ID = uuid.NewString()
	}

	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := database.From(ctx, r.pool)
		if o.Version == 0 {
			return r.insert(ctx, q, o)
		}
		return r.update(ctx, q, o)
	})
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func (r *Repository) insert(ctx context.Context, q database.Querier, o domain.Order) error {
	_, err := q.Exec(ctx, `INSERT INTO orders (id, user_id, status, total_amount, currency, note, client_reference, payment_id, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)`,
		o.ID, o.UserID, string(o.Status), o.Total.Amount(), o.Total.Currency(),
		database.NullableString(o.Note), database.NullableString(o.ClientReference), database.NullableString(o.PaymentID))
	if database.IsUniqueViolation(err, clientReferenceIndex) {
		return domain.ErrDuplicateClientReference
	}
	if err != nil {
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return r.writeLines(ctx, q, o)
}

func (r *Repository) update(ctx context.Context, q database.Querier, o domain.Order) error {
	ct, err := q.Exec(ctx, `UPDATE orders
		SET status=$3, total_amount=$4, currency=$5, note=$6, payment_id=$7, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		o.ID, o.Version, string(o.Status), o.Total.Amount(), o.Total.Currency(),
		database.NullableString(o.Note), database.NullableString(o.PaymentID))
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrConflict
	}

	if _, err := q.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, o.ID); err != nil {
		return fmt.Errorf("postgres: replace order lines: %w", err)
	}
	return r.writeLines(ctx, q, o)
}

func (r *Repository) writeLines(ctx context.Context, q database.Querier, o domain.Order) error {
	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, position, product_id, quantity, unit_amount, line_amount, currency)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, i, l.ProductID, l.Quantity, l.UnitPrice.Amount(), l.LineTotal.Amount(), l.UnitPrice.Currency())
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert order lines: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
}

func (r *Repository) FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, orderID, userID)
}

func (r *Repository) FindByUserAndClientReference(ctx context.Context, userID, clientReference string) (domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 AND client_reference=$2`, userID, clientReference)
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	q := database.From(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	lines, err := r.loadLines(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) findOne(ctx context.Context, sql string, args ...any) (domain.Order, error) {
	q := database.From(ctx, r.pool)
	o, err := scanOrder(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	lines, err := r.loadLines(ctx, q, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *Repository) loadLines(ctx context.Context, q database.Querier, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `SELECT order_id, product_id, quantity, unit_amount, line_amount, currency
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: load order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID, productID, currency string
			qty                          int
			unit, total                  int64
		)
		if err := rows.Scan(&orderID, &productID, &qty, &unit, &total, &currency); err != nil {
			return nil, fmt.Errorf("postgres: scan order line: %w", err)
		}
		unitPrice, err := domain.NewMoney(unit, currency)
		if err != nil {
			return nil, fmt.Errorf("postgres: order %s: %w", orderID, err)
		}
		lineTotal, err := domain.NewMoney(total, currency)
		if err != nil {
			return nil, fmt.Errorf("postgres: order %s: %w", orderID, err)
		}
		out[orderID] = append(out[orderID], domain.OrderLine{
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                          domain.Order
		status, currency           string
		amount                     int64
		note, clientRef, paymentID *string
		createdAt, updatedAt       time.Time
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &amount, &currency, &note, &clientRef, &paymentID, &o.Version, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, err
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: scan order: %w", err)
	}

	total, err := domain.NewMoney(amount, currency)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: order %s: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(status)
	o.Total = total
	o.Note = database.StringOrEmpty(note)
	o.ClientReference = database.StringOrEmpty(clientRef)
	o.PaymentID = database.StringOrEmpty(paymentID)
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = updatedAt.UTC()
	return o, nil
}
