// Package memory keeps orders in process memory. It backs the service when
// STORAGE_DRIVER=memory and serves as the storage fake in tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/orderly/internal/order/domain"
)

type record struct {
	order domain.Order
	seq   int64
}

// Store implements application.OrderRepository and application.Transactor.
// Units of work are serialized, which gives every use case exclusive access
// to the orders it loads. Reads outside a unit wait for the one in flight, so
// they never observe writes that may still be rolled back.
type Store struct {
	txMu   sync.RWMutex
	mu     sync.RWMutex
	orders map[string]record
	seq    int64
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{orders: map[string]record{}, now: time.Now}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[string]record, len(s.orders))
	for k, v := range s.orders {
		snapshot[k] = v
	}
	seq := s.seq
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.orders, s.seq = snapshot, seq
		s.mu.Unlock()
		return err
	}
	return nil
}

// view holds the unit lock for reading unless ctx already belongs to a unit.
func (s *Store) view(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

func (s *Store) Save(ctx context.Context, o domain.Order) (string, error) {
	if ctx.Value(txKey{}) == nil {
		var id string
		err := s.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			id, err = s.save(o)
			return err
		})
		return id, err
	}
	return s.save(o)
}

func (s *Store) save(o domain.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if o.Version == 0 {
		if o.ClientReference != "" {
			for _, r := range s.orders {
				if r.order.UserID == o.UserID && r.order.ClientReference == o.ClientReference {
					return "", domain.ErrDuplicateClientReference
				}
			}
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		o.Version = 1
		o.CreatedAt, o.UpdatedAt = now, now
		s.seq++
		s.orders[o.ID] = record{order: clone(o), seq: s.seq}
		return o.ID, nil
	}

	existing, ok := s.orders[o.ID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if existing.order.Version != o.Version {
		return "", domain.ErrConflict
	}
	o.Version++
	o.CreatedAt = existing.order.CreatedAt
	o.UpdatedAt = now
	s.orders[o.ID] = record{order: clone(o), seq: existing.seq}
	return o.ID, nil
}

func (s *Store) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer s.view(ctx)()
	return s.find(orderID)
}

func (s *Store) find(orderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return clone(r.order), nil
}

func (s *Store) FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error) {
	defer s.view(ctx)()
	o, err := s.find(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *Store) FindByUserAndClientReference(ctx context.Context, userID, clientReference string) (domain.Order, error) {
	defer s.view(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.orders {
		if r.order.UserID == userID && r.order.ClientReference != "" && r.order.ClientReference == clientReference {
			return clone(r.order), nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

// ListByUser returns the user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	release := s.view(ctx)
	s.mu.RLock()
	var records []record
	for _, r := range s.orders {
		if r.order.UserID == userID {
			records = append(records, r)
		}
	}
	s.mu.RUnlock()
	release()

	slices.SortFunc(records, func(a, b record) int {
		if c := b.order.CreatedAt.Compare(a.order.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	out := make([]domain.Order, 0, len(records))
	for _, r := range records {
		out = append(out, clone(r.order))
	}
	return out, nil
}

// Len reports how many orders are stored.
func (s *Store) Len() int {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func clone(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return o
}
