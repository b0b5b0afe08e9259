// Package catalog provides the product catalog adapters the order service
// prices lines against.
package catalog

import (
	"context"

	"github.com/dmehra2102/orderly/internal/order/domain"
)

// Static serves a fixed product list.
type Static struct {
	products []domain.Product
	byID     map[string]domain.Product
}

func NewStatic(products ...domain.Product) *Static {
	s := &Static{byID: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		s.products = append(s.products, p)
		s.byID[p.ID] = p
	}
	return s
}

// DefaultProducts is the demo menu used when no catalog service is configured.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		mockProduct("0f0b9c0a-0d58-4a37-9882-5e39f68d3c0d", "Espresso", 2500),
		mockProduct("7c070b25-92f7-4e72-9db9-8a1ab3f8ea9a", "Cafe Latte", 4500),
		mockProduct("9e21dc36-d4dd-4a1b-8d42-7a4f7a4ed5bd", "New York Cheesecake", 6500),
	}
}

func mockProduct(id, name string, amount int64) domain.Product {
	price, err := domain.NewMoney(amount, "KRW")
	if err != nil {
		panic(err)
	}
	return domain.Product{ID: id, Name: name, Price: price}
}

func (s *Static) FindByID(_ context.Context, productID string) (domain.Product, bool, error) {
	p, ok := s.byID[productID]
	return p, ok, nil
}

func (s *Static) ListAll(context.Context) ([]domain.Product, error) {
	return append([]domain.Product(nil), s.products...), nil
}
