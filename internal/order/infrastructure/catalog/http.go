package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

type productDTO struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Price contracts.MoneyDTO `json:"price"`
}

// HTTPClient reads products from the catalog service REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) FindByID(ctx context.Context, productID string) (domain.Product, bool, error) {
	var dto productDTO
	status, err := c.get(ctx, "/products/"+url.PathEscape(productID), &dto)
	if status == http.StatusNotFound {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	p, err := toProduct(dto)
	if err != nil {
		return domain.Product{}, false, err
	}
	return p, true, nil
}

func (c *HTTPClient) ListAll(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	if _, err := c.get(ctx, "/products", &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		p, err := toProduct(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, into any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: catalog: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: catalog: GET %s: status %d", domain.ErrUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: catalog: decode %s: %v", domain.ErrUnavailable, path, err)
	}
	return resp.StatusCode, nil
}

func toProduct(dto productDTO) (domain.Product, error) {
	price, err := domain.NewMoney(dto.Price.Amount, dto.Price.Currency)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: catalog: product %s: %v", domain.ErrUnavailable, dto.ID, err)
	}
	return domain.Product{ID: dto.ID, Name: dto.Name, Price: price}, nil
}
