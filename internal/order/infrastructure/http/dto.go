package http

import (
	"time"

	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

type moneyRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type lineRequest struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	UnitPrice moneyRequest `json:"unitPrice"`
}

type createOrderRequest struct {
	Items           []lineRequest `json:"items"`
	Note            string        `json:"note,omitempty"`
	ClientReference string        `json:"clientReference,omitempty"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type orderResponse struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"userId"`
	Status          string                   `json:"status"`
	Total           contracts.MoneyDTO       `json:"total"`
	Items           []contracts.OrderLineDTO `json:"items"`
	Note            string                   `json:"note,omitempty"`
	ClientReference string                   `json:"clientReference,omitempty"`
	PaymentID       string                   `json:"paymentId,omitempty"`
	CreatedAt       string                   `json:"createdAt"`
	UpdatedAt       string                   `json:"updatedAt"`
}

type productResponse struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Price contracts.MoneyDTO `json:"price"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (req createOrderRequest) toInput(userID string, meta application.EventMeta) application.CreateOrderInput {
	items := make([]application.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.LineRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: application.MoneyInput{Amount: it.UnitPrice.Amount, Currency: it.UnitPrice.Currency},
		})
	}
	return application.CreateOrderInput{
		UserID:          userID,
		Items:           items,
		Note:            req.Note,
		ClientReference: req.ClientReference,
		Meta:            meta,
	}
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           application.MoneyDTO(o.Total),
		Items:           application.LineDTOs(o.Lines),
		Note:            o.Note,
		ClientReference: o.ClientReference,
		PaymentID:       o.PaymentID,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{ID: p.ID, Name: p.Name, Price: application.MoneyDTO(p.Price)})
	}
	return out
}
