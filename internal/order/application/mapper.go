package application

import (
	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

func MoneyDTO(m domain.Money) contracts.MoneyDTO {
	return contracts.MoneyDTO{Amount: m.Amount(), Currency: m.Currency()}
}

func LineDTOs(lines []domain.OrderLine) []contracts.OrderLineDTO {
	out := make([]contracts.OrderLineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, contracts.OrderLineDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: MoneyDTO(l.UnitPrice),
			LineTotal: MoneyDTO(l.LineTotal),
		})
	}
	return out
}

func orderCreatedEvent(o domain.Order, meta contracts.Metadata) contracts.OrderCreatedEvent {
	return contracts.NewEnvelope(contracts.EventOrderCreated, contracts.OrderCreatedPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Total:           MoneyDTO(o.Total),
		Items:           LineDTOs(o.Lines),
		Note:            o.Note,
		ClientReference: o.ClientReference,
	}, meta)
}

func orderStatusChangedEvent(o domain.Order, previous domain.OrderStatus, reason string, meta contracts.Metadata) contracts.OrderStatusChangedEvent {
	return contracts.NewEnvelope(contracts.EventOrderStatusChanged, contracts.OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(o.Status),
		Reason:         reason,
	}, meta)
}

// CreatedKey partitions order creation by order id.
func CreatedKey(ev contracts.OrderCreatedEvent) string {
	return ev.Payload.OrderID
}

// StatusChangedKey partitions status changes by order id and new status.
func StatusChangedKey(ev contracts.OrderStatusChangedEvent) string {
	return ev.Payload.OrderID + ":" + ev.Payload.CurrentStatus
}
