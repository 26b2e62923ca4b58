package domain

import (
	"time"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
)

// =========== Eventos salientes hacia otros servicios ===========

// StockAvailabilityChanged se publica por cada transición confirmada en Presto,
// para que dashboards u otros consumidores reaccionen sin consultar el POS.
type StockAvailabilityChangedEvent struct {
	primitives.BaseEvent
	PosProductID  string     `json:"posProductId"`
	ProductName   string     `json:"productName"`
	VendorRefs    []string   `json:"vendorRefs"`
	Action        SyncAction `json:"action"`
	StockQuantity int        `json:"stockQuantity"`
	OccurredAtUtc time.Time  `json:"occurredAtUtc"`
}

func NewStockAvailabilityChangedEvent(
	posProductID, productName string,
	vendorRefs []string,
	action SyncAction,
	quantity int,
) *StockAvailabilityChangedEvent {
	ev := &StockAvailabilityChangedEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		PosProductID:  posProductID,
		ProductName:   productName,
		VendorRefs:    vendorRefs,
		Action:        action,
		StockQuantity: quantity,
		OccurredAtUtc: time.Now().UTC(),
	}
	ev.SetRoutingKey("StockAvailabilityChanged")
	return ev
}
