package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

const (
	EventTypeSaleCompleted    = "SaleCompleted"
	saleCompletedEventVersion = 1
	saleCompletedSchema       = "contracts/events/pos/SaleCompleted.v1.payload.schema.json"
)

type SaleCompletedPayload struct {
	SaleID    string      `json:"saleId"`
	Total     money.Money `json:"total"`
	Lines     []SoldLine  `json:"lines"`
	Timestamp time.Time   `json:"timestamp"`
}

type SoldLine struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
	Subtotal  money.Money `json:"subtotal"`
}

type SaleCompletedEvent = Envelope[SaleCompletedPayload]

// LegacySaleCompleted is the flat form published when envelopes are off.
type LegacySaleCompleted struct {
	EventType string `json:"eventType"`
	SaleCompletedPayload
}

func saleCompletedPayload(sale domain.Sale) SaleCompletedPayload {
	p := SaleCompletedPayload{
		SaleID:    strconv.FormatInt(sale.ID, 10),
		Total:     sale.Total,
		Lines:     make([]SoldLine, 0, len(sale.Lines)),
		Timestamp: sale.CreatedAt.UTC(),
	}
	for _, l := range sale.Lines {
		p.Lines = append(p.Lines, SoldLine{
			ProductID: strconv.FormatInt(l.ProductID, 10),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	return p
}

func newSaleCompletedEvent(correlationID string, seq int64, producer string, sale domain.Sale, occurredAt time.Time) SaleCompletedEvent {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return SaleCompletedEvent{
		EventName:     EventTypeSaleCompleted,
		EventVersion:  saleCompletedEventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      producer,
		PartitionKey:  SalesPartition,
		Sequence:      seq,
		OccurredAt:    occurredAt,
		Schema:        saleCompletedSchema,
		Payload:       saleCompletedPayload(sale),
	}
}
