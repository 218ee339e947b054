package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventTypeStockReceived    = "StockReceived"
	stockReceivedEventVersion = 1
)

// StockReceivedPayload announces units delivered to the shop for a product.
type StockReceivedPayload struct {
	ProductID  int64     `json:"productId"`
	Quantity   int       `json:"quantity"`
	SupplierID string    `json:"supplierId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type LegacyStockReceived struct {
	EventType string `json:"eventType"`
	StockReceivedPayload
}

type stockReceivedMessage struct {
	Payload  StockReceivedPayload
	Envelope *RawEnvelope
}

func parseStockReceived(body []byte) (stockReceivedMessage, error) {
	var msg stockReceivedMessage

	if isEnveloped(body) {
		env, err := parseEnvelope(body)
		if err != nil {
			return msg, fmt.Errorf("decode envelope: %w", err)
		}
		if err := env.Validate(EventTypeStockReceived, stockReceivedEventVersion); err != nil {
			return msg, err
		}
		if err := json.Unmarshal(env.Payload, &msg.Payload); err != nil {
			return msg, fmt.Errorf("decode payload: %w", err)
		}
		msg.Envelope = &env
	} else {
		var legacy LegacyStockReceived
		if err := json.Unmarshal(body, &legacy); err != nil {
			return msg, fmt.Errorf("decode event: %w", err)
		}
		if legacy.EventType != "" && legacy.EventType != EventTypeStockReceived {
			return msg, fmt.Errorf("unexpected eventType %q", legacy.EventType)
		}
		msg.Payload = legacy.StockReceivedPayload
	}

	if msg.Payload.ProductID <= 0 {
		return msg, fmt.Errorf("missing productId")
	}
	if msg.Payload.Quantity <= 0 {
		return msg, fmt.Errorf("quantity must be positive, got %d", msg.Payload.Quantity)
	}
	return msg, nil
}
