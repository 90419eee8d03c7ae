package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderClaimed   = "order.claimed"
	TypeOrderShipped   = "order.shipped"
	TypeOrderDelivered = "order.delivered"
	TypeStockAdjusted  = "stock.adjusted"
	TypeStockLow       = "stock.low"
)

const envelopeVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload. correlationID is normally the order id and is
// also used as the partition key.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// UnwrapPayload decodes the payload of an envelope into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderLine     `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

type OrderClaimedPayload struct {
	OrderID   string `json:"order_id"`
	PickingID string `json:"picking_id"`
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}

type OrderShippedPayload struct {
	OrderID        string `json:"order_id"`
	PickingID      string `json:"picking_id"`
	TrackingNumber string `json:"tracking_number"`
}

type OrderDeliveredPayload struct {
	OrderID   string `json:"order_id"`
	PickingID string `json:"picking_id"`
}

type StockAdjustedPayload struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason"`
	OrderID   string `json:"order_id,omitempty"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
	Threshold int    `json:"threshold"`
}
