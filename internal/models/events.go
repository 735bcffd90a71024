package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventOrderStatusChanged is the event name of status change messages
const EventOrderStatusChanged = "order.status_changed"

// Sources of a status change
const (
	SourceScan     = "scan"
	SourceDelivery = "proof_of_delivery"
)

// StatusChangeEvent is published after an order status change commits
type StatusChangeEvent struct {
	Event       string      `json:"event"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	Source      string      `json:"source"`
	ScanKind    ScanKind    `json:"scan_kind,omitempty"`
	DriverID    *string     `json:"driver_id,omitempty"`
	At          time.Time   `json:"at"`
}

// NewStatusChangeEvent builds a status change event for an order
func NewStatusChangeEvent(order *Order, from, to OrderStatus, source string, at time.Time) StatusChangeEvent {
	return StatusChangeEvent{
		Event:       EventOrderStatusChanged,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          to,
		Source:      source,
		At:          at,
	}
}

// TimelineEntry is one document in the order timeline search index
type TimelineEntry struct {
	ID          string      `json:"id"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Kind        string      `json:"kind"`
	Status      OrderStatus `json:"status"`
	DriverID    *string     `json:"driver_id,omitempty"`
	Duplicate   bool        `json:"duplicate"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// ScanMessage is the queue payload of a scan submitted through Service Bus
type ScanMessage struct {
	Code     string  `json:"code"`
	Kind     string  `json:"kind,omitempty"`
	DriverID *string `json:"driver_id,omitempty"`
	// When is free-form; see ParseClientTimestamp
	When json.RawMessage `json:"when,omitempty"`
}
