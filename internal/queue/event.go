// Package queue defines message payloads exchanged over the message broker
// and the durable topology they travel through: the order_events topic
// exchange with one bound queue per routing key.
package queue

import "github.com/shopspring/decimal"

// Routing keys published to the order_events exchange.
const (
    ExchangeOrders          = "order_events"
    RouteOrderCreated       = "order.created"
    RouteOrderStatusChanged = "order.status.changed"
)

// OrderCreatedEvent is published after an order and its items are
// persisted.  It carries enough for downstream consumers to notify or run
// analytics without querying the order database.
type OrderCreatedEvent struct {
    OrderID     string          `json:"order_id"`
    OrderNumber string          `json:"order_number"`
    UserID      string          `json:"user_id"`
    Total       decimal.Decimal `json:"total"`
    ItemCount   int             `json:"items"`
    Timestamp   string          `json:"timestamp"`
}

// OrderStatusChangedEvent is published on every lifecycle transition.
type OrderStatusChangedEvent struct {
    OrderID     string `json:"order_id"`
    OrderNumber string `json:"order_number"`
    OldStatus   string `json:"old_status"`
    NewStatus   string `json:"new_status"`
    Timestamp   string `json:"timestamp"`
}
