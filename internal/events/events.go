package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventOrderCreated is emitted when a checkout produces an order
	EventOrderCreated EventType = "order.created"
	// EventOrderStatusChanged is emitted on every order status transition
	EventOrderStatusChanged EventType = "order.status_changed"
	// EventOrderItemCounterChanged is emitted when an item qty counter moves
	EventOrderItemCounterChanged EventType = "order.item_counter_changed"
	// EventScoringCompleted is emitted when a customer's scoring run finishes
	EventScoringCompleted EventType = "scoring.completed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// OrderCreatedData contains data for order created events.
type OrderCreatedData struct {
	OrderNumber string
	CustomerID  string
	ItemCount   int
}

// OrderStatusChangedData contains data for order status transitions.
type OrderStatusChangedData struct {
	OrderNumber string
	From        string
	To          string
}

// OrderItemCounterChangedData contains data for item counter changes.
type OrderItemCounterChangedData struct {
	OrderNumber string
	SimpleSKU   string
	Counter     string
	Qty         int
}

// ScoringCompletedData contains data for completed scoring runs.
type ScoringCompletedData struct {
	CustomerID string
	RowCount   int
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Execute handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				log.Printf("events: %s handler failed: %v", event.Type, err)
			}
		}(handler)
	}
}

// PublishOrderCreated publishes an order created event.
func (m *Manager) PublishOrderCreated(ctx context.Context, orderNumber, customerID string, itemCount int) {
	m.Publish(ctx, EventOrderCreated, OrderCreatedData{
		OrderNumber: orderNumber,
		CustomerID:  customerID,
		ItemCount:   itemCount,
	})
}

// PublishOrderStatusChanged publishes an order status transition event.
func (m *Manager) PublishOrderStatusChanged(ctx context.Context, orderNumber, from, to string) {
	m.Publish(ctx, EventOrderStatusChanged, OrderStatusChangedData{
		OrderNumber: orderNumber,
		From:        from,
		To:          to,
	})
}

// PublishOrderItemCounterChanged publishes an item counter change event.
func (m *Manager) PublishOrderItemCounterChanged(ctx context.Context, orderNumber, simpleSKU, counter string, qty int) {
	m.Publish(ctx, EventOrderItemCounterChanged, OrderItemCounterChangedData{
		OrderNumber: orderNumber,
		SimpleSKU:   simpleSKU,
		Counter:     counter,
		Qty:         qty,
	})
}

// PublishScoringCompleted publishes a scoring completed event.
func (m *Manager) PublishScoringCompleted(ctx context.Context, customerID string, rowCount int) {
	m.Publish(ctx, EventScoringCompleted, ScoringCompletedData{
		CustomerID: customerID,
		RowCount:   rowCount,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
