// Package purchase implements the order aggregate, the cancel and
// return request aggregates, refund accounting and the delivery-time
// calculation.
package purchase

import "time"

// Status is an order lifecycle state.
type Status string

const (
	StatusAwaitingPayment Status = "AwaitingPayment"
	StatusOnHold          Status = "OnHold"
	StatusPaymentSent     Status = "PaymentSent"
	StatusPaymentReceived Status = "PaymentReceived"
	StatusAwaitingCourier Status = "AwaitingCourier"
	StatusInTransit       Status = "InTransit"
	StatusDelivered       Status = "Delivered"
	StatusCancelled       Status = "Cancelled"
	StatusClosed          Status = "Closed"
)

// StatusChange is one entry of the order status history.
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// ReturnWindow is how long after delivery returns stay open.
const ReturnWindow = 14 * 24 * time.Hour

// FastDeliveryPostalCode short-circuits the courier leg for internal
// test orders.
const FastDeliveryPostalCode = "7777"

// Actor identifies who drives a transition; some guards only admit
// staff.
type Actor struct {
	CustomerID string
	Staff      bool
}
