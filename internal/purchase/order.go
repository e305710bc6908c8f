package purchase

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
)

// DomainEvent is an aggregate mutation recorded for publication after
// the aggregate persists.
type DomainEvent struct {
	CounterChanged *CounterChanged
	StatusChanged  *StatusChanged
}

// CounterChanged reports one item counter movement.
type CounterChanged struct {
	OrderNumber string
	SimpleSKU   string
	Counter     string
	Qty         int
}

// StatusChanged reports one order status transition.
type StatusChanged struct {
	OrderNumber string
	From        Status
	To          Status
}

// Order is the purchase aggregate. Items are mutated only through the
// aggregate methods, which re-validate invariants and record domain
// events.
type Order struct {
	OrderNumber     string                 `json:"order_number"`
	CustomerID      string                 `json:"customer_id"`
	Items           []Item                 `json:"items"`
	DeliveryAddress models.DeliveryAddress `json:"delivery_address"`
	DeliveryCost    decimal.Decimal        `json:"delivery_cost"`
	VATPercent      int                    `json:"vat_percent"`
	CreditsSpent    decimal.Decimal        `json:"credits_spent"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
	StatusHistory   []StatusChange         `json:"status_history"`
	CreatedAt       time.Time              `json:"created_at"`
	Revision        int                    `json:"revision"`

	pending []DomainEvent
}

// Status is the latest entry of the status history.
func (o *Order) Status() Status {
	if len(o.StatusHistory) == 0 {
		return StatusAwaitingPayment
	}
	return o.StatusHistory[len(o.StatusHistory)-1].Status
}

// HasReached reports whether the order ever held the given status.
func (o *Order) HasReached(s Status) bool {
	for _, change := range o.StatusHistory {
		if change.Status == s {
			return true
		}
	}
	return false
}

// StatusAt returns when the order first entered the given status.
func (o *Order) StatusAt(s Status) (time.Time, bool) {
	for _, change := range o.StatusHistory {
		if change.Status == s {
			return change.At, true
		}
	}
	return time.Time{}, false
}

// Item returns the line with the given simple SKU.
func (o *Order) Item(simpleSKU string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].SimpleSKU == simpleSKU {
			return &o.Items[i], nil
		}
	}
	return nil, apperr.NotFound("order %s has no item %s", o.OrderNumber, simpleSKU)
}

// DrainEvents returns and clears the recorded domain events.
func (o *Order) DrainEvents() []DomainEvent {
	out := o.pending
	o.pending = nil
	return out
}

func (o *Order) recordCounter(simpleSKU, counter string, qty int) {
	o.pending = append(o.pending, DomainEvent{CounterChanged: &CounterChanged{
		OrderNumber: o.OrderNumber, SimpleSKU: simpleSKU, Counter: counter, Qty: qty,
	}})
}

// AllQtyProcessed reports whether every ordered unit sits in a
// terminal counter with no open requests.
func (o *Order) AllQtyProcessed() bool {
	for i := range o.Items {
		if o.Items[i].QtyProcessable()+o.Items[i].QtyRequested() > 0 {
			return false
		}
	}
	return true
}

func (o *Order) totalRefundable() int {
	total := 0
	for i := range o.Items {
		total += o.Items[i].QtyRefundable()
	}
	return total
}

func (o *Order) totalCancelledAfterPayment() int {
	total := 0
	for i := range o.Items {
		total += o.Items[i].QtyCancelAfterPaymentCancelled
	}
	return total
}

// onlyCancelledBeforePayment reports whether cancel-before-payment is
// the only flow any unit ever entered.
func (o *Order) onlyCancelledBeforePayment() bool {
	for i := range o.Items {
		it := &o.Items[i]
		if it.QtyReturnRequested+it.QtyReturnReturned+
			it.QtyCancelAfterPaymentRequested+it.QtyCancelAfterPaymentCancelled+
			it.QtyRefunded > 0 {
			return false
		}
	}
	return true
}

// paymentGap reports the window where payment was sent but has not
// arrived yet.
func (o *Order) paymentGap() bool {
	return o.HasReached(StatusPaymentSent) && !o.HasReached(StatusPaymentReceived)
}

// IsReturnable reports whether a return request can still be opened.
func (o *Order) IsReturnable(now time.Time) bool {
	deliveredAt, delivered := o.StatusAt(StatusDelivered)
	if !delivered || o.Status() == StatusClosed || o.Status() == StatusCancelled {
		return false
	}
	if now.Sub(deliveredAt) > ReturnWindow {
		return false
	}
	for i := range o.Items {
		if o.Items[i].QtyProcessable() > 0 {
			return true
		}
	}
	return false
}

// IsCancellable reports whether any unit can still be cancelled.
func (o *Order) IsCancellable() bool {
	switch o.Status() {
	case StatusCancelled, StatusClosed, StatusDelivered, StatusInTransit:
		return false
	}
	if o.paymentGap() {
		return false
	}
	for i := range o.Items {
		if o.Items[i].QtyProcessable() > 0 {
			return true
		}
	}
	return false
}

// Transition moves the order to the given status, enforcing the
// transition table. Closed is terminal.
func (o *Order) Transition(to Status, by Actor, now time.Time) error {
	from := o.Status()
	if from == to {
		return nil
	}
	if !o.transitionAllowed(from, to, by) {
		return apperr.Logic("order %s cannot move from %s to %s", o.OrderNumber, from, to)
	}
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: to, At: now.UTC()})
	o.pending = append(o.pending, DomainEvent{StatusChanged: &StatusChanged{
		OrderNumber: o.OrderNumber, From: from, To: to,
	}})
	return nil
}

func (o *Order) transitionAllowed(from, to Status, by Actor) bool {
	switch from {
	case StatusAwaitingPayment:
		switch to {
		case StatusOnHold, StatusPaymentSent:
			return true
		case StatusCancelled:
			return o.AllQtyProcessed() && o.onlyCancelledBeforePayment()
		}
	case StatusPaymentSent:
		switch to {
		case StatusOnHold, StatusPaymentReceived, StatusClosed:
			return true
		}
	case StatusPaymentReceived:
		switch to {
		case StatusOnHold, StatusAwaitingCourier:
			return true
		case StatusDelivered:
			return by.Staff || o.DeliveryAddress.PostalCode == FastDeliveryPostalCode
		case StatusCancelled:
			return o.AllQtyProcessed() && o.totalCancelledAfterPayment() > 0
		}
	case StatusOnHold:
		return o.onHoldReentryAllowed(to)
	case StatusAwaitingCourier:
		switch to {
		case StatusInTransit, StatusOnHold:
			return true
		}
	case StatusInTransit:
		return to == StatusDelivered
	case StatusDelivered:
		return to == StatusClosed && o.totalRefundable() == 0
	case StatusCancelled:
		return to == StatusClosed && o.cancelledRefundsSettled()
	}
	return false
}

// onHoldReentryAllowed gates the limited return paths out of OnHold:
// each target requires its predecessor milestone.
func (o *Order) onHoldReentryAllowed(to Status) bool {
	switch to {
	case StatusAwaitingPayment:
		for _, change := range o.StatusHistory {
			if change.Status != StatusAwaitingPayment && change.Status != StatusOnHold {
				return false
			}
		}
		return true
	case StatusPaymentSent:
		return o.HasReached(StatusPaymentSent) && !o.HasReached(StatusPaymentReceived)
	case StatusPaymentReceived:
		return o.HasReached(StatusPaymentReceived)
	case StatusAwaitingCourier:
		return o.HasReached(StatusAwaitingCourier)
	}
	return false
}

// cancelledRefundsSettled reports whether every cancelled-after-payment
// unit has been refunded.
func (o *Order) cancelledRefundsSettled() bool {
	for i := range o.Items {
		it := &o.Items[i]
		if it.QtyRefunded < it.QtyCancelAfterPaymentCancelled {
			return false
		}
	}
	return true
}

// RequestReturn opens a return for qty units of an item.
func (o *Order) RequestReturn(simpleSKU string, qty int, now time.Time) error {
	if !o.IsReturnable(now) {
		return apperr.Logic("order %s is not returnable", o.OrderNumber)
	}
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, nil, &it.QtyReturnRequested, it.QtyProcessable(), now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterReturnRequested, qty)
	return nil
}

// DeclineReturn backs qty units out of an open return, customer side.
func (o *Order) DeclineReturn(simpleSKU string, qty int, now time.Time) error {
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, &it.QtyReturnRequested, nil, it.QtyReturnRequested, now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterReturnRequested, -qty)
	return nil
}

// RejectReturn backs qty units out of an open return, merchant side.
func (o *Order) RejectReturn(simpleSKU string, qty int, now time.Time) error {
	return o.DeclineReturn(simpleSKU, qty, now)
}

// CloseReturn settles qty returned units of an open return.
func (o *Order) CloseReturn(simpleSKU string, qty int, now time.Time) error {
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, &it.QtyReturnRequested, &it.QtyReturnReturned, it.QtyReturnRequested, now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterReturnReturned, qty)
	return nil
}

// CancelBeforePayment cancels qty units while no payment has moved.
// When the whole order ends up cancelled this way it auto-transitions
// to Cancelled.
func (o *Order) CancelBeforePayment(simpleSKU string, qty int, by Actor, now time.Time) error {
	if !o.IsCancellable() {
		return apperr.Logic("order %s is not cancellable", o.OrderNumber)
	}
	if o.HasReached(StatusPaymentReceived) {
		return apperr.Logic("order %s is already paid, request cancellation instead", o.OrderNumber)
	}
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, nil, &it.QtyCancelledBeforePayment, it.QtyProcessable(), now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterCancelledBeforePayment, qty)
	if o.AllQtyProcessed() {
		return o.Transition(StatusCancelled, by, now)
	}
	return nil
}

// RequestCancellationAfterPayment opens a cancellation for qty paid
// units.
func (o *Order) RequestCancellationAfterPayment(simpleSKU string, qty int, now time.Time) error {
	if !o.IsCancellable() {
		return apperr.Logic("order %s is not cancellable", o.OrderNumber)
	}
	if !o.HasReached(StatusPaymentReceived) {
		return apperr.Logic("order %s is not paid, cancel before payment instead", o.OrderNumber)
	}
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, nil, &it.QtyCancelAfterPaymentRequested, it.QtyProcessable(), now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterCancelAfterPaymentRequested, qty)
	return nil
}

// ApproveCancellationAfterPayment confirms qty units of an open
// cancellation. The order auto-transitions to Cancelled once every
// unit is processed.
func (o *Order) ApproveCancellationAfterPayment(simpleSKU string, qty int, by Actor, now time.Time) error {
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, &it.QtyCancelAfterPaymentRequested, &it.QtyCancelAfterPaymentCancelled, it.QtyCancelAfterPaymentRequested, now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterCancelAfterPaymentCancelled, qty)
	if o.AllQtyProcessed() && o.Status() == StatusPaymentReceived {
		return o.Transition(StatusCancelled, by, now)
	}
	return nil
}

// DeclineCancellationAfterPayment backs qty units out of an open
// cancellation.
func (o *Order) DeclineCancellationAfterPayment(simpleSKU string, qty int, now time.Time) error {
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, &it.QtyCancelAfterPaymentRequested, nil, it.QtyCancelAfterPaymentRequested, now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterCancelAfterPaymentRequested, -qty)
	return nil
}

// Refund settles qty eliminated units. When refunds complete and
// every unit is processed the order auto-transitions to Closed.
func (o *Order) Refund(simpleSKU string, qty int, by Actor, now time.Time) error {
	it, err := o.Item(simpleSKU)
	if err != nil {
		return err
	}
	if err := it.move(qty, nil, &it.QtyRefunded, it.QtyRefundable(), now); err != nil {
		return err
	}
	o.recordCounter(simpleSKU, CounterRefunded, qty)
	if o.AllQtyProcessed() && o.totalRefundable() == 0 {
		switch o.Status() {
		case StatusDelivered, StatusCancelled:
			return o.Transition(StatusClosed, by, now)
		}
	}
	return nil
}

// SubtotalCurrent sums current prices over ordered units.
func (o *Order) SubtotalCurrent() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].CurrentPrice.Mul(decimal.NewFromInt(int64(o.Items[i].QtyOrdered))))
	}
	return total.Round(2)
}

// TotalCurrent is the amount payable: subtotal plus delivery minus
// spent credits.
func (o *Order) TotalCurrent() decimal.Decimal {
	return o.SubtotalCurrent().Add(o.DeliveryCost).Sub(o.CreditsSpent).Round(2)
}

// TotalFbucks sums the credit earnings over all items.
func (o *Order) TotalFbucks() int {
	total := 0
	for i := range o.Items {
		total += o.Items[i].FbucksEarnings
	}
	return total
}
