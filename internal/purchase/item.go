package purchase

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/internal/apperr"
)

// Counter names reported on item counter change events.
const (
	CounterReturnRequested             = "return_requested"
	CounterReturnReturned              = "return_returned"
	CounterCancelledBeforePayment      = "cancelled_before_payment"
	CounterCancelAfterPaymentRequested = "cancel_after_payment_requested"
	CounterCancelAfterPaymentCancelled = "cancel_after_payment_cancelled"
	CounterRefunded                    = "refunded"
)

// Item is one order line. The six qty counters partition the ordered
// units across the cancel, return and refund flows.
type Item struct {
	EventCode     string          `json:"event_code"`
	SimpleSKU     string          `json:"simple_sku"`
	ConfigSKU     string          `json:"config_sku"`
	Size          string          `json:"size"`
	OriginalPrice decimal.Decimal `json:"product_original_price"`
	CurrentPrice  decimal.Decimal `json:"product_current_price"`
	DTD           DTD             `json:"dtd"`
	QtyOrdered    int             `json:"qty_ordered"`

	QtyReturnRequested             int `json:"qty_return_requested"`
	QtyReturnReturned              int `json:"qty_return_returned"`
	QtyCancelledBeforePayment      int `json:"qty_cancelled_before_payment"`
	QtyCancelAfterPaymentRequested int `json:"qty_cancel_after_payment_requested"`
	QtyCancelAfterPaymentCancelled int `json:"qty_cancel_after_payment_cancelled"`
	QtyRefunded                    int `json:"qty_refunded"`

	FbucksEarnings int        `json:"fbucks_earnings"`
	QtyModifiedAt  *time.Time `json:"qty_modified_at,omitempty"`
}

// QtyProcessable is the units not yet consumed by any cancel or
// return flow, open requests included.
func (i *Item) QtyProcessable() int {
	return i.QtyOrdered - i.QtyReturnRequested - i.QtyReturnReturned -
		i.QtyCancelledBeforePayment - i.QtyCancelAfterPaymentRequested -
		i.QtyCancelAfterPaymentCancelled
}

// QtyRequested is the units sitting in an open request.
func (i *Item) QtyRequested() int {
	return i.QtyReturnRequested + i.QtyCancelAfterPaymentRequested
}

// QtyRefundable is the units eliminated by return or cancellation and
// not yet refunded.
func (i *Item) QtyRefundable() int {
	return i.QtyReturnReturned + i.QtyCancelAfterPaymentCancelled - i.QtyRefunded
}

func (i *Item) validateCounters() error {
	consumed := i.QtyReturnRequested + i.QtyReturnReturned +
		i.QtyCancelledBeforePayment + i.QtyCancelAfterPaymentRequested +
		i.QtyCancelAfterPaymentCancelled
	if consumed > i.QtyOrdered {
		return apperr.Logic("item %s counters exceed ordered qty", i.SimpleSKU)
	}
	if i.QtyRefunded > i.QtyReturnReturned+i.QtyCancelAfterPaymentCancelled {
		return apperr.Logic("item %s refunded more than eliminated", i.SimpleSKU)
	}
	return nil
}

// move shifts qty units between counters, re-validating the item
// invariants. A nil source draws from the processable pool.
func (i *Item) move(qty int, from, to *int, available int, now time.Time) error {
	if qty <= 0 {
		return apperr.Incorrect("qty must be positive")
	}
	if qty > available {
		return apperr.Logic("item %s has only %d units available, %d requested", i.SimpleSKU, available, qty)
	}
	if from != nil {
		*from -= qty
	}
	if to != nil {
		*to += qty
	}
	if err := i.validateCounters(); err != nil {
		return err
	}
	at := now.UTC()
	i.QtyModifiedAt = &at
	return nil
}
