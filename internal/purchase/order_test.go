package purchase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/apperr"
	"storefront-api/internal/models"
)

var testClock = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

// testOrder builds an order with two lines of 2 and 1 units.
func testOrder(status ...Status) *Order {
	o := &Order{
		OrderNumber: "25060203000001",
		CustomerID:  "c1",
		Items: []Item{
			{
				SimpleSKU: "A-M", ConfigSKU: "A", Size: "M",
				OriginalPrice: decimal.NewFromInt(100), CurrentPrice: decimal.NewFromInt(50),
				QtyOrdered: 2, FbucksEarnings: 10,
			},
			{
				SimpleSKU: "B-S", ConfigSKU: "B", Size: "S",
				OriginalPrice: decimal.NewFromInt(60), CurrentPrice: decimal.NewFromInt(60),
				QtyOrdered: 1, FbucksEarnings: 6,
			},
		},
		CreatedAt:     testClock,
		StatusHistory: []StatusChange{{Status: StatusAwaitingPayment, At: testClock}},
		Revision:      1,
	}
	at := testClock
	for _, s := range status {
		at = at.Add(time.Hour)
		o.StatusHistory = append(o.StatusHistory, StatusChange{Status: s, At: at})
	}
	return o
}

func TestOrderTotals(t *testing.T) {
	o := testOrder()
	o.DeliveryCost = decimal.NewFromInt(60)
	o.CreditsSpent = decimal.NewFromInt(10)

	require.True(t, decimal.NewFromInt(160).Equal(o.SubtotalCurrent()))
	require.True(t, decimal.NewFromInt(210).Equal(o.TotalCurrent()))
	require.Equal(t, 16, o.TotalFbucks())
}

func TestItemCounters(t *testing.T) {
	it := Item{SimpleSKU: "A-M", QtyOrdered: 5}
	require.Equal(t, 5, it.QtyProcessable())
	require.Equal(t, 0, it.QtyRequested())
	require.Equal(t, 0, it.QtyRefundable())

	it.QtyReturnRequested = 2
	it.QtyCancelledBeforePayment = 1
	require.Equal(t, 2, it.QtyProcessable())
	require.Equal(t, 2, it.QtyRequested())

	it.QtyReturnRequested = 0
	it.QtyReturnReturned = 2
	require.Equal(t, 2, it.QtyRefundable())
	it.QtyRefunded = 1
	require.Equal(t, 1, it.QtyRefundable())
}

func TestItemMoveGuards(t *testing.T) {
	o := testOrder()

	err := o.RequestCancellationAfterPayment("A-M", 1, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	// More units than the line holds.
	err = o.CancelBeforePayment("A-M", 3, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	err = o.CancelBeforePayment("A-M", 0, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindIncorrectInput))

	err = o.CancelBeforePayment("GHOST", 1, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		order   *Order
		to      Status
		by      Actor
		allowed bool
	}{
		{"awaiting payment to payment sent", testOrder(), StatusPaymentSent, Actor{}, true},
		{"awaiting payment to on hold", testOrder(), StatusOnHold, Actor{}, true},
		{"awaiting payment straight to delivered", testOrder(), StatusDelivered, Actor{}, false},
		{"awaiting payment to cancelled with unprocessed units", testOrder(), StatusCancelled, Actor{}, false},
		{"payment sent to received", testOrder(StatusPaymentSent), StatusPaymentReceived, Actor{}, true},
		{"payment sent to closed", testOrder(StatusPaymentSent), StatusClosed, Actor{}, true},
		{"received to courier", testOrder(StatusPaymentSent, StatusPaymentReceived), StatusAwaitingCourier, Actor{}, true},
		{"received to delivered by customer", testOrder(StatusPaymentSent, StatusPaymentReceived), StatusDelivered, Actor{}, false},
		{"received to delivered by staff", testOrder(StatusPaymentSent, StatusPaymentReceived), StatusDelivered, Actor{Staff: true}, true},
		{"courier to transit", testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier), StatusInTransit, Actor{}, true},
		{"transit to delivered", testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier, StatusInTransit), StatusDelivered, Actor{}, true},
		{"transit backwards", testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier, StatusInTransit), StatusAwaitingCourier, Actor{}, false},
		{"delivered to closed with nothing refundable", testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier, StatusInTransit, StatusDelivered), StatusClosed, Actor{}, true},
		{"closed is terminal", testOrder(StatusPaymentSent, StatusClosed), StatusAwaitingPayment, Actor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Transition(tt.to, tt.by, testClock.Add(24*time.Hour))
			if tt.allowed {
				require.NoError(t, err)
				require.Equal(t, tt.to, tt.order.Status())
			} else {
				require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
			}
		})
	}
}

func TestFastDeliveryPostalCode(t *testing.T) {
	o := testOrder(StatusPaymentSent, StatusPaymentReceived)
	o.DeliveryAddress = models.DeliveryAddress{PostalCode: FastDeliveryPostalCode}

	require.NoError(t, o.Transition(StatusDelivered, Actor{}, testClock))
	require.Equal(t, StatusDelivered, o.Status())
}

func TestOnHoldReentry(t *testing.T) {
	t.Run("back to awaiting payment before any movement", func(t *testing.T) {
		o := testOrder(StatusOnHold)
		require.NoError(t, o.Transition(StatusAwaitingPayment, Actor{}, testClock))
	})

	t.Run("cannot skip to payment received", func(t *testing.T) {
		o := testOrder(StatusOnHold)
		err := o.Transition(StatusPaymentReceived, Actor{}, testClock)
		require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
	})

	t.Run("back to payment sent during the gap", func(t *testing.T) {
		o := testOrder(StatusPaymentSent, StatusOnHold)
		require.NoError(t, o.Transition(StatusPaymentSent, Actor{}, testClock))
	})

	t.Run("back to reached milestone only", func(t *testing.T) {
		o := testOrder(StatusPaymentSent, StatusPaymentReceived, StatusOnHold)
		require.NoError(t, o.Transition(StatusPaymentReceived, Actor{}, testClock))

		o = testOrder(StatusPaymentSent, StatusPaymentReceived, StatusOnHold)
		err := o.Transition(StatusAwaitingCourier, Actor{}, testClock)
		require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
	})
}

func TestCancelBeforePaymentAutoCancels(t *testing.T) {
	o := testOrder()

	require.NoError(t, o.CancelBeforePayment("A-M", 2, Actor{}, testClock))
	require.Equal(t, StatusAwaitingPayment, o.Status())

	require.NoError(t, o.CancelBeforePayment("B-S", 1, Actor{}, testClock))
	require.Equal(t, StatusCancelled, o.Status())

	// Nothing left to cancel.
	err := o.CancelBeforePayment("A-M", 1, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
}

func TestCancelBeforePaymentRejectedAfterPayment(t *testing.T) {
	o := testOrder(StatusPaymentSent, StatusPaymentReceived)

	err := o.CancelBeforePayment("A-M", 1, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
}

func TestCancellationAfterPaymentFlow(t *testing.T) {
	o := testOrder(StatusPaymentSent, StatusPaymentReceived)

	require.NoError(t, o.RequestCancellationAfterPayment("A-M", 2, testClock))
	require.NoError(t, o.RequestCancellationAfterPayment("B-S", 1, testClock))

	// Declining releases the units.
	require.NoError(t, o.DeclineCancellationAfterPayment("B-S", 1, testClock))
	it, err := o.Item("B-S")
	require.NoError(t, err)
	require.Equal(t, 1, it.QtyProcessable())

	// Approving eliminates them; the order is not fully processed yet.
	require.NoError(t, o.ApproveCancellationAfterPayment("A-M", 2, Actor{}, testClock))
	require.Equal(t, StatusPaymentReceived, o.Status())

	// Approving the rest auto-cancels the order.
	require.NoError(t, o.RequestCancellationAfterPayment("B-S", 1, testClock))
	require.NoError(t, o.ApproveCancellationAfterPayment("B-S", 1, Actor{}, testClock))
	require.Equal(t, StatusCancelled, o.Status())

	// Closing waits on refunds for the cancelled units.
	err = o.Transition(StatusClosed, Actor{}, testClock)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	require.NoError(t, o.Refund("A-M", 2, Actor{}, testClock))
	require.NoError(t, o.Refund("B-S", 1, Actor{}, testClock))
	// The last refund auto-closes.
	require.Equal(t, StatusClosed, o.Status())
}

func TestReturnFlow(t *testing.T) {
	o := testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier, StatusInTransit, StatusDelivered)
	deliveredAt, ok := o.StatusAt(StatusDelivered)
	require.True(t, ok)

	require.True(t, o.IsReturnable(deliveredAt.Add(13*24*time.Hour)))
	require.False(t, o.IsReturnable(deliveredAt.Add(15*24*time.Hour)))

	now := deliveredAt.Add(24 * time.Hour)
	require.NoError(t, o.RequestReturn("A-M", 2, now))

	// One unit comes back to the customer, one is returned.
	require.NoError(t, o.DeclineReturn("A-M", 1, now))
	require.NoError(t, o.CloseReturn("A-M", 1, now))

	it, err := o.Item("A-M")
	require.NoError(t, err)
	require.Equal(t, 1, it.QtyProcessable())
	require.Equal(t, 1, it.QtyReturnReturned)
	require.Equal(t, 1, it.QtyRefundable())

	// Delivered cannot close while a refund is owed.
	err = o.Transition(StatusClosed, Actor{}, now)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))

	require.NoError(t, o.Refund("A-M", 1, Actor{}, now))
	// Refund alone does not close: a processable unit remains.
	require.Equal(t, StatusDelivered, o.Status())
	require.NoError(t, o.Transition(StatusClosed, Actor{}, now))
}

func TestRefundOverEliminated(t *testing.T) {
	o := testOrder(StatusPaymentSent, StatusPaymentReceived, StatusAwaitingCourier, StatusInTransit, StatusDelivered)
	deliveredAt, _ := o.StatusAt(StatusDelivered)
	now := deliveredAt.Add(time.Hour)

	require.NoError(t, o.RequestReturn("A-M", 1, now))
	require.NoError(t, o.CloseReturn("A-M", 1, now))

	err := o.Refund("A-M", 2, Actor{}, now)
	require.True(t, apperr.IsKind(err, apperr.KindApplicationLogic))
	require.NoError(t, o.Refund("A-M", 1, Actor{}, now))
}

func TestDrainEvents(t *testing.T) {
	o := testOrder()

	require.NoError(t, o.CancelBeforePayment("A-M", 1, Actor{}, testClock))
	events := o.DrainEvents()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].CounterChanged)
	require.Equal(t, CounterCancelledBeforePayment, events[0].CounterChanged.Counter)
	require.Equal(t, 1, events[0].CounterChanged.Qty)

	// Draining clears the queue.
	require.Empty(t, o.DrainEvents())

	require.NoError(t, o.Transition(StatusPaymentSent, Actor{}, testClock))
	events = o.DrainEvents()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].StatusChanged)
	require.Equal(t, StatusAwaitingPayment, events[0].StatusChanged.From)
	require.Equal(t, StatusPaymentSent, events[0].StatusChanged.To)
}
