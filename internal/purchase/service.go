package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/internal/apperr"
	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
)

// Number prefixes: orders carry "03", cancel requests "4", return
// requests "5", all after the YYMMDD date part.
const (
	orderNumberInfix   = "03"
	cancelNumberInfix  = "4"
	returnNumberInfix  = "5"
	microsecondsFormat = "%06d"
)

// CheckoutItem is one purchased line before it becomes an order item.
type CheckoutItem struct {
	SimpleSKU string `json:"simple_sku"`
	Qty       int    `json:"qty"`
	EventCode string `json:"event_code,omitempty"`
}

// Checkout is the finalised cart a purchase consumes: resolved
// address, frozen delivery cost and reserved credits.
type Checkout struct {
	CustomerID      string                 `json:"customer_id"`
	Items           []CheckoutItem         `json:"items"`
	DeliveryAddress models.DeliveryAddress `json:"delivery_address"`
	DeliveryCost    decimal.Decimal        `json:"delivery_cost"`
	CreditsSpent    decimal.Decimal        `json:"credits_spent"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
}

// RequestLine names an order item and a qty for a cancel or return
// request.
type RequestLine struct {
	OrderNumber string `json:"order_number"`
	SimpleSKU   string `json:"simple_sku"`
	Qty         int    `json:"qty"`
}

// Service drives checkout and the order, cancel-request and
// return-request lifecycles.
type Service struct {
	repo          *Repository
	catalog       *catalog.Service
	customers     *customer.Store
	tiers         *customer.TierStore
	dtd           Calculator
	events        *events.Manager
	vatPercent    int
	maxQtyPerItem int
	now           func() time.Time
}

// NewService wires the purchase service.
func NewService(
	repo *Repository,
	cat *catalog.Service,
	customers *customer.Store,
	tiers *customer.TierStore,
	dtd Calculator,
	evts *events.Manager,
	vatPercent, maxQtyPerItem int,
) *Service {
	if maxQtyPerItem < 1 {
		maxQtyPerItem = 10
	}
	return &Service{
		repo:          repo,
		catalog:       cat,
		customers:     customers,
		tiers:         tiers,
		dtd:           dtd,
		events:        evts,
		vatPercent:    vatPercent,
		maxQtyPerItem: maxQtyPerItem,
		now:           time.Now,
	}
}

// orderNumber builds the 14-digit number: YYMMDD + "03" + microseconds.
func orderNumber(now time.Time) string {
	return now.Format("060102") + orderNumberInfix + fmt.Sprintf(microsecondsFormat, now.Nanosecond()/1000)
}

// requestNumber builds the 13-digit cancel/return number.
func requestNumber(infix string, now time.Time) string {
	return now.Format("060102") + infix + fmt.Sprintf(microsecondsFormat, now.Nanosecond()/1000)
}

// Purchase turns a checkout into a persisted order and decrements
// stock for every line.
func (s *Service) Purchase(ctx context.Context, checkout Checkout) (*Order, error) {
	if checkout.CustomerID == "" {
		return nil, apperr.Newf(apperr.KindAuthenticationRequired, "purchase requires an authenticated customer")
	}
	if len(checkout.Items) == 0 {
		return nil, apperr.Incorrect("checkout has no items")
	}
	cust, err := s.customers.Get(ctx, checkout.CustomerID)
	if err != nil {
		return nil, err
	}
	tier, err := s.tiers.TierFor(ctx, cust)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &Order{
		OrderNumber:     orderNumber(now),
		CustomerID:      cust.ID,
		DeliveryAddress: checkout.DeliveryAddress,
		DeliveryCost:    checkout.DeliveryCost,
		VATPercent:      s.vatPercent,
		CreditsSpent:    checkout.CreditsSpent,
		PaymentMethod:   checkout.PaymentMethod,
		CreatedAt:       now,
		StatusHistory:   []StatusChange{{Status: StatusAwaitingPayment, At: now}},
	}

	for _, line := range checkout.Items {
		if line.Qty <= 0 {
			return nil, apperr.Incorrect("checkout qty for %s must be positive", line.SimpleSKU)
		}
		if line.Qty > s.maxQtyPerItem {
			return nil, apperr.Logic("item %s is added over the %d unit limit", line.SimpleSKU, s.maxQtyPerItem)
		}
		p, err := s.catalog.GetRawBySimpleSKU(ctx, line.SimpleSKU)
		if err != nil {
			return nil, err
		}
		variant, ok := p.Variant(line.SimpleSKU)
		if !ok {
			return nil, apperr.NotFound("simple sku %s not found", line.SimpleSKU)
		}
		if line.Qty > variant.Qty {
			return nil, apperr.Logic("item %s has only %d units in stock", line.SimpleSKU, variant.Qty)
		}
		dtd, err := s.dtd.Calculate(ctx, line.SimpleSKU, line.Qty)
		if err != nil {
			return nil, err
		}
		currentPrice := p.CurrentPrice()
		order.Items = append(order.Items, Item{
			EventCode:      line.EventCode,
			SimpleSKU:      line.SimpleSKU,
			ConfigSKU:      p.ConfigSKU,
			Size:           variant.Size,
			OriginalPrice:  p.Price.Round(2),
			CurrentPrice:   currentPrice,
			DTD:            dtd,
			QtyOrdered:     line.Qty,
			FbucksEarnings: models.Fbucks(currentPrice, tier.CreditBackPercent) * line.Qty,
		})
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	for _, line := range checkout.Items {
		if err := s.catalog.DecrementStock(ctx, line.SimpleSKU, line.Qty); err != nil {
			return nil, err
		}
	}
	s.events.PublishOrderCreated(ctx, order.OrderNumber, order.CustomerID, len(order.Items))
	return order, nil
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	return s.repo.GetOrder(ctx, orderNumber)
}

// OrdersByCustomer lists a customer's orders, newest first.
func (s *Service) OrdersByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	return s.repo.OrdersByCustomer(ctx, customerID)
}

// CalculateDTD estimates delivery time for a variant without
// purchasing.
func (s *Service) CalculateDTD(ctx context.Context, simpleSKU string, qty int) (DTD, error) {
	if _, err := s.catalog.GetRawBySimpleSKU(ctx, simpleSKU); err != nil {
		return DTD{}, err
	}
	return s.dtd.Calculate(ctx, simpleSKU, qty)
}

// actorFor resolves transition privileges for a customer id.
func (s *Service) actorFor(ctx context.Context, customerID string) (Actor, error) {
	if customerID == "" {
		return Actor{}, nil
	}
	cust, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{CustomerID: cust.ID, Staff: cust.IsStaff}, nil
}

func (s *Service) publishEvents(ctx context.Context, o *Order) {
	for _, e := range o.DrainEvents() {
		switch {
		case e.StatusChanged != nil:
			s.events.PublishOrderStatusChanged(ctx, e.StatusChanged.OrderNumber,
				string(e.StatusChanged.From), string(e.StatusChanged.To))
		case e.CounterChanged != nil:
			s.events.PublishOrderItemCounterChanged(ctx, e.CounterChanged.OrderNumber,
				e.CounterChanged.SimpleSKU, e.CounterChanged.Counter, e.CounterChanged.Qty)
		}
	}
}

func (s *Service) applyOrder(ctx context.Context, orderNumber string, mutate func(*Order) error) (*Order, error) {
	o, err := s.repo.ApplyOrder(ctx, orderNumber, mutate)
	if err != nil {
		return nil, err
	}
	s.publishEvents(ctx, o)
	return o, nil
}

// TransitionOrder moves an order through its status graph on behalf of
// the acting customer.
func (s *Service) TransitionOrder(ctx context.Context, orderNumber string, to Status, customerID string) (*Order, error) {
	actor, err := s.actorFor(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.applyOrder(ctx, orderNumber, func(o *Order) error {
		return o.Transition(to, actor, s.now())
	})
}

// CancelBeforePayment cancels units of one item while no payment has
// moved.
func (s *Service) CancelBeforePayment(ctx context.Context, orderNumber, simpleSKU string, qty int, customerID string) (*Order, error) {
	actor, err := s.actorFor(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.applyOrder(ctx, orderNumber, func(o *Order) error {
		return o.CancelBeforePayment(simpleSKU, qty, actor, s.now())
	})
}

// Refund settles eliminated units of one item.
func (s *Service) Refund(ctx context.Context, orderNumber, simpleSKU string, qty int, customerID string) (*Order, error) {
	actor, err := s.actorFor(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.applyOrder(ctx, orderNumber, func(o *Order) error {
		return o.Refund(simpleSKU, qty, actor, s.now())
	})
}

// OpenCancelRequest opens a cancellation for paid units across one or
// more orders and records the request aggregate.
func (s *Service) OpenCancelRequest(ctx context.Context, customerID, refundMethod string, lines []RequestLine) (*CancelRequest, error) {
	if len(lines) == 0 {
		return nil, apperr.Incorrect("cancel request has no items")
	}
	now := s.now().UTC()
	req := &CancelRequest{
		Number:       requestNumber(cancelNumberInfix, now),
		CustomerID:   customerID,
		RefundMethod: refundMethod,
		CreatedAt:    now,
	}
	for _, line := range lines {
		if _, err := s.applyOrder(ctx, line.OrderNumber, func(o *Order) error {
			if o.CustomerID != customerID {
				return apperr.Newf(apperr.KindAccessDenied, "order %s belongs to another customer", o.OrderNumber)
			}
			return o.RequestCancellationAfterPayment(line.SimpleSKU, line.Qty, s.now())
		}); err != nil {
			return nil, err
		}
		req.Items = append(req.Items, CancelRequestItem{
			OrderNumber: line.OrderNumber,
			SimpleSKU:   line.SimpleSKU,
			Qty:         line.Qty,
			Status:      CancelPendingApproval,
		})
	}
	if err := s.repo.CreateCancelRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveCancelItem approves or declines one cancel-request line and
// applies the decision to the order counters. The order mutation runs
// after the request replay loop; a revision-conflict retry on the
// request must not repeat it.
func (s *Service) ResolveCancelItem(ctx context.Context, number, orderNumber, simpleSKU string, approve bool, staffID string) (*CancelRequest, error) {
	actor, err := s.actorFor(ctx, staffID)
	if err != nil {
		return nil, err
	}
	var qty int
	req, err := s.repo.ApplyCancelRequest(ctx, number, func(req *CancelRequest) error {
		it, err := req.Item(orderNumber, simpleSKU)
		if err != nil {
			return err
		}
		qty = it.Qty
		to := CancelDeclined
		if approve {
			to = CancelApproved
		}
		return req.TransitionItem(orderNumber, simpleSKU, to)
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.applyOrder(ctx, orderNumber, func(o *Order) error {
		if approve {
			return o.ApproveCancellationAfterPayment(simpleSKU, qty, actor, s.now())
		}
		return o.DeclineCancellationAfterPayment(simpleSKU, qty, s.now())
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// OpenReturnRequest opens a return for delivered units and records the
// request aggregate.
func (s *Service) OpenReturnRequest(ctx context.Context, customerID, deliveryMethod string, lines []RequestLine) (*ReturnRequest, error) {
	if len(lines) == 0 {
		return nil, apperr.Incorrect("return request has no items")
	}
	now := s.now().UTC()
	req := &ReturnRequest{
		Number:         requestNumber(returnNumberInfix, now),
		CustomerID:     customerID,
		DeliveryMethod: deliveryMethod,
		CreatedAt:      now,
	}
	for _, line := range lines {
		if _, err := s.applyOrder(ctx, line.OrderNumber, func(o *Order) error {
			if o.CustomerID != customerID {
				return apperr.Newf(apperr.KindAccessDenied, "order %s belongs to another customer", o.OrderNumber)
			}
			return o.RequestReturn(line.SimpleSKU, line.Qty, s.now())
		}); err != nil {
			return nil, err
		}
		req.Items = append(req.Items, ReturnRequestItem{
			OrderNumber: line.OrderNumber,
			SimpleSKU:   line.SimpleSKU,
			Qty:         line.Qty,
			Status:      ReturnPendingApproval,
		})
	}
	if err := s.repo.CreateReturnRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// AdvanceReturnItem moves one return-request line through its machine
// and mirrors the outcome onto the order counters. Approving and
// sending the package only change the request; cancelling or
// rejecting releases the units, closing settles them as returned.
// The order mutation runs after the request replay loop; a
// revision-conflict retry on the request must not repeat it.
func (s *Service) AdvanceReturnItem(ctx context.Context, number, orderNumber, simpleSKU string, to ReturnItemStatus) (*ReturnRequest, error) {
	var qty int
	req, err := s.repo.ApplyReturnRequest(ctx, number, func(req *ReturnRequest) error {
		it, err := req.Item(orderNumber, simpleSKU)
		if err != nil {
			return err
		}
		qty = it.Qty
		return req.TransitionItem(orderNumber, simpleSKU, to)
	})
	if err != nil {
		return nil, err
	}
	var mutate func(*Order) error
	switch to {
	case ReturnCancelled:
		mutate = func(o *Order) error { return o.DeclineReturn(simpleSKU, qty, s.now()) }
	case ReturnRejected:
		mutate = func(o *Order) error { return o.RejectReturn(simpleSKU, qty, s.now()) }
	case ReturnClosed:
		mutate = func(o *Order) error { return o.CloseReturn(simpleSKU, qty, s.now()) }
	}
	if mutate != nil {
		if _, err := s.applyOrder(ctx, orderNumber, mutate); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// GetCancelRequest loads one cancel request.
func (s *Service) GetCancelRequest(ctx context.Context, number string) (*CancelRequest, error) {
	return s.repo.GetCancelRequest(ctx, number)
}

// GetReturnRequest loads one return request.
func (s *Service) GetReturnRequest(ctx context.Context, number string) (*ReturnRequest, error) {
	return s.repo.GetReturnRequest(ctx, number)
}
