package purchase

import (
	"context"
	"errors"

	"storefront-api/internal/apperr"
	"storefront-api/internal/storage"
)

// Index names of the purchase aggregates.
const (
	OrdersIndex         = "orders"
	CancelRequestsIndex = "cancel_requests"
	ReturnRequestsIndex = "return_requests"
)

// replayAttempts bounds optimistic-concurrency retries on one order.
const replayAttempts = 3

// Repository persists the purchase aggregates in the document index.
type Repository struct {
	idx *storage.DocumentIndex
}

// NewRepository wires the repository over the document index.
func NewRepository(idx *storage.DocumentIndex) *Repository {
	return &Repository{idx: idx}
}

// Init creates the aggregate indexes.
func (r *Repository) Init(ctx context.Context) error {
	for _, index := range []string{OrdersIndex, CancelRequestsIndex, ReturnRequestsIndex} {
		if err := r.idx.CreateIndex(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder persists a new order; a duplicate number is rejected.
func (r *Repository) CreateOrder(ctx context.Context, o *Order) error {
	o.Revision = 1
	return r.idx.Create(ctx, OrdersIndex, o.OrderNumber, o)
}

// GetOrder loads one order.
func (r *Repository) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	hit, err := r.idx.Get(ctx, OrdersIndex, orderNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("order %s not found", orderNumber)
	}
	if err != nil {
		return nil, err
	}
	var o Order
	if err := hit.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ApplyOrder runs a mutation against the order under optimistic
// concurrency: reload and replay on revision conflict. The mutated
// order is returned so the caller can publish its drained events.
func (r *Repository) ApplyOrder(ctx context.Context, orderNumber string, mutate func(*Order) error) (*Order, error) {
	var lastErr error
	for attempt := 0; attempt < replayAttempts; attempt++ {
		o, err := r.GetOrder(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		if err := mutate(o); err != nil {
			return nil, err
		}
		expected := o.Revision
		o.Revision++
		err = r.idx.Replace(ctx, OrdersIndex, orderNumber, o, expected)
		if err == nil {
			return o, nil
		}
		if !apperr.IsKind(err, apperr.KindBackendRejected) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperr.Unavailable("order "+orderNumber+" is contended", lastErr)
}

// OrdersByCustomer loads every order of a customer.
func (r *Repository) OrdersByCustomer(ctx context.Context, customerID string) ([]*Order, error) {
	scroll, err := r.idx.ScrollSearch(OrdersIndex, storage.Query{
		Must: []storage.Clause{storage.Term("customer_id", customerID)},
	})
	if err != nil {
		return nil, err
	}
	var orders []*Order
	err = scroll.Each(ctx, func(hit storage.Hit) error {
		var o Order
		if err := hit.Decode(&o); err != nil {
			return err
		}
		orders = append(orders, &o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderedSimpleSKUs returns every simple SKU the customer has ordered,
// feeding the order signal aggregation.
func (r *Repository) OrderedSimpleSKUs(ctx context.Context, customerID string) ([]string, error) {
	orders, err := r.OrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var skus []string
	for _, o := range orders {
		for i := range o.Items {
			skus = append(skus, o.Items[i].SimpleSKU)
		}
	}
	return skus, nil
}

// CreateCancelRequest persists a new cancel request.
func (r *Repository) CreateCancelRequest(ctx context.Context, req *CancelRequest) error {
	req.Revision = 1
	return r.idx.Create(ctx, CancelRequestsIndex, req.Number, req)
}

// GetCancelRequest loads one cancel request.
func (r *Repository) GetCancelRequest(ctx context.Context, number string) (*CancelRequest, error) {
	hit, err := r.idx.Get(ctx, CancelRequestsIndex, number)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("cancel request %s not found", number)
	}
	if err != nil {
		return nil, err
	}
	var req CancelRequest
	if err := hit.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ApplyCancelRequest mutates a cancel request under optimistic
// concurrency.
func (r *Repository) ApplyCancelRequest(ctx context.Context, number string, mutate func(*CancelRequest) error) (*CancelRequest, error) {
	var lastErr error
	for attempt := 0; attempt < replayAttempts; attempt++ {
		req, err := r.GetCancelRequest(ctx, number)
		if err != nil {
			return nil, err
		}
		if err := mutate(req); err != nil {
			return nil, err
		}
		expected := req.Revision
		req.Revision++
		err = r.idx.Replace(ctx, CancelRequestsIndex, number, req, expected)
		if err == nil {
			return req, nil
		}
		if !apperr.IsKind(err, apperr.KindBackendRejected) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperr.Unavailable("cancel request "+number+" is contended", lastErr)
}

// CreateReturnRequest persists a new return request.
func (r *Repository) CreateReturnRequest(ctx context.Context, req *ReturnRequest) error {
	req.Revision = 1
	return r.idx.Create(ctx, ReturnRequestsIndex, req.Number, req)
}

// GetReturnRequest loads one return request.
func (r *Repository) GetReturnRequest(ctx context.Context, number string) (*ReturnRequest, error) {
	hit, err := r.idx.Get(ctx, ReturnRequestsIndex, number)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("return request %s not found", number)
	}
	if err != nil {
		return nil, err
	}
	var req ReturnRequest
	if err := hit.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ApplyReturnRequest mutates a return request under optimistic
// concurrency.
func (r *Repository) ApplyReturnRequest(ctx context.Context, number string, mutate func(*ReturnRequest) error) (*ReturnRequest, error) {
	var lastErr error
	for attempt := 0; attempt < replayAttempts; attempt++ {
		req, err := r.GetReturnRequest(ctx, number)
		if err != nil {
			return nil, err
		}
		if err := mutate(req); err != nil {
			return nil, err
		}
		expected := req.Revision
		req.Revision++
		err = r.idx.Replace(ctx, ReturnRequestsIndex, number, req, expected)
		if err == nil {
			return req, nil
		}
		if !apperr.IsKind(err, apperr.KindBackendRejected) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperr.Unavailable("return request "+number+" is contended", lastErr)
}
