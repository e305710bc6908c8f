package purchase

import (
	"time"

	"storefront-api/internal/apperr"
)

// CancelItemStatus is the per-item state of a cancel request.
type CancelItemStatus string

const (
	CancelPendingApproval CancelItemStatus = "PendingApproval"
	CancelApproved        CancelItemStatus = "Approved"
	CancelDeclined        CancelItemStatus = "Declined"
)

// ReturnItemStatus is the per-item state of a return request.
type ReturnItemStatus string

const (
	ReturnPendingApproval ReturnItemStatus = "PendingApproval"
	ReturnApproved        ReturnItemStatus = "Approved"
	ReturnCancelled       ReturnItemStatus = "Cancelled"
	ReturnRejected        ReturnItemStatus = "Rejected"
	ReturnPackageSent     ReturnItemStatus = "PackageSent"
	ReturnClosed          ReturnItemStatus = "Closed"
)

// cancelTransitions is the cancel item machine; approved and declined
// are terminal.
var cancelTransitions = map[CancelItemStatus][]CancelItemStatus{
	CancelPendingApproval: {CancelApproved, CancelDeclined},
}

// returnTransitions is the return item machine; cancelled, rejected
// and closed are terminal.
var returnTransitions = map[ReturnItemStatus][]ReturnItemStatus{
	ReturnPendingApproval: {ReturnApproved, ReturnCancelled, ReturnRejected},
	ReturnApproved:        {ReturnPackageSent, ReturnRejected, ReturnClosed},
	ReturnPackageSent:     {ReturnClosed},
}

// Elimination orders for total-status computation, most final first.
var (
	cancelElimination = []string{
		string(CancelDeclined), string(CancelApproved), string(CancelPendingApproval),
	}
	returnElimination = []string{
		string(ReturnCancelled), string(ReturnRejected), string(ReturnClosed),
		string(ReturnPackageSent), string(ReturnApproved), string(ReturnPendingApproval),
	}
)

// totalStatus reduces item statuses to one aggregate status by
// elimination: statuses are struck out in priority order until a
// single distinct one survives; otherwise the lowest-priority
// survivor wins.
func totalStatus(statuses []string, elimination []string) string {
	present := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		present[s] = true
	}
	for _, s := range elimination {
		if len(present) <= 1 {
			break
		}
		delete(present, s)
	}
	for i := len(elimination) - 1; i >= 0; i-- {
		if present[elimination[i]] {
			return elimination[i]
		}
	}
	return ""
}

// CancelRequestItem ties a cancellation line back to an order item.
type CancelRequestItem struct {
	OrderNumber string           `json:"order_number"`
	SimpleSKU   string           `json:"simple_sku"`
	Qty         int              `json:"qty"`
	Status      CancelItemStatus `json:"status"`
}

// CancelRequest groups cancellation lines under one 13-digit number.
type CancelRequest struct {
	Number       string              `json:"number"`
	CustomerID   string              `json:"customer_id"`
	RefundMethod string              `json:"refund_method"`
	Items        []CancelRequestItem `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
	Revision     int                 `json:"revision"`
}

// Item returns the line referring to the given order item.
func (r *CancelRequest) Item(orderNumber, simpleSKU string) (*CancelRequestItem, error) {
	for i := range r.Items {
		if r.Items[i].OrderNumber == orderNumber && r.Items[i].SimpleSKU == simpleSKU {
			return &r.Items[i], nil
		}
	}
	return nil, apperr.NotFound("cancel request %s has no item %s/%s", r.Number, orderNumber, simpleSKU)
}

// TransitionItem moves one line through the cancel item machine.
func (r *CancelRequest) TransitionItem(orderNumber, simpleSKU string, to CancelItemStatus) error {
	it, err := r.Item(orderNumber, simpleSKU)
	if err != nil {
		return err
	}
	for _, next := range cancelTransitions[it.Status] {
		if next == to {
			it.Status = to
			return nil
		}
	}
	return apperr.Logic("cancel request %s item %s cannot move from %s to %s", r.Number, simpleSKU, it.Status, to)
}

// TotalStatus is the aggregate status of the request.
func (r *CancelRequest) TotalStatus() CancelItemStatus {
	statuses := make([]string, len(r.Items))
	for i := range r.Items {
		statuses[i] = string(r.Items[i].Status)
	}
	return CancelItemStatus(totalStatus(statuses, cancelElimination))
}

// ReturnRequestItem ties a return line back to an order item.
type ReturnRequestItem struct {
	OrderNumber string           `json:"order_number"`
	SimpleSKU   string           `json:"simple_sku"`
	Qty         int              `json:"qty"`
	Status      ReturnItemStatus `json:"status"`
}

// ReturnRequest groups return lines under one 13-digit number.
type ReturnRequest struct {
	Number         string              `json:"number"`
	CustomerID     string              `json:"customer_id"`
	DeliveryMethod string              `json:"delivery_method"`
	Items          []ReturnRequestItem `json:"items"`
	CreatedAt      time.Time           `json:"created_at"`
	Revision       int                 `json:"revision"`
}

// Item returns the line referring to the given order item.
func (r *ReturnRequest) Item(orderNumber, simpleSKU string) (*ReturnRequestItem, error) {
	for i := range r.Items {
		if r.Items[i].OrderNumber == orderNumber && r.Items[i].SimpleSKU == simpleSKU {
			return &r.Items[i], nil
		}
	}
	return nil, apperr.NotFound("return request %s has no item %s/%s", r.Number, orderNumber, simpleSKU)
}

// TransitionItem moves one line through the return item machine.
func (r *ReturnRequest) TransitionItem(orderNumber, simpleSKU string, to ReturnItemStatus) error {
	it, err := r.Item(orderNumber, simpleSKU)
	if err != nil {
		return err
	}
	for _, next := range returnTransitions[it.Status] {
		if next == to {
			it.Status = to
			return nil
		}
	}
	return apperr.Logic("return request %s item %s cannot move from %s to %s", r.Number, simpleSKU, it.Status, to)
}

// TotalStatus is the aggregate status of the request.
func (r *ReturnRequest) TotalStatus() ReturnItemStatus {
	statuses := make([]string, len(r.Items))
	for i := range r.Items {
		statuses[i] = string(r.Items[i].Status)
	}
	return ReturnItemStatus(totalStatus(statuses, returnElimination))
}
