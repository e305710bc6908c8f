package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront-api/internal/apperr"
	"storefront-api/internal/middleware"
	"storefront-api/internal/purchase"
	"storefront-api/internal/validation"
)

type purchaseRequest struct {
	credentials
	purchase.Checkout
}

// Purchase handles POST /purchase
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}
	req.Checkout.CustomerID = customerID
	for i := range req.Checkout.Items {
		req.Checkout.Items[i].SimpleSKU = validation.SanitizeString(req.Checkout.Items[i].SimpleSKU)
	}

	order, err := h.purchase.Purchase(r.Context(), req.Checkout)
	middleware.RecordOperation("purchase", err == nil)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// OrderInfo handles POST /orders/info/{order_number}. The route is
// guarded by the shared read secret, so it serves any order.
func (h *Handler) OrderInfo(w http.ResponseWriter, r *http.Request) {
	orderNumber := validation.SanitizeString(chi.URLParam(r, "order_number"))
	if orderNumber == "" {
		h.respondError(w, apperr.Incorrect("order_number is required"))
		return
	}

	order, err := h.purchase.GetOrder(r.Context(), orderNumber)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// MyOrders handles GET /orders
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := h.requireCustomer(r, credentials{})
	if err != nil {
		h.respondError(w, err)
		return
	}

	orders, err := h.purchase.OrdersByCustomer(r.Context(), customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, orders)
}

// getMyOrder loads one order and checks it belongs to the caller.
func (h *Handler) getMyOrder(r *http.Request, orderNumber, customerID string) (*purchase.Order, error) {
	order, err := h.purchase.GetOrder(r.Context(), orderNumber)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, apperr.Newf(apperr.KindAccessDenied, "order %s belongs to another customer", orderNumber)
	}
	return order, nil
}

type transitionRequest struct {
	credentials
	OrderNumber string `json:"order_number"`
	To          string `json:"to"`
}

// TransitionOrder handles POST /orders/transition
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if _, err := h.getMyOrder(r, req.OrderNumber, customerID); err != nil {
		h.respondError(w, err)
		return
	}

	order, err := h.purchase.TransitionOrder(r.Context(), req.OrderNumber, purchase.Status(req.To), customerID)
	middleware.RecordOperation("order_transition", err == nil)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

type itemQtyRequest struct {
	credentials
	OrderNumber string `json:"order_number"`
	SimpleSKU   string `json:"simple_sku"`
	Qty         int    `json:"qty"`
}

// CancelItemBeforePayment handles POST /orders/cancel-item
func (h *Handler) CancelItemBeforePayment(w http.ResponseWriter, r *http.Request) {
	var req itemQtyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := validation.ValidateQty(req.Qty, "qty"); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if _, err := h.getMyOrder(r, req.OrderNumber, customerID); err != nil {
		h.respondError(w, err)
		return
	}

	order, err := h.purchase.CancelBeforePayment(r.Context(), req.OrderNumber, req.SimpleSKU, req.Qty, customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

// RefundItem handles POST /orders/refund
func (h *Handler) RefundItem(w http.ResponseWriter, r *http.Request) {
	var req itemQtyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := validation.ValidateQty(req.Qty, "qty"); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	order, err := h.purchase.Refund(r.Context(), req.OrderNumber, req.SimpleSKU, req.Qty, customerID)
	middleware.RecordOperation("refund", err == nil)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}

type openCancelRequest struct {
	credentials
	RefundMethod string                 `json:"refund_method"`
	Items        []purchase.RequestLine `json:"items"`
}

// OpenCancelRequest handles POST /cancel-requests
func (h *Handler) OpenCancelRequest(w http.ResponseWriter, r *http.Request) {
	var req openCancelRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	out, err := h.purchase.OpenCancelRequest(r.Context(), customerID, req.RefundMethod, req.Items)
	middleware.RecordOperation("cancel_request", err == nil)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

type resolveCancelRequest struct {
	credentials
	OrderNumber string `json:"order_number"`
	SimpleSKU   string `json:"simple_sku"`
	Approve     bool   `json:"approve"`
}

// ResolveCancelItem handles POST /cancel-requests/{number}/resolve
func (h *Handler) ResolveCancelItem(w http.ResponseWriter, r *http.Request) {
	var req resolveCancelRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, _ := h.identity(r, req.credentials)

	out, err := h.purchase.ResolveCancelItem(r.Context(), chi.URLParam(r, "number"),
		req.OrderNumber, req.SimpleSKU, req.Approve, customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GetCancelRequest handles GET /cancel-requests/{number}
func (h *Handler) GetCancelRequest(w http.ResponseWriter, r *http.Request) {
	out, err := h.purchase.GetCancelRequest(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

type openReturnRequest struct {
	credentials
	DeliveryMethod string                 `json:"delivery_method"`
	Items          []purchase.RequestLine `json:"items"`
}

// OpenReturnRequest handles POST /return-requests
func (h *Handler) OpenReturnRequest(w http.ResponseWriter, r *http.Request) {
	var req openReturnRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	out, err := h.purchase.OpenReturnRequest(r.Context(), customerID, req.DeliveryMethod, req.Items)
	middleware.RecordOperation("return_request", err == nil)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

type advanceReturnRequest struct {
	credentials
	OrderNumber string `json:"order_number"`
	SimpleSKU   string `json:"simple_sku"`
	To          string `json:"to"`
}

// AdvanceReturnItem handles POST /return-requests/{number}/advance
func (h *Handler) AdvanceReturnItem(w http.ResponseWriter, r *http.Request) {
	var req advanceReturnRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	out, err := h.purchase.AdvanceReturnItem(r.Context(), chi.URLParam(r, "number"),
		req.OrderNumber, req.SimpleSKU, purchase.ReturnItemStatus(req.To))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GetReturnRequest handles GET /return-requests/{number}
func (h *Handler) GetReturnRequest(w http.ResponseWriter, r *http.Request) {
	out, err := h.purchase.GetReturnRequest(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}
