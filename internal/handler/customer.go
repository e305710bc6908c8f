package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-api/internal/apperr"
	"storefront-api/internal/customer"
	"storefront-api/internal/models"
	"storefront-api/internal/validation"
)

// requireCustomer resolves the acting customer or rejects the request.
func (h *Handler) requireCustomer(r *http.Request, creds credentials) (string, error) {
	customerID, _ := h.identity(r, creds)
	if customerID == "" {
		return "", apperr.Newf(apperr.KindAuthenticationRequired, "a customer session is required")
	}
	return customerID, nil
}

type addAddressRequest struct {
	credentials
	Address models.DeliveryAddress `json:"address"`
}

// AddDeliveryAddress handles POST /customer/delivery-addresses/add
func (h *Handler) AddDeliveryAddress(w http.ResponseWriter, r *http.Request) {
	var req addAddressRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cust, err := h.customers.AddAddress(r.Context(), customerID, req.Address)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cust.Addresses)
}

type removeAddressRequest struct {
	credentials
	Hash string `json:"hash"`
}

// RemoveDeliveryAddress handles POST /customer/delivery-addresses/remove
func (h *Handler) RemoveDeliveryAddress(w http.ResponseWriter, r *http.Request) {
	var req removeAddressRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Hash == "" {
		h.respondError(w, apperr.Incorrect("address hash is required"))
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cust, err := h.customers.RemoveAddress(r.Context(), customerID, req.Hash)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cust.Addresses)
}

// ListDeliveryAddresses handles GET /customer/delivery-addresses
func (h *Handler) ListDeliveryAddresses(w http.ResponseWriter, r *http.Request) {
	customerID, err := h.requireCustomer(r, credentials{})
	if err != nil {
		h.respondError(w, err)
		return
	}

	cust, err := h.customers.Get(r.Context(), customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cust.Addresses)
}

type saveAnswersRequest struct {
	credentials
	Answers []models.Answer `json:"answers"`
}

// SaveAnswers handles POST /customer/answers
func (h *Handler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	var req saveAnswersRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	customerID, err := h.requireCustomer(r, req.credentials)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.customers.SaveAnswers(r.Context(), customerID, req.Answers); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GetAnswers handles GET /customer/answers
func (h *Handler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	customerID, err := h.requireCustomer(r, credentials{})
	if err != nil {
		h.respondError(w, err)
		return
	}

	answers, err := h.customers.Answers(r.Context(), customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, answers)
}

type listItemRequest struct {
	credentials
	ConfigSKU string `json:"config_sku"`
}

func (h *Handler) listFor(kind customer.ListKind) *customer.ProductList {
	if kind == customer.ListWish {
		return h.wish
	}
	return h.seen
}

// AddToList handles POST /seen/add and POST /wish/add
func (h *Handler) AddToList(kind customer.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req listItemRequest
		if err := h.decode(w, r, &req); err != nil {
			h.respondError(w, err)
			return
		}
		if err := validation.ValidateSKU(req.ConfigSKU, "config_sku"); err != nil {
			h.respondError(w, err)
			return
		}
		customerID, err := h.requireCustomer(r, req.credentials)
		if err != nil {
			h.respondError(w, err)
			return
		}

		if err := h.listFor(kind).Add(r.Context(), customerID, validation.SanitizeString(req.ConfigSKU), time.Now()); err != nil {
			h.respondError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "added"})
	}
}

// RemoveFromList handles POST /seen/remove and POST /wish/remove
func (h *Handler) RemoveFromList(kind customer.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req listItemRequest
		if err := h.decode(w, r, &req); err != nil {
			h.respondError(w, err)
			return
		}
		customerID, err := h.requireCustomer(r, req.credentials)
		if err != nil {
			h.respondError(w, err)
			return
		}

		if err := h.listFor(kind).Remove(r.Context(), customerID, validation.SanitizeString(req.ConfigSKU)); err != nil {
			h.respondError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

// GetList handles GET /seen and GET /wish
func (h *Handler) GetList(kind customer.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := h.requireCustomer(r, credentials{})
		if err != nil {
			h.respondError(w, err)
			return
		}

		entries, err := h.listFor(kind).List(r.Context(), customerID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, entries)
	}
}

// GetStaticPage handles GET /pages/{descriptor}
func (h *Handler) GetStaticPage(w http.ResponseWriter, r *http.Request) {
	descriptor := validation.SanitizeString(chi.URLParam(r, "descriptor"))
	if err := validation.ValidatePageDescriptor(descriptor); err != nil {
		h.respondError(w, err)
		return
	}

	page, err := h.pages.Get(r.Context(), descriptor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}
