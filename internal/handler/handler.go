// Package handler exposes the storefront HTTP API. Application errors
// travel as {Code, Message} payloads on HTTP 200; only backend
// failures surface as 5xx.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront-api/internal/apperr"
	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/middleware"
	"storefront-api/internal/models"
	"storefront-api/internal/purchase"
	"storefront-api/internal/query"
	"storefront-api/internal/tracking"
	"storefront-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	query       *query.Service
	catalog     *catalog.Service
	purchase    *purchase.Service
	customers   *customer.Store
	tiers       *customer.TierStore
	seen        *customer.ProductList
	wish        *customer.ProductList
	pages       *customer.PageStore
	tracker     *tracking.Ingestor
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// Deps bundles the services the handler fronts.
type Deps struct {
	Query     *query.Service
	Catalog   *catalog.Service
	Purchase  *purchase.Service
	Customers *customer.Store
	Tiers     *customer.TierStore
	Seen      *customer.ProductList
	Wish      *customer.ProductList
	Pages     *customer.PageStore
	Tracker   *tracking.Ingestor
}

// NewHandler creates a new handler instance.
func NewHandler(deps Deps) *Handler {
	return NewHandlerWithOptions(deps, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(deps Deps, opts NewHandlerOptions) *Handler {
	return &Handler{
		query:       deps.Query,
		catalog:     deps.Catalog,
		purchase:    deps.Purchase,
		customers:   deps.Customers,
		tiers:       deps.Tiers,
		seen:        deps.Seen,
		wish:        deps.Wish,
		pages:       deps.Pages,
		tracker:     deps.Tracker,
		maxBodySize: opts.MaxBodySize,
	}
}

// ErrorResponse is the error envelope every endpoint shares.
type ErrorResponse struct {
	Code    string
	Message string
}

// credentials is the per-request identity fallback carried inside
// payloads. The session header wins when both are present.
type credentials struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// identity resolves who the request acts for: the session first, the
// payload credentials second.
func (h *Handler) identity(r *http.Request, creds credentials) (customerID, email string) {
	s := middleware.SessionFrom(r.Context())
	if !s.IsAnonymous() {
		return s.CustomerID, s.Email
	}
	if s.Email != "" && creds.Email == "" {
		creds.Email = s.Email
	}
	return creds.CustomerID, creds.Email
}

// tierOf resolves the caller's loyalty tier for payload shaping. Tier
// lookup is best effort; listings still serve without one.
func (h *Handler) tierOf(r *http.Request, customerID string) *models.Tier {
	if customerID == "" {
		return nil
	}
	cust, err := h.customers.Get(r.Context(), customerID)
	if err != nil {
		return nil
	}
	tier, err := h.tiers.TierFor(r.Context(), cust)
	if err != nil {
		return nil
	}
	return &tier
}

// decode reads the JSON request body into dst with the body size cap
// applied.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return apperr.Incorrect("request body is required")
		}
		return apperr.Incorrect("invalid JSON in request body")
	}
	return nil
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps an application error onto the wire. Domain
// outcomes ride HTTP 200 so clients always read the Code field;
// backend failures keep their 5xx so infrastructure can retry.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		h.respondJSON(w, http.StatusOK, ErrorResponse{
			Code:    string(apperr.KindIncorrectInput),
			Message: ve.Error(),
		})
		return
	}
	kind := apperr.KindOf(err)
	status := http.StatusOK
	switch kind {
	case apperr.KindBackendUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.KindBackendRejected, apperr.KindPartialBulkFailure:
		status = http.StatusInternalServerError
	}
	message := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
	}
	h.respondJSON(w, status, ErrorResponse{Code: string(kind), Message: message})
}
