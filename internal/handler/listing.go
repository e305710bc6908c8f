package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-api/internal/middleware"
	"storefront-api/internal/models"
	"storefront-api/internal/tracking"
	"storefront-api/internal/validation"
)

type listRequest struct {
	credentials
	Filter models.ProductFilter `json:"filter"`
	Sorts  []models.SortOrder   `json:"sorts"`
	Page   int                  `json:"page"`
	Size   int                  `json:"size"`
}

// ListProductsByFilter handles POST /list-products-by-filter
func (h *Handler) ListProductsByFilter(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if err := validation.ValidatePagination(req.Page, req.Size); err != nil {
		h.respondError(w, err)
		return
	}

	customerID, email := h.identity(r, req.credentials)
	tier := h.tierOf(r, customerID)

	page, err := h.query.ListByFilter(r.Context(), customerID, email, req.Filter, req.Sorts, req.Page, req.Size, tier)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /get/{config_sku}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	configSKU := validation.SanitizeString(chi.URLParam(r, "config_sku"))
	if err := validation.ValidateSKU(configSKU, "config_sku"); err != nil {
		h.respondError(w, err)
		return
	}

	p, err := h.catalog.Get(r.Context(), configSKU)
	if err != nil {
		h.respondError(w, err)
		return
	}

	customerID, _ := h.identity(r, credentials{})
	h.respondJSON(w, http.StatusOK, models.ShapeProduct(p, 0, h.tierOf(r, customerID)))
}

type availableFilterRequest struct {
	Filter     models.ProductFilter `json:"filter"`
	Descending bool                 `json:"descending"`
}

// AvailableFilter handles POST /available-filter
func (h *Handler) AvailableFilter(w http.ResponseWriter, r *http.Request) {
	var req availableFilterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	filters, err := h.catalog.AvailableFilter(r.Context(), req.Filter, req.Descending)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, filters)
}

// CalculateDTD handles GET /calculate-dtd/{simple_sku}/{qty}
func (h *Handler) CalculateDTD(w http.ResponseWriter, r *http.Request) {
	simpleSKU := validation.SanitizeString(chi.URLParam(r, "simple_sku"))
	if err := validation.ValidateSKU(simpleSKU, "simple_sku"); err != nil {
		h.respondError(w, err)
		return
	}
	qty, err := strconv.Atoi(chi.URLParam(r, "qty"))
	if err != nil {
		h.respondError(w, validation.ValidateQty(0, "qty"))
		return
	}
	if err := validation.ValidateQty(qty, "qty"); err != nil {
		h.respondError(w, err)
		return
	}

	dtd, err := h.purchase.CalculateDTD(r.Context(), simpleSKU, qty)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, dtd)
}

// pageParams reads the page and size query parameters.
func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	return page, size
}

// NewProducts handles GET /new-products
func (h *Handler) NewProducts(w http.ResponseWriter, r *http.Request) {
	customerID, email := h.identity(r, credentials{})
	page, size := pageParams(r)

	result, err := h.query.GetNewProducts(r.Context(), customerID, email,
		validation.SanitizeString(r.URL.Query().Get("gender")), page, size, h.tierOf(r, customerID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// LastChance handles GET /last-chance
func (h *Handler) LastChance(w http.ResponseWriter, r *http.Request) {
	customerID, email := h.identity(r, credentials{})
	page, size := pageParams(r)

	result, err := h.query.GetLastChance(r.Context(), customerID, email,
		validation.SanitizeString(r.URL.Query().Get("gender")), page, size, h.tierOf(r, customerID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// CategoriesByGender handles GET /categories/{gender}
func (h *Handler) CategoriesByGender(w http.ResponseWriter, r *http.Request) {
	gender := validation.SanitizeString(chi.URLParam(r, "gender"))
	values, err := h.query.GetCategoriesByGender(r.Context(), gender)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, values)
}

// SizesByProductType handles GET /sizes/{product_type}
func (h *Handler) SizesByProductType(w http.ResponseWriter, r *http.Request) {
	productType := validation.SanitizeString(chi.URLParam(r, "product_type"))
	values, err := h.query.GetSizesByProductType(r.Context(), productType)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, values)
}

// BySize handles GET /by-size/{size}
func (h *Handler) BySize(w http.ResponseWriter, r *http.Request) {
	customerID, email := h.identity(r, credentials{})
	page, size := pageParams(r)

	result, err := h.query.GetBySize(r.Context(), customerID, email,
		validation.SanitizeString(chi.URLParam(r, "size")), page, size, h.tierOf(r, customerID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// TopBrands handles GET /top-brands
func (h *Handler) TopBrands(w http.ResponseWriter, r *http.Request) {
	values, err := h.query.GetTopBrands(r.Context(), validation.SanitizeString(r.URL.Query().Get("gender")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, values)
}

// CompleteLooks handles GET /complete-looks/{config_sku}
func (h *Handler) CompleteLooks(w http.ResponseWriter, r *http.Request) {
	configSKU := validation.SanitizeString(chi.URLParam(r, "config_sku"))
	if err := validation.ValidateSKU(configSKU, "config_sku"); err != nil {
		h.respondError(w, err)
		return
	}

	customerID, email := h.identity(r, credentials{})
	page, size := pageParams(r)

	result, err := h.query.GetCompleteLooks(r.Context(), customerID, email, configSKU, page, size, h.tierOf(r, customerID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

type trackRequest struct {
	credentials
	ConfigSKU  string `json:"config_sku"`
	Position   int    `json:"position,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`

	// Serve-time context forwarded to the archive stream.
	SessionID       string          `json:"session_id,omitempty"`
	Product         *models.Product `json:"product_data,omitempty"`
	Tier            *models.Tier    `json:"tier,omitempty"`
	WeightVersion   int             `json:"weight_version,omitempty"`
	QuestionScore   float64         `json:"question_score,omitempty"`
	OrderScore      float64         `json:"order_score,omitempty"`
	TrackingScore   float64         `json:"tracking_score,omitempty"`
	QuestionWeight  float64         `json:"question_weight,omitempty"`
	OrderWeight     float64         `json:"order_weight,omitempty"`
	TrackWeight     float64         `json:"track_weight,omitempty"`
	PercentageScore float64         `json:"percentage_score,omitempty"`
}

// TrackProduct handles POST /product/{view|click|visit}. The action
// comes from the route, the rest from the payload.
func (h *Handler) TrackProduct(actionType tracking.ActionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackRequest
		if err := h.decode(w, r, &req); err != nil {
			h.respondError(w, err)
			return
		}

		occurredAt := time.Now().UTC()
		if req.OccurredAt != "" {
			parsed, err := validation.ValidateTimeString(req.OccurredAt)
			if err != nil {
				h.respondError(w, err)
				return
			}
			occurredAt = parsed.UTC()
		}

		customerID, _ := h.identity(r, req.credentials)
		err := h.tracker.Ingest(r.Context(), []tracking.Action{{
			Type:            actionType,
			ConfigSKU:       validation.SanitizeString(req.ConfigSKU),
			CustomerID:      customerID,
			SessionID:       req.SessionID,
			Position:        req.Position,
			OccurredAt:      occurredAt,
			Product:         req.Product,
			Tier:            req.Tier,
			WeightVersion:   req.WeightVersion,
			QuestionScore:   req.QuestionScore,
			OrderScore:      req.OrderScore,
			TrackingScore:   req.TrackingScore,
			QuestionWeight:  req.QuestionWeight,
			OrderWeight:     req.OrderWeight,
			TrackWeight:     req.TrackWeight,
			PercentageScore: req.PercentageScore,
		}})
		middleware.RecordOperation("track_"+string(actionType), err == nil)
		if err != nil {
			h.respondError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}
