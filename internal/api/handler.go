package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/opensource-finance/rebate/internal/repository"
)

// Calculator runs a single rebate calculation.
type Calculator interface {
	ProcessRebateRequest(ctx context.Context, req domain.CalculateRebateRequest) (domain.Option[domain.Rebate], error)
}

// ConditionValidator checks a rebate condition before it is stored.
type ConditionValidator interface {
	Validate(expr string) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	calculator Calculator
	conditions ConditionValidator
	version    string
}

// NewHandler creates a new API handler. cache, bus and conditions may be nil.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, calculator Calculator, conditions ConditionValidator, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		calculator: calculator,
		conditions: conditions,
		version:    version,
	}
}

// notApplicableBody is the body returned when no rebate could be calculated.
var notApplicableBody = map[string]string{"error": "no rebate could be calculated"}

type response struct {
	status int
	body   any
}

// Calculate handles POST /calculations.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	outcome, err := h.calculator.ProcessRebateRequest(r.Context(), req.ToDomain())
	if err != nil {
		slog.Error("rebate calculation failed",
			"rebate_id", req.RebateIdentifier,
			"product_id", req.ProductIdentifier,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "rebate calculation failed",
		})
		return
	}

	res := domain.Match(outcome,
		func() response { return response{http.StatusBadRequest, notApplicableBody} },
		func(rebate domain.Rebate) response { return response{http.StatusOK, rebate} },
	)
	writeJSON(w, res.status, res.body)
}

// CalculateAsync handles POST /calculations/async.
// The request is queued on the event bus and answered on the result topic.
func (h *Handler) CalculateAsync(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "asynchronous calculation is not enabled",
		})
		return
	}

	var req CalculateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg := domain.CalculationRequestMessage{
		RequestID: uuid.New().String(),
		Request:   req.ToDomain(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode request"})
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicCalculationRequested, payload); err != nil {
		slog.Error("failed to queue calculation", "request_id", msg.RequestID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue calculation",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, AsyncCalculateResponse{
		RequestID: msg.RequestID,
		Topic:     domain.TopicCalculationResult,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.calculator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	if err := h.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// ListRebates handles GET /rebates.
func (h *Handler) ListRebates(w http.ResponseWriter, r *http.Request) {
	rebates, err := h.repo.ListRebates(r.Context())
	if err != nil {
		slog.Error("failed to list rebates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rebates"})
		return
	}
	if rebates == nil {
		rebates = []*domain.Rebate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rebates": rebates,
		"count":   len(rebates),
	})
}

// GetRebate handles GET /rebates/{id}.
func (h *Handler) GetRebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rebate, err := h.repo.GetRebate(r.Context(), id)
	if err != nil {
		slog.Error("failed to get rebate", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get rebate"})
		return
	}

	res := domain.Match(rebate,
		func() response { return response{http.StatusNotFound, map[string]string{"error": "rebate not found"}} },
		func(rb domain.Rebate) response { return response{http.StatusOK, rb} },
	)
	writeJSON(w, res.status, res.body)
}

// CreateRebate handles POST /rebates. Existing rebates are replaced.
func (h *Handler) CreateRebate(w http.ResponseWriter, r *http.Request) {
	var req RebateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.conditions != nil {
		if err := h.conditions.Validate(req.Condition); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid condition: " + err.Error(),
			})
			return
		}
	}

	rebate := req.ToDomain()
	if err := h.repo.SaveRebate(r.Context(), rebate); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("failed to save rebate", "id", rebate.Identifier, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save rebate"})
		return
	}

	slog.Info("rebate saved", "id", rebate.Identifier, "incentive", rebate.Incentive.String())
	writeJSON(w, http.StatusCreated, rebate)
}

// DeleteRebate handles DELETE /rebates/{id}.
func (h *Handler) DeleteRebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.delete(w, r, "rebate", id, h.repo.DeleteRebate)
}

// GetCalculation handles GET /rebates/{id}/calculation.
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	calc, err := h.repo.GetCalculation(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calculation stored for rebate"})
		return
	}
	if err != nil {
		slog.Error("failed to get calculation", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get calculation"})
		return
	}

	writeJSON(w, http.StatusOK, calc)
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		slog.Error("failed to list products", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list products"})
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		slog.Error("failed to get product", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get product"})
		return
	}

	res := domain.Match(product,
		func() response { return response{http.StatusNotFound, map[string]string{"error": "product not found"}} },
		func(p domain.Product) response { return response{http.StatusOK, p} },
	)
	writeJSON(w, res.status, res.body)
}

// CreateProduct handles POST /products. Existing products are replaced.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product := req.ToDomain()
	if err := h.repo.SaveProduct(r.Context(), product); err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("failed to save product", "id", product.Identifier, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save product"})
		return
	}

	slog.Info("product saved", "id", product.Identifier, "incentives", product.SupportedIncentives.String())
	writeJSON(w, http.StatusCreated, product)
}

// DeleteProduct handles DELETE /products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.delete(w, r, "product", id, h.repo.DeleteProduct)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, kind, id string, del func(context.Context, string) error) {
	err := del(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": kind + " not found"})
		return
	}
	if err != nil {
		slog.Error("failed to delete "+kind, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete " + kind})
		return
	}

	slog.Info(kind+" deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// decodeAndValidate decodes the JSON body into dst and validates it,
// writing a 400 response and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return false
	}

	if err := validateRequest(dst); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "validation failed",
				"details": verr.Details,
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
