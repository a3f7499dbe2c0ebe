package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-desk/internal/api/httpx/middlewares"
	orderdomain "github.com/jcmexdev/order-desk/internal/ordering/domain"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// Handler adapts HTTP requests to the catalog, ordering and identity
// services. Authentication has already happened by the time a protected
// handler runs; see NewRouter.
type Handler struct {
	auth    Authenticator
	catalog CatalogService
	orders  OrderService
	users   UserDirectory
	health  HealthCheck
}

// NewHandler wires the services. health may be nil.
func NewHandler(auth Authenticator, catalog CatalogService, orders OrderService, users UserDirectory, health HealthCheck) *Handler {
	return &Handler{
		auth:    auth,
		catalog: catalog,
		orders:  orders,
		users:   users,
		health:  health,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProducts(products))
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.catalog.Add(r.Context(), req.Name, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapProduct(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}

	if _, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Quantity); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrder places an order on behalf of the authenticated caller. The
// user id always comes from the token, never from the body.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := middlewares.ClaimsFromContext(r.Context())

	var req PlaceOrderRequest
	if !decode(w, r, &req) {
		return
	}

	order, err := h.orders.Place(r.Context(), claims.UserID(), mapItemRequests(req.Items))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := middlewares.ClaimsFromContext(r.Context())

	orders, err := h.orders.ListForUser(r.Context(), claims.UserID())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// GetOrder returns one order. Non-admin callers only see their own; someone
// else's order is reported as missing.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := middlewares.ClaimsFromContext(r.Context())

	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !claims.IsAdmin() && order.UserID != claims.UserID() {
		writeServiceError(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}

	status, err := orderdomain.ParseStatus(string(req.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]UserResponse, len(users))
	for i, u := range users {
		s := u.Summary()
		out[i] = UserResponse{ID: s.ID, Login: s.Login}
	}
	writeJSON(w, http.StatusOK, out)
}

// decode reads a JSON body into v and answers 400 itself when it cannot.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// writeServiceError maps the service error taxonomy onto status codes.
// Anything unrecognised is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ire, ok := apperr.IsInvalid(err); ok {
		writeError(w, http.StatusBadRequest, "invalid_request", ire.Reason)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, apperr.ErrAuthFailed):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid login or password")
	case errors.Is(err, occ.ErrRetriesExhausted):
		slog.WarnContext(r.Context(), "update gave up under contention", "error", err)
		writeError(w, http.StatusConflict, "write_contention", "please retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(r.Context(), "request abandoned", "error", err)
		writeError(w, http.StatusServiceUnavailable, "cancelled", "")
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
