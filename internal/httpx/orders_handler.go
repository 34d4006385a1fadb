package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrderService interface {
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (orders.Order, error)
	TransitionStatus(ctx context.Context, orderID string, status orders.Status) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, error)
	ListProducts(ctx context.Context) ([]inventory.Product, error)
	CheckAvailability(ctx context.Context, productID string, qty int) (bool, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
	Invalidate(ctx context.Context, orderID string) error
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (orderID string, reserved bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// OrdersHandler serves the order and menu routes. Cache and Idem are
// optional; nil disables them.
type OrdersHandler struct {
	Service OrderService
	Cache   StatusCache
	Idem    IdempotencyStore
	Log     *zap.Logger
}

type PlaceOrderReq struct {
	TableNumber int                `json:"table_number"`
	TableToken  string             `json:"table_token,omitempty"`
	Items       []orders.ItemInput `json:"items"`
}

type TransitionReq struct {
	Status string `json:"status"`
}

type OrderStatusResp struct {
	OrderID   string     `json:"order_id"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type AvailabilityResp struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}/availability", h.availability)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)
		r.With(RequireAdmin).Patch("/{id}/status", h.transition)
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	qty := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, apperr.BadRequest("quantity must be a number"))
			return
		}
		qty = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ok, err := h.Service.CheckAvailability(ctx, id, qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResp{ProductID: id, Quantity: qty, Available: ok})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := PrincipalFrom(ctx)
	// Keys are scoped to the caller. Anonymous guests have no scope to
	// share, so their key is ignored.
	idemKey := ""
	if h.Idem != nil && p.ID != "" {
		if k := r.Header.Get(HeaderIdempotencyKey); k != "" {
			idemKey = p.ID + ":" + k
		}
	}
	if idemKey != "" {
		orderID, reserved, err := h.Idem.Reserve(ctx, idemKey)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeProblem(w, http.StatusConflict, "conflict", "request with this idempotency key is still being processed")
			return
		case err != nil:
			// redis unavailable: place without replay protection
			h.Log.Warn("idempotency reserve failed", zap.Error(err))
			idemKey = ""
		case !reserved:
			o, err := h.Service.GetOrder(ctx, orderID)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	o, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderRequest{
		UserID:      p.ID,
		TableNumber: req.TableNumber,
		TableToken:  req.TableToken,
		Items:       req.Items,
	})
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				h.Log.Warn("idempotency release failed", zap.Error(rerr))
			}
		}
		writeError(w, err)
		return
	}
	if idemKey != "" {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), idemKey, o.ID); err != nil {
			h.Log.Warn("idempotency complete failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var filter orders.ListFilter
	q := r.URL.Query()
	if v := q.Get("table_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, apperr.BadRequest("table_number must be a positive number"))
			return
		}
		filter.TableNumber = n
	}
	if v := q.Get("status"); v != "" {
		st, err := orders.ParseStatus(v)
		if err != nil {
			writeError(w, apperr.BadRequest("unknown order status %q", v))
			return
		}
		filter.Status = st
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		cs, ok, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			h.Log.Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, OrderStatusResp{OrderID: orderID, Status: cs.Status, UpdatedAt: cs.UpdatedAt})
			return
		}
	}

	o, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		w.Header().Set("X-Cache", "MISS")
		if err := h.Cache.Set(ctx, orderID, redisx.CachedStatus{Status: string(o.Status), UpdatedAt: o.UpdatedAt}); err != nil {
			h.Log.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, OrderStatusResp{OrderID: o.ID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.TransitionStatus(ctx, orderID, orders.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, orderID); err != nil {
			h.Log.Warn("status cache invalidate failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, o)
}
