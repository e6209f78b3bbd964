package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
)

type OrderLineRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type PlaceOrderRequest struct {
	ShippingAddress string             `json:"shippingAddress" validate:"required"`
	Products        []OrderLineRequest `json:"products" validate:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	service  order.Service
	auth     *Authenticator
	validate *validator.Validate
}

func NewOrderHandler(service order.Service, auth *Authenticator) *OrderHandler {
	return &OrderHandler{
		service:  service,
		auth:     auth,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the order API. Every route needs a caller; reading
// other users' orders and changing or deleting any order is admin only.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Route("/orders", func(r chi.Router) {
		r.Use(h.auth.Authenticate)
		r.Post("/", h.handlePlaceOrder)
		r.Get("/my-orders", h.handleListMyOrders)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.handleListOrders)
			r.Get("/user/{userId}", h.handleListUserOrders)
			r.Get("/{id}", h.handleGetOrderByID)
			r.Patch("/{id}", h.handleUpdateOrderStatus)
			r.Delete("/{id}", h.handleDeleteOrder)
		})
	})
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}

	var requestPayload PlaceOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	in := order.PlaceOrderInput{
		UserID:          me.ID,
		ShippingAddress: requestPayload.ShippingAddress,
		Lines:           make([]order.LineRequest, 0, len(requestPayload.Products)),
	}
	for _, p := range requestPayload.Products {
		in.Lines = append(in.Lines, order.LineRequest{ProductID: p.ProductID, Quantity: p.Quantity})
	}

	placed, err := h.service.PlaceOrder(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err, "Failed to place order")
		return
	}

	respondWithJSON(w, http.StatusCreated, placed)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order by id")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	opts, err := orderQueryOptions(r)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	res, err := h.service.ListOrders(r.Context(), opts)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlUUID(w, r, "userId")
	if !ok {
		return
	}
	h.listByUser(w, r, userID)
}

func (h *OrderHandler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	h.listByUser(w, r, me.ID)
}

func (h *OrderHandler) listByUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	opts, err := orderQueryOptions(r)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list user orders")
		return
	}

	res, err := h.service.ListOrdersByUser(r.Context(), userID, opts)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list user orders")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	status, err := order.ParseStatus(requestPayload.Status)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), orderID, status)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), orderID); err != nil {
		respondWithServiceError(w, err, "Failed to delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderQueryOptions(r *http.Request) (order.QueryOptions, error) {
	page, err := parsePage(r)
	if err != nil {
		return order.QueryOptions{}, err
	}

	opts := order.QueryOptions{Offset: page.Offset, Limit: page.Limit, SortDesc: page.SortDesc}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return order.QueryOptions{}, err
		}
		opts.Status = &status
	}
	return opts, nil
}
