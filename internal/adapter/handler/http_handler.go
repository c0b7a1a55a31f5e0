package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rl1809/redis-cart/internal/core/domain"
	"github.com/rl1809/redis-cart/internal/core/service"
)

type HTTPHandler struct {
	cartService   *service.CartService
	numberService *service.NumberService
	userService   *service.UserService
}

func NewHTTPHandler(carts *service.CartService, numbers *service.NumberService, users *service.UserService) *HTTPHandler {
	return &HTTPHandler{
		cartService:   carts,
		numberService: numbers,
		userService:   users,
	}
}

// Register wires all routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/cart", h.Cart)
	mux.HandleFunc("/api/cart/items", h.AddItem)
	mux.HandleFunc("/api/cart/items/remove", h.RemoveItem)
	mux.HandleFunc("/api/cart/clear", h.ClearCart)
	mux.HandleFunc("/api/checkout", h.Checkout)
	mux.HandleFunc("/api/orders", h.RecentOrders)
	mux.HandleFunc("/api/numbers", h.Numbers)
	mux.HandleFunc("/api/numbers/sequential", h.InsertSequential)
	mux.HandleFunc("/api/numbers/random", h.InsertRandom)
	mux.HandleFunc("/api/users", h.Users)
}

type cartItemRequest struct {
	UserID   string `json:"user_id"`
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

type cartItemResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	SKU      string `json:"sku,omitempty"`
	Quantity int64  `json:"quantity"`
}

type cartResponse struct {
	UserID string           `json:"user_id"`
	Items  map[string]int64 `json:"items"`
}

type replaceCartRequest struct {
	UserID string           `json:"user_id"`
	Items  map[string]int64 `json:"items"`
}

type userRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type userJSON struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinDate time.Time `json:"join_date"`
}

func profileToJSON(p domain.UserProfile) userJSON {
	return userJSON{
		UserID:   p.UserID,
		Name:     p.Name,
		Email:    p.Email,
		JoinDate: p.JoinedAt,
	}
}

type orderJSON struct {
	OrderID      string           `json:"order_id"`
	UserID       string           `json:"user_id"`
	StreamID     string           `json:"stream_id"`
	Items        map[string]int64 `json:"items"`
	CheckedOutAt time.Time        `json:"checked_out_at"`
}

type checkoutResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Order   *orderJSON `json:"order,omitempty"`
}

func orderToJSON(o domain.Order) orderJSON {
	return orderJSON{
		OrderID:      o.ID,
		UserID:       o.UserID,
		StreamID:     o.StreamID,
		Items:        o.Items,
		CheckedOutAt: o.CheckedOutAt,
	}
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cartItemResponse{Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, cartItemResponse{Message: "user_id is required"})
		return
	}

	total, err := h.cartService.AddItem(r.Context(), req.UserID, req.SKU, req.Quantity)
	if err != nil {
		h.writeCartError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartItemResponse{Success: true, SKU: req.SKU, Quantity: total})
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cartItemResponse{Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, cartItemResponse{Message: "user_id is required"})
		return
	}

	remaining, err := h.cartService.RemoveItem(r.Context(), req.UserID, req.SKU, req.Quantity)
	if err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			// Benign: nothing to remove.
			writeJSON(w, http.StatusOK, cartItemResponse{Message: "item not in cart", SKU: req.SKU})
			return
		}
		h.writeCartError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartItemResponse{Success: true, SKU: req.SKU, Quantity: remaining})
}

func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "user_id is required"})
			return
		}
		cart, err := h.cartService.Cart(r.Context(), userID)
		if err != nil {
			h.writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartResponse{UserID: userID, Items: cart})

	case http.MethodPut:
		var req replaceCartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
			return
		}
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "user_id is required"})
			return
		}
		cart, err := h.cartService.ReplaceCart(r.Context(), req.UserID, req.Items)
		if err != nil {
			h.writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartResponse{UserID: req.UserID, Items: cart})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "user_id is required"})
		return
	}

	if err := h.cartService.ClearCart(r.Context(), req.UserID); err != nil {
		h.writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, checkoutResponse{Message: "user_id is required"})
		return
	}

	order, err := h.cartService.Checkout(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			// Benign: nothing to check out.
			writeJSON(w, http.StatusOK, checkoutResponse{Message: "cart is empty, nothing to checkout"})
			return
		}
		log.Printf("checkout failed for user %s: %v", req.UserID, err)
		writeJSON(w, http.StatusInternalServerError, checkoutResponse{Message: "internal error"})
		return
	}

	o := orderToJSON(*order)
	writeJSON(w, http.StatusOK, checkoutResponse{Success: true, Order: &o})
}

func (h *HTTPHandler) RecentOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var count int64
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "count must be a positive integer"})
			return
		}
		count = parsed
	}

	orders, err := h.cartService.RecentOrders(r.Context(), count)
	if err != nil {
		log.Printf("recent orders failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}

	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderToJSON(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Numbers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		values, err := h.numberService.Numbers(r.Context())
		if err != nil {
			log.Printf("read numbers failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string][]int64{"numbers": values})

	case http.MethodDelete:
		if err := h.numberService.Clear(r.Context()); err != nil {
			log.Printf("clear numbers failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) InsertSequential(w http.ResponseWriter, r *http.Request) {
	h.insertNumbers(w, r, h.numberService.InsertSequential)
}

func (h *HTTPHandler) InsertRandom(w http.ResponseWriter, r *http.Request) {
	h.insertNumbers(w, r, h.numberService.InsertRandom)
}

func (h *HTTPHandler) insertNumbers(w http.ResponseWriter, r *http.Request, insert func(ctx context.Context) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := insert(r.Context()); err != nil {
		log.Printf("insert numbers failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) Users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req userRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
			return
		}
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "user_id is required"})
			return
		}
		profile, err := h.userService.Save(r.Context(), req.UserID, req.Name, req.Email)
		if err != nil {
			if errors.Is(err, service.ErrEmptyName) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
				return
			}
			log.Printf("save profile failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, profileToJSON(profile))

	case http.MethodGet:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "user_id is required"})
			return
		}
		profile, err := h.userService.Profile(r.Context(), userID)
		if err != nil {
			log.Printf("get profile failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		if profile == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "user not found"})
			return
		}
		writeJSON(w, http.StatusOK, profileToJSON(*profile))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeCartError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrEmptySKU) || errors.Is(err, service.ErrInvalidQuantity) {
		writeJSON(w, http.StatusBadRequest, cartItemResponse{Message: err.Error()})
		return
	}
	log.Printf("cart operation failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, cartItemResponse{Message: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
