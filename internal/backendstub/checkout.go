package backendstub

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// statusLabel возвращает статус заказа в написании исходного backend ("Pending").
func statusLabel(status domain.OrderStatus) string {
	s := string(status)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) loadCheckout(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	if len(lines) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Your cart is empty"})
		return
	}

	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		p := s.products[l.ProductID]
		items = append(items, map[string]any{
			"product_id":   p.ID,
			"product_name": p.Name,
			"quantity":     l.Quantity,
			"unit_price":   p.Price,
			"total_price":  p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"cart_items":   items,
		"total_amount": s.cartTotal(lines),
	})
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

// placeOrder создаёт заказ в статусе pending из корзины пользователя и очищает корзину.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req placeOrderRequest
	if !decodeJSON(r, &req) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid JSON format"})
		return
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Shipping address is required"})
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.DefaultPaymentMethod
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	if len(lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Cart is empty"})
		return
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		p := s.products[l.ProductID]
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	order, err := s.orders.Create(domain.Order{
		UserID:          u.ID,
		Status:          domain.OrderStatusPending,
		TotalAmount:     s.cartTotal(lines),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Failed to create order"})
		return
	}
	delete(s.carts, u.ID)

	s.logger.WithFields(log.Fields{"user_id": u.ID, "order_id": order.ID}).Info("order placed")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": order.ID})
}

type checkoutSessionRequest struct {
	OrderID int64 `json:"order_id"`
}

// createCheckoutSession открывает сессию оплаты для собственного заказа пользователя в статусе pending.
func (s *Server) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req checkoutSessionRequest
	if !decodeJSON(r, &req) || req.OrderID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Order ID is required"})
		return
	}

	order, err := s.orders.Get(req.OrderID)
	if err != nil || order.UserID != u.ID {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Order not found"})
		return
	}
	if order.Status != domain.OrderStatusPending {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Order is not pending"})
		return
	}

	session, err := s.payments.CreateSession(order.ID, order.TotalAmount)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("payment provider rejected session")
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "message": err.Error()})
		return
	}

	redirect := s.payments.redirectOverride()
	if redirect == "" {
		redirect = "http://" + r.Host + "/pay/" + url.PathEscape(session.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": redirect})
}

// pay имитирует страницу провайдера: оплата проходит сразу, заказ переходит в processing,
// пользователь возвращается на адрес успеха.
func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	session, err := s.payments.Pay(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Payment session not found")
		return
	}

	order, err := s.orders.Get(session.OrderID)
	if err == nil && order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusProcessing
		err = s.orders.Save(order)
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Failed to update order")
		return
	}

	if s.successURL == "" {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Payment received", "order_id": session.OrderID})
		return
	}
	target, err := url.Parse(s.successURL)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Invalid success url")
		return
	}
	q := target.Query()
	q.Set("order_id", strconv.FormatInt(session.OrderID, 10))
	q.Set("session_id", session.ID)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Invalid order id"})
		return
	}

	order, err := s.orders.Get(id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && order.UserID != u.ID && !u.Role.Matches(domain.RoleAdmin)) {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "Order not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "Internal Server Error"})
		return
	}

	items := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]any{
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"quantity":     it.Quantity,
			"price":        it.UnitPrice,
			"subtotal":     it.Subtotal,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"order": map[string]any{
			"id":               order.ID,
			"order_date":       httpDate(order.CreatedAt),
			"total_amount":     order.TotalAmount,
			"status":           statusLabel(order.Status),
			"shipping_address": order.ShippingAddress,
			"payment_method":   order.PaymentMethod,
		},
		"order_items": items,
	})
}
