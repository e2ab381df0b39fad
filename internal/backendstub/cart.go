package backendstub

import (
	"net/http"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req addToCartRequest
	if !decodeJSON(r, &req) {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.ProductID == 0 || req.Quantity == 0 {
		writeMessage(w, http.StatusBadRequest, "Product ID and quantity are required")
		return
	}
	if req.Quantity < 0 {
		writeMessage(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[req.ProductID]; !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}

	lines := s.carts[u.ID]
	for i := range lines {
		if lines[i].ProductID == req.ProductID {
			lines[i].Quantity += req.Quantity
			s.logger.WithFields(log.Fields{"user_id": u.ID, "product_id": req.ProductID}).Debug("cart line increased")
			writeMessage(w, http.StatusOK, "Product quantity updated in cart")
			return
		}
	}
	s.nextLineID++
	s.carts[u.ID] = append(lines, cartLine{
		ID:        s.nextLineID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		AddedAt:   s.now(),
	})
	writeMessage(w, http.StatusOK, "Product added to cart successfully")
}

// cartTotal считает сумму корзины. Вызывается под s.mu.
func (s *Server) cartTotal(lines []cartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(s.products[l.ProductID].Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (s *Server) viewCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	if len(lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":     false,
			"message":     "Cart is empty.",
			"data":        []any{},
			"total_price": 0,
		})
		return
	}

	data := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		p := s.products[l.ProductID]
		data = append(data, map[string]any{
			"cart_item_id": l.ID,
			"product_id":   p.ID,
			"product_name": p.Name,
			"quantity":     l.Quantity,
			"unit_price":   p.Price,
			"discount":     decimal.Zero,
			"added_date":   httpDate(l.AddedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"data":        data,
		"total_price": s.cartTotal(lines),
	})
}

type updateCartRequest struct {
	CartItemID int64 `json:"cart_item_id"`
	Change     int   `json:"change"`
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req updateCartRequest
	if !decodeJSON(r, &req) || req.CartItemID == 0 || req.Change == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Cart item ID and change are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	for i := range lines {
		if lines[i].ID != req.CartItemID {
			continue
		}
		lines[i].Quantity += req.Change
		if lines[i].Quantity <= 0 {
			s.carts[u.ID] = append(lines[:i], lines[i+1:]...)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Cart updated successfully"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Cart item not found"})
}

type removeCartRequest struct {
	CartItemID int64 `json:"cart_item_id"`
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var req removeCartRequest
	if !decodeJSON(r, &req) || req.CartItemID == 0 {
		writeMessage(w, http.StatusBadRequest, "Cart item ID is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	for i := range lines {
		if lines[i].ID == req.CartItemID {
			s.carts[u.ID] = append(lines[:i], lines[i+1:]...)
			writeMessage(w, http.StatusOK, "Item removed from cart")
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Cart item not found")
}
