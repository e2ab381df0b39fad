package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddToCart вызывает POST /cart/add и возвращает сообщение сервера.
func (c *Client) AddToCart(ctx context.Context, productID int64, quantity int) (string, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/cart/add",
		body:   addToCartRequest{ProductID: productID, Quantity: quantity},
		auth:   true,
	})
	if err != nil {
		return "", err
	}
	return serverMessage(resp.body), nil
}

type cartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []struct {
		CartItemID  int64           `json:"cart_item_id"`
		ProductID   int64           `json:"product_id"`
		ProductName string          `json:"product_name"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		Discount    decimal.Decimal `json:"discount"`
		AddedDate   flexTime        `json:"added_date"`
	} `json:"data"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// ViewCart вызывает GET /cart. Ответ 400 с пустой корзиной считается пустым снимком.
func (c *Client) ViewCart(ctx context.Context) (domain.CartSnapshot, error) {
	resp, err := c.do(ctx, call{method: http.MethodGet, path: "/cart", auth: true})
	if err != nil {
		if resp.status == http.StatusBadRequest && errors.Is(err, domain.ErrValidation) {
			return domain.CartSnapshot{TotalAmount: decimal.Zero}, nil
		}
		return domain.CartSnapshot{}, err
	}

	var out cartResponse
	if err := decode(resp, &out); err != nil {
		return domain.CartSnapshot{}, err
	}

	snap := domain.CartSnapshot{
		Items:       make([]domain.CartItem, 0, len(out.Data)),
		TotalAmount: out.TotalPrice,
	}
	for _, d := range out.Data {
		if d.Quantity < 1 {
			c.logger.WithFields(log.Fields{"cart_item_id": d.CartItemID, "quantity": d.Quantity}).
				Warn("skipping cart item with non-positive quantity")
			continue
		}
		line := d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity))).Sub(d.Discount)
		snap.Items = append(snap.Items, domain.CartItem{
			CartItemID:  d.CartItemID,
			ProductID:   d.ProductID,
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			Discount:    d.Discount,
			LineTotal:   line,
			AddedAt:     d.AddedDate.Time,
		})
	}
	return snap, nil
}

type updateCartRequest struct {
	CartItemID int64 `json:"cart_item_id"`
	Change     int   `json:"change"`
}

// UpdateCartItem вызывает POST /cart/update, изменяя количество на change (±).
func (c *Client) UpdateCartItem(ctx context.Context, cartItemID int64, change int) (string, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/cart/update",
		body:   updateCartRequest{CartItemID: cartItemID, Change: change},
		auth:   true,
	})
	if err != nil {
		return "", err
	}
	return serverMessage(resp.body), nil
}

type removeCartRequest struct {
	CartItemID int64 `json:"cart_item_id"`
}

// RemoveCartItem вызывает POST /cart/remove.
func (c *Client) RemoveCartItem(ctx context.Context, cartItemID int64) (string, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/cart/remove",
		body:   removeCartRequest{CartItemID: cartItemID},
		auth:   true,
	})
	if err != nil {
		return "", err
	}
	return serverMessage(resp.body), nil
}

var _ domain.CartAPI = (*Client)(nil)
