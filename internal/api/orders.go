package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Order   struct {
		ID              int64           `json:"id"`
		OrderDate       flexTime        `json:"order_date"`
		TotalAmount     decimal.Decimal `json:"total_amount"`
		Status          string          `json:"status"`
		ShippingAddress string          `json:"shipping_address"`
		PaymentMethod   string          `json:"payment_method"`
	} `json:"order"`
	OrderItems []struct {
		ProductID   int64           `json:"product_id"`
		ProductName string          `json:"product_name"`
		Quantity    int             `json:"quantity"`
		Price       decimal.Decimal `json:"price"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	} `json:"order_items"`
}

// GetOrder вызывает GET /order/{id}. Только чтение, вызов можно повторять.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (domain.OrderDetails, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/order/%d", orderID),
		auth:   true,
	})
	if err != nil {
		return domain.OrderDetails{}, err
	}

	var out orderResponse
	if err := decode(resp, &out); err != nil {
		return domain.OrderDetails{}, err
	}
	if !strings.EqualFold(out.Status, "success") {
		return domain.OrderDetails{}, &APIError{Status: resp.status, Message: out.Message, Kind: domain.ErrNotFound}
	}

	id := out.Order.ID
	if id == 0 {
		id = orderID
	}
	items := make([]domain.OrderItem, 0, len(out.OrderItems))
	for _, it := range out.OrderItems {
		subtotal := it.Subtotal
		if subtotal.IsZero() {
			subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
			Subtotal:    subtotal,
		})
	}

	order := domain.Order{
		ID:              id,
		Status:          domain.ParseOrderStatus(out.Order.Status),
		TotalAmount:     out.Order.TotalAmount,
		ShippingAddress: out.Order.ShippingAddress,
		PaymentMethod:   out.Order.PaymentMethod,
		Items:           items,
		CreatedAt:       out.Order.OrderDate.Time,
	}
	return domain.OrderDetails{Order: order, Items: items}, nil
}

var _ domain.OrderAPI = (*Client)(nil)
