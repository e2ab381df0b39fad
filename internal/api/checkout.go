package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type checkoutResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	CartItems []struct {
		ProductID   int64           `json:"product_id"`
		ProductName string          `json:"product_name"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		TotalPrice  decimal.Decimal `json:"total_price"`
	} `json:"cart_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// LoadCheckout вызывает GET /checkout. Неуспешный статус или пустая корзина дают ErrEmptyCart.
func (c *Client) LoadCheckout(ctx context.Context) (domain.CartSnapshot, error) {
	resp, err := c.do(ctx, call{method: http.MethodGet, path: "/checkout", auth: true})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			return domain.CartSnapshot{}, withKind(err, domain.ErrEmptyCart)
		}
		return domain.CartSnapshot{}, err
	}

	var out checkoutResponse
	if err := decode(resp, &out); err != nil {
		return domain.CartSnapshot{}, err
	}
	if !strings.EqualFold(out.Status, "success") {
		return domain.CartSnapshot{}, &APIError{Status: resp.status, Message: out.Message, Kind: domain.ErrEmptyCart}
	}

	snap := domain.CartSnapshot{
		Items:       make([]domain.CartItem, 0, len(out.CartItems)),
		TotalAmount: out.TotalAmount,
	}
	for _, item := range out.CartItems {
		if item.Quantity < 1 {
			c.logger.WithFields(log.Fields{"product_id": item.ProductID, "quantity": item.Quantity}).
				Warn("skipping checkout item with non-positive quantity")
			continue
		}
		unit := item.UnitPrice
		if unit.IsZero() {
			unit = item.TotalPrice.Div(decimal.NewFromInt(int64(item.Quantity)))
		}
		snap.Items = append(snap.Items, domain.CartItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			LineTotal:   item.TotalPrice,
		})
	}
	if snap.Empty() {
		return domain.CartSnapshot{}, &APIError{Status: resp.status, Message: out.Message, Kind: domain.ErrEmptyCart}
	}
	return snap, nil
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type placeOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID int64  `json:"order_id"`
}

// PlaceOrder вызывает POST /checkout и возвращает идентификатор созданного заказа.
func (c *Client) PlaceOrder(ctx context.Context, details domain.ShippingDetails) (int64, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/checkout",
		body:   placeOrderRequest{ShippingAddress: details.Address, PaymentMethod: details.PaymentMethod},
		auth:   true,
	})
	if err != nil {
		return 0, err
	}

	var out placeOrderResponse
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, &APIError{Status: resp.status, Message: out.Message, Kind: domain.ErrValidation}
	}
	if out.OrderID <= 0 {
		return 0, fmt.Errorf("%w: order response without order_id", domain.ErrBackend)
	}
	return out.OrderID, nil
}

type paymentSessionRequest struct {
	OrderID int64 `json:"order_id"`
}

type paymentSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// CreatePaymentSession вызывает POST /create-checkout-session для существующего заказа.
func (c *Client) CreatePaymentSession(ctx context.Context, orderID int64) (domain.PaymentSession, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/create-checkout-session",
		body:   paymentSessionRequest{OrderID: orderID},
		auth:   true,
	})
	if err != nil {
		return domain.PaymentSession{}, err
	}

	var out paymentSessionResponse
	if err := decode(resp, &out); err != nil {
		return domain.PaymentSession{}, err
	}
	if !out.Success {
		return domain.PaymentSession{}, &APIError{Status: resp.status, Message: out.Message, Kind: domain.ErrBackend}
	}
	return domain.PaymentSession{OrderID: orderID, RedirectURL: strings.TrimSpace(out.URL)}, nil
}

var _ domain.CheckoutAPI = (*Client)(nil)
