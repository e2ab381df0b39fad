package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPaymentMethod — способ оплаты, который отправляется при оформлении.
const DefaultPaymentMethod = "Credit Card"

// ShippingDetails — данные, которые пользователь вводит перед оформлением.
type ShippingDetails struct {
	Address       string
	PaymentMethod string
}

// Validate проверяет адрес и подставляет способ оплаты по умолчанию.
func (d *ShippingDetails) Validate() error {
	d.Address = strings.TrimSpace(d.Address)
	if d.Address == "" {
		return fmt.Errorf("%w: please enter a shipping address", ErrValidation)
	}
	if strings.TrimSpace(d.PaymentMethod) == "" {
		d.PaymentMethod = DefaultPaymentMethod
	}
	return nil
}

// PaymentSession — ссылка на внешнюю страницу оплаты для созданного заказа.
type PaymentSession struct {
	OrderID     int64
	RedirectURL string
}

// Validate проверяет, что адрес перенаправления абсолютный http(s) URL.
func (p PaymentSession) Validate() error {
	if p.OrderID <= 0 {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}
	u, err := url.Parse(strings.TrimSpace(p.RedirectURL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: invalid redirect url %q", ErrValidation, p.RedirectURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported redirect scheme %q", ErrValidation, u.Scheme)
	}
	return nil
}
