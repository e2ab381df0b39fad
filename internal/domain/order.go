package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа на стороне магазина.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — оплата получена, заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCompleted — заказ доставлен.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus нормализует строку статуса от backend без учёта регистра.
// Неизвестные значения сохраняются в нижнем регистре.
func ParseOrderStatus(raw string) OrderStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "canceled":
		return OrderStatusCancelled
	case "":
		return OrderStatusPending
	}
	return OrderStatus(s)
}

// Known сообщает, является ли статус одним из известных.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	// Subtotal — стоимость позиции с учётом количества.
	Subtotal decimal.Decimal
}

// Order агрегирует состояние заказа.
type Order struct {
	ID              int64
	UserID          int64
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	ShippingAddress string
	PaymentMethod   string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderDetails — данные для страницы подтверждения заказа.
type OrderDetails struct {
	Order Order
	Items []OrderItem
}

// OrderSummary — краткая запись заказа в профиле пользователя.
type OrderSummary struct {
	OrderID    int64
	TotalPrice decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
}

// Profile — профиль пользователя с историей заказов.
type Profile struct {
	ID             int64
	Username       string
	Email          string
	Phone          string
	Address        string
	NumberOfOrders int
	Orders         []OrderSummary
}
