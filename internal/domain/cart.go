package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem — позиция корзины в авторитетном представлении сервера.
type CartItem struct {
	// CartItemID нужен для update/remove; GET /checkout его не возвращает.
	CartItemID  int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	LineTotal   decimal.Decimal
	AddedAt     time.Time
}

// CartSnapshot — авторитетное состояние корзины на момент запроса.
type CartSnapshot struct {
	Items       []CartItem
	TotalAmount decimal.Decimal
}

// ItemCount возвращает сумму количеств по всем позициям. Позиции с количеством меньше 1 не учитываются.
func (s CartSnapshot) ItemCount() int {
	total := 0
	for _, item := range s.Items {
		if item.Quantity > 0 {
			total += item.Quantity
		}
	}
	return total
}

// Empty сообщает, что в корзине нет позиций.
func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}
