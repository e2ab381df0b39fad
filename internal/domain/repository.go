package domain

// OrderRepository описывает требования к хранилищу заказов тестового backend.
type OrderRepository interface {
	// Create сохраняет новый заказ и назначает ему идентификатор.
	Create(order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrNotFound, если его нет.
	Get(id int64) (Order, error)
	// ListByUser возвращает заказы пользователя с опциональным ограничением на количество.
	ListByUser(userID int64, limit int) ([]Order, error)
	// Save перезаписывает существующий заказ.
	Save(order Order) error
}
