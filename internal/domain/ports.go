package domain

import "context"

// AuthAPI описывает вызовы backend, связанные с аутентификацией.
type AuthAPI interface {
	// Login обменивает учётные данные на токен и профиль пользователя.
	Login(ctx context.Context, creds Credentials) (token string, user User, err error)
	// Signup регистрирует пользователя и возвращает сообщение сервера.
	Signup(ctx context.Context, form SignupForm) (string, error)
	// Logout сообщает серверу о выходе. Токен передаётся явно, так как локально он уже удалён.
	Logout(ctx context.Context, token string) error
	// Profile возвращает профиль текущего пользователя с историей заказов.
	Profile(ctx context.Context) (Profile, error)
}

// CartAPI описывает операции с серверной корзиной.
type CartAPI interface {
	AddToCart(ctx context.Context, productID int64, quantity int) (string, error)
	ViewCart(ctx context.Context) (CartSnapshot, error)
	UpdateCartItem(ctx context.Context, cartItemID int64, change int) (string, error)
	RemoveCartItem(ctx context.Context, cartItemID int64) (string, error)
}

// CheckoutAPI описывает шаги оформления заказа.
type CheckoutAPI interface {
	// LoadCheckout возвращает авторитетное содержимое корзины для оформления.
	LoadCheckout(ctx context.Context) (CartSnapshot, error)
	// PlaceOrder создаёт заказ и возвращает его идентификатор.
	PlaceOrder(ctx context.Context, details ShippingDetails) (int64, error)
	// CreatePaymentSession создаёт платёжную сессию для уже созданного заказа.
	CreatePaymentSession(ctx context.Context, orderID int64) (PaymentSession, error)
}

// OrderAPI описывает чтение заказов.
type OrderAPI interface {
	GetOrder(ctx context.Context, orderID int64) (OrderDetails, error)
}

// KVStore — хранилище клиентского состояния (аналог localStorage/sessionStorage).
type KVStore interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete удаляет ключ; отсутствие ключа ошибкой не считается.
	Delete(ctx context.Context, key string) error
}

// Navigator переключает экраны приложения и передаёт управление внешним страницам.
type Navigator interface {
	// Navigate выполняет переход внутри приложения.
	Navigate(route Route)
	// Redirect передаёт управление внешнему адресу (страница оплаты).
	Redirect(url string) error
}

// Notifier показывает пользователю короткие уведомления.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Ключи клиентского хранилища.
const (
	KeyToken           = "token"
	KeyUser            = "user"
	KeyCartCount       = "cartCount"
	KeyJoinPromptShown = "joinPromptShown"
)
