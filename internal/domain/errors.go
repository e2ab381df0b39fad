package domain

import "errors"

var (
	// ErrAuthRequired — действие требует сессии, а токена нет. Сетевой вызов не выполняется.
	ErrAuthRequired = errors.New("authentication required")
	// ErrAuthExpiredOrForbidden — backend ответил 401/403 на аутентифицированный запрос.
	ErrAuthExpiredOrForbidden = errors.New("session expired or access forbidden")
	// ErrInvalidCredentials — backend отклонил логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation — локальная или серверная ошибка валидации ввода.
	ErrValidation = errors.New("validation failed")
	// ErrOrderCreationFailed — шаг создания заказа завершился ошибкой.
	ErrOrderCreationFailed = errors.New("failed to create order")
	// ErrPaymentSessionCreationFailed — заказ создан, но платёжная сессия нет.
	ErrPaymentSessionCreationFailed = errors.New("failed to create checkout session")
	// ErrNetworkUnavailable — транспортная ошибка, таймаут или открытый circuit breaker.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrNotFound — запрошенный ресурс не существует.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart — у пользователя пустая корзина.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrBackend — прочие ошибки сервера (5xx, неожиданный ответ).
	ErrBackend = errors.New("backend error")
	// ErrCheckoutInFlight — другая попытка оформления уже выполняет сетевые шаги.
	ErrCheckoutInFlight = errors.New("checkout already in progress")
	// ErrIllegalTransition — недопустимый переход конечного автомата checkout.
	ErrIllegalTransition = errors.New("illegal checkout transition")
	// ErrOrderIDMissing — в адресе возврата от платёжного провайдера нет order_id.
	ErrOrderIDMissing = errors.New("order id not found")
	// ErrKeyNotFound возвращается хранилищем клиентского состояния для отсутствующего ключа.
	ErrKeyNotFound = errors.New("key not found")
)

// IsAuthExpired проверяет, относится ли ошибка к истёкшей или запрещённой сессии.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpiredOrForbidden)
}

// kinds перечисляет ошибки в порядке приоритета для ErrorKind.
var kinds = []struct {
	err   error
	label string
}{
	{ErrAuthExpiredOrForbidden, "auth_expired"},
	{ErrAuthRequired, "auth_required"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrCheckoutInFlight, "in_flight"},
	{ErrIllegalTransition, "illegal_transition"},
	{ErrOrderIDMissing, "order_id_missing"},
	{ErrNetworkUnavailable, "network"},
	{ErrEmptyCart, "empty_cart"},
	{ErrNotFound, "not_found"},
	{ErrValidation, "validation"},
	{ErrOrderCreationFailed, "order_creation"},
	{ErrPaymentSessionCreationFailed, "payment_session_creation"},
	{ErrBackend, "backend"},
	{ErrKeyNotFound, "key_not_found"},
}

// ErrorKind возвращает стабильную метку ошибки для метрик и событий.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "unknown"
}
