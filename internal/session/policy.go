package session

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ExpiredMessage показывается пользователю при принудительном завершении сессии.
const ExpiredMessage = "Your session has expired. Please sign in again."

// ExpireOnUnauthorized возвращает глобальную политику для 401/403 на аутентифицированных запросах:
// сессия завершается, пользователь уведомляется и переводится на страницу входа.
// Уведомление и переход выполняются один раз, даже если несколько запросов получили 401.
func ExpireOnUnauthorized(store *Store, nav domain.Navigator, notify domain.Notifier) func(ctx context.Context, err error) {
	return func(ctx context.Context, err error) {
		if !store.Expire(ctx, err) {
			return
		}
		if notify != nil {
			notify.Error(ExpiredMessage)
		}
		if nav != nil {
			nav.Navigate(domain.RouteSignIn)
		}
	}
}
