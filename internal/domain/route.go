package domain

import "strings"

// Route — путь экрана внутри приложения.
type Route string

const (
	RouteHome           Route = "/"
	RouteSignIn         Route = "/signin"
	RouteSignUp         Route = "/signup"
	RouteCart           Route = "/cart"
	RouteCheckout       Route = "/checkout"
	RouteAccount        Route = "/account"
	RouteOrderSuccess   Route = "/order-success"
	RouteAdminDashboard Route = "/admin/dashboard"
	RouteAdminProducts  Route = "/admin/products"
	RouteAdminUsers     Route = "/admin/users"
)

// Normalize приводит путь к каноничному виду: ведущий слэш, без хвостового и без query.
func (r Route) Normalize() Route {
	s := strings.TrimSpace(string(r))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if len(s) > 1 {
		s = strings.TrimRight(s, "/")
		if s == "" {
			s = "/"
		}
	}
	return Route(s)
}
