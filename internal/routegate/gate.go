// Package routegate решает, допускать ли пользователя на экран, по сессии и требуемой роли.
package routegate

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Decision — результат проверки доступа к экрану.
type Decision int

const (
	Unchecked Decision = iota
	Admitted
	RedirectToSignIn
	RedirectToHome
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RedirectToSignIn:
		return "redirect_signin"
	case RedirectToHome:
		return "redirect_home"
	default:
		return "unchecked"
	}
}

// Target возвращает экран для перенаправления или пустую строку, если переход не нужен.
func (d Decision) Target() domain.Route {
	switch d {
	case RedirectToSignIn:
		return domain.RouteSignIn
	case RedirectToHome:
		return domain.RouteHome
	default:
		return ""
	}
}

// Evaluate решает допуск без побочных эффектов. Экран без требуемой роли открыт.
// Без токена пользователь идёт на вход, при несовпадении роли (без учёта регистра) на главную.
func Evaluate(sess domain.Session, required domain.Role) Decision {
	if required == "" {
		return Admitted
	}
	if !sess.Authenticated() {
		return RedirectToSignIn
	}
	if !sess.Role().Matches(required) {
		return RedirectToHome
	}
	return Admitted
}

// SessionSource отдаёт текущую сессию. Реализуется session.Store.
type SessionSource interface {
	Current() domain.Session
}

// Gate проверяет доступ к экранам и выполняет перенаправление.
type Gate struct {
	sessions SessionSource
	table    *Table
	nav      domain.Navigator
	logger   *log.Entry
}

// NewGate создаёт Gate. Если table == nil, используется DefaultTable.
func NewGate(sessions SessionSource, table *Table, nav domain.Navigator, logger *log.Entry) *Gate {
	if table == nil {
		table = DefaultTable()
	}
	if logger == nil {
		logger = log.New().WithField("component", "route-gate")
	}
	return &Gate{sessions: sessions, table: table, nav: nav, logger: logger}
}

// Check проверяет доступ к path по текущей сессии. Синхронно, без сети.
// Перенаправление выполняется молча, без уведомления пользователя.
func (g *Gate) Check(path domain.Route) Decision {
	path = path.Normalize()
	required := g.table.RequiredRole(path)
	sess := g.sessions.Current()
	decision := Evaluate(sess, required)

	if target := decision.Target(); target != "" {
		g.logger.WithFields(log.Fields{
			"path":          path,
			"required_role": required,
			"role":          sess.Role(),
			"decision":      decision.String(),
		}).Debug("route access denied")
		if g.nav != nil {
			g.nav.Navigate(target)
		}
	}
	return decision
}

// RequiredRole возвращает роль, которую требует экран.
func (g *Gate) RequiredRole(path domain.Route) domain.Role {
	return g.table.RequiredRole(path.Normalize())
}
