package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

// returnConfirmer принимает возврат со страницы оплаты. Реализуется checkout.Orchestrator.
type returnConfirmer interface {
	ConfirmReturn(ctx context.Context, query url.Values) (*checkout.Attempt, view.Result[confirmation.Page])
}

// sessionRestorer перечитывает сохранённую сессию. Реализуется session.Store.
type sessionRestorer interface {
	Restore(ctx context.Context) (domain.Session, error)
}

// badgeSource отдаёт счётчик корзины и его изменения. Реализуется cart.Cache.
// Load перечитывает сохранённый счётчик: корзину меняют и другие процессы CLI.
type badgeSource interface {
	LocalCount() int
	Load(ctx context.Context) int
	Subscribe(buffer int) (<-chan cart.CountChanged, func())
}

// defaultBadgePoll — период перечитывания сохранённого счётчика корзины для потока /cart/badge.
const defaultBadgePoll = time.Second

// callbackServer — локальный HTTP-сервер: возврат с оплаты, поток счётчика корзины,
// метрики и health checks.
type callbackServer struct {
	returns   returnConfirmer
	sessions  sessionRestorer
	badge     badgeSource
	badgePoll time.Duration
	health    *health.Handler
	logger    *log.Entry
}

// serverOption настраивает callbackServer.
type serverOption func(*callbackServer)

// withSessionRestore заставляет каждый возврат с оплаты перечитывать сохранённую сессию.
func withSessionRestore(r sessionRestorer) serverOption {
	return func(s *callbackServer) { s.sessions = r }
}

// withBadgePoll меняет период перечитывания счётчика корзины.
func withBadgePoll(d time.Duration) serverOption {
	return func(s *callbackServer) {
		if d > 0 {
			s.badgePoll = d
		}
	}
}

func newCallbackServer(returns returnConfirmer, badge badgeSource, h *health.Handler, logger *log.Entry, opts ...serverOption) *callbackServer {
	if logger == nil {
		logger = log.New().WithField("component", "callback-server")
	}
	s := &callbackServer{returns: returns, badge: badge, badgePoll: defaultBadgePoll, health: h, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// routes собирает маршруты. Маршруты без источника данных не монтируются.
func (s *callbackServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/livez", health.LivenessHandler)
	if s.health != nil {
		r.Method(http.MethodGet, "/healthz", s.health)
		r.Get("/readyz", s.health.ReadinessHandler)
	}
	if s.returns != nil {
		r.Get(string(domain.RouteOrderSuccess), s.orderSuccess)
	}
	if s.badge != nil {
		r.Get("/cart/badge", s.cartBadge)
	}
	return r
}

// orderSuccess обрабатывает возврат с оплаты как новую загрузку страницы:
// сессия берётся из хранилища, вход мог быть выполнен другим процессом.
func (s *callbackServer) orderSuccess(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		if _, err := s.sessions.Restore(r.Context()); err != nil {
			s.logger.WithError(err).Warn("failed to restore session on payment return")
		}
	}
	attempt, result := s.returns.ConfirmReturn(r.Context(), r.URL.Query())
	logger := s.logger.WithFields(log.Fields{
		"attempt_id": attempt.ID,
		"request_id": middleware.GetReqID(r.Context()),
		"state":      attempt.State().String(),
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusForReturn(result.Err()))
	if err := view.RenderOr(w, result); err != nil {
		logger.WithError(err).Warn("order confirmation rendered fallback page")
		return
	}
	logger.Info("order confirmation rendered")
}

// statusForReturn подбирает HTTP-статус страницы подтверждения.
func statusForReturn(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrAuthRequired), domain.IsAuthExpired(err):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrOrderIDMissing):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// cartBadge отдаёт счётчик корзины потоком server-sent events: текущее значение и каждое изменение.
// Сохранённый счётчик перечитывается при подключении и раз в badgePoll.
func (s *callbackServer) cartBadge(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.badge.Subscribe(16)
	defer unsubscribe()
	s.badge.Load(r.Context())
	drain(events)

	ticker := time.NewTicker(s.badgePoll)
	defer ticker.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "data: %d\n\n", s.badge.LocalCount()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			s.badge.Load(r.Context())
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %d\n\n", ev.Count); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// drain отбрасывает уже накопленные события: текущее значение отправляется отдельно.
func drain(events <-chan cart.CountChanged) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("callback server shutdown with error")
	}
}
