// Package backendstub реализует тестовый backend витрины: аутентификацию по JWT, корзину,
// оформление заказа и заглушку платёжного провайдера. Используется для локальной разработки
// и end-to-end тестов клиента.
package backendstub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// DefaultTokenTTL — срок жизни токена, как у исходного backend.
const DefaultTokenTTL = time.Hour

type user struct {
	domain.User
	Password string
	FullName string
	Address  string
	Phone    string
}

// Product — позиция каталога.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type cartLine struct {
	ID        int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

type fault struct {
	status  int
	message string
}

// Server — состояние тестового backend.
type Server struct {
	mu         sync.Mutex
	users      map[string]*user
	usersByID  map[int64]*user
	nextUserID int64
	products   map[int64]Product
	carts      map[int64][]cartLine
	nextLineID int64
	faults     map[string][]fault

	orders   domain.OrderRepository
	payments *PaymentProvider

	secret     []byte
	tokenTTL   time.Duration
	successURL string
	now        func() time.Time
	logger     *log.Entry
}

// Option настраивает Server.
type Option func(*Server)

// WithSecret задаёт ключ подписи токенов.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL задаёт срок жизни выдаваемых токенов.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithSuccessURL задаёт адрес возврата после оплаты; к нему добавляются order_id и session_id.
func WithSuccessURL(u string) Option {
	return func(s *Server) { s.successURL = u }
}

// WithClock подменяет часы (для истечения токенов в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) { s.logger = logger }
}

// New создаёт backend с каталогом и двумя пользователями: admin/admin123 и ann/secret1.
func New(opts ...Option) *Server {
	s := &Server{
		users:     make(map[string]*user),
		usersByID: make(map[int64]*user),
		products:  make(map[int64]Product),
		carts:     make(map[int64][]cartLine),
		faults:    make(map[string][]fault),
		orders:    memory.NewOrderRepository(),
		payments:  NewPaymentProvider(),
		secret:    []byte("storefront-dev-secret"),
		tokenTTL:  DefaultTokenTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "backend-stub")
	}

	for _, p := range []Product{
		{ID: 1, Name: "Chocolate Cake", Price: decimal.RequireFromString("25.00")},
		{ID: 2, Name: "Cupcake", Price: decimal.RequireFromString("4.50")},
		{ID: 3, Name: "Cheesecake", Price: decimal.RequireFromString("30.00")},
	} {
		s.products[p.ID] = p
	}
	s.addUser(&user{User: domain.User{Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin}, Password: "admin123"})
	s.addUser(&user{User: domain.User{Username: "ann", Email: "ann@example.com", Role: domain.RoleCustomer}, Password: "secret1"})
	return s
}

func (s *Server) addUser(u *user) {
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[strings.ToLower(u.Username)] = u
	s.usersByID[u.ID] = u
}

// Payments возвращает заглушку провайдера для настройки сценариев.
func (s *Server) Payments() *PaymentProvider { return s.payments }

// Orders возвращает хранилище заказов.
func (s *Server) Orders() domain.OrderRepository { return s.orders }

// InjectFault заставляет следующий запрос "METHOD /path" завершиться статусом status.
// Сбои накапливаются и срабатывают по одному.
func (s *Server) InjectFault(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], fault{status: status, message: message})
}

func (s *Server) takeFault(route string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.faults[route]
	if len(queue) == 0 {
		return fault{}, false
	}
	s.faults[route] = queue[1:]
	return queue[0], true
}

// Handler возвращает HTTP-обработчик backend.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.injectFaults)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Hello, World!"))
	})
	r.Post("/login", s.login)
	r.Post("/signup", s.signup)
	r.Get("/pay/{sessionID}", s.pay)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/logout", s.logout)
		r.Get("/profile", s.profile)

		r.Get("/cart", s.viewCart)
		r.Post("/cart/add", s.addToCart)
		r.Post("/cart/update", s.updateCart)
		r.Post("/cart/remove", s.removeFromCart)

		r.Get("/checkout", s.loadCheckout)
		r.Post("/checkout", s.placeOrder)
		r.Post("/create-checkout-session", s.createCheckoutSession)
		r.Get("/order/{orderID}", s.getOrder)
	})
	return r
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		if f, ok := s.takeFault(route); ok {
			s.logger.WithFields(log.Fields{"route": route, "status": f.status}).Info("injected fault")
			writeJSON(w, f.status, map[string]any{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func decodeJSON(r *http.Request, out any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	return json.NewDecoder(r.Body).Decode(out) == nil
}

// httpDate форматирует время так, как его отдаёт Flask.
func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
