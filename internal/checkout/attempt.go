package checkout

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Attempt — одна попытка оформления. Заказ и платёжная сессия живут только в её рамках.
type Attempt struct {
	ID        string
	StartedAt time.Time

	mu          sync.Mutex
	state       State
	history     []State
	cart        domain.CartSnapshot
	details     domain.ShippingDetails
	orderID     int64
	redirectURL string
	err         *StepError
}

func newAttempt() *Attempt {
	return &Attempt{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		state:     Idle,
		history:   []State{Idle},
	}
}

// State возвращает текущее состояние.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History возвращает пройденные состояния по порядку.
func (a *Attempt) History() []State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]State(nil), a.history...)
}

// Cart возвращает авторитетный снимок корзины, загруженный при старте.
func (a *Attempt) Cart() domain.CartSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cart
}

// OrderID возвращает номер созданного заказа или 0.
func (a *Attempt) OrderID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orderID
}

// RedirectURL возвращает адрес страницы оплаты или пустую строку.
func (a *Attempt) RedirectURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.redirectURL
}

// Err возвращает ошибку шага, на котором попытка остановилась.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err == nil {
		return nil
	}
	return a.err
}

func (a *Attempt) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transitionLocked(to)
}

func (a *Attempt) transitionLocked(to State) error {
	if !CanTransition(a.state, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, a.state, to)
	}
	if a.state == Failed {
		a.err = nil
	}
	a.state = to
	a.history = append(a.history, to)
	return nil
}

func (a *Attempt) fail(se *StepError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if se.OrderID == 0 {
		se.OrderID = a.orderID
	}
	a.err = se
	if err := a.transitionLocked(Failed); err != nil {
		// Таблица не ведёт в Failed из этого состояния, но остановка фиксируется всё равно.
		a.state = Failed
		a.history = append(a.history, Failed)
	}
}

// retryStep возвращает шаг, с которого можно повторить упавшую попытку.
func (a *Attempt) retryStep() (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Failed || a.err == nil {
		return Idle, fmt.Errorf("%w: retry from %s", domain.ErrIllegalTransition, a.state)
	}
	switch a.err.Step {
	case PlacingOrder, CreatingPaymentSession:
		return a.err.Step, nil
	}
	return Idle, fmt.Errorf("%w: step %s cannot be retried, start a new checkout", domain.ErrIllegalTransition, a.err.Step)
}
