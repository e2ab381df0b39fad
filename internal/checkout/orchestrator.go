package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

// Сообщения, которые видит пользователь.
const (
	MsgLoginRequired   = "Please log in to proceed with checkout"
	MsgLoadFailed      = "Failed to load checkout information"
	MsgEmptyCart       = "Your cart is empty. Please add items before checkout."
	MsgAddressRequired = "Please enter a shipping address"
	MsgOrderFailed     = "Failed to create order"
	MsgSessionFailed   = "Failed to create checkout session"
	MsgNoResponse      = "No response from server. Please check your connection."
	MsgViewLogin       = "Please log in to view order details"
	MsgOrderIDMissing  = "Order ID not found"
)

// SessionSource отдаёт текущую сессию.
type SessionSource interface {
	Current() domain.Session
}

// CartReconciler принимает авторитетный снимок корзины. Реализуется cart.Cache.
type CartReconciler interface {
	Reconcile(ctx context.Context, snap domain.CartSnapshot) int
}

// Confirmer загружает страницу подтверждения заказа. Реализуется confirmation.View.
type Confirmer interface {
	Load(ctx context.Context, orderID int64) view.Result[confirmation.Page]
}

// EventPublisher публикует события оформления. Реализуется kafka.Producer.
type EventPublisher interface {
	PublishCheckoutEvent(event *kafka.CheckoutEvent) error
}

// Orchestrator проводит попытку оформления по шагам. Попытки single-flight:
// пока одна создаёт заказ или платёжную сессию, другая начаться не может.
type Orchestrator struct {
	sessions SessionSource
	api      domain.CheckoutAPI
	cart     CartReconciler
	confirm  Confirmer
	nav      domain.Navigator
	notify   domain.Notifier
	metrics  *metrics.CheckoutMetrics
	events   EventPublisher
	logger   *log.Entry

	mu     sync.Mutex
	active *Attempt
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEvents подключает публикацию событий (Kafka).
func WithEvents(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator создаёт оркестратор оформления. cart может быть nil.
func NewOrchestrator(
	sessions SessionSource,
	checkoutAPI domain.CheckoutAPI,
	cart CartReconciler,
	confirm Confirmer,
	nav domain.Navigator,
	notify domain.Notifier,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		api:      checkoutAPI,
		cart:     cart,
		confirm:  confirm,
		nav:      nav,
		notify:   notify,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.New().WithField("component", "checkout")
	}
	return o
}

// InFlight сообщает, выполняет ли какая-либо попытка сетевые шаги.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Begin начинает попытку: загружает авторитетную корзину и сверяет с ней счётчик.
// При отсутствии сессии или пустой корзине попытка завершается Failed, пользователь
// переводится в корзину.
func (o *Orchestrator) Begin(ctx context.Context) (*Attempt, error) {
	a := newAttempt()
	logger := o.logger.WithField("attempt_id", a.ID)

	if o.metrics != nil {
		o.metrics.RecordStarted()
	}
	o.publish(a, kafka.EventTypeCheckoutStarted, nil)

	if err := a.transition(LoadingCart); err != nil {
		return a, err
	}

	if !o.sessions.Current().Authenticated() {
		return a, o.fail(a, &StepError{Step: LoadingCart, Kind: domain.ErrAuthRequired}, MsgLoginRequired, domain.RouteCart)
	}

	start := time.Now()
	snap, err := o.api.LoadCheckout(ctx)
	o.observeStep(LoadingCart, start)
	if err == nil && snap.Empty() {
		err = domain.ErrEmptyCart
	}
	if err != nil {
		se := &StepError{Step: LoadingCart, Cause: err}
		fallback := MsgLoadFailed
		if errors.Is(err, domain.ErrEmptyCart) {
			se.Kind = domain.ErrEmptyCart
			fallback = MsgEmptyCart
		}
		return a, o.fail(a, se, messageFor(err, fallback), domain.RouteCart)
	}

	if o.cart != nil {
		o.cart.Reconcile(ctx, snap)
	}

	a.mu.Lock()
	a.cart = snap
	err = a.transitionLocked(AwaitingAddress)
	a.mu.Unlock()
	if err != nil {
		return a, err
	}

	logger.WithFields(log.Fields{
		"items": snap.ItemCount(),
		"total": snap.TotalAmount.StringFixed(2),
	}).Info("checkout cart loaded")
	return a, nil
}

// Submit проверяет адрес и проводит попытку через создание заказа, платёжной сессии
// и перенаправление к провайдеру. Пустой адрес оставляет попытку в AwaitingAddress без сетевых вызовов.
func (o *Orchestrator) Submit(ctx context.Context, a *Attempt, details domain.ShippingDetails) error {
	if state := a.State(); state != AwaitingAddress {
		switch {
		case state.networkStep():
			return domain.ErrCheckoutInFlight
		case state.Terminal():
			return fmt.Errorf("%w: attempt already finished in %s, start a new checkout", domain.ErrIllegalTransition, state)
		}
		return fmt.Errorf("%w: submit in state %s", domain.ErrIllegalTransition, state)
	}
	if err := details.Validate(); err != nil {
		o.logger.WithField("attempt_id", a.ID).Debug("shipping details rejected")
		if o.notify != nil {
			o.notify.Error(MsgAddressRequired)
		}
		return err
	}

	a.mu.Lock()
	a.details = details
	a.mu.Unlock()

	return o.run(ctx, a, PlacingOrder)
}

// Retry повторяет упавший шаг по действию пользователя: создание заказа с теми же данными
// или создание платёжной сессии для уже созданного заказа. Автоматических повторов нет.
func (o *Orchestrator) Retry(ctx context.Context, a *Attempt) error {
	step, err := a.retryStep()
	if err != nil {
		return err
	}
	o.logger.WithFields(log.Fields{
		"attempt_id": a.ID,
		"step":       step.String(),
		"order_id":   a.OrderID(),
	}).Info("retrying checkout step")
	return o.run(ctx, a, step)
}

// run выполняет сетевые шаги начиная с from. Шаги строго последовательны.
func (o *Orchestrator) run(ctx context.Context, a *Attempt, from State) error {
	if err := o.acquire(a); err != nil {
		return err
	}
	released := false
	release := func() {
		if !released {
			released = true
			o.release(a)
		}
	}
	defer release()

	logger := o.logger.WithField("attempt_id", a.ID)
	attemptStart := time.Now()

	if from == PlacingOrder {
		if err := a.transition(PlacingOrder); err != nil {
			return err
		}
		if err := o.placeOrder(ctx, a); err != nil {
			return err
		}
	}

	if err := a.transition(CreatingPaymentSession); err != nil {
		return err
	}
	ps, err := o.createPaymentSession(ctx, a)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.redirectURL = ps.RedirectURL
	err = a.transitionLocked(Redirecting)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	release()

	logger.WithFields(log.Fields{
		"order_id": ps.OrderID,
		"url":      ps.RedirectURL,
	}).Info("redirecting to payment provider")

	if err := o.nav.Redirect(ps.RedirectURL); err != nil {
		logger.WithError(err).Error("failed to hand over to payment provider")
		return fmt.Errorf("redirect to payment provider: %w", err)
	}

	if o.metrics != nil {
		o.metrics.RecordRedirected()
		o.metrics.RecordAttemptDuration(time.Since(attemptStart))
	}
	o.publish(a, kafka.EventTypeCheckoutRedirected, nil)
	return nil
}

func (o *Orchestrator) placeOrder(ctx context.Context, a *Attempt) error {
	a.mu.Lock()
	details := a.details
	a.mu.Unlock()

	start := time.Now()
	orderID, err := o.api.PlaceOrder(ctx, details)
	o.observeStep(PlacingOrder, start)
	if err != nil {
		se := &StepError{Step: PlacingOrder, Kind: domain.ErrOrderCreationFailed, Cause: err}
		return o.fail(a, se, messageFor(err, MsgOrderFailed), "")
	}

	a.mu.Lock()
	a.orderID = orderID
	a.mu.Unlock()

	o.logger.WithFields(log.Fields{
		"attempt_id": a.ID,
		"order_id":   orderID,
	}).Info("order placed")
	o.publish(a, kafka.EventTypeOrderPlaced, map[string]interface{}{
		"payment_method": details.PaymentMethod,
	})
	return nil
}

func (o *Orchestrator) createPaymentSession(ctx context.Context, a *Attempt) (domain.PaymentSession, error) {
	orderID := a.OrderID()

	start := time.Now()
	ps, err := o.api.CreatePaymentSession(ctx, orderID)
	o.observeStep(CreatingPaymentSession, start)
	if err == nil {
		if ps.OrderID == 0 {
			ps.OrderID = orderID
		}
		err = ps.Validate()
	}
	if err != nil {
		// Заказ уже существует на сервере в статусе pending; отмены и повтора здесь нет.
		se := &StepError{Step: CreatingPaymentSession, Kind: domain.ErrPaymentSessionCreationFailed, OrderID: orderID, Cause: err}
		return domain.PaymentSession{}, o.fail(a, se, messageFor(err, MsgSessionFailed), "")
	}

	o.publish(a, kafka.EventTypePaymentSessionCreated, nil)
	return ps, nil
}

// fail переводит попытку в Failed и сообщает пользователю. Истёкшую сессию обрабатывает
// глобальная политика, поэтому ни уведомления, ни перехода здесь нет.
func (o *Orchestrator) fail(a *Attempt, se *StepError, userMsg string, route domain.Route) error {
	if domain.IsAuthExpired(se.Cause) {
		se.Kind = domain.ErrAuthExpiredOrForbidden
	}
	a.fail(se)

	kind := domain.ErrorKind(se)
	logger := o.logger.WithFields(log.Fields{
		"attempt_id": a.ID,
		"step":       se.Step.String(),
		"kind":       kind,
	})
	if se.OrderID > 0 {
		logger = logger.WithField("order_id", se.OrderID)
	}

	if o.metrics != nil {
		o.metrics.RecordFailed(se.Step.String(), kind)
	}
	o.publish(a, kafka.EventTypeCheckoutFailed, nil)

	if domain.IsAuthExpired(se) {
		logger.Info("checkout halted, session expired")
		return se
	}

	logger.WithError(se.Cause).Warn("checkout step failed")
	if errors.Is(se, domain.ErrAuthRequired) {
		userMsg = MsgLoginRequired
	}
	if o.notify != nil && userMsg != "" {
		o.notify.Error(userMsg)
	}
	if o.nav != nil && route != "" {
		o.nav.Navigate(route)
	}
	return se
}

func (o *Orchestrator) acquire(a *Attempt) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		return domain.ErrCheckoutInFlight
	}
	o.active = a
	if o.metrics != nil {
		o.metrics.RecordInFlightStarted()
	}
	return nil
}

func (o *Orchestrator) release(a *Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != a {
		return
	}
	o.active = nil
	if o.metrics != nil {
		o.metrics.RecordInFlightFinished()
	}
}

func (o *Orchestrator) observeStep(step State, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step.String(), time.Since(start))
	}
}

// publish отправляет событие, если подключён publisher. Ошибка публикации не прерывает оформление.
func (o *Orchestrator) publish(a *Attempt, eventType kafka.EventType, metadata map[string]interface{}) {
	if o.events == nil {
		return
	}
	event := kafka.NewCheckoutEvent(eventType, a.ID, a.OrderID(), metadata)
	if user := o.sessions.Current().User; user != nil {
		event.UserID = user.ID
	}
	if se, ok := a.Err().(*StepError); ok && eventType == kafka.EventTypeCheckoutFailed {
		event.Step = se.Step.String()
		event.Kind = domain.ErrorKind(se)
	}
	if err := o.events.PublishCheckoutEvent(event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"attempt_id": a.ID,
			"event_type": eventType,
		}).Warn("failed to publish checkout event")
	}
}

// messageFor выбирает текст для пользователя: сообщение сервера дословно, иначе описание
// сетевой ошибки, иначе fallback.
func messageFor(err error, fallback string) string {
	if msg := api.MessageOf(err); msg != "" {
		return msg
	}
	if errors.Is(err, domain.ErrNetworkUnavailable) {
		return MsgNoResponse
	}
	return fallback
}
