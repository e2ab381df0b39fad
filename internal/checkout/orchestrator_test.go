package checkout

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/navigation"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

type staticSessions struct{ sess domain.Session }

func (s staticSessions) Current() domain.Session { return s.sess }

func signedIn() staticSessions {
	return staticSessions{sess: domain.Session{Token: "tok", User: &domain.User{ID: 9, Role: domain.RoleCustomer}}}
}

// fakeBackend реализует шаги оформления и чтение заказов в памяти.
type fakeBackend struct {
	mu sync.Mutex

	snapshot domain.CartSnapshot
	loadErr  error

	nextOrderID int64
	placeErr    error
	placed      []domain.ShippingDetails
	placeGate   chan struct{}
	placeEnter  chan struct{}

	sessionURL   string
	sessionErr   error
	sessionCalls []int64

	orders   map[int64]domain.Order
	getCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		snapshot: domain.CartSnapshot{
			Items: []domain.CartItem{
				{ProductID: 1, ProductName: "Cupcake", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
				{ProductID: 2, ProductName: "Brownie", Quantity: 1, UnitPrice: decimal.RequireFromString("3.00")},
			},
			TotalAmount: decimal.RequireFromString("12.00"),
		},
		nextOrderID: 77,
		sessionURL:  "https://pay.example/abc",
		orders:      make(map[int64]domain.Order),
	}
}

func (f *fakeBackend) LoadCheckout(context.Context) (domain.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.CartSnapshot{}, f.loadErr
	}
	return f.snapshot, nil
}

func (f *fakeBackend) PlaceOrder(_ context.Context, details domain.ShippingDetails) (int64, error) {
	if f.placeEnter != nil {
		f.placeEnter <- struct{}{}
	}
	if f.placeGate != nil {
		<-f.placeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, details)
	if f.placeErr != nil {
		return 0, f.placeErr
	}
	id := f.nextOrderID
	f.nextOrderID++
	f.orders[id] = domain.Order{
		ID:              id,
		Status:          domain.OrderStatusPending,
		TotalAmount:     f.snapshot.TotalAmount,
		ShippingAddress: details.Address,
		PaymentMethod:   details.PaymentMethod,
		CreatedAt:       time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
	return id, nil
}

func (f *fakeBackend) CreatePaymentSession(_ context.Context, orderID int64) (domain.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls = append(f.sessionCalls, orderID)
	if f.sessionErr != nil {
		return domain.PaymentSession{}, f.sessionErr
	}
	return domain.PaymentSession{OrderID: orderID, RedirectURL: f.sessionURL}, nil
}

func (f *fakeBackend) GetOrder(_ context.Context, orderID int64) (domain.OrderDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	order, ok := f.orders[orderID]
	if !ok {
		return domain.OrderDetails{}, &api.APIError{Status: 404, Message: "Order not found", Kind: domain.ErrNotFound}
	}
	return domain.OrderDetails{Order: order}, nil
}

func (f *fakeBackend) setStatus(orderID int64, status domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := f.orders[orderID]
	order.Status = status
	f.orders[orderID] = order
}

type recordingCart struct {
	mu         sync.Mutex
	reconciled []int
}

func (c *recordingCart) Reconcile(_ context.Context, snap domain.CartSnapshot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconciled = append(c.reconciled, snap.ItemCount())
	return snap.ItemCount()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*kafka.CheckoutEvent
	err    error
}

func (p *recordingPublisher) PublishCheckoutEvent(event *kafka.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []kafka.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]kafka.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	backend   *fakeBackend
	cart      *recordingCart
	rec       *navigation.Recorder
	publisher *recordingPublisher
	registry  *prometheus.Registry
	orch      *Orchestrator
}

func newHarness(t *testing.T, sessions SessionSource) *harness {
	t.Helper()
	h := &harness{
		backend:   newFakeBackend(),
		cart:      &recordingCart{},
		rec:       navigation.NewRecorder(),
		publisher: &recordingPublisher{},
		registry:  prometheus.NewRegistry(),
	}
	confirmView := confirmation.NewView(h.backend, h.rec, h.rec, nil)
	h.orch = NewOrchestrator(sessions, h.backend, h.cart, confirmView, h.rec, h.rec,
		WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(h.registry)),
		WithEvents(h.publisher),
	)
	return h
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Idle, LoadingCart))
	assert.True(t, CanTransition(PlacingOrder, CreatingPaymentSession))
	assert.True(t, CanTransition(CreatingPaymentSession, Redirecting))
	assert.True(t, CanTransition(Failed, CreatingPaymentSession))

	assert.False(t, CanTransition(AwaitingAddress, CreatingPaymentSession))
	assert.False(t, CanTransition(PlacingOrder, Redirecting))
	assert.False(t, CanTransition(Redirecting, Failed))
	assert.False(t, CanTransition(Completed, PlacingOrder))
	assert.Equal(t, "creating_payment_session", CreatingPaymentSession.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{Redirecting, Completed, Failed} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []State{Idle, LoadingCart, AwaitingAddress, PlacingOrder, CreatingPaymentSession, Returned, ConfirmingOrder} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestSubmit_FinishedAttemptAsksForNewCheckout(t *testing.T) {
	h := newHarness(t, signedIn())
	ctx := context.Background()

	a, err := h.orch.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"}))
	require.Equal(t, Redirecting, a.State())

	err = h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Contains(t, err.Error(), "start a new checkout")
	assert.Len(t, h.backend.placed, 1)
}

func TestSuccessfulPipeline_Order77(t *testing.T) {
	h := newHarness(t, signedIn())
	ctx := context.Background()

	a, err := h.orch.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, AwaitingAddress, a.State())
	assert.Equal(t, []int{3}, h.cart.reconciled)

	require.NoError(t, h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "  12 Baker St  "}))
	assert.Equal(t, Redirecting, a.State())
	assert.Equal(t, int64(77), a.OrderID())
	assert.Equal(t, []string{"https://pay.example/abc"}, h.rec.Redirects())
	assert.Equal(t, []State{Idle, LoadingCart, AwaitingAddress, PlacingOrder, CreatingPaymentSession, Redirecting}, a.History())
	assert.Equal(t, []domain.ShippingDetails{{Address: "12 Baker St", PaymentMethod: domain.DefaultPaymentMethod}}, h.backend.placed)
	assert.False(t, h.orch.InFlight())

	// Провайдер подтвердил оплату, пользователь вернулся.
	h.backend.setStatus(77, domain.OrderStatusCompleted)
	back, result := h.orch.ConfirmReturn(ctx, url.Values{"order_id": {"77"}, "session_id": {"cs_test_1"}})
	require.True(t, result.IsOk())
	assert.Equal(t, Completed, back.State())

	var buf bytes.Buffer
	require.NoError(t, view.RenderOr(&buf, result))
	assert.Contains(t, buf.String(), "Total Amount: $12.00")
	assert.Contains(t, buf.String(), "Status:       completed")

	assert.Equal(t, []kafka.EventType{
		kafka.EventTypeCheckoutStarted,
		kafka.EventTypeOrderPlaced,
		kafka.EventTypePaymentSessionCreated,
		kafka.EventTypeCheckoutRedirected,
		kafka.EventTypeOrderConfirmed,
	}, h.publisher.types())
	assert.Equal(t, float64(1), counterValue(t, h.registry, "storefront_checkout_redirected_total", nil))
	assert.Equal(t, float64(1), counterValue(t, h.registry, "storefront_checkout_confirmed_total", nil))
}

func TestConfirmReturn_IsIdempotentRead(t *testing.T) {
	h := newHarness(t, signedIn())
	ctx := context.Background()
	h.backend.orders[77] = domain.Order{ID: 77, Status: domain.OrderStatusCompleted, TotalAmount: decimal.RequireFromString("12.00")}

	render := func() string {
		_, result := h.orch.ConfirmReturn(ctx, url.Values{"order_id": {"77"}})
		var buf bytes.Buffer
		require.NoError(t, view.RenderOr(&buf, result))
		return buf.String()
	}

	assert.Equal(t, render(), render())
	assert.Equal(t, 2, h.backend.getCalls)
	assert.Empty(t, h.backend.placed)
	assert.Empty(t, h.backend.sessionCalls)
}

func TestEmptyCart_FailsAndRedirectsToCart(t *testing.T) {
	h := newHarness(t, signedIn())
	h.backend.snapshot = domain.CartSnapshot{}

	a, err := h.orch.Begin(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, Failed, a.State())
	assert.Equal(t, domain.RouteCart, h.rec.LastRoute())
	assert.Equal(t, []string{MsgEmptyCart}, h.rec.Errors())
	assert.Empty(t, h.backend.placed)
	assert.Empty(t, h.cart.reconciled)

	require.ErrorIs(t, h.orch.Submit(context.Background(), a, domain.ShippingDetails{Address: "x"}), domain.ErrIllegalTransition)
	require.ErrorIs(t, h.orch.Retry(context.Background(), a), domain.ErrIllegalTransition)
	assert.Equal(t, float64(1), counterValue(t, h.registry, "storefront_checkout_failed_total",
		map[string]string{"step": "loading_cart", "kind": "empty_cart"}))
}

func TestBegin_ServerMessageSurfaced(t *testing.T) {
	h := newHarness(t, signedIn())
	h.backend.loadErr = &api.APIError{Status: 400, Message: "Your cart is empty", Kind: domain.ErrEmptyCart}

	_, err := h.orch.Begin(context.Background())
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, []string{"Your cart is empty"}, h.rec.Errors())
}

func TestBegin_WithoutSession(t *testing.T) {
	h := newHarness(t, staticSessions{})

	a, err := h.orch.Begin(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Equal(t, Failed, a.State())
	assert.Equal(t, domain.RouteCart, h.rec.LastRoute())
	assert.Equal(t, []string{MsgLoginRequired}, h.rec.Errors())
}

func TestSubmit_EmptyAddressStaysAwaiting(t *testing.T) {
	h := newHarness(t, signedIn())
	a, err := h.orch.Begin(context.Background())
	require.NoError(t, err)

	err = h.orch.Submit(context.Background(), a, domain.ShippingDetails{Address: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, AwaitingAddress, a.State())
	assert.Empty(t, h.backend.placed)
	assert.Equal(t, []string{MsgAddressRequired}, h.rec.Errors())

	require.NoError(t, h.orch.Submit(context.Background(), a, domain.ShippingDetails{Address: "12 Baker St"}))
}

func TestPaymentSessionFailure_Order42(t *testing.T) {
	h := newHarness(t, signedIn())
	h.backend.nextOrderID = 42
	h.backend.sessionErr = &api.APIError{Status: 500, Message: "Payment provider unavailable", Kind: domain.ErrBackend}
	ctx := context.Background()

	a, err := h.orch.Begin(ctx)
	require.NoError(t, err)

	err = h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"})
	require.ErrorIs(t, err, domain.ErrPaymentSessionCreationFailed)
	assert.False(t, errors.Is(err, domain.ErrOrderCreationFailed))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CreatingPaymentSession, se.Step)
	assert.Equal(t, int64(42), se.OrderID)

	assert.Equal(t, Failed, a.State())
	assert.Empty(t, h.rec.Redirects())
	assert.Equal(t, []string{"Payment provider unavailable"}, h.rec.Errors())
	assert.Equal(t, domain.OrderStatusPending, h.backend.orders[42].Status)
	assert.Len(t, h.backend.orders, 1)

	// Повтор по действию пользователя создаёт только платёжную сессию.
	h.backend.sessionErr = nil
	require.NoError(t, h.orch.Retry(ctx, a))
	assert.Equal(t, Redirecting, a.State())
	assert.Len(t, h.backend.placed, 1)
	assert.Equal(t, []int64{42, 42}, h.backend.sessionCalls)
	assert.Equal(t, []string{"https://pay.example/abc"}, h.rec.Redirects())
}

func TestOrderCreationFailure_NoPaymentSession(t *testing.T) {
	h := newHarness(t, signedIn())
	h.backend.placeErr = &api.APIError{Status: 409, Message: "Not enough stock for Cupcake", Kind: domain.ErrValidation}
	ctx := context.Background()

	a, err := h.orch.Begin(ctx)
	require.NoError(t, err)

	err = h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"})
	require.ErrorIs(t, err, domain.ErrOrderCreationFailed)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, Failed, a.State())
	assert.Empty(t, h.backend.sessionCalls)
	assert.Equal(t, []string{"Not enough stock for Cupcake"}, h.rec.Errors())

	h.backend.placeErr = nil
	require.NoError(t, h.orch.Retry(ctx, a))
	assert.Equal(t, Redirecting, a.State())
	assert.Len(t, h.backend.placed, 2)
}

func TestInvalidRedirectURL_IsPaymentSessionFailure(t *testing.T) {
	for _, badURL := range []string{"", "not a url", "/relative/path", "ftp://pay.example/x"} {
		t.Run(badURL, func(t *testing.T) {
			h := newHarness(t, signedIn())
			h.backend.sessionURL = badURL
			ctx := context.Background()

			a, err := h.orch.Begin(ctx)
			require.NoError(t, err)

			err = h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"})
			require.ErrorIs(t, err, domain.ErrPaymentSessionCreationFailed)
			assert.NotContains(t, a.History(), Redirecting)
			assert.Empty(t, h.rec.Redirects())
			assert.Equal(t, []string{MsgSessionFailed}, h.rec.Errors())
		})
	}
}

func TestSubmit_SingleFlightAcrossAttempts(t *testing.T) {
	h := newHarness(t, signedIn())
	h.backend.placeGate = make(chan struct{})
	h.backend.placeEnter = make(chan struct{}, 1)
	ctx := context.Background()

	first, err := h.orch.Begin(ctx)
	require.NoError(t, err)
	second, err := h.orch.Begin(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- h.orch.Submit(ctx, first, domain.ShippingDetails{Address: "12 Baker St"})
	}()
	<-h.backend.placeEnter

	assert.True(t, h.orch.InFlight())
	require.ErrorIs(t, h.orch.Submit(ctx, second, domain.ShippingDetails{Address: "12 Baker St"}), domain.ErrCheckoutInFlight)
	require.ErrorIs(t, h.orch.Submit(ctx, first, domain.ShippingDetails{Address: "12 Baker St"}), domain.ErrCheckoutInFlight)
	assert.Equal(t, AwaitingAddress, second.State())

	close(h.backend.placeGate)
	require.NoError(t, <-done)
	assert.False(t, h.orch.InFlight())
	assert.Len(t, h.backend.placed, 1)

	h.backend.placeGate = nil
	h.backend.placeEnter = nil
	require.NoError(t, h.orch.Submit(ctx, second, domain.ShippingDetails{Address: "12 Baker St"}))
}

func TestRetry_RequiresFailedAttempt(t *testing.T) {
	h := newHarness(t, signedIn())
	a, err := h.orch.Begin(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, h.orch.Retry(context.Background(), a), domain.ErrIllegalTransition)
}

func TestConfirmReturn_WithoutSession(t *testing.T) {
	h := newHarness(t, staticSessions{})

	a, result := h.orch.ConfirmReturn(context.Background(), url.Values{"order_id": {"77"}})
	require.ErrorIs(t, result.Err(), domain.ErrAuthRequired)
	assert.Equal(t, Failed, a.State())
	assert.Equal(t, domain.RouteSignIn, h.rec.LastRoute())
	assert.Equal(t, []string{MsgViewLogin}, h.rec.Errors())
	assert.Equal(t, 0, h.backend.getCalls)
}

func TestConfirmReturn_MissingOrderID(t *testing.T) {
	for _, q := range []url.Values{{}, {"order_id": {""}}, {"order_id": {"abc"}}, {"order_id": {"-3"}}} {
		h := newHarness(t, signedIn())

		_, result := h.orch.ConfirmReturn(context.Background(), q)
		require.ErrorIs(t, result.Err(), domain.ErrOrderIDMissing)
		assert.Equal(t, domain.RouteAccount, h.rec.LastRoute())
		assert.Equal(t, []string{MsgOrderIDMissing}, h.rec.Errors())
		assert.Equal(t, 0, h.backend.getCalls)
	}
}

func TestConfirmReturn_UnknownOrder(t *testing.T) {
	h := newHarness(t, signedIn())

	a, result := h.orch.ConfirmReturn(context.Background(), url.Values{"order_id": {"404"}})
	require.ErrorIs(t, result.Err(), domain.ErrNotFound)
	assert.Equal(t, Failed, a.State())
	assert.Equal(t, []domain.Route{domain.RouteAccount}, h.rec.Routes())
	assert.Equal(t, []string{"Order not found"}, h.rec.Errors())
}

func TestParseReturn(t *testing.T) {
	ret, err := ParseReturn(url.Values{"order_id": {" 77 "}, "session_id": {"cs_1"}})
	require.NoError(t, err)
	assert.Equal(t, Return{OrderID: 77, SessionID: "cs_1"}, ret)

	_, err = ParseReturn(url.Values{"session_id": {"cs_1"}})
	require.ErrorIs(t, err, domain.ErrOrderIDMissing)
}

func TestPublisherFailureDoesNotStopCheckout(t *testing.T) {
	h := newHarness(t, signedIn())
	h.publisher.err = errors.New("kafka: client has run out of available brokers")
	ctx := context.Background()

	a, err := h.orch.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, h.orch.Submit(ctx, a, domain.ShippingDetails{Address: "12 Baker St"}))
	assert.Equal(t, Redirecting, a.State())
}

func TestStepError(t *testing.T) {
	cause := &api.APIError{Status: 502, Message: "bad gateway", Kind: domain.ErrBackend}
	se := &StepError{Step: CreatingPaymentSession, Kind: domain.ErrPaymentSessionCreationFailed, OrderID: 42, Cause: cause}

	assert.ErrorIs(t, se, domain.ErrPaymentSessionCreationFailed)
	assert.ErrorIs(t, se, domain.ErrBackend)
	assert.Contains(t, se.Error(), "order 42")
	assert.Contains(t, se.Error(), "creating_payment_session")
	assert.Equal(t, "payment_session_creation", domain.ErrorKind(&StepError{Step: CreatingPaymentSession, Kind: domain.ErrPaymentSessionCreationFailed}))
}
