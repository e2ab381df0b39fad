package backendstub

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSession — платёжная сессия заглушки провайдера.
type PaymentSession struct {
	ID      string
	OrderID int64
	Amount  decimal.Decimal
	Paid    bool
}

// PaymentProvider — конфигурируемая заглушка внешнего провайдера оплаты.
type PaymentProvider struct {
	mu sync.Mutex

	sessionErr  error
	urlOverride string

	sessions     map[string]*PaymentSession
	sessionCalls int
	payCalls     int
}

// NewPaymentProvider возвращает провайдер с успешным сценарием по умолчанию.
func NewPaymentProvider() *PaymentProvider {
	return &PaymentProvider{sessions: make(map[string]*PaymentSession)}
}

// CreateSession открывает сессию оплаты заказа и считает вызовы.
func (p *PaymentProvider) CreateSession(orderID int64, amount decimal.Decimal) (PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessionCalls++
	if p.sessionErr != nil {
		return PaymentSession{}, p.sessionErr
	}
	s := &PaymentSession{ID: "cs_" + uuid.NewString(), OrderID: orderID, Amount: amount}
	p.sessions[s.ID] = s
	return *s, nil
}

// Pay отмечает сессию оплаченной. Повторная оплата ошибкой не считается.
func (p *PaymentProvider) Pay(sessionID string) (PaymentSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.payCalls++
	s, ok := p.sessions[sessionID]
	if !ok {
		return PaymentSession{}, fmt.Errorf("payment session %q not found", sessionID)
	}
	s.Paid = true
	return *s, nil
}

// Fail настраивает ошибку создания сессии; nil возвращает успешный сценарий.
func (p *PaymentProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionErr = err
}

// RedirectTo подменяет адрес страницы оплаты (например, на некорректный); пустая строка отменяет подмену.
func (p *PaymentProvider) RedirectTo(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlOverride = u
}

// Calls возвращает число созданных сессий и оплат.
func (p *PaymentProvider) Calls() (sessions, payments int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionCalls, p.payCalls
}

func (p *PaymentProvider) redirectOverride() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urlOverride
}
