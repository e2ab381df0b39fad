package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

// Return — параметры адреса возврата от платёжного провайдера.
type Return struct {
	OrderID int64
	// SessionID — идентификатор сессии провайдера, используется только для логов.
	SessionID string
}

// ParseReturn извлекает order_id и session_id. Отсутствующий или некорректный order_id
// считается нарушением протокола возврата.
func ParseReturn(query url.Values) (Return, error) {
	ret := Return{SessionID: strings.TrimSpace(query.Get("session_id"))}
	raw := strings.TrimSpace(query.Get("order_id"))
	if raw == "" {
		return ret, domain.ErrOrderIDMissing
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return ret, fmt.Errorf("%w: invalid order_id %q", domain.ErrOrderIDMissing, raw)
	}
	ret.OrderID = id
	return ret, nil
}

// ConfirmReturn обрабатывает повторный вход после оплаты. Состояние предыдущей попытки не нужно:
// заказ читается по order_id из адреса. Повторный вызов безопасен, выполняется только чтение.
// Без сессии пользователь отправляется на вход (заказ при этом не теряется),
// а без order_id в личный кабинет.
func (o *Orchestrator) ConfirmReturn(ctx context.Context, query url.Values) (*Attempt, view.Result[confirmation.Page]) {
	a := newAttempt()
	_ = a.transition(Returned)

	ret, parseErr := ParseReturn(query)
	logger := o.logger.WithFields(log.Fields{
		"attempt_id": a.ID,
		"order_id":   ret.OrderID,
		"session_id": ret.SessionID,
	})

	if !o.sessions.Current().Authenticated() {
		logger.Info("returned from payment provider without a session")
		se := &StepError{Step: Returned, Kind: domain.ErrAuthRequired, OrderID: ret.OrderID}
		return a, view.Failed[confirmation.Page](o.failReturn(a, se, MsgViewLogin, domain.RouteSignIn))
	}
	if parseErr != nil {
		logger.WithError(parseErr).Warn("payment provider returned without order id")
		se := &StepError{Step: Returned, Kind: domain.ErrOrderIDMissing, Cause: parseErr}
		return a, view.Failed[confirmation.Page](o.failReturn(a, se, MsgOrderIDMissing, domain.RouteAccount))
	}

	a.mu.Lock()
	a.orderID = ret.OrderID
	_ = a.transitionLocked(ConfirmingOrder)
	a.mu.Unlock()

	start := time.Now()
	result := o.confirm.Load(ctx, ret.OrderID)
	o.observeStep(ConfirmingOrder, start)

	if err := result.Err(); err != nil {
		// Уведомление и переход уже выполнило представление заказа.
		se := &StepError{Step: ConfirmingOrder, OrderID: ret.OrderID, Cause: err}
		if domain.IsAuthExpired(err) {
			se.Kind = domain.ErrAuthExpiredOrForbidden
		}
		a.fail(se)
		if o.metrics != nil {
			o.metrics.RecordFailed(ConfirmingOrder.String(), domain.ErrorKind(se))
		}
		o.publish(a, kafka.EventTypeCheckoutFailed, nil)
		return a, view.Failed[confirmation.Page](se)
	}

	_ = a.transition(Completed)
	page, _ := result.Value()
	logger.WithField("status", page.Order.Status).Info("order confirmed")
	if o.metrics != nil {
		o.metrics.RecordConfirmed()
	}
	o.publish(a, kafka.EventTypeOrderConfirmed, map[string]interface{}{
		"status":     string(page.Order.Status),
		"session_id": ret.SessionID,
	})
	return a, result
}

func (o *Orchestrator) failReturn(a *Attempt, se *StepError, userMsg string, route domain.Route) error {
	a.fail(se)
	if o.metrics != nil {
		o.metrics.RecordFailed(se.Step.String(), domain.ErrorKind(se))
	}
	if o.notify != nil {
		o.notify.Error(userMsg)
	}
	if o.nav != nil {
		o.nav.Navigate(route)
	}
	return se
}
