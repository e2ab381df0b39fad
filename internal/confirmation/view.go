// Package confirmation показывает результат оформления после возврата от платёжного провайдера.
package confirmation

import (
	"context"
	"fmt"
	"io"
	"text/template"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

// MsgLoadFailed показывается, если сервер не вернул собственного сообщения.
const MsgLoadFailed = "Failed to load order details"

var pageTemplate = template.Must(template.New("order").Funcs(template.FuncMap{"date": formatDate}).Parse(`Order Placed Successfully
Thank you for your order! Your order has been placed successfully.

Order Details
  Order ID:     {{ .Order.ID }}
  Order Date:   {{ date .Order.CreatedAt }}
  Total Amount: ${{ .Order.TotalAmount.StringFixed 2 }}
  Status:       {{ .Order.Status }}
{{- with .Order.ShippingAddress }}
  Ship To:      {{ . }}
{{- end }}
{{- with .Order.PaymentMethod }}
  Payment:      {{ . }}
{{- end }}
{{- if .Items }}

Items
{{- range .Items }}
  {{ .Quantity }} x {{ .ProductName }} @ ${{ .UnitPrice.StringFixed 2 }} = ${{ .Subtotal.StringFixed 2 }}
{{- end }}
{{- end }}

[Back to Account]
`))

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// Page — данные страницы подтверждения.
type Page struct {
	domain.OrderDetails
}

// Render пишет текстовое представление заказа. Вывод зависит только от данных заказа.
func (p Page) Render(w io.Writer) error {
	return pageTemplate.Execute(w, p)
}

// View загружает заказ по идентификатору. Только чтение: повторная загрузка безопасна.
type View struct {
	orders domain.OrderAPI
	nav    domain.Navigator
	notify domain.Notifier
	logger *log.Entry
}

// NewView создаёт View.
func NewView(orders domain.OrderAPI, nav domain.Navigator, notify domain.Notifier, logger *log.Entry) *View {
	if logger == nil {
		logger = log.New().WithField("component", "order-confirmation")
	}
	return &View{orders: orders, nav: nav, notify: notify, logger: logger}
}

// Load запрашивает заказ. При ошибке пользователь уведомляется и переводится в личный кабинет,
// кроме истёкшей сессии: её обрабатывает глобальная политика.
func (v *View) Load(ctx context.Context, orderID int64) view.Result[Page] {
	logger := v.logger.WithField("order_id", orderID)
	if orderID <= 0 {
		return v.fail(logger, fmt.Errorf("%w: %d", domain.ErrOrderIDMissing, orderID))
	}

	details, err := v.orders.GetOrder(ctx, orderID)
	if err != nil {
		return v.fail(logger, fmt.Errorf("load order %d: %w", orderID, err))
	}

	logger.WithField("status", details.Order.Status).Debug("order details loaded")
	return view.Ok(Page{OrderDetails: details})
}

func (v *View) fail(logger *log.Entry, err error) view.Result[Page] {
	if domain.IsAuthExpired(err) {
		logger.WithError(err).Info("order details unavailable, session expired")
		return view.Failed[Page](err)
	}

	logger.WithError(err).Warn("failed to load order details")
	msg := api.MessageOf(err)
	if msg == "" {
		msg = MsgLoadFailed
	}
	if v.notify != nil {
		v.notify.Error(msg)
	}
	if v.nav != nil {
		v.nav.Navigate(domain.RouteAccount)
	}
	return view.Failed[Page](err)
}
