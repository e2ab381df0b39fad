// Package navigation реализует переходы между экранами и уведомления для CLI.
package navigation

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Recorder запоминает переходы, внешние перенаправления и уведомления.
// Нужен там, где экранов нет: в HTTP-обработчиках и тестах.
type Recorder struct {
	mu        sync.Mutex
	routes    []domain.Route
	redirects []string
	successes []string
	errors    []string
}

// NewRecorder создаёт пустой Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Navigate(route domain.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *Recorder) Redirect(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, url)
	return nil
}

func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, message)
}

func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// Routes возвращает копию истории переходов.
func (r *Recorder) Routes() []domain.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Route(nil), r.routes...)
}

// LastRoute возвращает последний переход или пустую строку.
func (r *Recorder) LastRoute() domain.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

// Redirects возвращает копию внешних перенаправлений.
func (r *Recorder) Redirects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.redirects...)
}

// Successes возвращает показанные сообщения об успехе.
func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

// Errors возвращает показанные сообщения об ошибках.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// BrowserNavigator открывает страницу оплаты в системном браузере.
// Если браузер недоступен, адрес печатается, чтобы пользователь открыл его сам.
type BrowserNavigator struct {
	*Recorder
	out    io.Writer
	open   func(url string) error
	logger *log.Entry
}

// NewBrowserNavigator создаёт навигатор для CLI.
func NewBrowserNavigator(out io.Writer, logger *log.Entry) *BrowserNavigator {
	if logger == nil {
		logger = log.New().WithField("component", "navigation")
	}
	return &BrowserNavigator{
		Recorder: NewRecorder(),
		out:      out,
		open:     browser.OpenURL,
		logger:   logger,
	}
}

// Navigate логирует переход внутри приложения.
func (n *BrowserNavigator) Navigate(route domain.Route) {
	n.Recorder.Navigate(route)
	n.logger.WithField("route", route).Debug("navigate")
}

// Redirect передаёт управление внешней странице.
func (n *BrowserNavigator) Redirect(url string) error {
	_ = n.Recorder.Redirect(url)
	n.logger.WithField("url", url).Info("redirecting to payment page")
	if err := n.open(url); err != nil {
		n.logger.WithError(err).Warn("failed to open browser")
		_, _ = fmt.Fprintf(n.out, "Open this page to complete payment:\n  %s\n", url)
	}
	return nil
}

// LogNotifier печатает уведомления пользователю и дублирует их в лог.
type LogNotifier struct {
	out    io.Writer
	logger *log.Entry
}

// NewLogNotifier создаёт уведомитель для CLI.
func NewLogNotifier(out io.Writer, logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.New().WithField("component", "notifier")
	}
	return &LogNotifier{out: out, logger: logger}
}

func (n *LogNotifier) Success(message string) {
	_, _ = fmt.Fprintf(n.out, "✔ %s\n", message)
	n.logger.WithField("level", "success").Debug(message)
}

func (n *LogNotifier) Error(message string) {
	_, _ = fmt.Fprintf(n.out, "✖ %s\n", message)
	n.logger.WithField("level", "error").Debug(message)
}

var (
	_ domain.Navigator = (*Recorder)(nil)
	_ domain.Notifier  = (*Recorder)(nil)
	_ domain.Navigator = (*BrowserNavigator)(nil)
	_ domain.Notifier  = (*LogNotifier)(nil)
)
