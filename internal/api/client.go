// Package api реализует HTTP-клиент backend витрины.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultTimeout — таймаут запроса к backend по умолчанию.
	DefaultTimeout = 15 * time.Second
	// HeaderRequestID — заголовок корреляции запросов.
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// APIError возвращается, если backend ответил статусом вне 2xx.
type APIError struct {
	Status  int
	Message string
	// Kind — доменная ошибка, к которой сводится ответ (domain.Err*).
	Kind error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront api %d: %v", e.Status, e.Kind)
	}
	return fmt.Sprintf("storefront api %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Kind }

// MessageOf возвращает сообщение сервера из ошибки, если оно есть.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// TokenSource отдаёт текущий токен сессии. Пустая строка означает отсутствие сессии.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc адаптирует функцию к TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// UnauthorizedHandler вызывается, когда аутентифицированный запрос получил 401/403.
type UnauthorizedHandler func(ctx context.Context, err error)

// Client — типизированный клиент backend витрины.
type Client struct {
	baseURL        string
	http           *http.Client
	timeout        time.Duration
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[struct{}]
	breakerTrip    uint32
	breakerOpenFor time.Duration
	logger         *log.Entry
}

// Option настраивает клиент.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент (например, для httptest).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout задаёт таймаут запросов.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource задаёт источник bearer-токена.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHandler устанавливает глобальную политику реакции на 401/403.
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// WithRateLimit ограничивает частоту запросов клиента.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker настраивает circuit breaker: сколько подряд сетевых/5xx ошибок
// открывают его и на сколько.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		c.breakerTrip = consecutiveFailures
		c.breakerOpenFor = openFor
	}
}

// WithLogger задаёт логгер клиента.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// New создаёт клиент для backend по адресу baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        DefaultTimeout,
		tokens:         TokenSourceFunc(func() string { return "" }),
		breakerTrip:    5,
		breakerOpenFor: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.New().WithField("component", "api-client")
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := c.logger
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "storefront-backend",
		Timeout: c.breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return c.breakerTrip > 0 && counts.ConsecutiveFailures >= c.breakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("backend circuit breaker state changed")
		},
	})
	return c
}

// call описывает один запрос к backend.
type call struct {
	method string
	path   string
	body   any
	// auth требует токен из TokenSource; без него запрос не выполняется.
	auth bool
	// token задаёт токен явно (logout после локальной очистки).
	token string
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool { return r.status >= 200 && r.status < 300 }

// errServerStatus отмечает 5xx как неуспех для circuit breaker.
var errServerStatus = errors.New("server status")

func (c *Client) do(ctx context.Context, cl call) (response, error) {
	token := cl.token
	if cl.auth {
		token = c.tokens.Token()
		if token == "" {
			return response{}, domain.ErrAuthRequired
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
		}
	}

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return response{}, fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	requestID := uuid.NewString()
	logger := c.logger.WithFields(log.Fields{
		"method":     cl.method,
		"path":       cl.path,
		"request_id": requestID,
	})

	start := time.Now()
	var resp response
	_, err := c.breaker.Execute(func() (struct{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set(HeaderRequestID, requestID)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: read body: %v", domain.ErrNetworkUnavailable, err)
		}
		resp = response{status: httpResp.StatusCode, body: body}
		if resp.status >= 500 {
			return struct{}{}, errServerStatus
		}
		return struct{}{}, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logger.WithError(err).Warn("backend call short-circuited")
		return response{}, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	case err != nil && !errors.Is(err, errServerStatus):
		logger.WithError(err).Warn("backend call failed")
		return response{}, err
	}

	logger.WithFields(log.Fields{
		"status":      resp.status,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("backend call finished")

	if resp.ok() {
		return resp, nil
	}

	apiErr := newAPIError(resp)
	if cl.auth && errors.Is(apiErr, domain.ErrAuthExpiredOrForbidden) && c.onUnauthorized != nil {
		c.onUnauthorized(ctx, apiErr)
	}
	return resp, apiErr
}

func newAPIError(resp response) *APIError {
	return &APIError{
		Status:  resp.status,
		Message: serverMessage(resp.body),
		Kind:    kindForStatus(resp.status),
	}
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrAuthExpiredOrForbidden
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	default:
		return domain.ErrBackend
	}
}

// serverMessage извлекает сообщение из тела ответа: message или error.
func serverMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "error", "error.message"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func decode(resp response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrBackend, err)
	}
	return nil
}

// withKind переопределяет доменную ошибку у APIError, сохраняя статус и сообщение.
func withKind(err error, kind error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{Status: apiErr.Status, Message: apiErr.Message, Kind: kind}
	}
	return err
}

// Ping проверяет доступность backend запросом к корню.
// Любой ответ ниже 5xx означает, что backend жив.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/"})
	if err != nil && (errors.Is(err, domain.ErrNetworkUnavailable) || errors.Is(err, domain.ErrBackend)) {
		return err
	}
	return nil
}
