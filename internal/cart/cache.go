// Package cart хранит локальный счётчик корзины и сверяет его с серверной корзиной.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Сообщения, которые видит пользователь.
const (
	MsgQuantityTooLow = "Quantity must be at least 1"
	MsgLoginRequired  = "You must be logged in to add items to cart"
	MsgAddFailed      = "Failed to add product to cart"
)

// Причины изменения счётчика.
const (
	ReasonLoad      = "load"
	ReasonAdd       = "add"
	ReasonReconcile = "reconcile"
)

// CountChanged — событие изменения счётчика корзины.
type CountChanged struct {
	Count    int
	Previous int
	Reason   string
}

// SessionChecker сообщает, есть ли у пользователя сессия.
type SessionChecker interface {
	Authenticated() bool
}

// Cache — локальный оптимистичный счётчик корзины. Счётчик носит рекомендательный характер:
// суммы денег всегда берутся с сервера.
type Cache struct {
	mu      sync.Mutex
	count   int
	subs    map[int]chan CountChanged
	nextSub int

	api      domain.CartAPI
	sessions SessionChecker
	durable  domain.KVStore
	refresh  singleflight.Group
	metrics  *metrics.CartMetrics
	logger   *log.Entry
}

// Option настраивает Cache.
type Option func(*Cache)

// WithMetrics подключает метрики корзины.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Cache) { c.logger = logger }
}

// NewCache создаёт кэш корзины.
func NewCache(api domain.CartAPI, sessions SessionChecker, durable domain.KVStore, opts ...Option) *Cache {
	c := &Cache{
		api:      api,
		sessions: sessions,
		durable:  durable,
		subs:     make(map[int]chan CountChanged),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = log.New().WithField("component", "cart-cache")
	}
	return c
}

// Load перечитывает сохранённый счётчик: при старте и когда его мог изменить другой процесс.
// Некорректное значение считается нулём, ошибка чтения оставляет текущее значение.
func (c *Cache) Load(ctx context.Context) int {
	raw, err := c.durable.Get(ctx, domain.KeyCartCount)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		c.logger.WithError(err).Warn("failed to read persisted cart count")
		return c.LocalCount()
	}
	count := 0
	if err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n >= 0 {
			count = n
		} else {
			c.logger.WithField("value", raw).Warn("invalid persisted cart count, resetting to 0")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(ctx, count, ReasonLoad, false)
	return count
}

// LocalCount возвращает последнее известное (возможно устаревшее) значение счётчика.
func (c *Cache) LocalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// AddItem добавляет товар в серверную корзину и при успехе увеличивает счётчик на quantity.
// При ошибке счётчик не меняется.
func (c *Cache) AddItem(ctx context.Context, productID int64, quantity int) (string, error) {
	if quantity < 1 {
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, MsgQuantityTooLow)
	}
	if !c.sessions.Authenticated() {
		return "", fmt.Errorf("%w: %s", domain.ErrAuthRequired, MsgLoginRequired)
	}

	logger := c.logger.WithFields(log.Fields{"product_id": productID, "quantity": quantity})

	msg, err := c.api.AddToCart(ctx, productID, quantity)
	if err != nil {
		c.recordAdd("error")
		logger.WithError(err).Warn("add to cart failed")
		return "", err
	}
	if msg == "" {
		c.recordAdd("error")
		logger.Warn("add to cart returned no confirmation")
		return "", fmt.Errorf("%w: %s", domain.ErrBackend, MsgAddFailed)
	}

	c.mu.Lock()
	c.setLocked(ctx, c.count+quantity, ReasonAdd, true)
	c.mu.Unlock()

	c.recordAdd("ok")
	logger.Debug("item added to cart")
	return msg, nil
}

// Reconcile перезаписывает счётчик авторитетным значением из снимка корзины.
func (c *Cache) Reconcile(ctx context.Context, snap domain.CartSnapshot) int {
	authoritative := snap.ItemCount()

	c.mu.Lock()
	previous := c.count
	c.setLocked(ctx, authoritative, ReasonReconcile, true)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordReconcile(authoritative - previous)
	}
	if previous != authoritative {
		c.logger.WithFields(log.Fields{
			"local":         previous,
			"authoritative": authoritative,
		}).Info("cart badge corrected")
	}
	return authoritative
}

// Refresh читает корзину с сервера и сверяет счётчик. Параллельные вызовы объединяются.
// Общий запрос не отменяется вместе с первым вызвавшим: каждый ждёт его в пределах своего ctx.
func (c *Cache) Refresh(ctx context.Context) (domain.CartSnapshot, error) {
	if !c.sessions.Authenticated() {
		return domain.CartSnapshot{}, domain.ErrAuthRequired
	}

	shared := context.WithoutCancel(ctx)
	ch := c.refresh.DoChan("view-cart", func() (interface{}, error) {
		return c.api.ViewCart(shared)
	})

	select {
	case <-ctx.Done():
		return domain.CartSnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.CartSnapshot{}, res.Err
		}
		snap := res.Val.(domain.CartSnapshot)
		c.Reconcile(ctx, snap)
		return snap, nil
	}
}

// UpdateQuantity меняет количество позиции на change. Счётчик не трогается:
// он будет сверен при следующем чтении корзины.
func (c *Cache) UpdateQuantity(ctx context.Context, cartItemID int64, change int) (string, error) {
	if change == 0 {
		return "", fmt.Errorf("%w: change must not be zero", domain.ErrValidation)
	}
	if !c.sessions.Authenticated() {
		return "", domain.ErrAuthRequired
	}
	return c.api.UpdateCartItem(ctx, cartItemID, change)
}

// RemoveItem удаляет позицию. Счётчик не трогается.
func (c *Cache) RemoveItem(ctx context.Context, cartItemID int64) (string, error) {
	if !c.sessions.Authenticated() {
		return "", domain.ErrAuthRequired
	}
	return c.api.RemoveCartItem(ctx, cartItemID)
}

// Subscribe возвращает канал событий изменения счётчика и функцию отписки.
// Доставка неблокирующая: если буфер подписчика заполнен, событие для него теряется.
func (c *Cache) Subscribe(buffer int) (<-chan CountChanged, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan CountChanged, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// setLocked меняет счётчик, сохраняет его и оповещает подписчиков. Вызывается под c.mu.
func (c *Cache) setLocked(ctx context.Context, count int, reason string, persist bool) {
	previous := c.count
	c.count = count
	if c.metrics != nil {
		c.metrics.SetBadge(count)
	}
	if persist {
		if err := c.durable.Set(ctx, domain.KeyCartCount, strconv.Itoa(count)); err != nil {
			c.logger.WithError(err).Warn("failed to persist cart count")
		}
	}
	if previous == count {
		return
	}

	ev := CountChanged{Count: count, Previous: previous, Reason: reason}
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.WithField("subscriber", id).Debug("subscriber buffer full, dropping cart event")
		}
	}
}

func (c *Cache) recordAdd(result string) {
	if c.metrics != nil {
		c.metrics.RecordAdd(result)
	}
}
