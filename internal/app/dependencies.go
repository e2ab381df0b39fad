package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/confirmation"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/navigation"
	"github.com/vladislavdragonenkov/storefront/internal/routegate"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlite"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Dependencies содержит все зависимости клиента витрины.
type Dependencies struct {
	Config Config

	// Durable хранит token, user и cartCount между запусками.
	Durable domain.KVStore
	// Scoped живёт, пока жив процесс.
	Scoped domain.KVStore

	Client       *api.Client
	Session      *session.Store
	JoinPrompt   *session.JoinPrompt
	Cart         *cart.Cache
	Gate         *routegate.Gate
	Confirmation *confirmation.View
	Checkout     *checkout.Orchestrator

	Navigator domain.Navigator
	Notifier  domain.Notifier
	Producer  *kafka.Producer
	Health    *health.Handler
	Logger    *log.Entry

	closers []func() error
}

// UI объединяет навигацию и уведомления конкретного интерфейса.
type UI struct {
	Navigator domain.Navigator
	Notifier  domain.Notifier
}

// ConsoleUI возвращает интерфейс командной строки: браузер для оплаты и уведомления в out.
func ConsoleUI(out io.Writer, logger *log.Entry) UI {
	return UI{
		Navigator: navigation.NewBrowserNavigator(out, logger.WithField("component", "navigation")),
		Notifier:  navigation.NewLogNotifier(out, logger.WithField("component", "notifier")),
	}
}

// durableStore — хранилище с проверкой доступности и закрытием.
type durableStore interface {
	domain.KVStore
	health.Pinger
	Close() error
}

// NewDependencies открывает хранилище, восстанавливает сессию и счётчик корзины
// и собирает компоненты витрины. Пустой UI заменяется консольным.
func NewDependencies(ctx context.Context, cfg Config, ui UI, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if ui.Navigator == nil || ui.Notifier == nil {
		console := ConsoleUI(os.Stdout, logger)
		if ui.Navigator == nil {
			ui.Navigator = console.Navigator
		}
		if ui.Notifier == nil {
			ui.Notifier = console.Notifier
		}
	}

	deps := &Dependencies{
		Config:    cfg,
		Scoped:    memory.NewKVStore(),
		Navigator: ui.Navigator,
		Notifier:  ui.Notifier,
		Health:    health.NewHandler(version.GetVersion()),
		Logger:    logger,
	}
	deps.Health.SetBuild(version.GetCommit(), version.GetDate())

	if err := deps.initStorage(ctx); err != nil {
		return nil, err
	}

	table := routegate.DefaultTable()
	if cfg.RoutesFile != "" {
		loaded, err := routegate.LoadTableFile(cfg.RoutesFile)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		table = loaded
	}

	// Клиент и хранилище сессии ссылаются друг на друга: токен читается лениво.
	var store *session.Store
	deps.Client = api.New(cfg.BackendURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithTokenSource(api.TokenSourceFunc(func() string { return store.Token() })),
		api.WithUnauthorizedHandler(func(ctx context.Context, err error) {
			session.ExpireOnUnauthorized(store, deps.Navigator, deps.Notifier)(ctx, err)
		}),
		api.WithLogger(logger.WithField("component", "api-client")),
	)
	store = session.NewStore(deps.Durable, deps.Client, logger.WithField("component", "session"))
	deps.Session = store

	if _, err := store.Restore(ctx); err != nil {
		logger.WithError(err).Warn("failed to restore session, continuing signed out")
	}

	deps.JoinPrompt = session.NewJoinPrompt(deps.Scoped, store)
	deps.Gate = routegate.NewGate(store, table, deps.Navigator, logger.WithField("component", "route-gate"))

	deps.Cart = cart.NewCache(deps.Client, store, deps.Durable,
		cart.WithMetrics(metrics.NewCartMetrics()),
		cart.WithLogger(logger.WithField("component", "cart")),
	)
	deps.Cart.Load(ctx)

	deps.Confirmation = confirmation.NewView(deps.Client, deps.Navigator, deps.Notifier,
		logger.WithField("component", "confirmation"))

	opts := []checkout.Option{
		checkout.WithMetrics(metrics.NewCheckoutMetrics()),
		checkout.WithLogger(logger.WithField("component", "checkout")),
	}
	if producer, err := initKafkaProducer(cfg.Brokers(), logger); err == nil && producer != nil {
		deps.Producer = producer
		opts = append(opts, checkout.WithEvents(producer))
	}
	deps.Checkout = checkout.NewOrchestrator(store, deps.Client, deps.Cart, deps.Confirmation,
		deps.Navigator, deps.Notifier, opts...)

	deps.Health.RegisterChecker("backend", health.NewDegradingChecker("backend", deps.Client.Ping))

	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context) error {
	cfg := d.Config
	var (
		store durableStore
		err   error
	)
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		d.Durable = memory.NewKVStore()
		return nil
	case StorageDriverSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLitePath)
	case StorageDriverRedis:
		store, err = redis.Open(ctx, cfg.RedisAddr, redis.WithPrefix(cfg.RedisPrefix))
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	d.Durable = store
	d.closers = append(d.closers, store.Close)
	d.Health.RegisterChecker("storage", health.NewPingChecker("storage", store))
	d.Logger.WithField("driver", cfg.StorageDriver).Info("client storage opened")
	return nil
}

// Close освобождает хранилище и Kafka producer.
func (d *Dependencies) Close() error {
	closeKafka(d.Producer, d.Logger)
	d.Producer = nil

	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
