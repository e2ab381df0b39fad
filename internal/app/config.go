package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
)

// Драйверы хранилища клиентского состояния.
const (
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

// Config описывает настройки клиента витрины.
type Config struct {
	BackendURL     string        `env:"STOREFRONT_BACKEND_URL"`
	RequestTimeout time.Duration `env:"STOREFRONT_REQUEST_TIMEOUT"`

	StorageDriver string `env:"STOREFRONT_STORAGE_DRIVER"`
	SQLitePath    string `env:"STOREFRONT_SQLITE_PATH"`
	RedisAddr     string `env:"STOREFRONT_REDIS_ADDR"`
	RedisPrefix   string `env:"STOREFRONT_REDIS_PREFIX"`

	// CallbackAddr — адрес локального сервера, принимающего возврат со страницы оплаты.
	CallbackAddr string `env:"STOREFRONT_CALLBACK_ADDR"`
	RoutesFile   string `env:"STOREFRONT_ROUTES_FILE"`
	// KafkaBrokers — список брокеров через запятую; пусто — события не публикуются.
	KafkaBrokers string `env:"STOREFRONT_KAFKA_BROKERS"`

	// BadgePollInterval — как часто поток /cart/badge перечитывает сохранённый счётчик корзины.
	BadgePollInterval time.Duration `env:"STOREFRONT_BADGE_POLL_INTERVAL"`

	RateLimit float64 `env:"STOREFRONT_RATE_LIMIT"`
	RateBurst int     `env:"STOREFRONT_RATE_BURST"`

	LogLevel string `env:"STOREFRONT_LOG_LEVEL"`
}

// DefaultConfig возвращает настройки для локального backend на :5000.
func DefaultConfig() Config {
	return Config{
		BackendURL:        "http://localhost:5000",
		RequestTimeout:    api.DefaultTimeout,
		StorageDriver:     StorageDriverSQLite,
		SQLitePath:        defaultSQLitePath(),
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "storefront:",
		CallbackAddr:      "127.0.0.1:8765",
		BadgePollInterval: defaultBadgePoll,
		RateLimit:         10,
		RateBurst:         20,
		LogLevel:          "info",
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".storefront", "state.db")
	}
	return filepath.Join(home, ".storefront", "state.db")
}

// LoadConfig читает необязательные .env файлы и переменные окружения поверх DefaultConfig.
// Уже заданные переменные окружения файлами не перекрываются.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.BackendURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("sqlite path is required for sqlite storage")
		}
	case StorageDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("redis addr is required for redis storage")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	if c.BadgePollInterval < 0 {
		return errors.New("badge poll interval must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New("rate burst must be at least 1")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Brokers возвращает список Kafka брокеров без пустых элементов.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Level возвращает уровень логирования, при ошибке info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
