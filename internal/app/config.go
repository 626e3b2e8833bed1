package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Поддерживаемые бэкенды хранилищ.
const (
	StorageBackendMemory   = "memory"
	StorageBackendPostgres = "postgres"

	StockBackendRedis = "redis"
)

// Config собирает все настройки сервиса. Значения берутся из YAML-файла и
// переменных окружения с префиксом CHECKOUT_ (окружение приоритетнее файла).
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Stock    StockConfig    `mapstructure:"stock"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Shipping ShippingConfig `mapstructure:"shipping"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Log      LogConfig      `mapstructure:"log"`
}

// HTTPConfig — настройки API-сервера.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OpsConfig — настройки служебного сервера (метрики и health-пробы).
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig выбирает бэкенд для заказов, платежей и idempotency-ключей.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// StockConfig выбирает бэкенд ledger'а остатков. Пустой backend означает
// "тот же, что и storage".
type StockConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPoolSize int    `mapstructure:"redis_pool_size"`
}

// KafkaConfig — настройки публикации событий. Пустой brokers отключает Kafka.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
}

// CheckoutConfig — денежные параметры оформления заказа.
type CheckoutConfig struct {
	Currency       string        `mapstructure:"currency"`
	TaxRateBP      int64         `mapstructure:"tax_rate_bp"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// PaymentConfig настраивает шлюз и политику повторов.
type PaymentConfig struct {
	Latency        time.Duration `mapstructure:"latency"`
	TestMode       bool          `mapstructure:"test_mode"`
	DeclinedCards  []string      `mapstructure:"declined_cards"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// ShippingConfig настраивает тарификацию доставки по весу.
type ShippingConfig struct {
	CostPerKgMinor int64   `mapstructure:"cost_per_kg_minor"`
	FreeWeightKg   float64 `mapstructure:"free_weight_kg"`
}

// CleanupConfig настраивает воркер очистки idempotency-ключей.
type CleanupConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// LogConfig — уровень и формат логирования.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних
// зависимостей: in-memory хранилище, без Kafka и Redis.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Ops: OpsConfig{
			Addr: ":9090",
		},
		Storage: StorageConfig{
			Backend: StorageBackendMemory,
		},
		Checkout: CheckoutConfig{
			Currency:       "SAR",
			TaxRateBP:      0,
			IdempotencyTTL: 24 * time.Hour,
		},
		Payment: PaymentConfig{
			MaxAttempts:    3,
			InitialDelay:   100 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			BackoffFactor:  2.0,
			AttemptTimeout: 5 * time.Second,
		},
		Shipping: ShippingConfig{
			CostPerKgMinor: 500,
			FreeWeightKg:   1.0,
		},
		Cleanup: CleanupConfig{
			Interval:  10 * time.Minute,
			BatchSize: 500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig читает конфигурацию из файла (если путь не пуст) и окружения.
// Отсутствующий файл по явному пути — ошибка; окружение работает и без файла.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("http.addr", defaults.HTTP.Addr)
	v.SetDefault("http.shutdown_timeout", defaults.HTTP.ShutdownTimeout)
	v.SetDefault("ops.addr", defaults.Ops.Addr)
	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("checkout.currency", defaults.Checkout.Currency)
	v.SetDefault("checkout.tax_rate_bp", defaults.Checkout.TaxRateBP)
	v.SetDefault("checkout.idempotency_ttl", defaults.Checkout.IdempotencyTTL)
	v.SetDefault("payment.max_attempts", defaults.Payment.MaxAttempts)
	v.SetDefault("payment.initial_delay", defaults.Payment.InitialDelay)
	v.SetDefault("payment.max_delay", defaults.Payment.MaxDelay)
	v.SetDefault("payment.backoff_factor", defaults.Payment.BackoffFactor)
	v.SetDefault("payment.attempt_timeout", defaults.Payment.AttemptTimeout)
	v.SetDefault("shipping.cost_per_kg_minor", defaults.Shipping.CostPerKgMinor)
	v.SetDefault("shipping.free_weight_kg", defaults.Shipping.FreeWeightKg)
	v.SetDefault("cleanup.interval", defaults.Cleanup.Interval)
	v.SetDefault("cleanup.batch_size", defaults.Cleanup.BatchSize)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate отсекает заведомо неработоспособные комбинации настроек.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendMemory:
	case StorageBackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("storage backend %q requires storage.postgres_dsn", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Storage.Backend)
	}

	switch c.Stock.Backend {
	case "", c.Storage.Backend:
	case StockBackendRedis:
		if strings.TrimSpace(c.Stock.RedisAddr) == "" {
			return fmt.Errorf("stock backend %q requires stock.redis_addr", c.Stock.Backend)
		}
	default:
		return fmt.Errorf("unsupported stock backend: %q", c.Stock.Backend)
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr must not be empty")
	}

	return nil
}

// KafkaBrokerList разбивает строку brokers на список адресов.
func (c *Config) KafkaBrokerList() []string {
	raw := strings.Split(c.Kafka.Brokers, ",")
	brokers := make([]string, 0, len(raw))
	for _, broker := range raw {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
