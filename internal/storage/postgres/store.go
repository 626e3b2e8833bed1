package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// errStoreNotInitialized возвращается методами nil-store: так падение при
// неправильной сборке зависимостей читается в логах, а не в панике.
var errStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolConfig управляет пулом соединений database/sql. Нулевые поля
// заменяются значениями из DefaultPoolConfig.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PingTimeout ограничивает проверку доступности при открытии и Ping.
	PingTimeout time.Duration
}

// DefaultPoolConfig возвращает настройки пула, рассчитанные на один
// инстанс checkout-service рядом с небольшой базой.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	defaults := DefaultPoolConfig()
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaults.PingTimeout
	}
	return c
}

// Store держит подключение к PostgreSQL для всех репозиториев checkout.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// Open подключается к PostgreSQL с пулом по умолчанию.
func Open(ctx context.Context, dsn string) (*Store, error) {
	return OpenWithPool(ctx, dsn, DefaultPoolConfig())
}

// OpenWithPool подключается к PostgreSQL через драйвер pgx/stdlib и
// проверяет доступность базы до возврата.
func OpenWithPool(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	pool = pool.withDefaults()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	store := &Store{db: db, pingTimeout: pool.PingTimeout}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return store, nil
}

// DB возвращает raw *sql.DB для репозиториев этого пакета.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы; используется health-пробой сервиса.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	timeout := s.pingTimeout
	if timeout <= 0 {
		timeout = DefaultPoolConfig().PingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
