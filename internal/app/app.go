// Package app собирает сервис checkout: конфигурация, хранилища, оркестратор,
// HTTP API и служебный сервер с метриками и health-пробами.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/daralkutub/checkout/internal/health"
	"github.com/daralkutub/checkout/internal/service/idempotency"
	transport "github.com/daralkutub/checkout/internal/transport/http"
	"github.com/daralkutub/checkout/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx либо фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	configureLogging(cfg.Log)
	logger := log.WithField("component", "app")
	logger.Info(version.String())

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer := initKafkaProducer(cfg.KafkaBrokerList(), logger)
	defer closeKafka(kafkaProducer, logger)

	service := buildCheckoutService(cfg, deps, kafkaProducer, logger)

	// Фоновая уборка просроченных idempotency-ключей.
	sweeper := idempotency.NewSweeper(deps.Idempotency, idempotency.Config{
		Logger:    logger.WithField("component", "idempotency-sweeper"),
		Interval:  cfg.Cleanup.Interval,
		BatchSize: cfg.Cleanup.BatchSize,
	})
	go sweeper.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.Register("storage", healthcheck.CheckFunc(func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return deps.PingStorage(pingCtx)
	}))

	opsSrv := startOpsServer(ctx, cfg.Ops.Addr, logger, healthHandler)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	transport.NewHandler(service, logger.WithField("component", "http")).Register(router)

	apiSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTP.Addr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, cfg.HTTP.ShutdownTimeout, logger)
		shutdownHTTP(opsSrv, cfg.HTTP.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, cfg.HTTP.ShutdownTimeout, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// configureLogging применяет уровень и формат логирования из конфигурации.
func configureLogging(cfg LogConfig) {
	if level, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// startOpsServer запускает служебный HTTP-сервер: /metrics для Prometheus,
// /healthz, /readyz и /livez для оркестрации.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.Readiness)
	mux.HandleFunc("/livez", healthcheck.Liveness)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
