package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/consultation-booking/internal/admin"
	bookingv1 "github.com/Leganyst/consultation-booking/internal/api/booking/v1"
	"github.com/Leganyst/consultation-booking/internal/auth"
	"github.com/Leganyst/consultation-booking/internal/clock"
	"github.com/Leganyst/consultation-booking/internal/config"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/notify"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/internal/scheduling"
	"github.com/Leganyst/consultation-booking/internal/service"
	"github.com/Leganyst/consultation-booking/pkg/logging"
	"github.com/Leganyst/consultation-booking/pkg/obs"
)

const serviceName = "consultation-booking"

func main() {
	ctx := context.Background()

	// 1. Загружаем конфиг из env (.env опционален).
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", serviceName, "env", cfg.Env)

	// 2. Трейсинг (пустой endpoint = выключен).
	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		fatal(log, "init tracer", err)
	}

	// 3. Хранилище: GORM или in-memory.
	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		fatal(log, "init store", err)
	}

	// 4. Доставка событий жизненного цикла.
	dispatcher, closeDispatcher, err := newDispatcher(cfg.Notify, log)
	if err != nil {
		fatal(log, "init dispatcher", err)
	}

	// 5. Ядро планирования.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	scheduler := scheduling.New(scheduling.Deps{
		Store:      store,
		Clock:      clock.System{},
		Dispatcher: dispatcher,
		Metrics:    metrics.NewSchedulingMetrics(registry),
		Logger:     log,
	}, scheduling.Config{
		CancellationBuffer: cfg.Scheduling.CancellationBuffer,
		SlotDuration:       cfg.Scheduling.SlotDuration,
		HorizonDays:        cfg.Scheduling.GenerationHorizonDays,
	})

	// 6. Настраиваем gRPC-сервер.
	tokens := auth.NewTokens(cfg.JWTSecret)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(auth.UnaryInterceptor(tokens)))
	bookingv1.RegisterBookingServiceServer(grpcServer, service.NewCalendarService(scheduler, log))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		fatal(log, "listen "+cfg.GRPCAddr, err)
	}

	// 7. Админский HTTP: health, readiness, metrics.
	adminRouter := admin.New(&admin.Config{
		Logger:   log,
		Store:    store,
		Gatherer: registry,
	})
	adminSrv := &http.Server{
		Addr:              cfg.AdminHTTPAddr,
		Handler:           adminRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 8. Запускаем серверы в горутинах.
	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			fatal(log, "grpc serve", err)
		}
	}()
	go func() {
		log.Info("admin HTTP server listening", "addr", cfg.AdminHTTPAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "admin serve", err)
		}
	}()

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	healthSrv.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin shutdown", "error", err)
	}
	if err := closeDispatcher(); err != nil {
		log.Warn("dispatcher close", "error", err)
	}
	if err := closeStore(); err != nil {
		log.Warn("store close", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown", "error", err)
	}
}

func openStore(cfg *config.Config, log *logging.Logger) (repository.Store, func() error, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store; state is lost on restart")
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}

	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := model.AutoMigrate(gormDB); err != nil {
			return nil, nil, err
		}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewGormStore(gormDB), sqlDB.Close, nil
}

func newDispatcher(cfg config.NotifyConfig, log *logging.Logger) (notify.Dispatcher, func() error, error) {
	logged := notify.NewLogDispatcher(log)

	switch cfg.Backend {
	case "rabbitmq":
		pub, err := notify.NewRabbitPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			return nil, nil, err
		}
		return notify.Multi{logged, pub}, pub.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		return notify.Multi{logged, notify.NewRedisStreamPublisher(client, cfg.RedisStream)}, client.Close, nil
	default:
		return logged, func() error { return nil }, nil
	}
}

func fatal(log *logging.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
