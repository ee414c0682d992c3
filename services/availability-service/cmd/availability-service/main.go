package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/consultbook/libs/config"
	"github.com/md-rashed-zaman/consultbook/libs/db"
	"github.com/md-rashed-zaman/consultbook/libs/grpcx"
	"github.com/md-rashed-zaman/consultbook/libs/httpx"
	"github.com/md-rashed-zaman/consultbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/consultbook/libs/otel"
	"github.com/md-rashed-zaman/consultbook/libs/runtime"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/consumer"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/inbox"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/metrics"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/planning"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/slotcache"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

const healthServiceName = "consultbook.availability"

// probe checks the gRPC health endpoint of a locally running instance; it
// backs container health checks ("availability-service probe").
func probe() int {
	grpcPort, err := config.Port("GRPC_PORT", "9086")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	conn, err := grpcx.NewClient("localhost:"+grpcPort, grpcx.ClientOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer conn.Close()
	if err := grpcx.CheckHealth(context.Background(), conn, healthServiceName, 3*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	_ = config.LoadDotEnv()
	if len(os.Args) > 1 && os.Args[1] == "probe" {
		os.Exit(probe())
	}

	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	defaultLoc, err := config.Location("DEFAULT_TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var (
		rdb   *redis.Client
		cache planning.SlotCache
	)
	cacheTTL := config.Duration("SLOT_CACHE_TTL", 10*time.Minute)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0, 0),
		})
		defer func() { _ = rdb.Close() }()
		cache = slotcache.New(rdb, cacheTTL)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: slotcache.ReadyCheck(rdb)})
	} else {
		logger.Warn("REDIS_ADDR not set; slot cache and rate limiting are per instance")
		cache = slotcache.NewLocal(config.Int("SLOT_CACHE_SIZE", 4096, 1), cacheTTL)
	}

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()

	planner := planning.NewService(repo, logger, planning.Config{
		DefaultLocation: defaultLoc,
		DefaultDuration: time.Duration(config.Int("DEFAULT_SLOT_DURATION_MINUTES", 30, 1)) * time.Minute,
		HorizonDays:     config.Int("AVAILABILITY_HORIZON_DAYS", 30, 1),
	}, planning.WithMetrics(m), planning.WithCache(cache))
	editor := planning.NewEditor(repo, outboxRepo, cache, logger)

	brokers := config.List("KAFKA_BROKERS", "")
	if len(brokers) > 0 {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, m, outbox.PublisherConfig{
			PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50, 1),
		})
		go publisher.Run(ctx)

		topics := config.List("KAFKA_BOOKING_TOPICS",
			consumer.TopicAppointmentBooked+","+consumer.TopicAppointmentCancelled)
		reader := kafkax.NewGroupReader(brokers, config.String("KAFKA_GROUP_ID", service), topics)
		projector := consumer.NewBookingProjector(repo, outboxRepo, cache, logger)
		bookingConsumer := consumer.New(reader, pool, inbox.NewRepository(), projector.Handle, logger, m, consumer.Config{
			MaxAttempts: config.Int("KAFKA_MAX_ATTEMPTS", 5, 1),
			RetryDelay:  config.Duration("KAFKA_RETRY_DELAY", time.Second),
		})
		go bookingConsumer.Run(ctx)

		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		logger.Info("kafka enabled", "brokers", strings.Join(brokers, ","), "topics", strings.Join(topics, ","))
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox publishing and booking projection disabled")
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handlers.New(planner, editor, logger).Register(mux)

	perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1)
	var limit httpx.Middleware
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "rl:"+service).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(perMinute).Middleware()
	}

	// The access log sits right above middleware that keep the request
	// pointer, so it sees the pattern the mux matched.
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithBodyLimit(1<<20),
		httpx.WithAccessLog(logger, m.ObserveHTTP),
		httpx.WithRecovery(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
			MaxAge:         10 * time.Minute,
		}),
		limit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")

	grpcServer := grpcx.NewServer(logger)
	grpcServer.SetServing(true, healthServiceName)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		if err := grpcServer.Run(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}
