package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jihoonkang/ptbook/libs/config"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/libs/httpx"
	"github.com/jihoonkang/ptbook/libs/kafkax"
	otelx "github.com/jihoonkang/ptbook/libs/otel"
	"github.com/jihoonkang/ptbook/libs/runtime"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/booking"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/changereq"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/consumer"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/handlers"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/inbox"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/outbox"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/product"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// rateLimitMiddleware picks the Redis fixed-window limiter when a Redis
// address is configured (multi-instance deployments) and the in-process
// one otherwise.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT", 120)
	window := time.Minute
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return httpx.NewRedisRateLimiter(rdb, limit, window, "scheduling").Middleware(logger, true)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	scheduleRepo := storage.NewScheduleRepository(pool)
	productRepo := storage.NewProductRepository(pool)
	changeRepo := storage.NewChangeRequestRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	catalog, err := product.NewCatalogProvider(logger, productRepo, config.String("CATALOG_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("catalog provider init failed", "err", err)
		panic(err)
	}

	planner := booking.NewPlanner(scheduleRepo, catalog, booking.PlanConfig{
		OpenSlot:     timeslot.Slot(config.Int("OPEN_SLOT", 600)),
		CloseSlot:    timeslot.Slot(config.Int("CLOSE_SLOT", 2200)),
		HorizonWeeks: config.Int("HORIZON_WEEKS", 52),
		WindowMonths: config.Int("WINDOW_MONTHS", 3),
	})
	writer := booking.NewWriter(pool, scheduleRepo, outboxRepo, logger)
	changeSvc := changereq.NewService(pool, scheduleRepo, changeRepo, outboxRepo, logger, changereq.ServiceConfig{
		CreateCutoff:   config.Hours("CHANGE_CUTOFF_HOURS", changereq.DefaultCreateCutoff),
		ResponseWindow: config.Hours("CHANGE_RESPONSE_HOURS", changereq.DefaultResponseWindow),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// The product catalog cache is fed by catalog events; a missing topic
	// leaves the cache to whatever was seeded directly.
	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", "catalog.product.updated.v1")); topic != "" {
		inboxRepo := inbox.NewRepository(pool)
		catalogConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ProductID       string `json:"product_id"`
				Name            string `json:"name"`
				SessionCount    int    `json:"session_count"`
				DurationMinutes int    `json:"duration_minutes"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid catalog event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ProductID == "" || payload.SessionCount <= 0 || payload.DurationMinutes <= 0 {
				logger.Error("missing required catalog event fields", "topic", msg.Topic)
				return nil
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			if err := productRepo.Upsert(ctx, tx, model.Product{
				ID:              payload.ProductID,
				Name:            payload.Name,
				SessionCount:    payload.SessionCount,
				DurationMinutes: payload.DurationMinutes,
			}); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})
		go catalogConsumer.Run(ctx)
	}

	schedulingHandler := handlers.NewSchedulingHandler(planner, logger)
	bookingHandler := handlers.NewBookingHandler(planner, writer, scheduleRepo, logger)
	changeHandler := handlers.NewChangeRequestHandler(changeSvc, logger)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/slots", schedulingHandler.Slots)
	api.HandleFunc("/api/v1/schedules/check", schedulingHandler.Check)
	api.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			bookingHandler.List(w, r)
			return
		}
		bookingHandler.Create(w, r)
	})
	api.HandleFunc("/api/v1/change-requests", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			changeHandler.List(w, r)
			return
		}
		changeHandler.Create(w, r)
	})
	api.HandleFunc("/api/v1/change-requests/approve", changeHandler.Approve)
	api.HandleFunc("/api/v1/change-requests/reject", changeHandler.Reject)
	api.HandleFunc("/api/v1/change-requests/cancel", changeHandler.Cancel)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/", httpx.Chain(api, handlers.RequireAuth(jwtSecret)))

	rateLimit := rateLimitMiddleware(logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
