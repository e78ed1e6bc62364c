package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicbook/clinicbook/libs/config"
	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/httpx"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	otelx "github.com/clinicbook/clinicbook/libs/otel"
	"github.com/clinicbook/clinicbook/libs/runtime"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/actiontoken"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/booking"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/handlers"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/outbox"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/schedule"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	// Every calendar boundary in the engine uses the clinic's zone.
	loc, err := time.LoadLocation(config.String("CLINIC_TIMEZONE", "Asia/Karachi"))
	if err != nil {
		logger.Error("invalid CLINIC_TIMEZONE", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	serviceRepo := storage.NewServiceRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	tokenRepo := actiontoken.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	engine := booking.NewEngine(pool, apptRepo, serviceRepo, scheduleRepo, tokenRepo, outboxRepo, logger, loc)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sweeper := actiontoken.NewSweeper(tokenRepo, logger, time.Hour)
	go sweeper.Run(ctx)

	publicHandler := handlers.New(engine, logger)
	adminHandler := handlers.NewAdmin(engine, serviceRepo, scheduleRepo, logger)

	// Patients hit the public surface unauthenticated, so it gets a
	// per-client rate limit; the staff surface does not.
	rateLimit := publicRateLimit(logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, rateLimit, httpx.WithBodyLimit(64<<10))
	}
	mux.Handle("/api/v1/public/availability", public(publicHandler.Availability))
	mux.Handle("/api/v1/public/shifts", public(publicHandler.Shifts))
	mux.Handle("/api/v1/public/book", public(publicHandler.Book))
	mux.Handle("/api/v1/public/book-shift", public(publicHandler.BookShift))
	mux.Handle("/api/v1/public/actions/cancel", public(publicHandler.CancelByToken))
	mux.Handle("/api/v1/public/actions/reschedule", public(publicHandler.RescheduleByToken))

	mux.HandleFunc("/api/v1/admin/appointments", adminHandler.Appointments)
	mux.HandleFunc("/api/v1/admin/appointments/status", adminHandler.AppointmentStatus)
	mux.HandleFunc("/api/v1/admin/services", adminHandler.Services)
	mux.HandleFunc("/api/v1/admin/schedule/config", adminHandler.ScheduleConfig)
	mux.HandleFunc("/api/v1/admin/schedule/exceptions", adminHandler.ScheduleExceptions)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(15*time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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

// publicRateLimit prefers the shared Redis fixed window when REDIS_ADDR
// is set, so replicas count against one budget; otherwise it falls back
// to a per-process in-memory limiter.
func publicRateLimit(logger *slog.Logger) httpx.Middleware {
	limit := 60
	if raw := config.String("PUBLIC_RATE_LIMIT", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	window := time.Minute

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		logger.Info("using redis rate limiter", "addr", addr, "limit", limit)
		return httpx.NewRedisRateLimiter(rdb, limit, window, "booking:public").Middleware(logger, true)
	}
	logger.Info("using in-memory rate limiter", "limit", limit)
	return httpx.NewRateLimiter(limit, window).Middleware()
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
