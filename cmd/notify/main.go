package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/siteplanhq/notify/internal/api"
	"github.com/siteplanhq/notify/internal/cache"
	"github.com/siteplanhq/notify/internal/channel"
	"github.com/siteplanhq/notify/internal/config"
	"github.com/siteplanhq/notify/internal/magiclink"
	"github.com/siteplanhq/notify/internal/queue"
	"github.com/siteplanhq/notify/internal/reminder"
	"github.com/siteplanhq/notify/internal/repo"
	"github.com/siteplanhq/notify/internal/scheduler"
	"github.com/siteplanhq/notify/internal/session"
	"github.com/siteplanhq/notify/internal/trigger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("notify service starting",
		"addr", cfg.Server.Address,
		"worker", cfg.Worker.Enabled,
		"redis", cfg.Redis.Enabled,
		"reminder_interval", cfg.Reminder.Interval,
	)

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	tokens := repo.NewPostgresTokenRepo(db)
	deliveries := repo.NewPostgresDeliveryLogRepo(db)
	drawings := repo.NewPostgresDrawingRepo(db)
	inbound := repo.NewPostgresInboundRepo(db)
	notifications := repo.NewPostgresNotificationRepo(db)
	users := repo.NewPostgresUserRepo(db)

	// Process-local cache by default; Redis when an address is configured so
	// invalidations are shared across replicas.
	var appCache cache.Cache
	var sweeper *scheduler.Scheduler
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("ping redis: %v", err)
		}
		defer rdb.Close()
		appCache = cache.NewRedis(rdb)
	} else {
		mem := cache.NewMemory()
		appCache = mem
		sweeper, err = scheduler.New("cache-sweep", cfg.Cache.SweepInterval, func(ctx context.Context) {
			mem.Sweep(ctx)
		})
		if err != nil {
			log.Fatalf("cache sweeper: %v", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	magic, err := magiclink.New(tokens, cfg.Magic.TokenTTL)
	if err != nil {
		log.Fatalf("magic link service: %v", err)
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}

	registry := channel.NewRegistry(
		channel.NewWhatsApp(cfg.WhatsApp, channel.NewInboundWindow(inbound)),
		channel.NewSMS(cfg.Twilio),
		channel.NewEmail(cfg.SMTP),
	)

	q, err := queue.New(registry, deliveries, queue.Options{Synchronous: !cfg.Worker.Enabled})
	if err != nil {
		log.Fatalf("queue: %v", err)
	}

	var worker *queue.Worker
	if cfg.Worker.Enabled {
		worker, err = queue.NewWorker(q, cfg.Worker.IdleWait)
		if err != nil {
			log.Fatalf("worker: %v", err)
		}
		worker.Start()
		defer worker.Stop()
	} else {
		slog.Warn("background worker disabled, dispatching synchronously on enqueue")
	}

	triggers, err := trigger.New(q, magic, users, drawings, notifications, appCache, cfg.Server.PublicBaseURL)
	if err != nil {
		log.Fatalf("triggers: %v", err)
	}

	scanner, err := reminder.NewScanner(drawings, triggers, cfg.Reminder.GracePeriod, cfg.Reminder.RateLimit)
	if err != nil {
		log.Fatalf("reminder scanner: %v", err)
	}
	reminders, err := scheduler.New("approval-reminders", cfg.Reminder.Interval, scanner.Tick)
	if err != nil {
		log.Fatalf("reminder scheduler: %v", err)
	}
	reminders.Start()
	defer reminders.Stop()

	// Expiry is enforced on every read; the purge just keeps the table small.
	purge, err := scheduler.New("token-purge", time.Hour, func(ctx context.Context) {
		if _, err := magic.PurgeExpired(ctx); err != nil {
			slog.Error("token purge failed", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("token purge scheduler: %v", err)
	}
	purge.Start()
	defer purge.Stop()

	handler := api.NewHandler(magic, sessions, users, deliveries, inbound, reminders, q, worker, appCache)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      loggingMiddleware(api.Router(handler)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		log.Fatalf("http server: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	slog.Info("notify service stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
