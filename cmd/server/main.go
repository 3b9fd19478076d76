package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/cab-booking/internal/booking"
	"github.com/example/cab-booking/internal/config"
	"github.com/example/cab-booking/internal/dispatch"
	"github.com/example/cab-booking/internal/events"
	"github.com/example/cab-booking/internal/fare"
	"github.com/example/cab-booking/internal/fleet"
	httpapi "github.com/example/cab-booking/internal/http"
	"github.com/example/cab-booking/internal/identity"
	"github.com/example/cab-booking/internal/logging"
	"github.com/example/cab-booking/internal/payment"
	"github.com/example/cab-booking/internal/session"
	"github.com/example/cab-booking/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional migration for the Postgres backend.
	if cfg.PGDSN != "" && os.Getenv("MIGRATE") == "true" {
		if err := applyMigration(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
		} else {
			logger.Info("migration applied", "file", "001_init.sql")
		}
	}

	stores := openStores(ctx, cfg, logger)

	reg := fleet.NewRegistry(stores.Cabs, cfg.AtomicClaim, logger)
	if err := reg.Seed(ctx); err != nil {
		logger.Error("fleet seed failed", "error", err)
		os.Exit(1)
	}

	var sessions session.Store
	if cfg.RedisAddr != "" {
		sessions = session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		logger.Info("sessions backed by redis", "addr", cfg.RedisAddr)
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		logger.Info("publishing events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var settler payment.Settler
	if cfg.StripeEnabled {
		settler = payment.NewStripeSettler("")
		logger.Info("settling through stripe")
	} else {
		settler = payment.NewSimulatedSettler(cfg.SettleDelay, cfg.SuccessRate, time.Now().UnixNano())
	}

	wsreg := dispatch.NewWSRegistry(logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Identity: identity.NewService(stores.Users),
		Bookings: &booking.Service{
			Bookings: stores.Bookings,
			Users:    stores.Users,
			Fleet:    reg,
			Distance: fare.NewEstimator(time.Now().UnixNano()),
			Events:   producer,
			Notifier: wsreg,
			Logger:   logger,
		},
		Payments: &payment.Service{
			Payments: stores.Payments,
			Bookings: stores.Bookings,
			Users:    stores.Users,
			Settler:  settler,
			Events:   producer,
			Notifier: wsreg,
			Logger:   logger,
		},
		Fleet:    reg,
		Sessions: sessions,
		WSReg:    wsreg,
	}, logger)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("cab-booking listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// openStores picks the storage backend, falling back to memory so the
// binary runs locally with no dependencies.
func openStores(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) *storage.Stores {
	if cfg.MongoURI != "" {
		stores, err := storage.NewMongoStores(ctx, cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			logger.Info("storage backend: mongo", "db", cfg.MongoDB)
			return stores
		}
		logger.Error("mongo unavailable, falling back", "error", err)
	}
	if cfg.PGDSN != "" {
		stores, err := storage.NewPostgresStores(cfg.PGDSN)
		if err == nil {
			logger.Info("storage backend: postgres")
			return stores
		}
		logger.Error("postgres unavailable, falling back", "error", err)
	}
	logger.Info("storage backend: memory")
	return storage.NewMemoryStores()
}

func applyMigration(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
