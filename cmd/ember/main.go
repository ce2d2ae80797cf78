package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/emberhabit/ember/internal/backup"
	"github.com/emberhabit/ember/internal/database"
	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/logging"
	"github.com/emberhabit/ember/internal/server"
	"github.com/emberhabit/ember/internal/store"
)

func main() {
	logger := logging.Setup(os.Getenv("EMBER_LOG_LEVEL"))

	port := os.Getenv("EMBER_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("EMBER_DB_PATH")
	if dbPath == "" {
		dbPath = "ember.db"
	}

	// All day boundaries come from one timezone. Defaults to UTC.
	loc := time.UTC
	if tz := os.Getenv("EMBER_TZ"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid EMBER_TZ %q: %v", tz, err)
		}
	}
	clock := daykey.NewClock(loc)

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(
		db, clock,
		os.Getenv("EMBER_VAPID_PUBLIC_KEY"),
		os.Getenv("EMBER_VAPID_PRIVATE_KEY"),
		logger,
	)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("EMBER_BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("EMBER_BACKUP_S3_BUCKET"),
			Region:    envOr("EMBER_BACKUP_S3_REGION", "auto"),
			AccessKey: os.Getenv("EMBER_BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("EMBER_BACKUP_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("EMBER_BACKUP_PASSPHRASE"),
		Hour:       envInt("EMBER_BACKUP_HOUR", 3),
	}, db, store.NewBackupStore(db), clock, logger.With("component", "backup"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}
	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	go sessionSweep(ctx, srv.SessionStore(), logger)
	go rateLimiterSweep(ctx, srv)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Ember running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// sessionSweep deletes expired sessions hourly.
func sessionSweep(ctx context.Context, sessions *store.SessionStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired()
			if err != nil {
				logger.Error("session sweep", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions deleted", "count", n)
			}
		}
	}
}

func rateLimiterSweep(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
