package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mini-ttc/etaboard/internal/config"
	"github.com/mini-ttc/etaboard/internal/db"
	"github.com/mini-ttc/etaboard/internal/realtime/alerts"
	"github.com/mini-ttc/etaboard/internal/telemetry"
)

func main() {
	log.Println("Starting alerts poller...")

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded: poll_interval=%v, retention=%v", cfg.PollInterval, cfg.RetentionDuration)

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("Database initialized")

	var alertsPoller *alerts.Poller
	if cfg.GTFSAlertsURL != "" {
		alertsPoller = alerts.NewPoller(database, cfg.GTFSAlertsURL)
	} else {
		log.Println("GTFS_ALERTS_URL not set, only running cleanup")
	}

	registry := telemetry.NewRegistry()
	m := telemetry.NewMetrics(registry)
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: telemetry.Handler(registry)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Running initial poll...")
	pollOnce(ctx, alertsPoller, database, m, cfg)

	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pollOnce(ctx, alertsPoller, database, m, cfg)
			case <-ctx.Done():
				log.Println("Polling loop stopped")
				return
			}
		}
	}()

	log.Printf("Poller running (poll every %v, retain %v)", cfg.PollInterval, cfg.RetentionDuration)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownServer(metricsSrv, 5*time.Second)
	log.Println("Goodbye!")
}

func pollOnce(ctx context.Context, poller *alerts.Poller, database *db.DB, m *telemetry.Metrics, cfg *config.Config) {
	if poller != nil {
		if _, err := poller.Poll(ctx); err != nil {
			log.Printf("Alerts poll error: %v", err)
		}
		if n, err := database.CountActiveAlerts(ctx); err == nil {
			m.AlertsActive.Set(float64(n))
		}
	}

	// Cleanup old snapshots and resolved alerts
	if err := database.Cleanup(ctx, cfg.RetentionDuration); err != nil {
		log.Printf("Cleanup error: %v", err)
	}
}

// shutdownServer drains srv within timeout and logs a failed drain
func shutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	return err
}
