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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/mini-ttc/etaboard/internal/config"
	"github.com/mini-ttc/etaboard/internal/db"
	"github.com/mini-ttc/etaboard/internal/eta"
	"github.com/mini-ttc/etaboard/internal/handlers"
	"github.com/mini-ttc/etaboard/internal/metrics"
	"github.com/mini-ttc/etaboard/internal/models"
	"github.com/mini-ttc/etaboard/internal/query"
	"github.com/mini-ttc/etaboard/internal/realtime/predictions"
	"github.com/mini-ttc/etaboard/internal/repository"
	"github.com/mini-ttc/etaboard/internal/telemetry"
	"github.com/mini-ttc/etaboard/internal/ttc"
)

// stationSource is the part of a repository the station index loads from
type stationSource interface {
	GetAllStations(ctx context.Context) ([]models.Station, error)
}

// metadataStore serves stations, alerts and bookmarks from either backend
type metadataStore interface {
	stationSource
	handlers.AlertRepository
	handlers.BookmarkRepository
	handlers.Pinger
}

// sqliteStore combines the SQLite repositories into one metadataStore
type sqliteStore struct {
	*repository.SQLiteDB
	*repository.SQLiteStationRepository
	*repository.SQLiteAlertRepository
	*repository.SQLiteBookmarkRepository
}

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Writer connection: schema, snapshot journal and latency baselines
	writer, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer writer.Close()
	if err := writer.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	// Reader pool
	sqliteDB, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer sqliteDB.Close()

	var store metadataStore = sqliteStore{
		SQLiteDB:                 sqliteDB,
		SQLiteStationRepository:  repository.NewSQLiteStationRepository(sqliteDB.GetDB()),
		SQLiteAlertRepository:    repository.NewSQLiteAlertRepository(sqliteDB.GetDB()),
		SQLiteBookmarkRepository: repository.NewSQLiteBookmarkRepository(sqliteDB.GetDB()),
	}
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to ensure PostgreSQL schema: %v", err)
		}
		store = pg
		log.Println("Serving stations, alerts and bookmarks from PostgreSQL")
	}
	snapshotRepo := repository.NewSQLiteSnapshotRepository(sqliteDB.GetDB())

	stations := eta.NewStationIndex(nil)
	if err := reloadStations(context.Background(), store, stations); err != nil {
		log.Printf("Warning: failed to load stations: %v", err)
	}

	// Metrics and upstream health
	registry := telemetry.NewRegistry()
	promMetrics := telemetry.NewMetrics(registry)
	tracker := metrics.NewUpstreamTracker(time.Now)

	// Fetch path: HTTP client, snapshot journal, cache
	var fetcher ttc.Fetcher = ttc.NewClient(cfg.SubwayURL, cfg.BusURL, cfg.FetchTimeout, cfg.FetchMaxElapsed)
	fetcher = predictions.NewRecorder(fetcher, writer)
	queries := query.NewClient(query.Options{
		Size:      cfg.QueryCacheSize,
		TTL:       cfg.QueryCacheTTL,
		Observers: []query.Observer{promMetrics, tracker},
	})
	engine := eta.NewEngine(fetcher, queries, eta.NewRegistry(cfg.QueryCacheSize, time.Now), stations)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	handlers.Routes{
		Stops:     handlers.NewStopHandler(engine, store, snapshotRepo, promMetrics),
		Alerts:    handlers.NewAlertHandler(store),
		Bookmarks: handlers.NewBookmarkHandler(store),
		Health:    handlers.NewHealthHandler(store, tracker),
	}.Mount(r)
	r.Handle("/metrics", telemetry.Handler(registry))

	// Static file serving (if configured)
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hourly: fold observed latency into baselines and pick up re-imported stations
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := tracker.LearnBaselines(ctx, writer); err != nil {
					log.Printf("Baselines: update failed: %v", err)
				}
				if err := reloadStations(ctx, store, stations); err != nil {
					log.Printf("Stations: reload failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("API server starting on :%s", cfg.Port)
		log.Println("Board endpoints:")
		log.Println("  GET  /api/stops/{line}/{stopNum}")
		log.Println("  POST /api/stops/{line}/{stopNum}/refresh")
		log.Println("  GET  /api/stops/{line}/{stopNum}/raw")
		log.Println("  GET  /api/source/{line}")
		log.Println("  GET  /api/alerts")
		log.Println("  GET|POST /api/bookmarks, DELETE /api/bookmarks/{id}")
		log.Println("Health:")
		log.Println("  GET /health, /healthz, /api/health/upstream, /metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

func reloadStations(ctx context.Context, src stationSource, index *eta.StationIndex) error {
	stations, err := src.GetAllStations(ctx)
	if err != nil {
		return err
	}

	metas := make([]eta.StationMeta, 0, len(stations))
	for _, s := range stations {
		m := eta.StationMeta{StopNum: s.StopNum, Name: s.Name}
		if s.Direction != nil {
			m.Direction = *s.Direction
		}
		metas = append(metas, m)
	}
	index.Replace(metas)
	log.Printf("Stations: loaded %d stops", len(metas))
	return nil
}
