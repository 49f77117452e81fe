package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/analytics"
	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/bulk"
	bulkmem "github.com/dvloznov/finance-dashboard/internal/bulk/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	envmem "github.com/dvloznov/finance-dashboard/internal/envelope/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/normalize"
	"github.com/dvloznov/finance-dashboard/internal/syncstate"
	"github.com/rs/zerolog"
)

// exportPrefix is the object prefix for bulk exports.
const exportPrefix = "exports"

// backends are the collaborators chosen by configuration.
type backends struct {
	raw       normalize.RawSource
	accounts  handlers.AccountSource
	envelopes envelope.Store
	executors map[bulk.Kind]bulk.Executor
	closers   []func() error
}

func (b *backends) close(log zerolog.Logger) {
	for _, c := range b.closers {
		if err := c(); err != nil {
			log.Error().Err(err).Msg("Failed to close backend")
		}
	}
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a config file (or set FINDASH_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := logger.WithContext(context.Background(), log)

	b, err := newBackends(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backends")
	}
	defer b.close(log)

	// Sync tracker owns the per-resource state map
	tracker := syncstate.NewTracker(cfg.Sync.Buffer)
	tracker.Subscribe(func(tr syncstate.Transition) {
		if tr.Outcome.Applied {
			log.Debug().
				Str("resource_id", tr.Current.ResourceID).
				Str("from", string(tr.Previous.Status)).
				Str("to", string(tr.Current.Status)).
				Msg("Sync state changed")
		}
	})
	if err := tracker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync tracker")
	}
	b.executors[bulk.KindSync] = bulk.SyncExecutor{Tracker: tracker}

	// Bulk operations
	opStore := bulkmem.NewStore()
	coordinator := bulk.NewCoordinator(opStore)
	coordinator.Subscribe(func(tr bulk.Transition) {
		log.Debug().
			Str("operation_id", tr.OperationID).
			Str("item_id", tr.ItemID).
			Str("to", string(tr.To)).
			Msg("Bulk item transition")
	})

	engine := envelope.NewEngine(b.envelopes,
		envelope.WithConcurrency(cfg.Envelope.Concurrency),
		envelope.WithExactSum(cfg.Envelope.ExactSum),
	)

	// Create router
	mux := http.NewServeMux()
	handlers.Register(mux, handlers.Handlers{
		Ledger: handlers.NewLedgerHandler(b.raw, b.accounts, log,
			analytics.WithMonths(cfg.Analytics.Months),
			analytics.WithTopCategories(cfg.Analytics.TopCategories),
		),
		Envelopes:  handlers.NewEnvelopesHandler(b.envelopes, engine, log),
		Sync:       handlers.NewSyncHandler(tracker, log),
		Operations: handlers.NewOperationsHandler(coordinator, opStore, b.executors, log),
	})

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Bool("bigquery", cfg.UseBigQuery()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for background bulk operations, then stop the tracker they feed
	if err := coordinator.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bulk coordinator")
	}
	if err := tracker.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping sync tracker")
	}

	log.Info().Msg("Server exited")
}

// newBackends wires BigQuery and GCS when a project is configured, and the
// in-memory stores seeded from data files otherwise.
func newBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	log := logger.FromContext(ctx)
	b := &backends{executors: make(map[bulk.Kind]bulk.Executor)}

	if cfg.UseBigQuery() {
		repo, err := infraBQ.NewRepository(ctx, cfg.GCP.ProjectID, cfg.GCP.Dataset)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, repo.Close)
		b.raw = repo
		b.accounts = repo
		b.envelopes = repo
		b.executors[bulk.KindDelete] = infraBQ.NewTransactionDeleter(repo)

		if cfg.GCP.ExportBucket != "" {
			client, err := gcs.NewClient(ctx)
			if err != nil {
				b.close(log)
				return nil, err
			}
			b.closers = append(b.closers, client.Close)
			b.executors[bulk.KindExport] = gcs.NewExporter(client, repo, cfg.GCP.ExportBucket, exportPrefix)
		} else {
			log.Warn().Msg("No export bucket configured - bulk export is disabled")
		}
		return b, nil
	}

	log.Warn().Msg("No GCP project configured - serving data files from memory")

	var objects gcs.ObjectStore
	if strings.HasPrefix(cfg.Data.RawFile, "gs://") || strings.HasPrefix(cfg.Data.EnvelopesFile, "gs://") {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		objects = client
	}

	b.raw = normalize.StaticSource(nil)
	if cfg.Data.RawFile != "" {
		data, err := gcs.ReadLocation(ctx, objects, cfg.Data.RawFile)
		if err != nil {
			b.close(log)
			return nil, err
		}
		records, skipped, err := normalize.DecodeJSON(data)
		if err != nil {
			b.close(log)
			return nil, err
		}
		for _, e := range skipped {
			log.Warn().Err(e).Msg("Skipping undecodable raw record")
		}
		b.raw = normalize.StaticSource(records)
		log.Info().Int("records", len(records)).Str("file", cfg.Data.RawFile).Msg("Loaded raw transactions")
	}

	envStore := envmem.NewStore()
	if cfg.Data.EnvelopesFile != "" {
		data, err := gcs.ReadLocation(ctx, objects, cfg.Data.EnvelopesFile)
		if err != nil {
			b.close(log)
			return nil, err
		}
		if envStore, err = envmem.NewStoreFromJSON(data); err != nil {
			b.close(log)
			return nil, err
		}
	}
	b.envelopes = envStore
	return b, nil
}
