package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/spf13/cobra"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/api"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/application"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/config"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/infrastructure/db"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/infrastructure/messaging"
	outboxinfra "github.com/RodolfoDevApp/market-presto-sync-go/internal/infrastructure/outbox"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/infrastructure/possource"
	"github.com/RodolfoDevApp/market-presto-sync-go/internal/infrastructure/presto"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "presto-sync",
		Short:         "Sync stock availability from the Market POS database to Presto",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSyncCmd(), newServeCmd(), newAuthCmd(), newCatalogPullCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("presto-sync: %v", err)
	}
}

// app agrupa las dependencias compartidas por todos los comandos.
type app struct {
	cfg      config.Config
	pg       *sql.DB
	market   *sql.DB
	settings *db.PgSettingsRepository
	client   *presto.Client

	stateRepo   *db.PgStockStateRepository
	mappingRepo *db.PgProductMappingRepository
	eventRepo   *db.PgSyncEventRepository
	itemRepo    *db.PgPrestoItemRepository
	outboxRepo  *db.PgOutboxRepository

	source      *possource.FallbackSource
	syncService *application.SyncService
	importSvc   *application.CatalogImportService
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	pgConn, err := sql.Open("pgx", cfg.PgDsn)
	if err != nil {
		return nil, err
	}
	if err := pgConn.PingContext(ctx); err != nil {
		pgConn.Close()
		return nil, err
	}

	// The Market connection is probed lazily by the fallback source;
	// opening never touches the network.
	marketConn, err := sql.Open("sqlserver", cfg.MarketDsn)
	if err != nil {
		pgConn.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		pg:     pgConn,
		market: marketConn,
	}

	a.settings = db.NewPgSettingsRepository(pgConn)
	a.stateRepo = db.NewPgStockStateRepository(pgConn)
	a.mappingRepo = db.NewPgProductMappingRepository(pgConn)
	a.eventRepo = db.NewPgSyncEventRepository(pgConn)
	a.itemRepo = db.NewPgPrestoItemRepository(pgConn)
	a.outboxRepo = db.NewPgOutboxRepository(pgConn)

	a.client = presto.NewClient(
		cfg.PrestoBaseUrl,
		a.settings,
		cfg.PushMaxRetry,
		cfg.PushBackoffSec,
		cfg.PushTimeoutSec,
	)
	if err := a.client.LoadToken(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.source = possource.NewFallbackSource(
		possource.NewMssqlTransport(marketConn, cfg.StockQuery),
		&possource.TsqlTransport{
			Path:       cfg.TsqlPath,
			Host:       cfg.MarketHost,
			Port:       cfg.MarketPort,
			Database:   cfg.MarketDb,
			User:       cfg.MarketUser,
			Password:   cfg.MarketPass,
			StockQuery: cfg.StockQuery,
		},
	)

	detector := application.NewChangeDetector(a.stateRepo)
	outboxWriter := application.NewOutboxWriter(a.outboxRepo)
	a.syncService = application.NewSyncService(
		a.source,
		a.mappingRepo,
		detector,
		a.client,
		a.eventRepo,
		outboxWriter,
	)
	a.importSvc = application.NewCatalogImportService(a.client, a.itemRepo)

	return a, nil
}

func (a *app) close() {
	if a.market != nil {
		a.market.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}

func newSyncCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the stock sync, continuously or once with --once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			log.Printf("Starting stock sync...")
			if err := a.syncService.CheckPreconditions(ctx); err != nil {
				return err
			}

			if once {
				return a.syncService.RunOnce(ctx)
			}

			// Continuous mode: dispatch outbox events alongside the poll loop.
			bus := messaging.NewAvailabilityEventBus(a.cfg.RabbitUri)
			dispatcher := outboxinfra.NewDispatcher(
				a.outboxRepo, bus, a.cfg.OutboxMaxRetry, a.cfg.OutboxBatchSize,
			)
			outboxinfra.NewScheduler(dispatcher, a.cfg.OutboxIntervalSec).Start(ctx)

			interval := time.Duration(a.cfg.PollIntervalSec) * time.Second
			log.Printf("Polling every %s. Press Ctrl+C to stop.", interval)

			for {
				if err := a.syncService.RunOnce(ctx); err != nil &&
					!errors.Is(err, application.ErrCycleInProgress) {
					log.Printf("Sync failed: %v", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run once instead of continuously")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API with the poll scheduler and outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			log.Printf("Starting presto-sync service on port %s", a.cfg.HttpPort)
			if err := a.syncService.CheckPreconditions(ctx); err != nil {
				return err
			}

			bus := messaging.NewAvailabilityEventBus(a.cfg.RabbitUri)
			dispatcher := outboxinfra.NewDispatcher(
				a.outboxRepo, bus, a.cfg.OutboxMaxRetry, a.cfg.OutboxBatchSize,
			)
			outboxinfra.NewScheduler(dispatcher, a.cfg.OutboxIntervalSec).Start(ctx)

			application.NewSyncScheduler(a.syncService, a.cfg.PollIntervalSec).Start(ctx)

			mux := http.NewServeMux()
			apiServer := api.NewServer(
				a.cfg, a.eventRepo, a.stateRepo, a.mappingRepo, a.itemRepo, a.syncService,
			)
			apiServer.RegisterRoutes(mux)

			httpSrv := &http.Server{
				Addr:    ":" + a.cfg.HttpPort,
				Handler: mux,
			}

			go func() {
				log.Printf("HTTP listening on :%s", a.cfg.HttpPort)
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("http server error: %v", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			log.Printf("Shutting down presto-sync, signal: %s", sig.String())

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("http shutdown error: %v", err)
			}
			return nil
		},
	}
}

func newAuthCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate against the Presto API and persist the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.Authenticate(ctx, email, password); err != nil {
				return err
			}
			log.Printf("Authenticated with Presto")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Presto developer account email")
	cmd.Flags().StringVar(&password, "password", "", "Presto developer account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newCatalogPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog-pull",
		Short: "Refresh the local Presto catalog cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.importSvc.ImportOnce(ctx)
			if err != nil {
				return err
			}
			log.Printf("Pulled %d catalog items", n)
			return nil
		},
	}
}
