package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/cache"
	"github.com/mamadbah2/stationledger/internal/config"
	"github.com/mamadbah2/stationledger/internal/repository"
	"github.com/mamadbah2/stationledger/internal/repository/memory"
	"github.com/mamadbah2/stationledger/internal/repository/mongodb"
	"github.com/mamadbah2/stationledger/internal/repository/sheets"
	"github.com/mamadbah2/stationledger/internal/repository/sqlite"
	"github.com/mamadbah2/stationledger/internal/scheduler"
	"github.com/mamadbah2/stationledger/internal/server/handlers"
	"github.com/mamadbah2/stationledger/internal/server/router"
	entriessvc "github.com/mamadbah2/stationledger/internal/service/entries"
	reportingsvc "github.com/mamadbah2/stationledger/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/stationledger/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/stationledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/stationledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)
	gin.SetMode(gin.ReleaseMode)
	decimal.MarshalJSONWithoutQuotes = true

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	store, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init record store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close record store", zap.Error(err))
		}
	}()

	var summaryCache cache.SummaryCache = cache.NopCache{}
	var locker *redislock.Client
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			baseLogger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		summaryCache = cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL, logger.Named(baseLogger, "cache.redis"))
		locker = redislock.New(redisClient)
		baseLogger.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	} else {
		baseLogger.Warn("redis address missing, summary cache and scheduler lock disabled")
	}

	materials := cfg.Ledger.Materials()
	reportingSvc := reportingsvc.NewService(store, summaryCache, materials, cfg.Reporting.Locale, baseLogger.Named("svc.reporting"))
	entrySvc := entriessvc.NewService(store, summaryCache, reportingSvc, location, baseLogger.Named("svc.entries"))
	ledgerHandler := handlers.NewLedgerHandler(reportingSvc, entrySvc, location, baseLogger.Named("handlers.ledger"))

	var notifier scheduler.Notifier
	var webhookHandler *handlers.WebhookHandler
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, entrySvc, baseLogger.Named("svc.whatsapp"))
		webhookHandler = handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
		notifier = messagingSvc
	} else {
		baseLogger.Warn("whatsapp token missing, webhook and digest delivery disabled")
	}

	engine := router.New(ledgerHandler, webhookHandler, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, notifier, locker, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Store.Backend), zap.Int("materials", len(materials)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, base *zap.Logger) (repository.RecordStore, error) {
	switch cfg.Store.Backend {
	case config.BackendMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, cfg.MongoDB.Collection, base.Named("repo.mongodb"))
	case config.BackendSQLite:
		return sqlite.NewRepository(ctx, cfg.SQLite.Path, base.Named("repo.sqlite"))
	case config.BackendSheets:
		sheet, err := sheets.NewGoogleSheet(ctx, cfg.Sheets, base.Named("repo.sheets"))
		if err != nil {
			return nil, err
		}
		return sheets.NewRecordStore(sheet, cfg.Sheets.LedgerTab, base.Named("repo.sheets")), nil
	case config.BackendMemory:
		base.Warn("in-memory record store selected, records are lost on restart")
		return memory.NewRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}
