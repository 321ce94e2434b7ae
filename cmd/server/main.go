package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/db"
	"github.com/diewo77/atelier/internal/logger"
	"github.com/diewo77/atelier/internal/notify"
	"github.com/diewo77/atelier/internal/server"
	"github.com/diewo77/atelier/internal/view"
)

var (
	migrateOnlyFlag     = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedFlag            = flag.Bool("seed", false, "Seed the standard price grid and exit")
	convertPricesFlag   = flag.Bool("convert-prices-ht", false, "Convert stored tax-inclusive prices to pre-tax once and exit")
	importInventoryFlag = flag.String("import-inventory", "", "Import supplies from a .xlsx or ';' separated file and exit")
	checkInventoryFlag  = flag.Bool("check-inventory", false, "Print the supply inventory and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Must(logger.New(cfg.App.Dev, cfg.App.LogLevel))
	defer func() { _ = log.Sync() }()

	dbConn, err := db.ConnectAndMigrate(cfg.Database, logger.Named(log, "db"))
	if err != nil {
		log.Fatal("database setup failed", zap.Error(err))
	}

	deps := server.NewDeps(dbConn, cfg.Shop, log)
	if s := notify.NewTwilioSender(cfg.SMS); s != nil {
		deps.Tickets.Sender = s
		log.Info("sms sending enabled", zap.String("from", cfg.SMS.From))
	}
	deps.RateLimit = cfg.Server.RateLimit
	deps.Views = view.New(view.Config{Dev: cfg.App.Dev, ShopName: cfg.Shop.Name})

	// One-shot maintenance commands
	ctx := context.Background()
	switch {
	case *migrateOnlyFlag:
		log.Info("migrations completed")
		return
	case *seedFlag:
		exit(log, runSeed(dbConn, log))
		return
	case *convertPricesFlag:
		exit(log, runConvertPrices(ctx, deps.Tickets, log))
		return
	case *importInventoryFlag != "":
		exit(log, runImportInventory(ctx, deps.Catalog, *importInventoryFlag, os.Stdout))
		return
	case *checkInventoryFlag:
		exit(log, runCheckInventory(ctx, deps.Catalog, os.Stdout))
		return
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.New(deps),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev),
			zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

func exit(log *zap.Logger, err error) {
	if err != nil {
		log.Fatal("command failed", zap.Error(err))
	}
}
