// invoiced is the invoice extraction and approval service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/extract"
	"github.com/pekarna-dev/invoice-engine/internal/match"
	"github.com/pekarna-dev/invoice-engine/internal/ocr"
	"github.com/pekarna-dev/invoice-engine/internal/pipeline"
	"github.com/pekarna-dev/invoice-engine/internal/repository"
	"github.com/pekarna-dev/invoice-engine/internal/server"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repository.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("db.open", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("db.migrate", "error", err)
		os.Exit(1)
	}

	templates := template.NewStore(repository.NewTemplateRepository(db, logger), logger)
	catalog := repository.NewCatalogRepository(db, logger)
	invoices := repository.NewInvoiceRepository(db, logger)

	processor := pipeline.New(
		extract.New(logger),
		match.New(catalog, cfg.Matching.SimilarityFloor, logger),
		templates,
		logger,
	)
	ocrClient := ocr.NewClient(cfg.OCR.BaseURL, cfg.OCR.Timeout, logger)

	srv := server.New(processor, templates, invoices, ocrClient, logger)
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server.run", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown.complete")
}
