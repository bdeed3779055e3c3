package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/config"
	"github.com/mamadbah2/amutrack/internal/repository/mongodb"
	"github.com/mamadbah2/amutrack/internal/repository/sheets"
	"github.com/mamadbah2/amutrack/internal/scheduler"
	"github.com/mamadbah2/amutrack/internal/server/handlers"
	"github.com/mamadbah2/amutrack/internal/server/router"
	administrationsvc "github.com/mamadbah2/amutrack/internal/service/administration"
	eligibilitysvc "github.com/mamadbah2/amutrack/internal/service/eligibility"
	outboxsvc "github.com/mamadbah2/amutrack/internal/service/outbox"
	reportingsvc "github.com/mamadbah2/amutrack/internal/service/reporting"
	"github.com/mamadbah2/amutrack/pkg/clients/docrender"
	"github.com/mamadbah2/amutrack/pkg/clients/mailer"
	"github.com/mamadbah2/amutrack/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	repo, err := mongodb.New(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	mailClient := mailer.NewClient(cfg.Mailer)
	renderClient := docrender.NewClient(cfg.DocRender)

	checker := eligibilitysvc.NewChecker(baseLogger.Named("svc.eligibility"))
	workflowSvc := administrationsvc.NewService(
		repo.Feeds, repo.Administrations, repo.Animals, repo.Users, repo.Audit, repo.Outbox,
		checker, baseLogger.Named("svc.administration"))
	reportingSvc := reportingsvc.NewService(
		repo.Administrations, repo.Animals, repo.Users, repo.Feeds,
		baseLogger.Named("svc.reporting"))
	dispatcher := outboxsvc.NewDispatcher(
		repo.Outbox, repo.Administrations, repo.Users, repo.Feeds,
		mailClient, renderClient, baseLogger.Named("svc.outbox"))

	// Initialize the compliance exporter when configured.
	var exporter sheets.Exporter
	if cfg.ComplianceExportEnabled() {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
		baseLogger.Info("compliance export enabled")
	} else {
		baseLogger.Warn("compliance export disabled, sheets not configured")
	}

	feedHandler := handlers.NewFeedHandler(repo.Feeds, baseLogger.Named("handlers.feed"))
	adminHandler := handlers.NewAdministrationHandler(workflowSvc, baseLogger.Named("handlers.administration"))
	reportHandler := handlers.NewReportingHandler(reportingSvc, baseLogger.Named("handlers.reporting"))
	engine := router.New(feedHandler, adminHandler, reportHandler, repo.Users, baseLogger.Named("router"))

	// Initialize Scheduler
	sched := scheduler.NewScheduler(*cfg, dispatcher, repo.Animals, reportingSvc, exporter, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
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
