package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brokernuam/calificaciones/internal/config"
	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/devserver"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
	"github.com/brokernuam/calificaciones/internal/testdata"
)

func main() {
	reset := flag.Bool("reset", false, "empty the store before seeding")
	sample := flag.String("sample", "", "write a sample bulk CSV to this path and exit")
	sampleKind := flag.String("sample-kind", string(testdata.KindMontos), "sample format: montos or factores")
	sampleRows := flag.Int("sample-rows", 20, "rows in the sample file")
	flag.Parse()

	if *sample != "" {
		if err := writeSample(*sample, testdata.Kind(*sampleKind), *sampleRows); err != nil {
			log.Fatalf("sample: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, closer, err := logging.New(cfg.Log.Level, "")
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()

	db, err := database.OpenMigrated(cfg.DevServer.DatabasePath, cfg.Migrations.Path)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer db.Close()

	if *reset {
		if err := (&service.MaintenanceService{DB: db}).ResetStore(context.Background()); err != nil {
			logger.WithError(err).Fatal("reset store")
		}
		logger.Info("store reset")
	}

	if err := database.SeedDefaults(context.Background(), db, cfg.DevServer.Broker); err != nil {
		logger.WithError(err).Fatal("seed defaults")
	}

	srv := devserver.NewHTTPServer(cfg.DevServer.Addr, devserver.NewServer(devserver.Options{
		DB:             db,
		Broker:         cfg.DevServer.Broker,
		AllowedOrigins: cfg.DevServer.AllowedOrigins,
		Log:            logger,
	}))

	go func() {
		logger.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}
}

func writeSample(path string, kind testdata.Kind, rows int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := testdata.WriteSample(f, nil, kind, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
