package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brokernuam/calificaciones/internal/api"
	"github.com/brokernuam/calificaciones/internal/config"
	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/database/repository"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
	"github.com/brokernuam/calificaciones/internal/tui"
)

const usage = `uso: calificaciones [ruta]
       calificaciones ping

rutas: /  /calificaciones/nuevo  /calificaciones/{id}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	args := os.Args[1:]
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if len(args) == 1 && args[0] == "ping" {
		os.Exit(ping(cfg))
	}

	route := tui.Route{Screen: tui.ScreenList}
	if len(args) == 1 {
		route, err = tui.ParseRoute(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			os.Exit(2)
		}
	}

	// the TUI owns stdout, so logs always go to a file
	logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()

	client, err := api.New(api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, logger)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	var journal *service.Journal
	db, err := database.OpenMigrated(cfg.Journal.Path, cfg.Migrations.Path)
	if err != nil {
		// the journal is optional; screens work without it
		logger.WithError(err).Warn("activity journal disabled")
	} else {
		defer db.Close()
		journal = service.NewJournal(repository.NewActivityRepo(db), logger)
	}

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	if db != nil {
		maintenance := &service.MaintenanceService{DB: db}
		if n, err := maintenance.PruneJournal(ctx, service.JournalKeep); err != nil {
			logger.WithError(err).Warn("prune journal")
		} else if n > 0 {
			logger.WithField("removed", n).Info("journal pruned")
		}
	}

	logger.WithField("base_url", client.BaseURL()).WithField("route", route.String()).Info("starting")
	p := tea.NewProgram(tui.New(ctx, tui.Options{
		Backend: client,
		Journal: journal,
		Route:   route,
	}), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// ping reports whether the backend answers at the configured base URL.
func ping(cfg config.Config) int {
	client, err := api.New(api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, logging.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "api client: %v\n", err)
		return 1
	}
	status, err := client.Ping(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", client.BaseURL(), err)
		return 1
	}
	fmt.Printf("%s: %d\n", client.BaseURL(), status)
	return 0
}
