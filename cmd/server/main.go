package main

import (
	"flag"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rumble-backup/internal/catalog"
	"rumble-backup/internal/config"
	"rumble-backup/internal/cookie"
	"rumble-backup/internal/fetcher"
	"rumble-backup/internal/monitor"
	"rumble-backup/internal/reconciler"
	"rumble-backup/internal/runner"
	"rumble-backup/internal/server"
	"rumble-backup/internal/state"
)

func main() {
	configDir := flag.String("config-dir", "", "Configuration directory (default: search ./config, ., ~/.rumble-backup, /etc/rumble-backup)")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configManager := config.NewManager()
	cfg, err := configManager.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	defer configManager.Close()

	store := state.NewStore(configManager.StatePath())

	catalogStore, err := catalog.NewStore(cfg.Catalog.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening catalog")
	}
	defer catalogStore.Close()

	mon := monitor.NewMonitor()
	mon.SetLogger(configManager.GetLogger())
	mon.Start()

	fetch, err := fetcher.NewRegistry().New(cfg.Fetcher.Strategy, fetcher.FromConfig(cfg, cookie.NewManager()))
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating fetch strategy")
	}

	rec := reconciler.New(fetch, store, reconciler.Options{
		OutputDir: cfg.OutputDir,
		PauseMin:  configManager.PauseMin(),
		PauseMax:  configManager.PauseMax(),
		Catalog:   catalogStore,
		Metrics:   mon,
	})

	run := runner.New(rec.Run, mon)

	srv, err := server.NewServer(server.Options{
		Config:  configManager,
		Store:   store,
		Catalog: catalogStore,
		Runner:  run,
		Monitor: mon,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating server")
	}

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
}
