package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/internal/audio"
	"github.com/fonoslabs/tremolo/internal/catalog"
	"github.com/fonoslabs/tremolo/internal/config"
	"github.com/fonoslabs/tremolo/internal/library"
	"github.com/fonoslabs/tremolo/internal/nowplaying"
	"github.com/fonoslabs/tremolo/internal/playlist"
	"github.com/fonoslabs/tremolo/internal/resolver"
	"github.com/fonoslabs/tremolo/internal/session"
	"github.com/fonoslabs/tremolo/internal/ui"
	"github.com/fonoslabs/tremolo/pkg/events"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := config.GetConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Load persisted library (or create empty)
	libraryPath := filepath.Join(cfg.DataDir, "library.json")
	lib, err := library.LoadLibrary(libraryPath)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	// Scan only if library is empty and directories are configured
	if lib.TotalTracks == 0 && len(cfg.MusicDirectories) > 0 {
		logrus.Info("library empty, scanning music directories")
		if err := lib.Scan(ctx, cfg.MusicDirectories); err != nil {
			logrus.WithError(err).Warn("scan error")
		}
	}

	// Save library on exit
	defer func() {
		if err := lib.Save(libraryPath); err != nil {
			logrus.WithError(err).Warn("save library")
		}
	}()

	recents, err := library.LoadRecents(filepath.Join(cfg.DataDir, "recents.json"))
	if err != nil {
		return fmt.Errorf("load recents: %w", err)
	}

	plManager := playlist.NewManager(filepath.Join(cfg.DataDir, "playlists"))
	if err := plManager.LoadAll(); err != nil {
		logrus.WithError(err).Warn("load playlists")
	}

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL)
	res := resolver.New(catalogClient, cfg.UnreliableHosts)

	bus := events.NewEventBus()
	defer bus.Close()

	surface := nowplaying.NewSurface(cfg.ArtworkCacheDir)
	platform := session.New(session.NewNullPlatform())

	engine := audio.NewEngine(audio.Options{
		Platform: platform,
		Resolver: res,
		Recents:  recents,
		Surface:  surface,
		Bus:      bus,
		Quality:  cfg.Quality(),
		Volume:   cfg.DefaultVolume,
	})
	engine.Start(ctx)
	engine.AttachRemote(ctx, surface.Commands())

	// This build has no OS interruption or route-change feed; the monitor
	// still runs so a platform layer can be dropped in later.
	monitor := session.NewMonitor(engine)
	go monitor.Run(ctx, nil, nil)

	queue := playlist.NewQueue()
	controller := playlist.NewController(queue, engine)
	controller.Run(ctx, bus)

	if err := ui.Run(ui.Deps{
		Engine:   engine,
		Bus:      bus,
		Library:  lib,
		Recents:  recents,
		Queue:    queue,
		Control:  controller,
		Playlist: plManager,
		Catalog:  catalogClient,
	}); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	return nil
}

// setupLogging routes logrus away from the terminal the TUI owns.
func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logPath := filepath.Join(cfg.DataDir, "player.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		logrus.SetOutput(f)
	} else {
		logrus.SetOutput(io.Discard)
	}
}
