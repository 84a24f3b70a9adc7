package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/api"
	"github.com/NotCoffee418/parking_bridge/pkg/broadcast"
	"github.com/NotCoffee418/parking_bridge/pkg/config"
	"github.com/NotCoffee418/parking_bridge/pkg/eventlog"
	"github.com/NotCoffee418/parking_bridge/pkg/lineparser"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/NotCoffee418/parking_bridge/pkg/pathing"
	"github.com/NotCoffee418/parking_bridge/pkg/port_reader"
	"github.com/NotCoffee418/parking_bridge/pkg/portscan"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and serial ingestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return runServe(configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "Config file (default: parking_bridge.toml in the config dir)")
}

func runServe(configPath string) error {
	setupLogging(zerolog.InfoLevel)
	if err := pathing.EnsureDirs(); err != nil {
		return err
	}
	if configPath == "" {
		configPath = pathing.GetConfigPath()
	}

	cfg, err := config.LoadBridgeConfig(configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return err
	}
	level, _ := cfg.Level()
	setupLogging(level)

	store := parking.NewStore(cfg.TotalSlots)
	hub := broadcast.NewHub(store.Snapshot)
	store.OnChange(hub.Broadcast)

	opts := port_reader.Options{
		Baudrate:    cfg.Baudrate,
		ReadTimeout: cfg.ReadTimeout(),
		SettleDelay: cfg.SettleDelay(),
		IdleBackoff: cfg.IdleBackoff(),
	}

	deps := api.Deps{
		Snapshots: store,
		Ports:     portscan.NewScanner(cfg.PortMarkers),
		Feed:      hub,
	}

	if cfg.EventLogEnabled {
		events, err := eventlog.Open(pathing.GetEventDbPath(), cfg.EventLogRetention)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open event log")
			return err
		}
		defer events.Close()
		opts.Events = events
		deps.Events = events
	}

	manager := port_reader.NewManager(store, lineparser.NewParser(cfg.TotalSlots), opts)
	deps.Connection = manager

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoConnectPort != "" {
		go func() {
			if _, err := manager.Connect(ctx, cfg.AutoConnectPort); err != nil {
				log.Warn().Err(err).Msg("Auto-connect failed, waiting for /api/connect")
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: api.NewRouter(deps),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Msg("Starting Parking Bridge API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err = <-serveErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	// Graceful Shutdown
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server did not shut down cleanly")
	}
	manager.Stop()

	log.Info().Msg("Stopped")
	return err
}
