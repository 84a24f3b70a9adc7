// Parking Watch subscribes to a running bridge and prints every snapshot it receives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/config"
	"github.com/NotCoffee418/parking_bridge/pkg/feed"
	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/NotCoffee418/parking_bridge/pkg/pathing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}
	cfg, err := config.LoadWatchConfig(filepath.Join(pathing.GetConfigDir(), "parking_watch.toml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load watch config")
	}

	// Env var wins over the config file
	if host := os.Getenv("PARKING_BRIDGE_HOST"); host != "" {
		cfg.BridgeHost = host
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = feed.Listen(ctx, feed.Options{Host: cfg.BridgeHost, TLS: cfg.TLSEnabled}, handleSnapshot)
	if err != nil {
		log.Fatal().Err(err).Msg("Gave up on bridge")
	}
}

func handleSnapshot(snapshot parking.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Warn().Err(err).Msg("Could not encode snapshot")
		return
	}
	fmt.Println(string(payload))
}
