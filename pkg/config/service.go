package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidListenPort  = errors.New("listen_port must be between 1 and 65535")
	ErrInvalidBaudrate    = errors.New("baudrate must be positive")
	ErrInvalidTotalSlots  = errors.New("total_slots must be positive")
	ErrInvalidReadTimeout = errors.New("read_timeout_ms must be a multiple of 100 between 100 and 25500")
	ErrInvalidDelay       = errors.New("settle_delay_ms and idle_backoff_ms must not be negative")
	ErrInvalidLogLevel    = errors.New("unknown log_level")
	ErrMissingBridgeHost  = errors.New("bridge_host is required")
)

func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		ListenAddress:     "0.0.0.0",
		ListenPort:        5000,
		LogLevel:          "info",
		Baudrate:          115200,
		TotalSlots:        3,
		ReadTimeoutMs:     1000,
		SettleDelayMs:     2000,
		IdleBackoffMs:     1000,
		PortMarkers:       []string{"Arduino", "CH340", "USB Serial"},
		EventLogEnabled:   true,
		EventLogRetention: 1000,
	}
}

func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		BridgeHost: "localhost:5000",
		TLSEnabled: false,
	}
}

// LoadBridgeConfig reads the config at configPath, writing the defaults there first if it does not exist.
func LoadBridgeConfig(configPath string) (*BridgeConfig, error) {
	cfg := DefaultBridgeConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

func LoadWatchConfig(configPath string) (*WatchConfig, error) {
	cfg := DefaultWatchConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if cfg.BridgeHost == "" {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, ErrMissingBridgeHost)
	}
	return cfg, nil
}

// Keys missing from an existing file keep the values already in cfg.
func loadOrCreate(configPath string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("create default config: %w", err)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		return nil
	}

	// Load existing config
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	return nil
}

func (c *BridgeConfig) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return ErrInvalidListenPort
	}
	if c.Baudrate == 0 {
		return ErrInvalidBaudrate
	}
	if c.TotalSlots < 1 {
		return ErrInvalidTotalSlots
	}
	// VTIME is expressed in tenths of a second in a single byte.
	if c.ReadTimeoutMs < 100 || c.ReadTimeoutMs > 25500 || c.ReadTimeoutMs%100 != 0 {
		return ErrInvalidReadTimeout
	}
	if c.SettleDelayMs < 0 || c.IdleBackoffMs < 0 {
		return ErrInvalidDelay
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty value means info.
func (c *BridgeConfig) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return level, nil
}

func (c *BridgeConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c *BridgeConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *BridgeConfig) IdleBackoff() time.Duration {
	return time.Duration(c.IdleBackoffMs) * time.Millisecond
}

func (c *BridgeConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}
