package pathing

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirEnv = "PARKING_BRIDGE_CONFIG_DIR"
	dataDirEnv   = "PARKING_BRIDGE_DATA_DIR"
)

// EnsureDirs creates the config and data directories if they are missing.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetConfigDir(),
		GetDataDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "parking_bridge.toml")
}

func GetEventDbPath() string {
	return filepath.Join(GetDataDir(), "connection-events.db")
}

func GetDataDir() string {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir
	}
	return "/var/lib/parking_bridge"
}

func GetConfigDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	return "/etc/parking_bridge"
}
