package config

type BridgeConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	LogLevel      string `toml:"log_level"`

	Baudrate      uint `toml:"baudrate"`
	TotalSlots    int  `toml:"total_slots"`
	ReadTimeoutMs int  `toml:"read_timeout_ms"`
	// Time the board needs to reboot after the port is opened.
	SettleDelayMs int `toml:"settle_delay_ms"`
	IdleBackoffMs int `toml:"idle_backoff_ms"`

	// Substrings matched against port descriptions by /api/ports.
	PortMarkers []string `toml:"port_markers"`
	// Connect to this port at startup. Empty waits for /api/connect.
	AutoConnectPort string `toml:"auto_connect_port"`

	EventLogEnabled   bool `toml:"event_log_enabled"`
	EventLogRetention int  `toml:"event_log_retention"`
}

type WatchConfig struct {
	BridgeHost string `toml:"bridge_host"`
	TLSEnabled bool   `toml:"tls_enabled"`
}
