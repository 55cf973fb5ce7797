package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MaxClients        int           `mapstructure:"max_clients" yaml:"max_clients"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	MaxNameLength     int           `mapstructure:"max_name_length" yaml:"max_name_length"`
	OutboxSize        int           `mapstructure:"outbox_size" yaml:"outbox_size"`
	BanLogPath        string        `mapstructure:"ban_log_path" yaml:"ban_log_path"`
	AuditDBPath       string        `mapstructure:"audit_db_path" yaml:"audit_db_path"`
	MonitorAddr       string        `mapstructure:"monitor_addr" yaml:"monitor_addr"`
	MonitorRateLimit  int           `mapstructure:"monitor_rate_limit" yaml:"monitor_rate_limit"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	Console           bool          `mapstructure:"console" yaml:"console"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":4242",
		MaxClients:        100,
		ReadBufferSize:    1024,
		MaxNameLength:     19,
		OutboxSize:        64,
		BanLogPath:        "ban.log",
		MonitorRateLimit:  120,
		LogLevel:          "info",
		Console:           true,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Console is a plain bool and is left to the caller.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.MaxClients != 0 {
		c.MaxClients = other.MaxClients
	}
	if other.ReadBufferSize != 0 {
		c.ReadBufferSize = other.ReadBufferSize
	}
	if other.MaxNameLength != 0 {
		c.MaxNameLength = other.MaxNameLength
	}
	if other.OutboxSize != 0 {
		c.OutboxSize = other.OutboxSize
	}
	if other.BanLogPath != "" {
		c.BanLogPath = other.BanLogPath
	}
	if other.AuditDBPath != "" {
		c.AuditDBPath = other.AuditDBPath
	}
	if other.MonitorAddr != "" {
		c.MonitorAddr = other.MonitorAddr
	}
	if other.MonitorRateLimit != 0 {
		c.MonitorRateLimit = other.MonitorRateLimit
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errInvalid("addr", "must not be empty")
	case c.MaxClients <= 0:
		return errInvalid("max_clients", "must be positive")
	case c.ReadBufferSize < 2:
		return errInvalid("read_buffer_size", "must be at least 2")
	case c.MaxNameLength <= 0:
		return errInvalid("max_name_length", "must be positive")
	case c.OutboxSize <= 0:
		return errInvalid("outbox_size", "must be positive")
	case c.MonitorRateLimit < 0:
		return errInvalid("monitor_rate_limit", "must not be negative")
	}
	return nil
}
