package config

import "time"

type Config struct {
	Server      ServerConfig
	Transport   TransportConfig
	Log         LogConfig
	Permissions []string `mapstructure:"permissions"`
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
	// InternalKey guards the internal HTTP endpoints (export job events).
	InternalKey string `mapstructure:"internalKey"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	// EnforcePermissions gates mutating timeline events on the "write"
	// permission. Off by default: the relay normally never arbitrates.
	EnforcePermissions bool `mapstructure:"enforcePermissions"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}
