package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates service configuration values.
type Config struct {
	HTTP    HTTPConfig
	NATS    NATSConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Engine  EngineConfig
	Journal JournalConfig
	Relayer RelayerConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// NATSConfig describes connectivity to the event bus.
type NATSConfig struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// RedisConfig describes the rate-limiter backend. An empty Addr disables
// rate limiting.
type RedisConfig struct {
	Addr            string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// EngineConfig holds the settlement engine's fixed identities.
type EngineConfig struct {
	Owner           string
	SourceChain     uint32
	SupportedChains []uint32
}

// JournalConfig describes the audit database.
type JournalConfig struct {
	DatabaseURL string
}

// RelayerConfig identifies the relayer worker and the engine it settles
// against.
type RelayerConfig struct {
	Chain     uint32
	EngineURL string
	Token     string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultPort            = 8000
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultNATSURL         = "nats://localhost:4222"
	defaultReconnectWait   = time.Second
	defaultMaxReconnects   = 10
	defaultConnectTimeout  = 5 * time.Second
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = time.Minute
	defaultTokenTTL        = 24 * time.Hour
	defaultEngineURL       = "http://localhost:8000"
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Port:            getInt("PORT", defaultPort),
			ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", defaultNATSURL),
			Name:           getEnv("NATS_CLIENT_NAME", "paybridge"),
			ReconnectWait:  getDuration("NATS_RECONNECT_WAIT", defaultReconnectWait),
			MaxReconnects:  getInt("NATS_MAX_RECONNECTS", defaultMaxReconnects),
			ConnectTimeout: getDuration("NATS_CONNECT_TIMEOUT", defaultConnectTimeout),
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", ""),
			RateLimitMax:    getInt("RATE_LIMIT_MAX", defaultRateLimitMax),
			RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", defaultRateLimitWindow),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("TOKEN_TTL", defaultTokenTTL),
		},
		Engine: EngineConfig{
			Owner:       getEnv("ENGINE_OWNER", ""),
			SourceChain: uint32(getInt("ENGINE_SOURCE_CHAIN", 0)),
		},
		Journal: JournalConfig{
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Relayer: RelayerConfig{
			Chain:     uint32(getInt("RELAYER_CHAIN", 0)),
			EngineURL: getEnv("ENGINE_URL", defaultEngineURL),
			Token:     getEnv("RELAYER_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", defaultLoggingLevel),
			Format: getEnv("LOG_FORMAT", defaultLoggingFormat),
		},
	}

	supported, err := parseChainList(getEnv("ENGINE_SUPPORTED_CHAINS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("ENGINE_SUPPORTED_CHAINS: %w", err)
	}
	cfg.Engine.SupportedChains = supported

	return cfg, nil
}

// parseChainList parses a comma-separated list of chain ids. An empty
// input yields nil, which lets the engine fall back to its defaults.
func parseChainList(raw string) ([]uint32, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uint32, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q", part)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
