package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"livequiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	StoreDriver             string        `env:"STORE_DRIVER" envDefault:"postgres"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Session     Session
	Leaderboard Leaderboard
	Realtime    Realtime
	Cache       Cache
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds lock, mirror, lobby, cache and pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	HostTTL   time.Duration `env:"HOST_TOKEN_TTL" envDefault:"12h"`
	GuestTTL  time.Duration `env:"GUEST_TOKEN_TTL" envDefault:"4h"`
}

// Session tunes the session controller.
type Session struct {
	LockBackend    string        `env:"SESSION_LOCK_BACKEND" envDefault:"redis"`
	LockTTL        time.Duration `env:"SESSION_LOCK_TTL" envDefault:"10s"`
	LockTimeout    time.Duration `env:"SESSION_LOCK_TIMEOUT" envDefault:"5s"`
	MirrorTTL      time.Duration `env:"SESSION_MIRROR_TTL" envDefault:"24h"`
	JoinCodeLength int           `env:"JOIN_CODE_LENGTH" envDefault:"6"`
	LobbyTTL       time.Duration `env:"LOBBY_TTL" envDefault:"6h"`
}

// Leaderboard governs fan-out and snapshotting.
type Leaderboard struct {
	Channel          string        `env:"LEADERBOARD_CHANNEL" envDefault:"leaderboard:updates"`
	TopN             int           `env:"LEADERBOARD_TOP" envDefault:"10"`
	QuestionTopN     int           `env:"LEADERBOARD_QUESTION_TOP" envDefault:"10"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"30s"`
}

// Realtime tunes the websocket endpoint.
type Realtime struct {
	MessageRate   float64 `env:"WS_MESSAGE_RATE" envDefault:"10"`
	MessageBurst  int     `env:"WS_MESSAGE_BURST" envDefault:"20"`
	SendQueueSize int     `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
}

// Cache configures the question cache.
type Cache struct {
	QuestionTTL time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"10m"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgres parses only the Postgres settings, for tools that need nothing else.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.Parse(&pg); err != nil {
		return Postgres{}, fmt.Errorf("parse config: %w", err)
	}
	if pg.User == "" || pg.Database == "" {
		return Postgres{}, fmt.Errorf("parse config: PG_USER and PG_DATABASE are required")
	}
	return pg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *App) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.Postgres.User == "" || c.Postgres.Database == "" {
			return fmt.Errorf("parse config: PG_USER and PG_DATABASE are required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("parse config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.Session.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("parse config: unknown SESSION_LOCK_BACKEND %q", c.Session.LockBackend)
	}
	if len(c.Security.JWTSecret) < 16 {
		return fmt.Errorf("parse config: JWT_SECRET must be at least 16 bytes")
	}
	return nil
}
