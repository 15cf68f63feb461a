package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_DATABASE", "quizdb")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "livequiz", cfg.Name)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, LockBackendRedis, cfg.Session.LockBackend)
	assert.Equal(t, 6, cfg.Session.JoinCodeLength)
	assert.Equal(t, 30*time.Second, cfg.Leaderboard.SnapshotInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
	assert.Contains(t, cfg.Postgres.DSN(), "dbname=quizdb")
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SESSION_LOCK_BACKEND", "local")
	t.Setenv("WS_MESSAGE_RATE", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://quiz.example.com")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2.5, cfg.Realtime.MessageRate)
	assert.Equal(t, []string{"https://quiz.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing redis":  {"REDIS_ADDR": ""},
		"short secret":   {"JWT_SECRET": "short"},
		"unknown driver": {"STORE_DRIVER": "mongo"},
		"unknown lock":   {"SESSION_LOCK_BACKEND": "etcd"},
		"postgres user":  {"PG_USER": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestLoadPostgres(t *testing.T) {
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_DATABASE", "quizdb")
	t.Setenv("PG_PORT", "6543")

	pg, err := LoadPostgres()
	require.NoError(t, err)
	assert.Equal(t, 6543, pg.Port)
	assert.Contains(t, pg.DSN(), "port=6543")

	t.Setenv("PG_DATABASE", "")
	_, err = LoadPostgres()
	assert.Error(t, err)
}
