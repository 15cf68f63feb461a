package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/livequiz/internal/config"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPingReportsFailingDependency(t *testing.T) {
	cfg := &config.App{}
	healthy := NewRouter(cfg, zerolog.Nop(), Handlers{}, pingerFunc(func(context.Context) error { return nil }))
	assert.Equal(t, http.StatusOK, serve(healthy, http.MethodGet, "/v1/ping", nil).Code)

	down := NewRouter(cfg, zerolog.Nop(), Handlers{},
		pingerFunc(func(context.Context) error { return nil }),
		pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	)
	assert.Equal(t, http.StatusBadGateway, serve(down, http.MethodGet, "/v1/ping", nil).Code)
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	cfg := &config.App{CORS: config.CORS{AllowedOrigins: []string{"*"}, AllowCredentials: true}}
	h := NewRouter(cfg, zerolog.Nop(), Handlers{})

	rec := serve(h, http.MethodGet, "/healthz", map[string]string{"Origin": "https://anywhere.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = serve(h, http.MethodGet, "/healthz", nil)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnwiredRoutes(t *testing.T) {
	h := NewRouter(&config.App{}, zerolog.Nop(), Handlers{})

	assert.Equal(t, http.StatusNotImplemented, serve(h, http.MethodGet, "/ws/quiz", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/v1/quizzes", nil).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics", nil).Code)
}
