package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/authoring"
	"github.com/gokatarajesh/livequiz/internal/config"
	"github.com/gokatarajesh/livequiz/internal/leaderboard"
	"github.com/gokatarajesh/livequiz/internal/logging"
	"github.com/gokatarajesh/livequiz/internal/play"
	"github.com/gokatarajesh/livequiz/internal/realtime"
	"github.com/gokatarajesh/livequiz/internal/session"
)

// Pinger is a dependency checked by /v1/ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups every HTTP surface of the API.
type Handlers struct {
	AuthSvc     *auth.Service
	Auth        *auth.HTTPHandlers
	Authoring   *authoring.HTTPHandlers
	Session     *session.HTTPHandlers
	Play        *play.HTTPHandlers
	Leaderboard *leaderboard.HTTPHandler
	Realtime    *realtime.Handler
}

// NewHTTPServer wires every route behind the auth, CORS and request logging middleware.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, h Handlers, deps ...Pinger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, logger, h, deps...),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the API mux.
func NewRouter(cfg *config.App, logger zerolog.Logger, h Handlers, deps ...Pinger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), deps); err != nil {
			reqLogger := logging.FromContext(r.Context())
			reqLogger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	host := func(fn http.HandlerFunc) http.Handler { return auth.RequireHost(fn) }
	authed := func(fn http.HandlerFunc) http.Handler { return auth.RequireAuth(fn) }

	if h.Auth != nil {
		mux.HandleFunc("POST /v1/guests", h.Auth.CreateGuest)
	}

	if h.Authoring != nil {
		mux.Handle("POST /v1/quizzes", host(h.Authoring.Create))
		mux.Handle("GET /v1/quizzes/{id}", host(h.Authoring.Get))
		mux.Handle("PATCH /v1/quizzes/{id}", host(h.Authoring.Rename))
		mux.Handle("DELETE /v1/quizzes/{id}", host(h.Authoring.Delete))
		mux.Handle("POST /v1/quizzes/{id}/questions", host(h.Authoring.AddQuestions))
		mux.Handle("POST /v1/quizzes/{id}/lock", host(h.Authoring.Lock))
	}

	if h.Session != nil {
		for _, action := range []string{"publish", "start", "pause", "resume", "stop", "reset", "next", "previous"} {
			mux.Handle("POST /v1/quizzes/{id}/"+action, host(h.Session.Control(action)))
		}
		mux.HandleFunc("GET /v1/quizzes/{id}/status", h.Session.Status)
	}

	if h.Play != nil {
		mux.HandleFunc("GET /v1/join/{code}", h.Play.Join)
		mux.HandleFunc("GET /v1/quizzes/{id}/question", h.Play.Question)
		mux.Handle("POST /v1/quizzes/{id}/answers", authed(h.Play.Submit))
		mux.Handle("GET /v1/quizzes/{id}/me", authed(h.Play.Me))
	}

	if h.Leaderboard != nil {
		mux.HandleFunc("GET /v1/quizzes/{id}/leaderboard", h.Leaderboard.HandleGet)
		mux.HandleFunc("GET /v1/quizzes/{id}/questions/{qid}/leaderboard", h.Leaderboard.HandleGetQuestion)
		mux.Handle("GET /v1/quizzes/{id}/analytics", host(h.Leaderboard.HandleAnalytics))
		mux.Handle("GET /v1/quizzes/{id}/results", host(h.Leaderboard.HandleResults))
		mux.Handle("GET /v1/quizzes/{id}/leaderboard/snapshot", host(h.Leaderboard.HandleSnapshot))
	}

	if h.Realtime != nil {
		mux.HandleFunc("GET /ws/quiz", h.Realtime.HandleWebSocket)
	} else {
		mux.HandleFunc("GET /ws/quiz", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "WebSocket handler not yet integrated", http.StatusNotImplemented)
		})
	}

	var handler http.Handler = mux
	if h.AuthSvc != nil {
		handler = auth.AuthMiddleware(h.AuthSvc, logger)(handler)
	}
	handler = CORS(cfg.CORS)(handler)
	return RequestLogger(logger)(handler)
}

// CORS answers preflight requests and echoes allowed origins.
func CORS(cfg config.CORS) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[o] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, allowed := origins[origin]
			if origin != "" && (allowed || wildcard) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a request-scoped logger and logs each completed request.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With().
				Str("request_id", uuid.NewString()).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))

			reqLogger.Debug().
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func pingDependencies(ctx context.Context, deps []Pinger) error {
	for _, d := range deps {
		if err := d.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
