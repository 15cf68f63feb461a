package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/auth"
	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/authoring"
	"github.com/gokatarajesh/livequiz/internal/config"
	"github.com/gokatarajesh/livequiz/internal/db/memstore"
	"github.com/gokatarajesh/livequiz/internal/db/repository"
	"github.com/gokatarajesh/livequiz/internal/leaderboard"
	"github.com/gokatarajesh/livequiz/internal/lobby"
	"github.com/gokatarajesh/livequiz/internal/logging"
	"github.com/gokatarajesh/livequiz/internal/play"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/internal/realtime"
	"github.com/gokatarajesh/livequiz/internal/server"
	"github.com/gokatarajesh/livequiz/internal/session"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Components holds every wired service. It is shared by the API binary and in-process tests.
type Components struct {
	Hub         *ws.Hub
	Auth        *auth.Service
	Questions   *quiz.QuestionCache
	Controller  *session.Controller
	Leaderboard *leaderboard.Service
	Play        *play.Service
	Authoring   *authoring.Service
	Lobby       lobby.Lobby

	Broadcaster    *leaderboard.Broadcaster
	SnapshotWorker *leaderboard.SnapshotWorker
	Handlers       server.Handlers
}

// Wire builds the service graph over store and redisClient. A nil redisClient keeps every
// shared component in process: local lock, no state mirror, memory waiting room, direct
// leaderboard fan-out and no question cache. That mode supports a single instance only.
func Wire(cfg *config.App, logger zerolog.Logger, store quiz.Store, redisClient *redis.Client) *Components {
	hub := ws.NewHub(logger)
	authSvc := auth.NewService(auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			Secret:   []byte(cfg.Security.JWTSecret),
			HostTTL:  cfg.Security.HostTTL,
			GuestTTL: cfg.Security.GuestTTL,
			Issuer:   cfg.Name,
		},
	}, logger)

	questions := quiz.NewQuestionCache(redisClient, store, cfg.Cache.QuestionTTL, logger)

	var (
		shared    bool
		locker    session.Locker = session.NewLocalLocker()
		mirror    session.Mirror
		publisher leaderboard.Publisher = leaderboard.NewLocalPublisher(hub)
		room      lobby.Lobby           = lobby.NewMemoryLobby()
	)
	if redisClient != nil {
		if cfg.Session.LockBackend == config.LockBackendRedis {
			locker = session.NewRedisLocker(redisClient, cfg.Session.LockTTL)
			shared = true
		}
		mirror = session.NewRedisMirror(redisClient, cfg.Session.MirrorTTL)
		publisher = leaderboard.NewRedisPublisher(redisClient, cfg.Leaderboard.Channel)
		room = lobby.NewRedisLobby(redisClient, cfg.Session.LobbyTTL)
	}

	ctrl := session.NewController(
		store,
		questions,
		nil,
		locker,
		mirror,
		hub,
		session.ControllerOptions{
			JoinCodeLength: cfg.Session.JoinCodeLength,
			LockTimeout:    cfg.Session.LockTimeout,
			SharedState:    shared,
		},
		logger,
	)

	board := leaderboard.NewService(
		store,
		questions,
		nil,
		publisher,
		leaderboard.ServiceOptions{TopN: cfg.Leaderboard.TopN, QuestionTopN: cfg.Leaderboard.QuestionTopN},
		logger,
	)
	var broadcaster *leaderboard.Broadcaster
	if redisClient != nil {
		broadcaster = leaderboard.NewBroadcaster(redisClient, hub, cfg.Leaderboard.Channel, logger)
	}

	var snapshots *leaderboard.SnapshotWorker
	if cfg.Leaderboard.SnapshotInterval > 0 {
		snapshots = leaderboard.NewSnapshotWorker(board, store, cfg.Leaderboard.SnapshotInterval, logger)
	}

	playSvc := play.NewService(store, questions, nil, ctrl, board, play.ServiceOptions{}, logger)
	authoringSvc := authoring.NewService(store, questions, logger)

	rt := realtime.NewHandler(hub, authSvc, ctrl, playSvc, store, room, realtime.Options{
		MessageRate:    cfg.Realtime.MessageRate,
		MessageBurst:   cfg.Realtime.MessageBurst,
		SendQueueSize:  cfg.Realtime.SendQueueSize,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, logger)

	return &Components{
		Hub:            hub,
		Auth:           authSvc,
		Questions:      questions,
		Controller:     ctrl,
		Leaderboard:    board,
		Play:           playSvc,
		Authoring:      authoringSvc,
		Lobby:          room,
		Broadcaster:    broadcaster,
		SnapshotWorker: snapshots,
		Handlers: server.Handlers{
			AuthSvc:     authSvc,
			Auth:        auth.NewHTTPHandlers(authSvc, logger),
			Authoring:   authoring.NewHTTPHandlers(authoringSvc, logger),
			Session:     session.NewHTTPHandlers(ctrl, logger),
			Play:        play.NewHTTPHandlers(playSvc, logger),
			Leaderboard: leaderboard.NewHTTPHandler(board, store, logger),
			Realtime:    rt,
		},
	}
}

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool       *pgxpool.Pool
	redis      *redis.Client
	http       *http.Server
	components *Components

	bgCancels []context.CancelFunc
}

// New bootstraps configs, logger, the store, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("store", cfg.StoreDriver).Msg("starting application bootstrap")

	var (
		store       quiz.Store
		pool        *pgxpool.Pool
		redisClient *redis.Client
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn().Msg("using in-memory store without redis; data is lost on restart")
		store = memstore.New()
	default:
		var err error
		pool, err = pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = repository.NewStore(pool)
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}

	components := Wire(cfg, logger, store, redisClient)

	if _, err := components.Controller.Recover(ctx); err != nil {
		logger.Warn().Err(err).Msg("session recovery failed")
	}

	deps := []server.Pinger{store}
	if redisClient != nil {
		deps = append(deps, redisPinger{redisClient})
	}
	apiServer := server.NewHTTPServer(cfg, logger, components.Handlers, deps...)

	return &Application{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		http:       apiServer,
		components: components,
		bgCancels:  make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.components.Broadcaster != nil {
		a.goWorker(ctx, "leaderboard broadcaster", a.components.Broadcaster.Run)
	}
	if a.components.SnapshotWorker != nil {
		a.goWorker(ctx, "leaderboard snapshot worker", a.components.SnapshotWorker.Run)
	}
}

func (a *Application) goWorker(ctx context.Context, name string, run func(context.Context) error) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Str("worker", name).Msg("background worker stopped")
		}
	}()
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
