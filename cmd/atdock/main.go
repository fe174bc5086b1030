package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atdock/atdock/internal/atproto"
	"github.com/atdock/atdock/internal/cache"
	"github.com/atdock/atdock/internal/config"
	"github.com/atdock/atdock/internal/domain/repository"
	"github.com/atdock/atdock/internal/githubapp"
	httpx "github.com/atdock/atdock/internal/http"
	adminctrl "github.com/atdock/atdock/internal/http/controllers/admin"
	authctrl "github.com/atdock/atdock/internal/http/controllers/auth"
	connctrl "github.com/atdock/atdock/internal/http/controllers/connection"
	healthctrl "github.com/atdock/atdock/internal/http/controllers/health"
	userctrl "github.com/atdock/atdock/internal/http/controllers/user"
	mw "github.com/atdock/atdock/internal/http/middlewares"
	"github.com/atdock/atdock/internal/http/router"
	authsvc "github.com/atdock/atdock/internal/http/services/auth"
	connsvc "github.com/atdock/atdock/internal/http/services/connection"
	usersvc "github.com/atdock/atdock/internal/http/services/user"
	"github.com/atdock/atdock/internal/observability/logger"
	"github.com/atdock/atdock/internal/rate"
	"github.com/atdock/atdock/internal/security/secretbox"
	"github.com/atdock/atdock/internal/session"
	"github.com/atdock/atdock/internal/store/memory"
	pgstore "github.com/atdock/atdock/internal/store/pg"
)

func main() {
	configPath := flag.String("config", "configs/config.example.yaml", "Path to YAML config")
	flag.Parse()

	// .env es opcional; las env vars del sistema siempre aplican.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "atdock",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L().With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	var (
		users       repository.UserRepository
		connections repository.ConnectionRepository
		pool        func() *pgxpool.Pool
		storePing   func(context.Context) error
	)
	switch cfg.Storage.Driver {
	case "postgres":
		box, err := secretbox.New(cfg.Security.SecretBoxMasterKey)
		if err != nil {
			lg.Fatal("secretbox init failed", logger.Err(err))
		}
		st, err := pgstore.NewStore(ctx, cfg.Storage.DSN, box, pgstore.Options{
			MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLifetime(),
		})
		if err != nil {
			lg.Fatal("postgres connect failed", logger.Err(err))
		}
		defer st.Close()
		users = st.Users()
		connections = st.Connections()
		pool = st.Pool
		storePing = st.Ping
	default:
		users = memory.NewUserRepository()
		connections = memory.NewConnectionRepository()
		storePing = func(context.Context) error { return nil }
	}

	// --- Cache ---
	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		lg.Fatal("cache init failed", logger.Err(err))
	}
	defer func() { _ = cacheClient.Close() }()

	// --- Sesiones ---
	signer, err := session.NewSigner(cfg.Session.SigningKey, cfg.Session.Issuer)
	if err != nil {
		lg.Fatal("session signer init failed", logger.Err(err))
	}
	sessions := session.NewManager(signer, cfg.SessionTTL())

	// --- Providers ---
	atp := atproto.New(atproto.Config{
		ServiceURL:  cfg.ATProto.ServiceURL,
		ClientID:    cfg.ATProto.ClientID,
		RedirectURL: cfg.ATProto.RedirectURL,
	})
	gh := githubapp.New(githubapp.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  cfg.GitHub.RedirectURL,
	})

	// --- Services ---
	authService := authsvc.NewService(authsvc.Deps{
		Provider: atp,
		Users:    users,
		Sessions: sessions,
		States:   authsvc.NewStateStore(cacheClient, cfg.StateTTL()),
	})
	connService := connsvc.NewService(connsvc.Deps{
		GitHub:      gh,
		Connections: connections,
	})
	userService := usersvc.NewService(usersvc.Deps{
		Users:       users,
		Connections: connections,
	})

	// --- Rate limiting de login ---
	var loginLimiter rate.Limiter
	if max := cfg.Auth.LoginRateMax; max > 0 {
		if cfg.Cache.Kind == "redis" {
			loginLimiter = rate.NewRedisLimiter(rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			}), cfg.Cache.Redis.Prefix+":rl:", max, cfg.LoginRateWindow())
		} else {
			loginLimiter = rate.NewMemoryLimiter(max, cfg.LoginRateWindow())
		}
	}

	// --- Metrics ---
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: pool})
	if err != nil {
		lg.Fatal("metrics init failed", logger.Err(err))
	}

	// --- HTTP ---
	handler := router.New(router.Deps{
		Auth:        authctrl.NewController(authService),
		Connections: connctrl.NewController(connService, userService),
		Users:       userctrl.NewController(userService, sessions),
		Admin:       adminctrl.NewController(userService, connService),
		Health: healthctrl.NewController(
			healthctrl.Checker{Name: "store", Check: storePing},
			healthctrl.Checker{Name: "cache", Check: cacheClient.Ping},
		),
		Sessions: sessions,
		Cookies: mw.CookieConfig{
			Name:     cfg.Session.CookieName,
			Domain:   cfg.Session.Domain,
			SameSite: cfg.Session.SameSite,
			Secure:   cfg.Session.Secure,
		},
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AdminAPIKey:        cfg.Admin.APIKey,
		LoginLimiter:       loginLimiter,
		Metrics:            metricsHandler,
		WithMetrics:        httpx.WithMetrics,
	})

	srv := httpx.NewServer(cfg.Server.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("server error", logger.Err(err))
	}
	lg.Info("bye")
}
