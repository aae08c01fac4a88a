package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/api"
	"github.com/tendant/simple-idm-multiemail/pkg/config"
	"github.com/tendant/simple-idm-multiemail/pkg/confirmation"
	"github.com/tendant/simple-idm-multiemail/pkg/login"
	"github.com/tendant/simple-idm-multiemail/pkg/notification"
	"github.com/tendant/simple-idm-multiemail/pkg/ratelimit"
	"github.com/tendant/simple-idm-multiemail/pkg/recovery"
	"github.com/tendant/simple-idm-multiemail/pkg/resolver"
	"github.com/tendant/simple-idm-multiemail/pkg/tokengenerator"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	opts, err := cfg.MultiEmail.ToOptions()
	if err != nil {
		slog.Error("Invalid multi email options", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed creating repository", "kind", cfg.Storage.Kind, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		slog.Error("Failed creating notification manager", "error", err)
		os.Exit(1)
	}

	instructionsLimiter, requestsLimiter, closeLimiters, err := newLimiters(cfg.RateLimit)
	if err != nil {
		slog.Error("Failed creating rate limiters", "kind", cfg.RateLimit.Kind, "error", err)
		os.Exit(1)
	}
	defer closeLimiters()

	hasher, err := login.NewHasher(cfg.MultiEmail.PasswordHashAlgorithm)
	if err != nil {
		slog.Error("Failed creating password hasher", "error", err)
		os.Exit(1)
	}
	tokens, err := tokengenerator.NewGenerator(cfg.JWT.TokenSecret)
	if err != nil {
		slog.Error("Failed creating token generator", "error", err)
		os.Exit(1)
	}
	sessionExpiry, err := cfg.JWT.ParseSessionExpiry()
	if err != nil {
		slog.Error("Invalid session expiry", "error", err)
		os.Exit(1)
	}

	store := account.NewStore(repo)
	res := resolver.New(store)

	confirmationOpts := []confirmation.Option{confirmation.WithOptions(opts)}
	recoveryOpts := []recovery.Option{recovery.WithOptions(opts)}
	if instructionsLimiter != nil {
		confirmationOpts = append(confirmationOpts, confirmation.WithLimiter(instructionsLimiter))
		recoveryOpts = append(recoveryOpts, recovery.WithLimiter(instructionsLimiter))
	}
	confirmationService := confirmation.NewService(res, tokens, dispatcher, confirmationOpts...)
	recoveryService := recovery.NewService(res, tokens, dispatcher, hasher, recoveryOpts...)
	loginService := login.NewLoginService(res, hasher, opts, login.Config{
		JwtSecret: cfg.JWT.Secret,
		Issuer:    cfg.JWT.Issuer,
		Expiry:    sessionExpiry,
	})

	handle := api.NewHandle(store, confirmationService, recoveryService, loginService, hasher)
	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	if requestsLimiter != nil {
		server.R.Mount("/api", api.Handler(handle, tokenAuth, ratelimit.Middleware(requestsLimiter, ratelimit.KeyByIP)))
	} else {
		server.R.Mount("/api", api.Handler(handle, tokenAuth))
	}

	slog.Info("Starting multi email service", "storage", cfg.Storage.Kind, "rate_limit", cfg.RateLimit.Kind, "email_enabled", cfg.Email.Enabled)
	server.Run()
}

// newRepository opens the configured storage backend. The returned func
// releases its connections.
func newRepository(ctx context.Context, cfg config.Config) (account.Repository, func(), error) {
	noop := func() {}
	switch cfg.Storage.Kind {
	case config.StorageFile:
		repo, err := account.NewFileRepository(cfg.Storage.DataDir)
		return repo, noop, err
	case config.StoragePostgres:
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, noop, err
		}
		db := stdlib.OpenDBFromPool(pool)
		if err := account.Migrate(ctx, db); err != nil {
			db.Close()
			pool.Close()
			return nil, noop, fmt.Errorf("failed to migrate: %w", err)
		}
		return account.NewPostgresRepository(pool), func() {
			db.Close()
			pool.Close()
		}, nil
	case config.StorageMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, noop, err
		}
		repo := account.NewMongoRepository(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Disconnect(ctx)
			return nil, noop, fmt.Errorf("failed to create indexes: %w", err)
		}
		return repo, func() { client.Disconnect(context.Background()) }, nil
	default:
		return account.NewInMemoryRepository(), noop, nil
	}
}

func newDispatcher(cfg config.Config) (*notification.NotificationManager, error) {
	notifierOpt := notification.WithNotifier(notification.LogNotifier{})
	if cfg.Email.Enabled {
		notifierOpt = notification.WithSMTP(cfg.Email.ToSMTPConfig())
	}
	return notification.NewNotificationManagerWithOptions(cfg.BaseURL, notifierOpt, notification.WithDefaultTemplates())
}

// newLimiters builds the per-address instructions limiter and the per-IP
// request limiter. Both are nil when rate limiting is off.
func newLimiters(cfg config.RateLimitConfig) (ratelimit.Limiter, ratelimit.Limiter, func(), error) {
	noop := func() {}
	if cfg.Kind == config.RateLimitNone {
		return nil, nil, noop, nil
	}
	instructionsWindow, err := cfg.ParseInstructionsWindow()
	if err != nil {
		return nil, nil, noop, err
	}
	requestsWindow, err := cfg.ParseRequestsWindow()
	if err != nil {
		return nil, nil, noop, err
	}

	if cfg.Kind == config.RateLimitRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return ratelimit.NewRedisLimiter(client, "rl:instructions", cfg.InstructionsLimit, instructionsWindow),
			ratelimit.NewRedisLimiter(client, "rl:requests", cfg.RequestsLimit, requestsWindow),
			func() { client.Close() }, nil
	}

	instructions := ratelimit.NewMemoryLimiter(cfg.InstructionsLimit,
		float64(cfg.InstructionsLimit)/instructionsWindow.Seconds(), 2*instructionsWindow)
	requests := ratelimit.NewMemoryLimiter(cfg.RequestsLimit,
		float64(cfg.RequestsLimit)/requestsWindow.Seconds(), 2*requestsWindow)
	return instructions, requests, func() {
		instructions.Stop()
		requests.Stop()
	}, nil
}

// loadEnvFile loads .env from the executable's directory, falling back to
// the working directory.
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "path", envFile, "error", err)
	}
}
