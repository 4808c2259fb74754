package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/config"
	"github.com/MrSnakeDoc/shelf/internal/credential"
	"github.com/MrSnakeDoc/shelf/internal/httpserver"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/icon"
	"github.com/MrSnakeDoc/shelf/internal/importer"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/redis"
	"github.com/MrSnakeDoc/shelf/internal/scheduler"
	"github.com/MrSnakeDoc/shelf/internal/session"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/store/sqlite"
	"github.com/MrSnakeDoc/shelf/internal/utils"
	"github.com/MrSnakeDoc/shelf/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *sqlite.DB
	redisClient *goredis.Client
	importer    *importer.Importer
	sweeper     *scheduler.SessionSweeper // nil when sessions live in Redis
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	db, err := sqlite.Open(cfg.DBPath, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}

	bookmarks := sqlite.NewBookmarkStore(db)
	categories := sqlite.NewCategoryStore(db)
	credentials := credential.NewStore(sqlite.NewUserStore(db), cfg.BcryptCost, loggerClient.Named("credential"))

	if cfg.AdminUsername != "" {
		created, err := credentials.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			loggerClient.Errorf("Failed to bootstrap admin user: %v", err)
			os.Exit(1)
		}
		if created {
			loggerClient.Info("bootstrap admin created",
				logger.String("username", cfg.AdminUsername))
		}
	}

	// Session registry: Redis when configured (fail fast if unreachable),
	// otherwise in process memory with a periodic sweep.
	var (
		registry    session.Registry
		redisClient *goredis.Client
		sweeper     *scheduler.SessionSweeper
	)
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.Connect(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient.Named("redis"))
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")
		registry = redisstore.NewSessionStore(redisClient)
	} else {
		loggerClient.Info("redis not configured, keeping sessions in memory")
		mem := session.NewMemoryRegistry()
		registry = mem
		sweeper = scheduler.NewSessionSweeper(mem, loggerClient.Named("sweeper"), cfg.SweepInterval)
	}

	tokens := session.NewManager(cfg.JWTSecret, cfg.SessionTTL, "shelf")
	gate := auth.NewGate(tokens, registry, credentials, loggerClient.Named("auth"))

	icons := icon.NewFetcher(cfg.IconTimeout, cfg.IconMaxBytes, loggerClient.Named("icon"))
	imp := importer.New(bookmarks, categories, icons, loggerClient.Named("importer"))

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		DB:                db,
		RedisClient:       redisClient,
		Bookmarks:         bookmarks,
		Categories:        categories,
		Credentials:       credentials,
		Importer:          imp,
		Icons:             icons,
		Tokens:            tokens,
		Sessions:          registry,
		Gate:              gate,
		SessionCookie:     cfg.SessionCookie,
		CookieSecure:      cfg.CookieSecure,
		LoginBurst:        cfg.LoginBurst,
		LoginRefillPerMin: cfg.LoginRefillPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		db:          db,
		redisClient: redisClient,
		importer:    imp,
		sweeper:     sweeper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Shelf v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.ImportFile != "" {
		res, err := a.importer.ImportFile(ctx, a.cfg.ImportFile)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", a.cfg.ImportFile, err)
		}
		a.logger.Info("seed file imported",
			logger.String("file", a.cfg.ImportFile),
			logger.Int("added", len(res.Added)),
			logger.Int("skipped", len(res.Skipped)))
	}

	if a.sweeper != nil {
		a.sweeper.Start(ctx)
		a.logger.Info("session sweeper started",
			logger.Duration("interval", a.cfg.SweepInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.close()
		return err
	}

	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.close()
	a.logger.Info("✅ Shelf stopped cleanly")
	return nil
}

func (a *App) close() {
	if a.redisClient != nil {
		utils.MustClose(a.redisClient, "Redis", a.logger)
	}
	utils.MustClose(a.db, "SQLite", a.logger)
}
