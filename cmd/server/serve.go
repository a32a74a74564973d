package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"find-the-impostor/internal/config"
	"find-the-impostor/internal/db"
	"find-the-impostor/internal/feed"
	"find-the-impostor/internal/game"
	"find-the-impostor/internal/room"
	"find-the-impostor/internal/server"
	"find-the-impostor/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func newCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "find-the-impostor",
		Short:         "Game server for find-the-impostor rooms.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(".env.local", ".env")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cobra.CheckErr(config.BindFlags(v, cmd.Flags()))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("find-the-impostor v{{.Version}}\n")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	if cfg.UsesDefaultSecret() {
		logger.Warn("SESSION_SECRET is not set; using the development secret")
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	changes, err := openFeed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := changes.Close(); err != nil {
			logger.Warn("close feed failed", zap.Error(err))
		}
	}()

	service := room.NewService(st, changes, game.NewRand(), logger.Named("room"), room.DefaultConfig())
	manager := room.NewManager(service, room.NewClockScheduler(), room.BotConfig{
		ClueDelayMin: cfg.BotClueDelayMin,
		ClueDelayMax: cfg.BotClueDelayMax,
		VoteDelayMin: cfg.BotVoteDelayMin,
		VoteDelayMax: cfg.BotVoteDelayMax,
	}, logger.Named("watcher"))
	defer manager.Close()

	janitor := server.NewJanitor(service, manager, cfg.RoomTTL, logger.Named("janitor"))
	if err := janitor.Start(cfg.JanitorSchedule); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer janitor.Stop()

	srv := server.New(service, manager, cfg, logger.Named("http"))
	defer srv.Close()
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("feed", cfg.FeedDriver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore uses Postgres when DATABASE_URL is set and the in-memory store
// seeded from the word corpus file otherwise.
func openStore(cfg config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		words, err := db.ReadWordCorpus(cfg.WordsPath)
		if err != nil {
			return nil, fmt.Errorf("read word corpus: %w", err)
		}
		logger.Info("using in-memory store", zap.Int("categories", len(words)))
		return store.NewMemory(words), nil
	}

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.Migrate(conn, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	if words, err := db.ReadWordCorpus(cfg.WordsPath); err == nil {
		loaded, err := db.LoadWordCategories(conn, words)
		if err != nil {
			return nil, fmt.Errorf("load word corpus: %w", err)
		}
		logger.Info("word corpus loaded", zap.Int("categories", loaded))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read word corpus: %w", err)
	}
	logger.Info("using postgres store")
	return store.NewPostgres(conn), nil
}

func openFeed(ctx context.Context, cfg config.Config, logger *zap.Logger) (feed.Feed, error) {
	switch cfg.FeedDriver {
	case config.FeedNATS:
		f, err := feed.NewNATS(feed.NATSConfig{
			URL:           cfg.NATSURL,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		}, logger.Named("feed"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return f, nil
	case config.FeedRedis:
		f := feed.NewRedis(feed.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger.Named("feed"))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := f.Ping(pingCtx); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return f, nil
	default:
		return feed.NewLocal(), nil
	}
}
