package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kahyeet/internal/config"
	"kahyeet/internal/game"
	infrafile "kahyeet/internal/infra/file"
	"kahyeet/internal/infra/memory"
	pgloader "kahyeet/internal/infra/postgres"
	infraredis "kahyeet/internal/infra/redis"
	"kahyeet/internal/scorelog"
	adminhttp "kahyeet/internal/transport/http"
	"kahyeet/internal/transport/tcp"
)

// NewServeCmd builds the CLI subcommand hosting one game session.
func NewServeCmd(configPath, listenAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host a quiz session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *listenAddr)
		},
	}
}

func runServer(ctx context.Context, configPath, listenFlag string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	listen := listenFlag
	if listen == "" {
		listen = cfg.Server.Listen
	}
	if listen == "" {
		listen = ":5050"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = infrafile.NewQuestionLoader(cfg.Game.QuestionsFile)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionsTTL := config.TTLDuration(cfg.Game.QuestionsTTL, 10*time.Minute)
	repo := memory.NewQuestionRepository(loader, questionsTTL)
	questions, err := repo.GetQuestions(ctx, cfg.Game.QuestionSet)
	if err != nil {
		return err
	}

	var history game.HistoryStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		history = infraredis.NewHistoryStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	}

	session := game.NewSession(game.Config{
		ID:        time.Now().Format("20060102-150405"),
		Settings:  cfg.Game.Settings,
		Questions: questions,
		Scores:    scorelog.Open(cfg.Game.ScoresFile),
		History:   history,
		Logger:    logger,
	})

	gameServer := tcp.NewServer(session, logger)
	if err := gameServer.Listen(listen); err != nil {
		return err
	}

	admin := &http.Server{
		Addr:              cfg.Server.Admin,
		Handler:           adminhttp.NewAdminHandler(session, logger).Routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("game server listening",
			zap.String("addr", gameServer.Addr().String()),
			zap.String("session", session.ID()),
			zap.Int("questions", len(questions)))
		return gameServer.Serve(ctx)
	})
	if cfg.Server.Admin != "" {
		g.Go(func() error {
			logger.Info("admin server listening", zap.String("addr", cfg.Server.Admin))
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
