package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quizflow/internal/config"
	"quizflow/internal/infra/file"
	"quizflow/internal/infra/postgres"
	redisstore "quizflow/internal/infra/redis"
)

// NewImportCmd copies quiz definitions from a directory into Postgres and drops
// stale copies from the redis quiz cache so running servers reload them.
func NewImportCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import quiz definitions from a directory into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "quiz directory (defaults to quiz.dir)")
	return cmd
}

func runImport(ctx context.Context, configPath, dir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if dir == "" {
		dir = quizDir(cfg)
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	source := file.NewQuizLoader(dir)
	ids, err := source.List()
	if err != nil {
		return err
	}
	target := postgres.NewQuizLoader(pool)

	var cache *redisstore.QuizRepository
	if client := newRedisClient(cfg); client != nil {
		defer client.Close()
		cache = redisstore.NewQuizRepository(client, target, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	}

	for _, id := range ids {
		quiz, err := source.LoadQuiz(ctx, id)
		if err != nil {
			return err
		}
		if err := target.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				logger.Warn("could not invalidate cached quiz", "quiz", quiz.ID, "err", err)
			}
		}
		logger.Info("quiz imported", "quiz", quiz.ID, "questions", len(quiz.Questions))
	}
	return nil
}
