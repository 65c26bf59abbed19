package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
	pgstore "timed-quiz-service/internal/infra/postgres"
	redisstore "timed-quiz-service/internal/infra/redis"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}

	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, config.TTLDuration(cfg.Redis.TTL, config.DefaultCacheTTL))
	} else {
		questions = memory.NewQuestionRepository(loader, cfg.QuestionTTL())
	}

	// Postgres is the durable record when configured; Redis only when it is the sole store.
	var participants app.ParticipantStore
	switch {
	case pool != nil:
		participants = pgstore.NewParticipantStore(pool)
	case redisClient != nil:
		participants = redisstore.NewParticipantStore(redisClient)
	default:
		slog.Warn("no database configured, participants are kept in memory")
		participants = memory.NewParticipantStore()
	}

	service := app.NewQuizService(participants, questions, app.Settings{
		Duration:       cfg.QuizDuration(),
		Grace:          cfg.Grace(),
		ShuffleOptions: cfg.Quiz.ShuffleOptions,
	})

	auth := transport.NewAdminAuth(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.TokenTTL())
	if !auth.Enabled() {
		slog.Warn("admin.password_hash not set, admin views are open")
	} else if cfg.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret (JWT_SECRET) is required when admin.password_hash is set")
	}

	router := transport.NewRouter(service, transport.RouterOptions{
		Auth:        auth,
		CORSOrigins: cfg.Server.CORSOrigins,
		Health:      healthCheck(pool, redisClient),
	})

	finalPort := cfg.ListenPort(portFlag)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go app.NewSweeper(service, cfg.SweepInterval()).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting quiz service", "port", finalPort, "quiz_duration", cfg.QuizDuration())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// questionLoader picks the question source: Postgres, then the YAML bank, then the built-in sample.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuestionLoader, error) {
	if pool != nil {
		return pgstore.NewQuestionLoader(pool), nil
	}
	if cfg.Quiz.QuestionsFile != "" {
		questions, err := memory.LoadQuestionFile(cfg.Quiz.QuestionsFile)
		if err != nil {
			return nil, err
		}
		return memory.NewStaticQuestionLoader(questions), nil
	}
	slog.Warn("no question source configured, serving sample questions")
	return memory.NewStaticQuestionLoader(sampleQuestions()), nil
}

func healthCheck(pool *pgxpool.Pool, client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "1", Text: "What is the capital of France?", Options: []string{"Paris", "London", "Berlin", "Madrid"}, CorrectAnswer: "Paris"},
		{ID: "2", Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectAnswer: "4"},
		{ID: "3", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, CorrectAnswer: "Mars"},
	}
}
