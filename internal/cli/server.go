package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/config"
	"quiz-assessment-engine/internal/domain"
	"quiz-assessment-engine/internal/infra/memory"
	pgstore "quiz-assessment-engine/internal/infra/postgres"
	redisinfra "quiz-assessment-engine/internal/infra/redis"
	"quiz-assessment-engine/internal/sched"
	transport "quiz-assessment-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Without Postgres the engine runs entirely in memory with a demo quiz,
	// which is enough for local development and smoke tests.
	var quizzes app.QuizStore
	var loader memory.QuizLoader
	var attempts app.AttemptRepository
	if pool != nil {
		store := pgstore.NewQuizStore(pool)
		quizzes, loader = store, store
		attempts = pgstore.NewAttemptStore(pool)
	} else {
		log.Printf("postgres not configured, running in memory with demo data")
		store := memory.NewQuizStoreWith(demoQuizzes())
		quizzes, loader = store, store
		attempts = memory.NewAttemptStore()
	}

	// Attempt operations re-read the quiz on every call, so they go through
	// a TTL cache. Authoring writes bypass it and staleness is bounded by
	// the TTL.
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizReads app.QuizRepository
	if redisClient != nil {
		quizReads = redisinfra.NewQuizCache(redisClient, loader, quizTTL)
	} else {
		quizReads = memory.NewQuizCache(loader, quizTTL)
	}

	bus := memory.NewEventBus()
	publisher := app.GradePublisher(bus)
	if redisClient != nil {
		publisher = app.MultiPublisher(bus, redisinfra.NewGradePublisher(redisClient, cfg.Redis.Channel))
	}

	service := app.NewAttemptService(quizReads, attempts, publisher)
	analytics := app.NewAnalytics(quizReads, attempts)
	authoring := app.NewAuthoringService(quizzes, attempts)

	sweeper := sched.NewSweeper(service, attempts)
	schedule := cfg.Sweeper.Schedule
	if schedule == "" {
		schedule = "@every 30s"
	}
	if err := sweeper.Start(schedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	handler := transport.NewHandler(service, analytics, authoring)
	feed := transport.NewGradeFeed(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/grades", feed.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoQuizzes seeds the in-memory store when no database is configured.
func demoQuizzes() map[string]domain.Quiz {
	limit := 15
	return map[string]domain.Quiz{
		"quiz-demo": {
			ID:               "quiz-demo",
			Title:            "Geography warm-up",
			Description:      "A short demo quiz",
			Published:        true,
			TimeLimitMinutes: &limit,
			PassingScore:     60,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Text:   "The Nile is the longest river in the world.",
					Type:   domain.TrueFalse,
					Points: 2,
					Options: []domain.AnswerOption{
						{ID: "q1-t", Text: "True", Correct: true},
						{ID: "q1-f", Text: "False"},
					},
				},
				{
					ID:     "q2",
					Text:   "Which of these countries border France?",
					Type:   domain.MultipleAnswer,
					Points: 4,
					Options: []domain.AnswerOption{
						{ID: "q2-a", Text: "Spain", Correct: true},
						{ID: "q2-b", Text: "Italy", Correct: true},
						{ID: "q2-c", Text: "Portugal"},
						{ID: "q2-d", Text: "Poland"},
					},
				},
				{
					ID:     "q3",
					Text:   "What is the capital of Japan?",
					Type:   domain.ShortAnswer,
					Points: 2,
					Options: []domain.AnswerOption{
						{ID: "q3-a", Text: "Tokyo", Correct: true},
					},
				},
			},
		},
	}
}
