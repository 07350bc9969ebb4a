package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/domain"
	pgstore "quiz-assessment-engine/internal/infra/postgres"
	pgmigrations "quiz-assessment-engine/internal/infra/postgres/migrations"
	infraredis "quiz-assessment-engine/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	quizzes := pgstore.NewQuizStore(pool)
	attempts := pgstore.NewAttemptStore(pool)
	cache := infraredis.NewQuizCache(redisClient, quizzes, 5*time.Minute)

	authoring := app.NewAuthoringService(quizzes, attempts)
	if err := authoring.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	sub := redisClient.Subscribe(ctx, infraredis.DefaultGradeChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	publisher := infraredis.NewGradePublisher(redisClient, "")
	service := app.NewAttemptService(cache, attempts, publisher)

	attempt, err := service.StartAttempt(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// The partial unique index allows only one active attempt per student.
	if _, err := service.StartAttempt(ctx, "quiz-1", "student-1"); err != domain.ErrAttemptInProgress {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, attempt.ID, "q1", []string{"o1"}, ""); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, attempt.ID, "q2", nil, "  PARIS "); err != nil {
		t.Fatalf("submit q2: %v", err)
	}

	done, err := service.FinalizeAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if done.Status != domain.AttemptCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Score == nil || *done.Score != 4 {
		t.Fatalf("expected raw score 4, got %+v", done.Score)
	}
	if done.PercentageScore == nil || *done.PercentageScore != 100 || !done.Passed {
		t.Fatalf("unexpected totals: %+v", done)
	}

	// The grade event went out over pub/sub.
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive grade event: %v", err)
	}
	var event domain.GradePosted
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		t.Fatalf("decode grade event: %v", err)
	}
	if event.AttemptID != attempt.ID || event.PercentageScore != 100 {
		t.Fatalf("unexpected event: %+v", event)
	}

	// Finalize is terminal; a second call changes nothing.
	if _, err := service.FinalizeAttempt(ctx, attempt.ID); err != domain.ErrAttemptNotActive {
		t.Fatalf("expected ErrAttemptNotActive, got %v", err)
	}

	analytics := app.NewAnalytics(cache, attempts)
	stats, err := analytics.QuizStatistics(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CompletedAttempts != 1 || stats.PassedCount != 1 || stats.AverageScore != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestConcurrentStartsYieldOneAttempt(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	quizzes := pgstore.NewQuizStore(pool)
	attempts := pgstore.NewAttemptStore(pool)
	if err := quizzes.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	service := app.NewAttemptService(quizzes, attempts, noopPublisher{})

	var g errgroup.Group
	results := make([]error, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			_, err := service.StartAttempt(ctx, "quiz-1", "racer")
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, err := range results {
		switch err {
		case nil:
			succeeded++
		case domain.ErrAttemptInProgress:
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful start, got %d", succeeded)
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishGradePosted(context.Context, domain.GradePosted) error { return nil }

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Capitals",
		Published:    true,
		PassingScore: 60,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Text:   "The sky is blue.",
				Type:   domain.TrueFalse,
				Points: 2,
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "True", Correct: true},
					{ID: "o2", Text: "False"},
				},
			},
			{
				ID:     "q2",
				Text:   "What is the capital of France?",
				Type:   domain.ShortAnswer,
				Points: 2,
				Options: []domain.AnswerOption{
					{ID: "o3", Text: "Paris", Correct: true},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
