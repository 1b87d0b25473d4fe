package integration

import (
	"context"
	"database/sql"
	"errors"
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

	"quizflow/internal/app"
	"quizflow/internal/domain"
	pgstore "quizflow/internal/infra/postgres"
	pgmigrations "quizflow/internal/infra/postgres/migrations"
	infraredis "quizflow/internal/infra/redis"
	"quizflow/internal/timer"
)

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	submissions := pgstore.NewSubmissionStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	sched := timer.NewManualScheduler(time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC))
	snapshots := infraredis.NewSnapshotStore(redisClient, time.Hour)
	service := app.NewQuizService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		app.UseSnapshots(snapshots),
		app.UseSubmissions(submissions),
		app.UseScheduler(sched),
	)

	session, err := service.Start(ctx, "quiz-1", "s-1", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance from welcome: %v", err)
	}
	sched.Advance(domain.DefaultTransition)
	if err := session.SelectAnswer(ctx, "q1", domain.ChooseOption("red"), false); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance from q1: %v", err)
	}
	sched.Advance(domain.DefaultTransition)

	if _, ok, err := snapshots.Load(ctx, domain.SnapshotKey("s-1")); err != nil || !ok {
		t.Fatalf("expected progress saved in redis, ok=%v err=%v", ok, err)
	}

	// Drop the live session and resume from Redis.
	service.End("s-1")
	session, err = service.Start(ctx, "quiz-1", "s-1", "en")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	st := session.State()
	if st.Step != 2 || st.QuestionID != "q2" {
		t.Fatalf("expected to resume on q2, got step=%d question=%q", st.Step, st.QuestionID)
	}

	if err := session.SelectAnswer(ctx, "q2", domain.EnterText("because it is loud"), false); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if err := session.Advance(ctx); err != nil {
		t.Fatalf("advance from q2: %v", err)
	}
	sched.Advance(domain.DefaultTransition)

	st = session.State()
	if !st.Submitted || st.ResultKey != "bold" {
		t.Fatalf("expected bold result, got submitted=%v result=%q", st.Submitted, st.ResultKey)
	}
	counts, err := submissions.ResultCounts(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("result counts: %v", err)
	}
	if counts["bold"] != 1 || len(counts) != 1 {
		t.Fatalf("expected one bold submission, got %v", counts)
	}
	stats, err := service.ResultCounts(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("service result counts: %v", err)
	}
	if stats["bold"] != 1 || stats["calm"] != 0 || len(stats) != 2 {
		t.Fatalf("expected every declared result counted, got %v", stats)
	}
	if _, ok, _ := snapshots.Load(ctx, domain.SnapshotKey("s-1")); ok {
		t.Fatalf("expected saved progress cleared after submit")
	}

	if _, err := loader.LoadQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
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
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Prompt:   domain.Literal("Pick a colour"),
				Type:     domain.SingleChoice,
				Required: true,
				Options: []domain.Option{
					{Value: "red", Label: domain.Literal("Red"), Weight: domain.Weights{"bold": 1}},
					{Value: "grey", Label: domain.Literal("Grey"), Weight: domain.Weights{"calm": 1}},
				},
			},
			{
				ID:       "q2",
				Prompt:   domain.Literal("Why red?"),
				Type:     domain.TextInput,
				Required: true,
				Weight:   domain.Weights{"bold": 1},
			},
		},
		ConditionalLogic: []domain.ConditionalRule{
			{QuestionID: "q2", Condition: domain.Condition{DependsOn: "q1", Operator: domain.OpEquals, Value: "red"}},
		},
		Results: []domain.Result{
			{Key: "bold", Title: domain.Literal("Bold")},
			{Key: "calm", Title: domain.Literal("Calm")},
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
