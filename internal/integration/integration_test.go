package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
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

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	pgstore "quiz-session-service/internal/infra/postgres"
	"quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
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

	setStore := pgstore.NewSetStore(pool)
	if err := setStore.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("seed set: %v", err)
	}
	if err := setStore.ToggleActive(ctx, "set-1", true); err != nil {
		t.Fatalf("activate set: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cachedSets := infraredis.NewSetRepository(redisClient, setStore, 5*time.Minute)
	engine := app.NewSessionEngine(cachedSets, pgstore.NewAttemptStore(pool))

	start, err := engine.Start(ctx, "u1", "set-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.Resumed || len(start.Questions) != 2 || start.TimeRemainingSeconds != 600 {
		t.Fatalf("unexpected start result %+v", start)
	}

	// second start resumes against the same deadline
	resumed, err := engine.Start(ctx, "u1", "set-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed.Resumed || !resumed.Deadline.Equal(start.Deadline) {
		t.Fatalf("expected resume with original deadline, got %+v", resumed)
	}

	submit, err := engine.Submit(ctx, "u1", "set-1", []string{"Paris", ""}, nil, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submit.Score != 1 || submit.SkippedCount != 1 || submit.Percentage != 50 {
		t.Fatalf("unexpected score %+v", submit)
	}

	if _, err := engine.Submit(ctx, "u1", "set-1", []string{"Paris", "Rome"}, nil, nil); !errors.Is(err, domain.ErrNoOpenAttempt) {
		t.Fatalf("second submit should find nothing open, got %v", err)
	}

	attempts, err := engine.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Score != 1 {
		t.Fatalf("unexpected history %+v", attempts)
	}
}

func TestOpenAttemptUniqueUnderConcurrency(t *testing.T) {
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

	setStore := pgstore.NewSetStore(pool)
	if err := setStore.CreateSet(ctx, sampleSet()); err != nil {
		t.Fatalf("seed set: %v", err)
	}
	if err := setStore.ToggleActive(ctx, "set-1", true); err != nil {
		t.Fatalf("activate set: %v", err)
	}
	engine := app.NewSessionEngine(setStore, pgstore.NewAttemptStore(pool))

	const racers = 8
	results := make([]app.StartResult, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Start(ctx, "u1", "set-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < racers; i++ {
		if errs[i] != nil {
			t.Fatalf("start %d: %v", i, errs[i])
		}
		if !results[i].Deadline.Equal(results[0].Deadline) {
			t.Fatalf("racers diverged: %v vs %v", results[i].Deadline, results[0].Deadline)
		}
	}

	var open int
	if err := pool.QueryRow(ctx,
		`SELECT count(*) FROM session_attempts WHERE participant_id=$1 AND set_id=$2 AND completed_at IS NULL`,
		"u1", "set-1",
	).Scan(&open); err != nil {
		t.Fatalf("count open: %v", err)
	}
	if open != 1 {
		t.Fatalf("expected exactly one open attempt, got %d", open)
	}
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:               "set-1",
		EventID:          "event-1",
		Name:             "European Capitals",
		TimeLimitMinutes: 10,
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice", "Lille"}, CorrectAnswer: "Paris", Category: "geo", Topic: "Europe", Level: "easy"},
			{Text: "Capital of Italy?", Options: []string{"Milan", "Rome", "Turin", "Naples"}, CorrectAnswer: "Rome", Category: "geo", Topic: "Europe", Level: "easy"},
		},
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
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
