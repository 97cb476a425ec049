package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentalku/relayd/internal/adapter/cache"
	"github.com/rentalku/relayd/internal/adapter/storage/postgres"
	"github.com/rentalku/relayd/internal/ports"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB                *gorm.DB
	PgConnStr         string
	Cache             ports.Cache
	PostgresContainer testcontainers.Container
	RedisContainer    testcontainers.Container
	Logger            *zap.Logger
	ctx               context.Context
}

var testEnv *TestEnv

// SetupTestEnvironment initializes the test environment with containers
func SetupTestEnvironment(t *testing.T) *TestEnv {
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Check if using external services (CI environment)
	if os.Getenv("DATABASE_URL") != "" {
		return setupExternalServices(t, ctx)
	}

	// Use testcontainers for local testing
	return setupContainers(t, ctx)
}

func setupExternalServices(t *testing.T, ctx context.Context) *TestEnv {
	logger, _ := zap.NewDevelopment()

	db, err := postgres.NewConnection(os.Getenv("DATABASE_URL"), logger)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	redisCache, err := cache.NewRedisCache(redisURL, logger)
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	testEnv = &TestEnv{
		DB:        db,
		PgConnStr: os.Getenv("DATABASE_URL"),
		Cache:     redisCache,
		Logger:    logger,
		ctx:       ctx,
	}

	return testEnv
}

func setupContainers(t *testing.T, ctx context.Context) *TestEnv {
	logger, _ := zap.NewDevelopment()

	// Start Postgres container
	postgresContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("relayd_test"),
		tcpostgres.WithUsername("relayd"),
		tcpostgres.WithPassword("relayd_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	pgHost, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get postgres host: %v", err)
	}
	pgPort, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get postgres port: %v", err)
	}

	pgConnStr := fmt.Sprintf("postgres://relayd:relayd_test@%s:%s/relayd_test?sslmode=disable", pgHost, pgPort.Port())

	db, err := postgres.NewConnection(pgConnStr, logger)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Start Redis container
	redisContainer, err := tcredis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get redis host: %v", err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get redis port: %v", err)
	}

	redisCache, err := cache.NewRedisCache(fmt.Sprintf("redis://%s:%s", redisHost, redisPort.Port()), logger)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}

	testEnv = &TestEnv{
		DB:                db,
		PgConnStr:         pgConnStr,
		Cache:             redisCache,
		PostgresContainer: postgresContainer,
		RedisContainer:    redisContainer,
		Logger:            logger,
		ctx:               ctx,
	}

	return testEnv
}

// TeardownTestEnvironment cleans up the test environment
func TeardownTestEnvironment(t *testing.T) {
	if testEnv == nil {
		return
	}

	ctx := context.Background()

	if testEnv.DB != nil {
		postgres.Close(testEnv.DB)
	}

	if testEnv.Cache != nil {
		testEnv.Cache.Close()
	}

	if testEnv.PostgresContainer != nil {
		if err := testEnv.PostgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	}

	if testEnv.RedisContainer != nil {
		if err := testEnv.RedisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	}

	testEnv = nil
}

// CleanDatabase truncates all tables
func CleanDatabase(t *testing.T, db *gorm.DB) {
	tables := []string{
		"usage_records",
		"monthly_summaries",
	}

	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			// Table might not exist, that's ok
			t.Logf("Failed to truncate %s: %v", table, err)
		}
	}
}

// FlushCache clears all cached keys
func FlushCache(t *testing.T, c ports.Cache) {
	ctx := context.Background()
	if err := c.Delete(ctx, "relayd:channels:status"); err != nil {
		t.Fatalf("Failed to flush cache: %v", err)
	}
}
