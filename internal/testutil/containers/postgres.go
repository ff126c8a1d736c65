//go:build integration

package containers

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/logging"
)

const (
	postgresImage = "postgres:16-alpine"
	databaseName  = "clover"
)

// NewPostgres starts a Postgres container, applies the migrations and
// returns a connection. The container is terminated on test cleanup.
func NewPostgres(t *testing.T) database.DB {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(databaseName),
		postgres.WithUsername("clover"),
		postgres.WithPassword("clover"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	logger := logging.Discard()
	db, err := database.Connect(ctx, database.Config{
		Host:            host,
		Port:            port.Port(),
		User:            "clover",
		Password:        "clover",
		Name:            databaseName,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err, "failed to connect to postgres")
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: migrationsDir()})
	require.NoError(t, migrations.MigratePostgres(db.SQL(), databaseName))

	return db
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "pg")
}

// SeedPayment inserts a raw payment document.
func SeedPayment(t *testing.T, db database.DB, id string, createdAt time.Time, document map[string]any) {
	t.Helper()

	var intent *string
	if v, ok := document["paymentId"].(string); ok {
		intent = &v
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO payments (id, document, payment_intent_id, created_at) VALUES ($1, $2, $3, $4)`,
		id, database.NewJSONB(document), intent, createdAt,
	)
	require.NoError(t, err)
}

// SeedRegistration inserts a raw registration document and its recall
// columns.
func SeedRegistration(t *testing.T, db database.DB, id string, createdAt time.Time, document map[string]any) {
	t.Helper()

	column := func(key string) *string {
		if v, ok := document[key].(string); ok && v != "" {
			return &v
		}
		return nil
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO registrations (id, document, payment_intent_id, registration_id, contact_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, database.NewJSONB(document), column("stripePaymentIntentId"), column("registrationId"), column("contactEmail"), createdAt,
	)
	require.NoError(t, err)
}
