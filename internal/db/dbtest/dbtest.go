// Package dbtest connects integration tests to a real PostgreSQL instance.
// Tests are skipped unless DB_HOST_TEST is set.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yuankeMiao/Marmotshop-backend/internal/config"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
)

type testEnv struct {
	Host     string `envconfig:"DB_HOST_TEST"`
	Port     string `envconfig:"DB_PORT_TEST" default:"5432"`
	User     string `envconfig:"DB_USER_TEST" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD_TEST" default:"postgres"`
	DBName   string `envconfig:"DB_NAME_TEST" default:"marmotshop_test"`
	SSLMode  string `envconfig:"DB_SSLMODE_TEST" default:"disable"`
}

// Open migrates the test database, truncates every table and returns a
// connection that is closed when t finishes.
func Open(t *testing.T) *db.Postgres {
	t.Helper()

	if os.Getenv("DB_HOST_TEST") == "" {
		t.Skip("DB_HOST_TEST not set, skipping PostgreSQL integration test")
	}

	var env testEnv
	require.NoError(t, envconfig.Process("", &env))

	cfg := config.PostgresConfig{
		Host:            env.Host,
		Port:            env.Port,
		User:            env.User,
		Password:        env.Password,
		DBName:          env.DBName,
		SSLMode:         env.SSLMode,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  migrationsPath(),
	}

	require.NoError(t, db.Migrate(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	Truncate(t, pg)
	return pg
}

func Truncate(t *testing.T, pg *db.Postgres) {
	t.Helper()
	_, err := pg.Pool.Exec(context.Background(), "TRUNCATE TABLE reviews, order_lines, orders, products, users")
	require.NoError(t, err, "failed to truncate tables")
}

func TxConfig() config.TxConfig {
	return config.TxConfig{Timeout: 5 * time.Second, RetryAttempts: 1, RetryBackoff: 10 * time.Millisecond}
}

func SeedUser(t *testing.T, pg *db.Postgres) uuid.UUID {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	_, err := pg.Pool.Exec(context.Background(),
		`INSERT INTO users (id, first_name, last_name, email) VALUES ($1, 'Test', 'User', $2)`,
		id, id.String()+"@example.com",
	)
	require.NoError(t, err)
	return id
}

func SeedProduct(t *testing.T, pg *db.Postgres, price string, discount, stock int) uuid.UUID {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	_, err := pg.Pool.Exec(context.Background(),
		`INSERT INTO products (id, title, price, discount_percentage, thumbnail, stock) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, "product "+id.String(), decimal.RequireFromString(price), discount, "thumb.png", stock,
	)
	require.NoError(t, err)
	return id
}

func Stock(t *testing.T, pg *db.Postgres, productID uuid.UUID) int {
	t.Helper()
	var stock int
	require.NoError(t, pg.Pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock))
	return stock
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}
