package database

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "wintent", Name: "wintent"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=wintent dbname=wintent sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "app",
		Name:     "branding",
		Host:     "pg.internal",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require", "search_path": "public"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=pg.internal port=6543 user=app dbname=branding password=pass search_path=public sslmode=require", dsn)
}

func TestBuildPostgresDSNOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://x"})
	require.NoError(t, err)
	require.Equal(t, "postgres://x", dsn)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "wintent", Name: "wintent"})
	require.NoError(t, err)
	require.Equal(t, "wintent@tcp(127.0.0.1:3306)/wintent?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "app",
		Password: "secret",
		Name:     "branding",
		Host:     "mysql.internal",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify", "loc": "UTC"},
	})
	require.NoError(t, err)
	require.Equal(t, "app:secret@tcp(mysql.internal:3307)/branding?charset=utf8mb4&loc=UTC&parseTime=True&tls=skip-verify", dsn)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, IsUniqueConstraintError(nil))
	require.True(t, IsUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.True(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: application_plugins.name")))
	require.False(t, IsUniqueConstraintError(errors.New("connection refused")))
}
