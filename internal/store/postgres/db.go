package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

//go:embed schema.sql
var defaultSchema string

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// EnsureSchema applies the schema statements one by one. Every statement is
// idempotent. An empty schemaPath uses the embedded schema.
func EnsureSchema(ctx context.Context, db DB, schemaPath string) error {
	schema := defaultSchema
	if strings.TrimSpace(schemaPath) != "" {
		data, err := os.ReadFile(filepath.Clean(schemaPath))
		if err != nil {
			return fmt.Errorf("read schema file (%s): %w", schemaPath, err)
		}
		schema = string(data)
	}

	for _, stmt := range strings.Split(schema, ";") {
		query := strings.TrimSpace(stmt)
		if query == "" {
			continue
		}
		if _, err := db.Exec(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
