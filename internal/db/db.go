package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"case-rag/internal/config"
	"case-rag/internal/models"
)

// ConnectDB opens the Supabase/Postgres connection with the configured driver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: database dsn is empty", models.ErrInvalidInput)
	}

	switch cfg.Driver {
	case "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", models.ErrInvalidInput, cfg.Driver)
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the vector extension, tables and indexes. When vectorSize is
// positive the embedding column is pinned to that dimension.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	tables := []struct {
		model any
		fk    string
	}{
		{model: (*Document)(nil)},
		{model: (*Chunk)(nil), fk: `("document_id") REFERENCES "case_documents" ("id") ON DELETE CASCADE`},
		{model: (*Lead)(nil)},
		{model: (*RateCounter)(nil)},
	}
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		if t.fk != "" {
			q = q.ForeignKey(t.fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if vectorSize > 0 {
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("ALTER TABLE document_chunks ALTER COLUMN embedding TYPE vector(%d)", vectorSize)); err != nil {
			return fmt.Errorf("failed to set embedding dimension: %w", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*Document)(nil), "case_documents_case_idx", []string{"case_id", "uploaded_at"}},
		{(*Chunk)(nil), "document_chunks_document_idx", []string{"document_id", "chunk_index"}},
		{(*Chunk)(nil), "document_chunks_case_idx", []string{"case_id"}},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropTables removes every table InitDB creates.
func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*Chunk)(nil), (*Document)(nil), (*Lead)(nil), (*RateCounter)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
