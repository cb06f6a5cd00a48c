package migrate

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRollbackRejectsNonPositiveSteps(t *testing.T) {
	if err := Rollback(context.Background(), nil, 0); err == nil {
		t.Fatalf("expected error for zero steps")
	}
}

func TestApplyReportsVersion(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := Apply(ctx, pool); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(ctx, pool); err != nil {
		t.Fatalf("apply twice: %v", err)
	}
	v, dirty, err := Version(ctx, pool)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 || dirty {
		t.Fatalf("unexpected version=%d dirty=%t", v, dirty)
	}
}
