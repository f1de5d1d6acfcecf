package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTempDB(t *testing.T) *SQLRepo {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	dsn, err := SQLiteFileDSN(dbPath)
	if err != nil {
		t.Fatalf("dsn error: %v", err)
	}
	repo, err := NewSQLiteRepo(dsn)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	if err := repo.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return repo
}

func TestSQLiteRepo(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository { return newTempDB(t) })
}

func TestSQLiteRepo_MigrationsIdempotent(t *testing.T) {
	repo := newTempDB(t)
	if _, err := repo.Create(context.Background(), "keep me"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected data to survive re-migration, got %d tasks", len(list))
	}
}

func TestSQLiteRepo_ReopenKeepsData(t *testing.T) {
	dsn, err := SQLiteFileDSN(filepath.Join(t.TempDir(), "nested", "project.db"))
	if err != nil {
		t.Fatalf("dsn error: %v", err)
	}
	ctx := context.Background()

	first, err := NewSQLiteRepo(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.ApplyMigrations(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	a, err := first.Create(ctx, "durable")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := first.Toggle(ctx, a.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteRepo(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Content != "durable" || !got.Complete || !got.Created.Equal(a.Created) {
		t.Fatalf("task changed across reopen: got %+v, want %+v", got, a)
	}
}

func TestSQLiteRepo_ClosedDBIsPersistenceError(t *testing.T) {
	repo := newTempDB(t)
	_ = repo.Close()

	_, err := repo.List(context.Background())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "closed") {
		t.Fatalf("expected underlying message to surface, got %q", pe.Error())
	}
}

func TestNewSQLRepo_UnknownDriver(t *testing.T) {
	if _, err := NewSQLRepo("oracle", "whatever"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestCreatedTimeScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want string
	}{
		{"sqlite text", "2025-01-02T03:04:05.000006Z", "2025-01-02T03:04:05.000006Z"},
		{"mysql bytes", []byte("2025-01-02 03:04:05.000006"), "2025-01-02T03:04:05.000006Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var c createdTime
			if err := c.Scan(tc.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if got := c.t.Format("2006-01-02T15:04:05.000000Z07:00"); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}

	var c createdTime
	if err := c.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if err := c.Scan("yesterday"); err == nil {
		t.Fatalf("expected error for unparseable text")
	}
}
