package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver     string
	pragmas    string
	schema     string
	timeLayout string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		pragmas: `
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`,
		schema: fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS my_task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL CHECK (length(content) <= %d),
	created TEXT NOT NULL,
	complete INTEGER NOT NULL DEFAULT 0
);
	`, MaxContentLen),
		timeLayout: "2006-01-02T15:04:05.000000Z",
	},
	"mysql": {
		driver: "mysql",
		schema: fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS my_task (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	content VARCHAR(%d) NOT NULL,
	created DATETIME(6) NOT NULL,
	complete BOOLEAN NOT NULL DEFAULT FALSE,
	INDEX idx_my_task_created (created)
)`, MaxContentLen),
		timeLayout: "2006-01-02 15:04:05.000000",
	},
}

// Drivers lists the database drivers SQLRepo can open.
func Drivers() []string { return []string{"sqlite", "mysql"} }

// SQLRepo stores tasks in the my_task table of a SQLite or MySQL database.
type SQLRepo struct {
	db *sql.DB
	d  dialect
}

func NewSQLRepo(driver, dsn string) (*SQLRepo, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if d.pragmas != "" {
		if _, err := db.Exec(d.pragmas); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLRepo{db: db, d: d}, nil
}

func NewSQLiteRepo(dsn string) (*SQLRepo, error) { return NewSQLRepo("sqlite", dsn) }

func (r *SQLRepo) Close() error { return r.db.Close() }

// ApplyMigrations ensures schema exists
func (r *SQLRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.d.schema)
	return err
}

const selectTask = `SELECT id, content, created, complete FROM my_task`

func (r *SQLRepo) Create(ctx context.Context, content string) (Task, error) {
	if !ValidContent(content) {
		return Task{}, ErrContentRequired
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO my_task (content, created, complete)
		VALUES (?, ?, ?)
	`, content, now.Format(r.d.timeLayout), false)
	if err != nil {
		return Task{}, persistErr("create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, persistErr("create", err)
	}
	return Task{
		ID:       id,
		Content:  content,
		Created:  now,
		Complete: false,
	}, nil
}

func (r *SQLRepo) Get(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
	if err != nil {
		return Task{}, lookupErr("get", err)
	}
	return t, nil
}

func (r *SQLRepo) List(ctx context.Context) ([]Task, error) {
	return r.query(ctx, "list", selectTask+` ORDER BY created ASC, id ASC`)
}

func (r *SQLRepo) ListByCompletion(ctx context.Context, complete bool) ([]Task, error) {
	return r.query(ctx, "list_by_completion",
		selectTask+` WHERE complete = ? ORDER BY created ASC, id ASC`, complete)
}

func (r *SQLRepo) query(ctx context.Context, op, q string, args ...any) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, t)
	}
	return out, persistErr(op, rows.Err())
}

func (r *SQLRepo) Update(ctx context.Context, id int64, content string) (Task, error) {
	if !ValidContent(content) {
		return Task{}, ErrContentRequired
	}
	var out Task
	err := r.inTx(ctx, "update", func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE my_task SET content = ? WHERE id = ?`, content, id); err != nil {
			return err
		}
		t.Content = content
		out = t
		return nil
	})
	return out, err
}

func (r *SQLRepo) Toggle(ctx context.Context, id int64) (Task, error) {
	var out Task
	err := r.inTx(ctx, "toggle", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE my_task SET complete = NOT complete WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return sql.ErrNoRows
		}
		out, err = scanTask(tx.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
		return err
	})
	return out, err
}

func (r *SQLRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM my_task WHERE id = ?`, id)
	if err != nil {
		return persistErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("delete", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// inTx runs fn in a transaction. sql.ErrNoRows from fn becomes ErrNotFound.
func (r *SQLRepo) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return lookupErr(op, err)
	}
	return persistErr(op, tx.Commit())
}

func lookupErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return persistErr(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (Task, error) {
	var (
		t       Task
		created createdTime
	)
	if err := s.Scan(&t.ID, &t.Content, &created, &t.Complete); err != nil {
		return Task{}, err
	}
	t.Created = created.t
	return t, nil
}

// createdTime accepts the created column as returned by either driver:
// text for SQLite, time.Time or raw bytes for MySQL depending on parseTime.
type createdTime struct{ t time.Time }

func (c *createdTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		c.t = v.UTC()
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("created: unsupported type %T", src)
	}
}

func (c *createdTime) parse(s string) error {
	for _, layout := range []string{dialects["sqlite"].timeLayout, dialects["mysql"].timeLayout, time.RFC3339Nano} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			c.t = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("created: cannot parse %q", s)
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}
