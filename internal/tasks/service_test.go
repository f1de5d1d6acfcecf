package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestService(t *testing.T) (*Service, *InMemoryRepo) {
	t.Helper()
	repo := NewInMemoryRepo()
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))
	return NewService(repo, logger), repo
}

// brokenRepo fails every call with err, like a store whose connection is gone.
type brokenRepo struct{ err error }

func (b brokenRepo) fail(op string) error { return &PersistenceError{Op: op, Err: b.err} }

func (b brokenRepo) Create(context.Context, string) (Task, error) { return Task{}, b.fail("create") }
func (b brokenRepo) Get(context.Context, int64) (Task, error)     { return Task{}, b.fail("get") }
func (b brokenRepo) List(context.Context) ([]Task, error)         { return nil, b.fail("list") }
func (b brokenRepo) ListByCompletion(context.Context, bool) ([]Task, error) {
	return nil, b.fail("list_by_completion")
}
func (b brokenRepo) Update(context.Context, int64, string) (Task, error) {
	return Task{}, b.fail("update")
}
func (b brokenRepo) Toggle(context.Context, int64) (Task, error) { return Task{}, b.fail("toggle") }
func (b brokenRepo) Delete(context.Context, int64) error         { return b.fail("delete") }

func count(t *testing.T, repo Repository) int {
	t.Helper()
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(list)
}

func TestAddTask(t *testing.T) {
	ctx := context.Background()

	t.Run("blank content", func(t *testing.T) {
		for _, c := range []string{"", "  ", "\t", "\n \r"} {
			svc, repo := newTestService(t)
			out := svc.AddTask(ctx, c)
			if out.Message != MsgEmpty || !out.Failed() || out.Redirect != "/" {
				t.Fatalf("AddTask(%q): unexpected outcome %+v", c, out)
			}
			if n := count(t, repo); n != 0 {
				t.Fatalf("AddTask(%q): expected no records, got %d", c, n)
			}
		}
	})

	t.Run("creates one incomplete record", func(t *testing.T) {
		svc, repo := newTestService(t)
		out := svc.AddTask(ctx, "Test Task")
		if out.Message != MsgAdded || out.Category != CategorySuccess || out.Redirect != "/" {
			t.Fatalf("unexpected outcome %+v", out)
		}
		list, _ := repo.List(ctx)
		if len(list) != 1 || list[0].Content != "Test Task" || list[0].Complete {
			t.Fatalf("unexpected store contents: %+v", list)
		}
	})

	t.Run("over-length content is a store error", func(t *testing.T) {
		svc, repo := newTestService(t)
		out := svc.AddTask(ctx, strings.Repeat("x", MaxContentLen+1))
		if !out.Failed() || !strings.HasPrefix(out.Message, "Error: ") {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if n := count(t, repo); n != 0 {
			t.Fatalf("expected no records, got %d", n)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	a, _ := repo.Create(ctx, "bye")

	if out := svc.DeleteTask(ctx, a.ID); out.Message != MsgDeleted || out.Failed() {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected task to be gone, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if out := svc.DeleteTask(ctx, a.ID); out.Message != MsgNotFound || !out.Failed() || out.Redirect != "/" {
			t.Fatalf("repeat delete %d: unexpected outcome %+v", i, out)
		}
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("missing id", func(t *testing.T) {
		svc, repo := newTestService(t)
		out := svc.UpdateTask(ctx, 999, "x")
		if out.Message != MsgNotFound || out.Redirect != "/" {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if n := count(t, repo); n != 0 {
			t.Fatalf("expected no records, got %d", n)
		}
	})

	t.Run("missing id wins over empty content", func(t *testing.T) {
		svc, _ := newTestService(t)
		if out := svc.UpdateTask(ctx, 999, " "); out.Message != MsgNotFound {
			t.Fatalf("unexpected outcome %+v", out)
		}
	})

	t.Run("empty content returns to the form", func(t *testing.T) {
		svc, repo := newTestService(t)
		a, _ := repo.Create(ctx, "original")
		out := svc.UpdateTask(ctx, a.ID, "   ")
		if out.Message != MsgEmpty || out.Redirect != EditPath(a.ID) {
			t.Fatalf("unexpected outcome %+v", out)
		}
		got, _ := repo.Get(ctx, a.ID)
		if got.Content != "original" {
			t.Fatalf("content changed: %q", got.Content)
		}
	})

	t.Run("replaces content", func(t *testing.T) {
		svc, repo := newTestService(t)
		a, _ := repo.Create(ctx, "original")
		out := svc.UpdateTask(ctx, a.ID, "Updated Task")
		if out.Message != MsgUpdated || out.Redirect != "/" {
			t.Fatalf("unexpected outcome %+v", out)
		}
		got, _ := repo.Get(ctx, a.ID)
		if got.Content != "Updated Task" {
			t.Fatalf("content not updated: %q", got.Content)
		}
	})
}

func TestToggleTask(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	a, _ := repo.Create(ctx, "flip")

	if out := svc.ToggleTask(ctx, a.ID); out.Message != MsgToggled {
		t.Fatalf("unexpected outcome %+v", out)
	}
	got, _ := repo.Get(ctx, a.ID)
	if !got.Complete {
		t.Fatalf("expected complete after toggle")
	}
	svc.ToggleTask(ctx, a.ID)
	got, _ = repo.Get(ctx, a.ID)
	if got.Complete {
		t.Fatalf("expected toggle twice to restore original state")
	}

	if out := svc.ToggleTask(ctx, 999); out.Message != MsgNotFound {
		t.Fatalf("unexpected outcome for missing id %+v", out)
	}
}

func TestGetTask(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	a, _ := repo.Create(ctx, "edit me")

	got, out := svc.GetTask(ctx, a.ID)
	if out.Failed() || got.ID != a.ID {
		t.Fatalf("unexpected result %+v %+v", got, out)
	}
	if _, out := svc.GetTask(ctx, 999); out.Message != MsgNotFound || out.Redirect != "/" {
		t.Fatalf("unexpected outcome for missing id %+v", out)
	}
}

func TestFilterTasks(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	a, _ := repo.Create(ctx, "Task 1")
	b, _ := repo.Create(ctx, "Task 2")
	if _, err := repo.Toggle(ctx, a.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	cases := []struct {
		status string
		want   []int64
	}{
		{"complete", []int64{a.ID}},
		{"incomplete", []int64{b.ID}},
		{"all", []int64{a.ID, b.ID}},
		{"invalid_status", []int64{a.ID, b.ID}},
		{"", []int64{a.ID, b.ID}},
		{"COMPLETE", []int64{a.ID, b.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			list, err := svc.FilterTasks(ctx, tc.status)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			if len(list) != len(tc.want) {
				t.Fatalf("got %d tasks, want %d: %+v", len(list), len(tc.want), list)
			}
			for i, id := range tc.want {
				if list[i].ID != id {
					t.Fatalf("position %d: got id %d, want %d", i, list[i].ID, id)
				}
			}
		})
	}

	all, err := svc.ListTasks(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListTasks: %v %+v", err, all)
	}
}

func TestParseFilter(t *testing.T) {
	cases := map[string]Filter{
		"complete":   FilterComplete,
		"incomplete": FilterIncomplete,
		"all":        FilterAll,
		"done":       FilterAll,
		"":           FilterAll,
	}
	for in, want := range cases {
		if got := ParseFilter(in); got != want {
			t.Errorf("ParseFilter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStoreFailuresBecomeMessages(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))
	svc := NewService(brokenRepo{err: errors.New("disk I/O error")}, logger)

	want := "Error: disk I/O error"
	for name, out := range map[string]Outcome{
		"add":    svc.AddTask(ctx, "x"),
		"delete": svc.DeleteTask(ctx, 1),
		"update": svc.UpdateTask(ctx, 1, "x"),
		"toggle": svc.ToggleTask(ctx, 1),
	} {
		if out.Message != want || out.Category != CategoryError || out.Redirect != "/" {
			t.Errorf("%s: unexpected outcome %+v", name, out)
		}
	}

	if _, err := svc.FilterTasks(ctx, "complete"); err == nil {
		t.Fatalf("expected filter to surface store error")
	}
}

func TestOperationMetrics(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	invalid := operationsTotal.WithLabelValues("add", "invalid")
	added := operationsTotal.WithLabelValues("add", "success")
	missing := operationsTotal.WithLabelValues("toggle", "not_found")
	beforeInvalid := testutil.ToFloat64(invalid)
	beforeAdded := testutil.ToFloat64(added)
	beforeMissing := testutil.ToFloat64(missing)

	svc.AddTask(ctx, " ")
	svc.AddTask(ctx, "counted")
	svc.ToggleTask(ctx, 12345)

	if got := testutil.ToFloat64(invalid) - beforeInvalid; got != 1 {
		t.Errorf("invalid adds: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(added) - beforeAdded; got != 1 {
		t.Errorf("successful adds: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(missing) - beforeMissing; got != 1 {
		t.Errorf("missing toggles: got %v, want 1", got)
	}
}
