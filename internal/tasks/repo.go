package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	ErrContentRequired = errors.New("content required")
	ErrNotFound        = errors.New("task not found")
)

// PersistenceError wraps any failure raised below the repository boundary.
// Its message is the underlying error's message so it can be shown as-is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Repository is the durable store for tasks. Lists are ordered by creation
// time, oldest first. A missing record is reported as ErrNotFound.
type Repository interface {
	Create(ctx context.Context, content string) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	List(ctx context.Context) ([]Task, error)
	ListByCompletion(ctx context.Context, complete bool) ([]Task, error)
	Update(ctx context.Context, id int64, content string) (Task, error)
	Toggle(ctx context.Context, id int64) (Task, error)
	Delete(ctx context.Context, id int64) error
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func checkLen(op, content string) error {
	if n := utf8.RuneCountInString(content); n > MaxContentLen {
		return persistErr(op, fmt.Errorf("content is %d characters, limit is %d", n, MaxContentLen))
	}
	return nil
}

func (r *InMemoryRepo) Create(_ context.Context, content string) (Task, error) {
	if !ValidContent(content) {
		return Task{}, ErrContentRequired
	}
	if err := checkLen("create", content); err != nil {
		return Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	t := Task{
		ID:       r.seq,
		Content:  content,
		Complete: false,
		Created:  time.Now().UTC(),
	}
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) Get(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *InMemoryRepo) List(_ context.Context) ([]Task, error) {
	return r.collect(func(Task) bool { return true }), nil
}

func (r *InMemoryRepo) ListByCompletion(_ context.Context, complete bool) ([]Task, error) {
	return r.collect(func(t Task) bool { return t.Complete == complete }), nil
}

func (r *InMemoryRepo) collect(keep func(Task) bool) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		if keep(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Task) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r *InMemoryRepo) Update(_ context.Context, id int64, content string) (Task, error) {
	if !ValidContent(content) {
		return Task{}, ErrContentRequired
	}
	if err := checkLen("update", content); err != nil {
		return Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.Content = content
	r.store[id] = t
	return t, nil
}

func (r *InMemoryRepo) Toggle(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.Complete = !t.Complete
	r.store[id] = t
	return t, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}
