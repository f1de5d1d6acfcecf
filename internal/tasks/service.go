package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Status messages shown to the user after an operation.
const (
	MsgAdded    = "Task added successfully!"
	MsgDeleted  = "Task deleted successfully!"
	MsgUpdated  = "Task updated successfully!"
	MsgToggled  = "Task status updated!"
	MsgEmpty    = "Task content cannot be empty!"
	MsgNotFound = "Task not found!"
)

type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
)

// Outcome tells the HTTP layer what to say and where to send the user next.
type Outcome struct {
	Category Category
	Message  string
	Redirect string
}

func (o Outcome) Failed() bool { return o.Category == CategoryError }

type Filter string

const (
	FilterAll        Filter = "all"
	FilterComplete   Filter = "complete"
	FilterIncomplete Filter = "incomplete"
)

// ParseFilter maps a status tag to a filter. Unknown tags mean "show all".
func ParseFilter(tag string) Filter {
	switch tag {
	case string(FilterComplete):
		return FilterComplete
	case string(FilterIncomplete):
		return FilterIncomplete
	default:
		return FilterAll
	}
}

// Service holds no task state; every call goes to the repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("tasks"),
	}
}

func (s *Service) AddTask(ctx context.Context, content string) Outcome {
	ctx, span := s.tracer.Start(ctx, "tasks.AddTask")
	defer span.End()

	if !ValidContent(content) {
		return s.outcome(ctx, span, "add", ErrContentRequired, "", "/")
	}
	t, err := s.repo.Create(ctx, content)
	if err == nil {
		span.SetAttributes(attribute.Int64("task.id", t.ID))
	}
	return s.outcome(ctx, span, "add", err, MsgAdded, "/")
}

func (s *Service) DeleteTask(ctx context.Context, id int64) Outcome {
	ctx, span := s.tracer.Start(ctx, "tasks.DeleteTask", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	err := s.repo.Delete(ctx, id)
	return s.outcome(ctx, span, "delete", err, MsgDeleted, "/")
}

// UpdateTask looks the task up before checking content, so a missing id
// wins over empty content. Empty content sends the user back to the form.
func (s *Service) UpdateTask(ctx context.Context, id int64, content string) Outcome {
	ctx, span := s.tracer.Start(ctx, "tasks.UpdateTask", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	if _, err := s.repo.Get(ctx, id); err != nil {
		return s.outcome(ctx, span, "update", err, "", "")
	}
	if !ValidContent(content) {
		return s.outcome(ctx, span, "update", ErrContentRequired, "", EditPath(id))
	}
	_, err := s.repo.Update(ctx, id, content)
	return s.outcome(ctx, span, "update", err, MsgUpdated, EditPath(id))
}

func (s *Service) ToggleTask(ctx context.Context, id int64) Outcome {
	ctx, span := s.tracer.Start(ctx, "tasks.ToggleTask", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	t, err := s.repo.Toggle(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Bool("task.complete", t.Complete))
	}
	return s.outcome(ctx, span, "toggle", err, MsgToggled, "/")
}

// GetTask fetches a task for the edit form. A failed Outcome means the
// caller should redirect instead of rendering.
func (s *Service) GetTask(ctx context.Context, id int64) (Task, Outcome) {
	ctx, span := s.tracer.Start(ctx, "tasks.GetTask", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, s.outcome(ctx, span, "get", err, "", "")
	}
	s.record(ctx, span, "get", nil)
	return t, Outcome{}
}

func (s *Service) ListTasks(ctx context.Context) ([]Task, error) {
	return s.FilterTasks(ctx, string(FilterAll))
}

// FilterTasks never rejects a tag; only a store read failure is returned.
func (s *Service) FilterTasks(ctx context.Context, status string) ([]Task, error) {
	f := ParseFilter(status)
	ctx, span := s.tracer.Start(ctx, "tasks.FilterTasks", trace.WithAttributes(attribute.String("task.filter", string(f))))
	defer span.End()

	var (
		list []Task
		err  error
	)
	switch f {
	case FilterComplete:
		list, err = s.repo.ListByCompletion(ctx, true)
	case FilterIncomplete:
		list, err = s.repo.ListByCompletion(ctx, false)
	default:
		list, err = s.repo.List(ctx)
	}
	s.record(ctx, span, "filter", err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("task.count", len(list)))
	return list, nil
}

// ErrorMessage is the user-facing text for a store failure.
func ErrorMessage(err error) string {
	return "Error: " + err.Error()
}

// EditPath is the URL of a task's edit form.
func EditPath(id int64) string {
	return "/update/" + strconv.FormatInt(id, 10)
}

// outcome maps err to a status message. emptyRedirect is where a content
// validation failure goes; every other outcome goes back to the list.
func (s *Service) outcome(ctx context.Context, span trace.Span, op string, err error, okMsg, emptyRedirect string) Outcome {
	s.record(ctx, span, op, err)

	switch {
	case err == nil:
		return Outcome{Category: CategorySuccess, Message: okMsg, Redirect: "/"}
	case errors.Is(err, ErrContentRequired):
		if emptyRedirect == "" {
			emptyRedirect = "/"
		}
		return Outcome{Category: CategoryError, Message: MsgEmpty, Redirect: emptyRedirect}
	case errors.Is(err, ErrNotFound):
		return Outcome{Category: CategoryError, Message: MsgNotFound, Redirect: "/"}
	default:
		return Outcome{Category: CategoryError, Message: ErrorMessage(err), Redirect: "/"}
	}
}

func (s *Service) record(ctx context.Context, span trace.Span, op string, err error) {
	result := resultLabel(err)
	operationsTotal.WithLabelValues(op, result).Inc()

	switch result {
	case "success":
		span.SetStatus(codes.Ok, "")
	case "error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs := []any{slog.String("op", op), slog.String("error", err.Error())}
		var pe *PersistenceError
		if errors.As(err, &pe) {
			attrs = append(attrs, slog.String("store_op", pe.Op))
		}
		s.logger.ErrorContext(ctx, "task_operation_failed", attrs...)
	default:
		s.logger.DebugContext(ctx, "task_operation_rejected",
			slog.String("op", op),
			slog.String("result", result),
		)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrContentRequired):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
