package tasks

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/tasks-web-GO/internal/flash"
	"github.com/s1natex/tasks-web-GO/internal/web"
)

type listPage struct {
	Tasks   []Task
	Flashes []flash.Message
	Filter  Filter
}

type editPage struct {
	Task    Task
	Flashes []flash.Message
}

type handlers struct {
	svc     *Service
	views   *web.Renderer
	flashes *flash.Codec
	logger  *slog.Logger
}

func RegisterRoutes(r chi.Router, svc *Service, views *web.Renderer, flashes *flash.Codec, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, views: views, flashes: flashes, logger: logger}

	r.Get("/", h.listTasks)
	r.Post("/", h.createTask)
	r.Post("/delete/{id:[0-9]+}", h.deleteTask)
	r.Get("/update/{id:[0-9]+}", h.editTask)
	r.Post("/update/{id:[0-9]+}", h.updateTask)
	r.Post("/toggle/{id:[0-9]+}", h.toggleTask)
	r.Get("/filter/{status}", h.filterTasks)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, string(FilterAll))
}

func (h *handlers) filterTasks(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, chi.URLParam(r, "status"))
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.svc.AddTask(r.Context(), r.PostFormValue("content")))
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.svc.DeleteTask(r.Context(), id))
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.svc.UpdateTask(r.Context(), id, r.PostFormValue("content")))
}

func (h *handlers) toggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.svc.ToggleTask(r.Context(), id))
}

func (h *handlers) editTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, out := h.svc.GetTask(r.Context(), id)
	if out.Failed() {
		h.finish(w, r, out)
		return
	}
	h.render(w, web.PageUpdate, editPage{Task: t, Flashes: h.flashes.Pop(w, r)})
}

func (h *handlers) renderList(w http.ResponseWriter, r *http.Request, status string) {
	page := listPage{Filter: ParseFilter(status)}
	list, err := h.svc.FilterTasks(r.Context(), status)
	page.Flashes = h.flashes.Pop(w, r)
	if err != nil {
		page.Flashes = append(page.Flashes, flash.Message{Category: string(CategoryError), Text: ErrorMessage(err)})
	}
	page.Tasks = list
	h.render(w, web.PageIndex, page)
}

// finish stores the outcome's message for the next page and redirects.
func (h *handlers) finish(w http.ResponseWriter, r *http.Request, out Outcome) {
	if out.Message != "" {
		h.flashes.Add(w, r, flash.Message{Category: string(out.Category), Text: out.Message})
	}
	http.Redirect(w, r, out.Redirect, http.StatusFound)
}

func (h *handlers) render(w http.ResponseWriter, page string, data any) {
	if err := h.views.Render(w, http.StatusOK, page, data); err != nil {
		h.logger.Error("render_error", slog.String("page", page), slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// taskID reads the {id} path segment. The route pattern guarantees digits;
// values that overflow int64 are treated as unknown routes.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}
