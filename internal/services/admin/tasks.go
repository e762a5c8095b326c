package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
	"github.com/louisbranch/storefront/internal/services/scheduler"
	"github.com/louisbranch/storefront/internal/services/scheduler/storage"
)

// TasksHandler serves schedule task management routes.
type TasksHandler struct {
	service  *scheduler.Service
	executor *scheduler.Executor
	registry *scheduler.Registry
	authz    Authorizer
}

// NewTasksHandler creates the schedule task route handler.
func NewTasksHandler(service *scheduler.Service, executor *scheduler.Executor, registry *scheduler.Registry, authz Authorizer) *TasksHandler {
	return &TasksHandler{service: service, executor: executor, registry: registry, authz: authz}
}

// taskReadPermissions admits anyone who can run or manage tasks.
var taskReadPermissions = []string{access.PermissionRunTasks, access.PermissionManageTasks}

// Routes builds the task route surface.
func (h *TasksHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(routepath.Tasks, h.handleTasks)
	mux.HandleFunc(routepath.TasksHandlers, h.handleHandlers)
	mux.HandleFunc(routepath.TasksPrefix, h.handleTaskPath)
	return mux
}

type taskRequest struct {
	Name            string `json:"name"`
	HandlerName     string `json:"handler_name"`
	IntervalSeconds int64  `json:"interval_seconds"`
	Enabled         bool   `json:"enabled"`
	StopOnError     bool   `json:"stop_on_error"`
}

type taskView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	HandlerName     string     `json:"handler_name"`
	IntervalSeconds int64      `json:"interval_seconds"`
	Enabled         bool       `json:"enabled"`
	StopOnError     bool       `json:"stop_on_error"`
	LastStartedAt   *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt  *time.Time `json:"last_finished_at,omitempty"`
	LastSucceededAt *time.Time `json:"last_succeeded_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	FailureCount    int        `json:"failure_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toTaskView(task storage.Task) taskView {
	return taskView{
		ID:              task.ID,
		Name:            task.Name,
		HandlerName:     task.HandlerName,
		IntervalSeconds: int64(task.Interval / time.Second),
		Enabled:         task.Enabled,
		StopOnError:     task.StopOnError,
		LastStartedAt:   timeOrNil(task.LastStartedAt),
		LastFinishedAt:  timeOrNil(task.LastFinishedAt),
		LastSucceededAt: timeOrNil(task.LastSucceededAt),
		LastError:       task.LastError,
		FailureCount:    task.FailureCount,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
}

func (r taskRequest) toInput() scheduler.TaskInput {
	return scheduler.TaskInput{
		Name:        r.Name,
		HandlerName: r.HandlerName,
		Interval:    time.Duration(r.IntervalSeconds) * time.Second,
		Enabled:     r.Enabled,
		StopOnError: r.StopOnError,
	}
}

// timeOrNil maps the zero time, meaning never, to a JSON null.
func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (h *TasksHandler) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requireAnyPermission(h.authz, taskReadPermissions, h.listTasks)(w, r)
	case http.MethodPost:
		requirePermission(h.authz, access.PermissionManageTasks, h.createTask)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *TasksHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context(), boolQuery(r, "enabled"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, toTaskView(task))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": views})
}

func (h *TasksHandler) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskView(task))
}

func (h *TasksHandler) handleHandlers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	requireAnyPermission(h.authz, taskReadPermissions, func(w http.ResponseWriter, r *http.Request) {
		names := []string{}
		if h.registry != nil {
			names = h.registry.Names()
		}
		writeJSON(w, http.StatusOK, map[string]any{"handlers": names})
	})(w, r)
}

func (h *TasksHandler) handleTaskPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.TasksPrefix)
	parts := splitPathParts(path)
	switch {
	case len(parts) == 1:
		h.handleTask(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "enable":
		h.setTaskEnabled(w, r, parts[0], true)
	case len(parts) == 2 && parts[1] == "disable":
		h.setTaskEnabled(w, r, parts[0], false)
	case len(parts) == 2 && parts[1] == "run":
		h.runTask(w, r, parts[0])
	default:
		notFound(w, r)
	}
}

func (h *TasksHandler) handleTask(w http.ResponseWriter, r *http.Request, taskID string) {
	switch r.Method {
	case http.MethodGet:
		requireAnyPermission(h.authz, taskReadPermissions, func(w http.ResponseWriter, r *http.Request) {
			task, err := h.service.Get(r.Context(), taskID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toTaskView(task))
		})(w, r)
	case http.MethodPut:
		requirePermission(h.authz, access.PermissionManageTasks, func(w http.ResponseWriter, r *http.Request) {
			var req taskRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, err)
				return
			}
			task, err := h.service.Update(r.Context(), taskID, req.toInput())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toTaskView(task))
		})(w, r)
	case http.MethodDelete:
		requirePermission(h.authz, access.PermissionManageTasks, func(w http.ResponseWriter, r *http.Request) {
			if err := h.service.Delete(r.Context(), taskID); err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusNoContent, nil)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *TasksHandler) setTaskEnabled(w http.ResponseWriter, r *http.Request, taskID string, enabled bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	requirePermission(h.authz, access.PermissionManageTasks, func(w http.ResponseWriter, r *http.Request) {
		var (
			task storage.Task
			err  error
		)
		if enabled {
			task, err = h.service.Enable(r.Context(), taskID)
		} else {
			task, err = h.service.Disable(r.Context(), taskID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTaskView(task))
	})(w, r)
}

func (h *TasksHandler) runTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	requirePermission(h.authz, access.PermissionRunTasks, func(w http.ResponseWriter, r *http.Request) {
		task, err := h.service.Get(r.Context(), taskID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ran, err := h.executor.RunNow(r.Context(), task.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTaskView(ran))
	})(w, r)
}
