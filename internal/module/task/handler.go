package task

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/domain"
	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/pkg"
)

// Handler is the task controller. It serves the JSON API (this file) and
// the htmx pages (page_handler.go). The owner of every task it touches is
// the authenticated account, or 0 when authentication is disabled.
type Handler struct {
	svc domain.TaskService
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc domain.TaskService) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /api/v1/tasks.
func (h *Handler) Create(c *gin.Context) {
	var req TaskRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	task, err := h.svc.CreateTask(c.Request.Context(), middleware.AccountID(c), req.input())
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Created(c, task)
}

// Get handles GET /api/v1/tasks/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	task, err := h.svc.GetTask(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, task)
}

// List handles GET /api/v1/tasks.
func (h *Handler) List(c *gin.Context) {
	result, err := h.svc.ListTasks(c.Request.Context(), middleware.AccountID(c), pkg.ParsePageRequest(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.List(c, result)
}

// Update handles PUT /api/v1/tasks/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req TaskRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	task, err := h.svc.UpdateTask(c.Request.Context(), middleware.AccountID(c), id, req.input())
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, task)
}

// SetStatus handles PATCH /api/v1/tasks/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	task, err := h.svc.SetStatus(c.Request.Context(), middleware.AccountID(c), id, domain.TaskStatus(req.Status))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, task)
}

// Delete handles DELETE /api/v1/tasks/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, nil)
}

// Complete handles POST /api/v1/tasks/complete.
func (h *Handler) Complete(c *gin.Context) {
	var req CompleteRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	n, err := h.svc.CompleteTasks(c.Request.Context(), middleware.AccountID(c), req.IDs)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, CompleteResponse{Completed: n})
}

// Stats handles GET /api/v1/tasks/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, stats)
}

// idParam parses the :id path parameter, writing a 400 response when it is
// not a positive integer.
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		pkg.Error(c, domain.Validation(err.Error()))
		return 0, false
	}
	return id, true
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id: %q", raw)
	}
	return uint(id), nil
}
