package task

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/domain"
	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/pkg"
)

const listURL = "/tasks"

// ListPage renders GET /tasks.
func (h *Handler) ListPage(c *gin.Context) {
	ctx := c.Request.Context()
	owner := middleware.AccountID(c)
	req := pkg.ParsePageRequest(c)

	result, err := h.svc.ListTasks(ctx, owner, req)
	if err != nil {
		slog.ErrorContext(ctx, "list tasks page", slog.Any("error", err))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}
	stats, err := h.svc.Stats(ctx, owner)
	if err != nil {
		slog.ErrorContext(ctx, "task stats page", slog.Any("error", err))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "task/list.html", gin.H{
		"Tasks":        result.Items,
		"Pagination":   result,
		"Stats":        stats,
		"BaseURL":      listURL,
		"StatusFilter": req.Filter["status"],
		"Statuses":     domain.TaskStatuses,
		"CSRFToken":    middleware.GetCSRFToken(c),
	})
}

// NewPage renders GET /tasks/new.
func (h *Handler) NewPage(c *gin.Context) {
	h.renderForm(c, &domain.Task{Status: domain.StatusTodo, Priority: domain.PriorityMedium}, false, "")
}

// EditPage renders GET /tasks/:id/edit.
func (h *Handler) EditPage(c *gin.Context) {
	task, ok := h.loadForPage(c)
	if !ok {
		return
	}
	h.renderForm(c, task, true, "")
}

// CreatePage handles the htmx form POST /tasks.
func (h *Handler) CreatePage(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "create task: bind error", slog.Any("error", err))
		h.renderForm(c, formTask(req), false, "Please check the highlighted fields.")
		return
	}

	if _, err := h.svc.CreateTask(c.Request.Context(), middleware.AccountID(c), req.input()); err != nil {
		h.renderForm(c, formTask(req), false, pageErrorMessage(err, "Could not create the task, please try again."))
		return
	}

	setToast(c, "Task created", "success")
	c.Header("HX-Redirect", listURL)
	c.Status(http.StatusOK)
}

// UpdatePage handles the htmx form PUT /tasks/:id.
func (h *Handler) UpdatePage(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	var req TaskRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "update task: bind error", slog.Any("error", err), slog.Uint64("task_id", uint64(id)))
		task := formTask(req)
		task.ID = id
		h.renderForm(c, task, true, "Please check the highlighted fields.")
		return
	}

	if _, err := h.svc.UpdateTask(c.Request.Context(), middleware.AccountID(c), id, req.input()); err != nil {
		if domain.IsNotFound(err) {
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return
		}
		task := formTask(req)
		task.ID = id
		h.renderForm(c, task, true, pageErrorMessage(err, "Could not update the task, please try again."))
		return
	}

	setToast(c, "Task updated", "success")
	c.Header("HX-Redirect", listURL)
	c.Status(http.StatusOK)
}

// StatusPage handles PATCH /tasks/:id/status from the list and swaps the
// re-rendered row in place.
func (h *Handler) StatusPage(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		toastOnly(c, "Invalid task id", "error")
		return
	}
	var req StatusRequest
	if err := c.ShouldBind(&req); err != nil {
		toastOnly(c, "Unknown status", "error")
		return
	}

	task, err := h.svc.SetStatus(c.Request.Context(), middleware.AccountID(c), id, domain.TaskStatus(req.Status))
	if err != nil {
		toastOnly(c, pageErrorMessage(err, "Could not change the status, please try again."), "error")
		return
	}

	setToast(c, "Status updated", "success")
	c.HTML(http.StatusOK, "task/row.html", gin.H{
		"Task":      task,
		"Statuses":  domain.TaskStatuses,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// DeletePage handles DELETE /tasks/:id from the list. The row is removed by
// htmx swapping in the empty response.
func (h *Handler) DeletePage(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		toastOnly(c, "Invalid task id", "error")
		return
	}

	if err := h.svc.DeleteTask(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		if domain.IsNotFound(err) {
			toastOnly(c, "Task not found or already deleted", "error")
			return
		}
		toastOnly(c, "Could not delete the task, please try again.", "error")
		return
	}

	setToast(c, "Task deleted", "success")
	c.Status(http.StatusOK)
}

func (h *Handler) loadForPage(c *gin.Context) (*domain.Task, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return nil, false
	}
	task, err := h.svc.GetTask(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		if domain.IsNotFound(err) {
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return nil, false
		}
		slog.ErrorContext(c.Request.Context(), "load task page", slog.Any("error", err))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return nil, false
	}
	return task, true
}

func (h *Handler) renderForm(c *gin.Context, task *domain.Task, isEdit bool, errMsg string) {
	c.HTML(http.StatusOK, "task/form.html", gin.H{
		"Task":       task,
		"IsEdit":     isEdit,
		"Error":      errMsg,
		"Statuses":   domain.TaskStatuses,
		"Priorities": domain.TaskPriorities,
		"CSRFToken":  middleware.GetCSRFToken(c),
	})
}

// formTask echoes submitted values back into the form.
func formTask(req TaskRequest) *domain.Task {
	in := req.input()
	return &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
}

// setToast asks the page to show a toast via the HX-Trigger header.
func setToast(c *gin.Context, message, kind string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{"message": message, "type": kind},
	})
	c.Header("HX-Trigger", string(trigger))
}

// toastOnly reports a failure without swapping any content.
func toastOnly(c *gin.Context, message, kind string) {
	c.Header("HX-Reswap", "none")
	setToast(c, message, kind)
	c.Status(http.StatusOK)
}

// pageErrorMessage returns the AppError message for client-caused failures
// and fallback for everything else.
func pageErrorMessage(err error, fallback string) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		switch appErr.Code {
		case domain.CodeNotFound, domain.CodeAlreadyExists, domain.CodeValidation:
			return appErr.Message
		}
	}
	return fallback
}
