// Package task is the task-management module: one controller (Handler), one
// provider (domain.TaskService) and one persisted entity (domain.Task).
package task

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
)

// Module is the task module descriptor consumed by the application host.
type Module struct {
	handler *Handler
}

// NewModule returns the descriptor for h. It panics if h is nil.
func NewModule(h *Handler) *Module {
	if h == nil {
		panic("task.NewModule: handler must not be nil")
	}
	if h.svc == nil {
		panic("task.NewModule: handler has no service")
	}
	return &Module{handler: h}
}

// Wire builds the module's object graph on db: repository, then service,
// then controller.
func Wire(db *gorm.DB) *Module {
	return NewModule(NewHandler(NewService(NewRepository(db))))
}

// Name identifies the module in logs.
func (m *Module) Name() string { return "task" }

// Models lists the entities whose tables the module needs.
func (m *Module) Models() []any {
	return []any{&domain.Task{}}
}

// RegisterRoutes exposes the controller on the API and page groups.
func (m *Module) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	h := m.handler

	tasks := api.Group("/tasks")
	tasks.POST("", h.Create)
	tasks.GET("", h.List)
	tasks.GET("/stats", h.Stats)
	tasks.POST("/complete", h.Complete)
	tasks.GET("/:id", h.Get)
	tasks.PUT("/:id", h.Update)
	tasks.PATCH("/:id/status", h.SetStatus)
	tasks.DELETE("/:id", h.Delete)

	pages.GET("/tasks", h.ListPage)
	pages.GET("/tasks/new", h.NewPage)
	pages.GET("/tasks/:id/edit", h.EditPage)
	pages.POST("/tasks", h.CreatePage)
	pages.PUT("/tasks/:id", h.UpdatePage)
	pages.PATCH("/tasks/:id/status", h.StatusPage)
	pages.DELETE("/tasks/:id", h.DeletePage)
}
