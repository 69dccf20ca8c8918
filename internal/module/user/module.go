// Package user stores accounts and exposes the current one.
package user

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
)

// Module owns the users table.
type Module struct {
	handler *Handler
}

// NewModule returns the descriptor for h. It panics if h is nil.
func NewModule(h *Handler) *Module {
	if h == nil {
		panic("user.NewModule: handler must not be nil")
	}
	return &Module{handler: h}
}

// Wire builds the module on db.
func Wire(db *gorm.DB) *Module {
	return NewModule(NewHandler(NewService(NewRepository(db))))
}

func (m *Module) Name() string { return "user" }

func (m *Module) Models() []any { return []any{&domain.User{}} }

func (m *Module) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	api.GET("/users/me", m.handler.Me)
}
