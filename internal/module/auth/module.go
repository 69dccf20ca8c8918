// Package auth issues bearer tokens for registered accounts.
package auth

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/module/user"
)

// Module exposes /auth/register and /auth/login.
type Module struct {
	handler *Handler
}

// NewModule returns the descriptor for h. It panics if h is nil.
func NewModule(h *Handler) *Module {
	if h == nil {
		panic("auth.NewModule: handler must not be nil")
	}
	return &Module{handler: h}
}

// Wire builds the module on db, signing tokens with issuer.
func Wire(db *gorm.DB, issuer *TokenIssuer) *Module {
	return NewModule(NewHandler(NewService(user.NewRepository(db), issuer)))
}

func (m *Module) Name() string { return "auth" }

// Models is empty: accounts are owned by the user module.
func (m *Module) Models() []any { return nil }

func (m *Module) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) {
	g := api.Group("/auth")
	g.POST("/register", m.handler.Register)
	g.POST("/login", m.handler.Login)
}
