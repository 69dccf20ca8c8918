package user

import (
	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/middleware"
	"github.com/tasklane/tasklane/internal/pkg"
)

// Handler serves account endpoints.
type Handler struct {
	svc Service
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Me handles GET /api/v1/users/me.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, u)
}
