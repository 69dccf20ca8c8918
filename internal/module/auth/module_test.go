package auth

import (
	"testing"

	"github.com/gin-gonic/gin"
)

func TestModule_Descriptor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m := NewModule(&Handler{})
	m.RegisterRoutes(r.Group("/api/v1"), r.Group("/"))

	if m.Name() != "auth" {
		t.Errorf("Name = %q", m.Name())
	}
	if len(m.Models()) != 0 {
		t.Errorf("Models = %v, want none", m.Models())
	}

	got := map[string]bool{}
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{"POST /api/v1/auth/register", "POST /api/v1/auth/login"} {
		if !got[want] {
			t.Errorf("missing route %s", want)
		}
	}
}

func TestNewModule_PanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewModule(nil)
}
