package task

import (
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
)

func registeredRoutes(m *Module) gin.RoutesInfo {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m.RegisterRoutes(r.Group("/api/v1"), r.Group("/"))
	return r.Routes()
}

func TestModule_Name(t *testing.T) {
	if got := Wire(setupTestDB(t)).Name(); got != "task" {
		t.Errorf("Name() = %q; want task", got)
	}
}

// Every route is served by a method of the single controller type.
func TestModule_ExactlyOneController(t *testing.T) {
	routes := registeredRoutes(Wire(setupTestDB(t)))
	if len(routes) == 0 {
		t.Fatal("no routes registered")
	}

	controller := reflect.TypeOf(&Handler{}).String()
	const prefix = "github.com/tasklane/tasklane/internal/module/task.(*Handler)."
	for _, ri := range routes {
		if !strings.HasPrefix(ri.Handler, prefix) {
			t.Errorf("%s %s served by %s; want a %s method", ri.Method, ri.Path, ri.Handler, controller)
		}
	}
}

func TestModule_ExactlyOneProvider(t *testing.T) {
	m := Wire(setupTestDB(t))

	providers := 0
	v := reflect.ValueOf(m.handler).Elem()
	svcType := reflect.TypeOf((*domain.TaskService)(nil)).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).Type() == svcType {
			providers++
		}
	}
	if providers != 1 {
		t.Fatalf("controller depends on %d providers; want 1", providers)
	}
	if _, ok := m.handler.svc.(*service); !ok {
		t.Errorf("provider is %T; want *service", m.handler.svc)
	}
}

func TestModule_ModelsBindOnlyTask(t *testing.T) {
	models := Wire(setupTestDB(t)).Models()
	if len(models) != 1 {
		t.Fatalf("Models() returned %d entities; want 1", len(models))
	}
	if _, ok := models[0].(*domain.Task); !ok {
		t.Errorf("Models()[0] is %T; want *domain.Task", models[0])
	}
}

func TestWire_ResolvesGraph(t *testing.T) {
	db := setupTestDB(t)
	m := Wire(db)

	svc, ok := m.handler.svc.(*service)
	if !ok {
		t.Fatalf("provider is %T", m.handler.svc)
	}
	repo, ok := svc.repo.(*repository)
	if !ok {
		t.Fatalf("repository is %T", svc.repo)
	}
	if repo.db != db {
		t.Error("repository is not bound to the host database")
	}

	// The repository is scoped to the Task table.
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(m.Models()[0]); err != nil {
		t.Fatalf("parse model: %v", err)
	}
	if stmt.Schema.Table != "tasks" {
		t.Errorf("table = %q; want tasks", stmt.Schema.Table)
	}
	if !db.Migrator().HasTable(&domain.Task{}) {
		t.Error("tasks table missing")
	}
}

func TestModule_Routes(t *testing.T) {
	routes := registeredRoutes(Wire(setupTestDB(t)))
	registered := make(map[string]bool, len(routes))
	for _, ri := range routes {
		registered[ri.Method+" "+ri.Path] = true
	}

	expected := []string{
		http.MethodPost + " /api/v1/tasks",
		http.MethodGet + " /api/v1/tasks",
		http.MethodGet + " /api/v1/tasks/stats",
		http.MethodPost + " /api/v1/tasks/complete",
		http.MethodGet + " /api/v1/tasks/:id",
		http.MethodPut + " /api/v1/tasks/:id",
		http.MethodPatch + " /api/v1/tasks/:id/status",
		http.MethodDelete + " /api/v1/tasks/:id",
		http.MethodGet + " /tasks",
		http.MethodGet + " /tasks/new",
		http.MethodGet + " /tasks/:id/edit",
		http.MethodPost + " /tasks",
		http.MethodPut + " /tasks/:id",
		http.MethodPatch + " /tasks/:id/status",
		http.MethodDelete + " /tasks/:id",
	}
	for _, route := range expected {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
	if len(routes) != len(expected) {
		t.Errorf("registered %d routes; want %d", len(routes), len(expected))
	}
}

func TestNewModule_Panics(t *testing.T) {
	tests := []struct {
		name string
		h    *Handler
	}{
		{"nil handler", nil},
		{"handler without service", &Handler{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("NewModule() expected panic")
				}
			}()
			NewModule(tt.h)
		})
	}
}
