package task

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tasklane/tasklane/internal/domain"
	"github.com/tasklane/tasklane/internal/pkg"
)

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// setupAPI wires the module on a fresh database and mounts its routes. The
// account id middleware stands in for bearer authentication.
func setupAPI(t *testing.T, accountID uint) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		if accountID != 0 {
			c.Set("account_id", accountID)
		}
	})
	Wire(setupTestDB(t)).RegisterRoutes(api, r.Group("/"))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return env
}

func createTask(t *testing.T, r http.Handler, body string) domain.Task {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/v1/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	return decode[domain.Task](t, w).Data
}

func TestHandler_Create(t *testing.T) {
	r := setupAPI(t, 3)
	task := createTask(t, r, `{"title":"Plan sprint","priority":"high","due_date":"2026-07-01T00:00:00Z"}`)

	if task.ID == 0 || task.Title != "Plan sprint" || task.Priority != domain.PriorityHigh {
		t.Errorf("unexpected task %+v", task)
	}
	if task.Status != domain.StatusTodo || task.OwnerID != 3 || task.DueDate == nil {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestHandler_Create_ValidationError(t *testing.T) {
	r := setupAPI(t, 0)
	w := doJSON(r, http.MethodPost, "/api/v1/tasks", `{"title":"","status":"blocked"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	var resp pkg.ValidationErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Errors["title"] != "required" {
		t.Errorf("errors[title] = %q; want required", resp.Errors["title"])
	}
	if !strings.HasPrefix(resp.Errors["status"], "oneof") {
		t.Errorf("errors[status] = %q; want oneof", resp.Errors["status"])
	}
}

func TestHandler_Create_WhitespaceTitleRejectedByService(t *testing.T) {
	r := setupAPI(t, 0)
	w := doJSON(r, http.MethodPost, "/api/v1/tasks", `{"title":"   "}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if msg := decode[any](t, w).Message; msg != "title is required" {
		t.Errorf("message = %q", msg)
	}
}

func TestHandler_Create_TitleLengthCountedAfterTrim(t *testing.T) {
	r := setupAPI(t, 0)
	title := strings.Repeat("a", 200)

	task := createTask(t, r, fmt.Sprintf(`{"title":"  %s  "}`, title))
	if task.Title != title {
		t.Errorf("Title has %d runes; want the trimmed 200", len(task.Title))
	}

	w := doJSON(r, http.MethodPost, "/api/v1/tasks", fmt.Sprintf(`{"title":"%sa"}`, title))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("201-rune title status = %d; want 400", w.Code)
	}
	if msg := decode[any](t, w).Message; msg != "title must be at most 200 characters" {
		t.Errorf("message = %q", msg)
	}
}

func TestHandler_Get(t *testing.T) {
	r := setupAPI(t, 0)
	task := createTask(t, r, `{"title":"Read"}`)

	tests := []struct {
		path   string
		status int
	}{
		{fmt.Sprintf("/api/v1/tasks/%d", task.ID), http.StatusOK},
		{"/api/v1/tasks/999", http.StatusNotFound},
		{"/api/v1/tasks/abc", http.StatusBadRequest},
		{"/api/v1/tasks/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := doJSON(r, http.MethodGet, tt.path, ""); w.Code != tt.status {
				t.Errorf("status = %d; want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandler_List(t *testing.T) {
	r := setupAPI(t, 0)
	for _, title := range []string{"one", "two", "three"} {
		createTask(t, r, fmt.Sprintf(`{"title":%q}`, title))
	}

	w := doJSON(r, http.MethodGet, "/api/v1/tasks?page_size=2&sort=title:asc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	page := decode[domain.PageResult[domain.Task]](t, w).Data
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Title != "one" || page.Items[1].Title != "three" {
		t.Errorf("order = %q, %q", page.Items[0].Title, page.Items[1].Title)
	}
}

func TestHandler_Update(t *testing.T) {
	r := setupAPI(t, 0)
	task := createTask(t, r, `{"title":"Draft","priority":"low"}`)

	w := doJSON(r, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d", task.ID), `{"title":"Final","status":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[domain.Task](t, w).Data
	if got.Title != "Final" || got.Priority != domain.PriorityMedium || got.CompletedAt == nil {
		t.Errorf("unexpected task %+v", got)
	}
}

func TestHandler_SetStatus(t *testing.T) {
	r := setupAPI(t, 0)
	task := createTask(t, r, `{"title":"Toggle"}`)
	path := fmt.Sprintf("/api/v1/tasks/%d/status", task.ID)

	w := doJSON(r, http.MethodPatch, path, `{"status":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[domain.Task](t, w).Data; got.Status != domain.StatusDone || got.CompletedAt == nil {
		t.Errorf("unexpected task %+v", got)
	}

	if w := doJSON(r, http.MethodPatch, path, `{"status":"later"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: code = %d; want 400", w.Code)
	}
}

func TestHandler_Delete(t *testing.T) {
	r := setupAPI(t, 0)
	task := createTask(t, r, `{"title":"Remove"}`)
	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	if w := doJSON(r, http.MethodDelete, path, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d; want 404", w.Code)
	}
}

func TestHandler_Complete(t *testing.T) {
	r := setupAPI(t, 0)
	a := createTask(t, r, `{"title":"a"}`)
	b := createTask(t, r, `{"title":"b"}`)

	w := doJSON(r, http.MethodPost, "/api/v1/tasks/complete", fmt.Sprintf(`{"ids":[%d,%d]}`, a.ID, b.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[CompleteResponse](t, w).Data; got.Completed != 2 {
		t.Errorf("completed = %d; want 2", got.Completed)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty ids", `{"ids":[]}`, http.StatusBadRequest},
		{"zero id", `{"ids":[0]}`, http.StatusBadRequest},
		{"unknown id rolls back", fmt.Sprintf(`{"ids":[%d,999]}`, a.ID), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(r, http.MethodPost, "/api/v1/tasks/complete", tt.body); w.Code != tt.status {
				t.Errorf("status = %d; want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandler_Stats(t *testing.T) {
	r := setupAPI(t, 0)
	createTask(t, r, `{"title":"todo"}`)
	createTask(t, r, `{"title":"done","status":"done"}`)
	createTask(t, r, `{"title":"late","due_date":"2000-01-01T00:00:00Z"}`)

	w := doJSON(r, http.MethodGet, "/api/v1/tasks/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	stats := decode[domain.TaskStats](t, w).Data
	if stats.Total != 3 || stats.ByStatus[domain.StatusDone] != 1 || stats.Overdue != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHandler_OwnerIsolation(t *testing.T) {
	db := setupTestDB(t)
	gin.SetMode(gin.TestMode)
	mod := Wire(db)

	routerFor := func(account uint) *gin.Engine {
		r := gin.New()
		api := r.Group("/api/v1", func(c *gin.Context) { c.Set("account_id", account) })
		mod.RegisterRoutes(api, r.Group("/"))
		return r
	}
	alice, bob := routerFor(1), routerFor(2)

	task := createTask(t, alice, `{"title":"alice only"}`)
	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	if w := doJSON(bob, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("bob GET status = %d; want 404", w.Code)
	}
	if w := doJSON(bob, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("bob DELETE status = %d; want 404", w.Code)
	}
	page := decode[domain.PageResult[domain.Task]](t, doJSON(bob, http.MethodGet, "/api/v1/tasks", "")).Data
	if page.Total != 0 {
		t.Errorf("bob sees %d tasks; want 0", page.Total)
	}
	if w := doJSON(alice, http.MethodGet, path, ""); w.Code != http.StatusOK {
		t.Errorf("alice GET status = %d; want 200", w.Code)
	}
}
