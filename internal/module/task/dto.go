package task

import (
	"time"

	"github.com/tasklane/tasklane/internal/domain"
)

// TaskRequest is the body of create and full-update requests. It binds from
// JSON on the API and from form fields on the htmx pages.
type TaskRequest struct {
	Title       string     `json:"title" form:"title" binding:"required"`
	Description string     `json:"description" form:"description"`
	Status      string     `json:"status" form:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    string     `json:"priority" form:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date" form:"due_date" time_format:"2006-01-02" time_utc:"1"`
}

func (r TaskRequest) input() domain.TaskInput {
	in := domain.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.TaskStatus(r.Status),
		Priority:    domain.TaskPriority(r.Priority),
	}
	// An empty date field binds as the zero time.
	if r.DueDate != nil && !r.DueDate.IsZero() {
		in.DueDate = r.DueDate
	}
	return in
}

// StatusRequest is the body of PATCH /tasks/:id/status.
type StatusRequest struct {
	Status string `json:"status" form:"status" binding:"required,oneof=todo in_progress done"`
}

// CompleteRequest is the body of POST /tasks/complete.
type CompleteRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1,max=100,dive,gt=0"`
}

// CompleteResponse reports how many tasks a bulk completion changed.
type CompleteResponse struct {
	Completed int64 `json:"completed"`
}
