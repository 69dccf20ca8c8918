package domain

import (
	"context"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every valid status in workflow order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// TaskPriority ranks tasks for display and sorting.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// TaskPriorities lists every valid priority from lowest to highest.
var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work owned by an account.
//
// CompletedAt is non-nil exactly when Status is StatusDone.
type Task struct {
	BaseModel
	Title       string       `gorm:"size:200;not null" json:"title"`
	Description string       `gorm:"size:2000" json:"description"`
	Status      TaskStatus   `gorm:"size:20;not null;default:todo;index" json:"status"`
	Priority    TaskPriority `gorm:"size:10;not null;default:medium" json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
	CompletedAt *time.Time   `json:"completed_at"`
	OwnerID     uint         `gorm:"not null;default:0;index" json:"owner_id"`
}

// SetStatus moves the task to status and keeps CompletedAt consistent.
// Re-applying StatusDone keeps the original completion time.
func (t *Task) SetStatus(status TaskStatus, now time.Time) {
	t.Status = status
	if status == StatusDone {
		if t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
		return
	}
	t.CompletedAt = nil
}

// Overdue reports whether the task has a due date before now and is not done.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusDone && t.DueDate.Before(now)
}

// TaskInput carries the caller-editable fields of a task. Empty Status and
// Priority select the defaults.
type TaskInput struct {
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
}

// TaskStats summarises an owner's tasks.
type TaskStats struct {
	Total      int64                `json:"total"`
	ByStatus   map[TaskStatus]int64 `json:"by_status"`
	Overdue    int64                `json:"overdue"`
	Completion float64              `json:"completion"`
}

// TaskRepository defines the data access interface for tasks. Every lookup
// is scoped to an owner; rows owned by someone else behave as missing.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, ownerID, id uint) (*Task, error)
	List(ctx context.Context, ownerID uint, req PageRequest) (*PageResult[Task], error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, ownerID, id uint) error
	CompleteMany(ctx context.Context, ownerID uint, ids []uint, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, ownerID uint) (map[TaskStatus]int64, error)
	CountOverdue(ctx context.Context, ownerID uint, now time.Time) (int64, error)
}

// TaskService defines the business logic interface for tasks.
type TaskService interface {
	CreateTask(ctx context.Context, ownerID uint, in TaskInput) (*Task, error)
	GetTask(ctx context.Context, ownerID, id uint) (*Task, error)
	ListTasks(ctx context.Context, ownerID uint, req PageRequest) (*PageResult[Task], error)
	UpdateTask(ctx context.Context, ownerID, id uint, in TaskInput) (*Task, error)
	SetStatus(ctx context.Context, ownerID, id uint, status TaskStatus) (*Task, error)
	DeleteTask(ctx context.Context, ownerID, id uint) error
	CompleteTasks(ctx context.Context, ownerID uint, ids []uint) (int64, error)
	Stats(ctx context.Context, ownerID uint) (*TaskStats, error)
}
