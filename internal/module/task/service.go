package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tasklane/tasklane/internal/domain"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxBulkIDs        = 100
)

// service implements domain.TaskService.
type service struct {
	repo domain.TaskRepository
	now  func() time.Time
}

// NewService returns a TaskService that persists through repo.
func NewService(repo domain.TaskRepository) domain.TaskService {
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateTask(ctx context.Context, ownerID uint, in domain.TaskInput) (*domain.Task, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		OwnerID:     ownerID,
	}
	task.SetStatus(in.Status, s.now())

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "task created", slog.Uint64("task_id", uint64(task.ID)))
	return task, nil
}

func (s *service) GetTask(ctx context.Context, ownerID, id uint) (*domain.Task, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

func (s *service) ListTasks(ctx context.Context, ownerID uint, req domain.PageRequest) (*domain.PageResult[domain.Task], error) {
	return s.repo.List(ctx, ownerID, req)
}

// UpdateTask replaces every editable field of the task.
func (s *service) UpdateTask(ctx context.Context, ownerID, id uint, in domain.TaskInput) (*domain.Task, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	task.Title = in.Title
	task.Description = in.Description
	task.Priority = in.Priority
	task.DueDate = in.DueDate
	task.SetStatus(in.Status, s.now())

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) SetStatus(ctx context.Context, ownerID, id uint, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}

	task, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}

	task.SetStatus(status, s.now())
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) DeleteTask(ctx context.Context, ownerID, id uint) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "task deleted", slog.Uint64("task_id", uint64(id)))
	return nil
}

// CompleteTasks marks every listed task done, or none of them.
func (s *service) CompleteTasks(ctx context.Context, ownerID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, domain.Validation("ids must not be empty")
	}
	if len(ids) > maxBulkIDs {
		return 0, domain.Validation(fmt.Sprintf("at most %d ids per request", maxBulkIDs))
	}
	for _, id := range ids {
		if id == 0 {
			return 0, domain.Validation("ids must be positive")
		}
	}

	n, err := s.repo.CompleteMany(ctx, ownerID, ids, s.now())
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "tasks completed", slog.Int("requested", len(ids)), slog.Int64("completed", n))
	return n, nil
}

func (s *service) Stats(ctx context.Context, ownerID uint) (*domain.TaskStats, error) {
	byStatus, err := s.repo.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.CountOverdue(ctx, ownerID, s.now())
	if err != nil {
		return nil, err
	}

	stats := &domain.TaskStats{ByStatus: byStatus, Overdue: overdue}
	for _, n := range byStatus {
		stats.Total += n
	}
	if stats.Total > 0 {
		stats.Completion = float64(byStatus[domain.StatusDone]) / float64(stats.Total)
	}
	return stats, nil
}

// normalizeInput trims text, applies defaults and validates in.
func normalizeInput(in domain.TaskInput) (domain.TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	switch n := utf8.RuneCountInString(in.Title); {
	case n == 0:
		return in, domain.Validation("title is required")
	case n > maxTitleLen:
		return in, domain.Validation(fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return in, domain.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}

	if in.Status == "" {
		in.Status = domain.StatusTodo
	}
	if !in.Status.Valid() {
		return in, invalidStatus(in.Status)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return in, domain.Validation(fmt.Sprintf("invalid priority %q", in.Priority))
	}

	if in.DueDate != nil {
		due := in.DueDate.UTC()
		in.DueDate = &due
	}
	return in, nil
}

func invalidStatus(s domain.TaskStatus) error {
	return domain.Validation(fmt.Sprintf("invalid status %q", s))
}
