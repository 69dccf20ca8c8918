package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
	"github.com/tasklane/tasklane/internal/pkg"
)

var errTaskNotFound = domain.NewAppError(domain.CodeNotFound, "task not found", nil)

var (
	allowedSortFields   = []string{"id", "title", "status", "priority", "due_date", "created_at", "updated_at"}
	allowedFilterFields = []string{"title", "status", "priority"}

	// status and priority are stored as text; order them by rank.
	sortExpressions = map[string]string{
		"status":   rankExpr("status", domain.TaskStatuses),
		"priority": rankExpr("priority", domain.TaskPriorities),
	}
)

// rankExpr builds a CASE expression mapping each value to its index.
func rankExpr[T ~string](column string, ordered []T) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for i, v := range ordered {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", v, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(ordered))
	return b.String()
}

// repository implements domain.TaskRepository with GORM. Every query is
// scoped to the owner passed by the caller.
type repository struct {
	db *gorm.DB
}

// NewRepository returns a TaskRepository backed by db.
func NewRepository(db *gorm.DB) domain.TaskRepository {
	return &repository{db: db}
}

func (r *repository) owned(ctx context.Context, ownerID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Task{}).Where("owner_id = ?", ownerID)
}

func (r *repository) Create(ctx context.Context, task *domain.Task) error {
	return mapError(r.db.WithContext(ctx).Create(task).Error)
}

func (r *repository) GetByID(ctx context.Context, ownerID, id uint) (*domain.Task, error) {
	var task domain.Task
	if err := r.owned(ctx, ownerID).First(&task, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &task, nil
}

func (r *repository) List(ctx context.Context, ownerID uint, req domain.PageRequest) (*domain.PageResult[domain.Task], error) {
	base := r.owned(ctx, ownerID).Scopes(pkg.Filter(req, allowedFilterFields))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var tasks []domain.Task
	if err := base.Scopes(
		pkg.SortBy(req, allowedSortFields, sortExpressions),
		pkg.Paginate(req),
	).Find(&tasks).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(tasks, total, req), nil
}

// Update saves every column of task. The caller must have loaded task
// through GetByID so the owner check has already happened.
func (r *repository) Update(ctx context.Context, task *domain.Task) error {
	return mapError(r.db.WithContext(ctx).Save(task).Error)
}

func (r *repository) Delete(ctx context.Context, ownerID, id uint) error {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&domain.Task{}, id)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return errTaskNotFound
	}
	return nil
}

// CompleteMany marks ids done in one transaction. If any id is missing or
// owned by someone else nothing is changed. Tasks that are already done keep
// their original completion time and are not counted.
func (r *repository) CompleteMany(ctx context.Context, ownerID uint, ids []uint, now time.Time) (int64, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var completed int64
	err := pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var found int64
		if err := tx.Model(&domain.Task{}).
			Where("owner_id = ? AND id IN ?", ownerID, ids).
			Count(&found).Error; err != nil {
			return err
		}
		if found != int64(len(ids)) {
			return domain.NewAppError(domain.CodeNotFound, "one or more tasks not found", nil)
		}

		result := tx.Model(&domain.Task{}).
			Where("owner_id = ? AND id IN ? AND status <> ?", ownerID, ids, domain.StatusDone).
			Updates(map[string]any{"status": domain.StatusDone, "completed_at": now})
		if result.Error != nil {
			return result.Error
		}
		completed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, mapError(err)
	}
	return completed, nil
}

func (r *repository) CountByStatus(ctx context.Context, ownerID uint) (map[domain.TaskStatus]int64, error) {
	var rows []struct {
		Status domain.TaskStatus
		Count  int64
	}
	if err := r.owned(ctx, ownerID).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}

	counts := make(map[domain.TaskStatus]int64, len(domain.TaskStatuses))
	for _, s := range domain.TaskStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *repository) CountOverdue(ctx context.Context, ownerID uint, now time.Time) (int64, error) {
	var n int64
	err := r.owned(ctx, ownerID).
		Where("due_date IS NOT NULL AND due_date < ? AND status <> ?", now, domain.StatusDone).
		Count(&n).Error
	return n, mapError(err)
}

// mapError converts GORM errors to domain errors. AppErrors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewAppError(domain.CodeNotFound, "task not found", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "task already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// The pure-Go SQLite driver does not translate constraint errors.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
