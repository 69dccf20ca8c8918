package user

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tasklane/tasklane/internal/domain"
)

// repository implements domain.UserRepository using GORM.
type repository struct {
	db *gorm.DB
}

// NewRepository returns a UserRepository backed by db.
func NewRepository(db *gorm.DB) domain.UserRepository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return mapError(err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetByEmail matches the stored address exactly; callers lower-case it.
func (r *repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NewAppError(domain.CodeNotFound, "account not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err):
		return domain.NewAppError(domain.CodeAlreadyExists, "account already exists", err)
	default:
		return domain.NewAppError(domain.CodeInternal, "database error", err)
	}
}

// isDuplicateKeyError catches unique violations the pure-Go SQLite driver
// does not translate to gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
