package user

import (
	"context"

	"github.com/tasklane/tasklane/internal/domain"
)

// Service reads the authenticated account.
type Service interface {
	Me(ctx context.Context, accountID uint) (*domain.User, error)
}

type service struct {
	repo domain.UserRepository
}

// NewService returns a Service reading from repo.
func NewService(repo domain.UserRepository) Service {
	return &service{repo: repo}
}

// Me returns the account behind accountID. A zero id means the request was
// not authenticated.
func (s *service) Me(ctx context.Context, accountID uint) (*domain.User, error) {
	if accountID == 0 {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "not signed in", nil)
	}
	u, err := s.repo.GetByID(ctx, accountID)
	if domain.IsNotFound(err) {
		// The token outlived its account.
		return nil, domain.NewAppError(domain.CodeUnauthorized, "account no longer exists", err)
	}
	return u, err
}
