package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/tasklane/tasklane/internal/domain"
)

// Service registers accounts and exchanges credentials for tokens.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
}

type tokenIssuer interface {
	Issue(accountID uint) (string, time.Time, error)
}

type authService struct {
	users   domain.UserRepository
	tokens  tokenIssuer
	cost    int
	compare func(hash, password []byte) error

	// dummyHash is compared against on unknown emails so both login
	// failures cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

// NewService returns a Service that stores accounts in users and signs
// tokens with tokens.
func NewService(users domain.UserRepository, tokens tokenIssuer) Service {
	return &authService{
		users:   users,
		tokens:  tokens,
		cost:    bcrypt.DefaultCost,
		compare: bcrypt.CompareHashAndPassword,
	}
}

func (s *authService) unknownAccountHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("tasklane-unknown-account"), s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to hash password", err)
	}

	user := &domain.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if domain.IsAlreadyExists(err) {
			return nil, domain.NewAppError(domain.CodeAlreadyExists, "email is already registered", err)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "account registered", slog.Uint64("account_id", uint64(user.ID)))
	return user, nil
}

// Login never reveals whether the email exists: unknown accounts and wrong
// passwords both yield ErrUnauthorized.
func (s *authService) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domain.IsNotFound(err) {
			_ = s.compare(s.unknownAccountHash(), []byte(password))
			return nil, domain.NewAppError(domain.CodeUnauthorized, "invalid email or password", nil)
		}
		return nil, err
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "invalid email or password", nil)
	}

	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to issue token", err)
	}
	return &TokenResponse{Token: token, ExpiresAt: expires.UTC()}, nil
}

func validateRegistration(name, email, password string) error {
	switch n := utf8.RuneCountInString(name); {
	case n < 2:
		return domain.Validation("name must be at least 2 characters")
	case n > 100:
		return domain.Validation("name must be at most 100 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || !strings.EqualFold(addr.Address, email) {
		return domain.Validation("email must be a valid email address")
	}
	// bcrypt ignores bytes beyond 72.
	if len(password) < 8 || len(password) > 72 {
		return domain.Validation("password must be 8 to 72 bytes")
	}
	return nil
}
