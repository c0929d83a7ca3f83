package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sitewatch/internal/domain"
	"sitewatch/internal/repository"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	// bcrypt rejects longer passwords
	maxPasswordBytes = 72
)

// TokenIssuer signs a bearer token for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type userService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	hashCost int

	// compared against for unknown usernames so both login failures
	// cost one bcrypt comparison
	dummyHash []byte
}

// NewUserService wires the credential store. hashCost is the bcrypt work
// factor; production callers pass config.MinBcryptCost or higher.
func NewUserService(users repository.UserRepository, tokens TokenIssuer, hashCost int) UserService {
	switch {
	case hashCost < bcrypt.MinCost:
		hashCost = bcrypt.DefaultCost
	case hashCost > bcrypt.MaxCost:
		hashCost = bcrypt.MaxCost
	}
	// cannot fail: the input is 36 bytes and the cost is in range
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), hashCost)
	return &userService{
		users:     users,
		tokens:    tokens,
		hashCost:  hashCost,
		dummyHash: dummy,
	}
}

func (s *userService) Signup(ctx context.Context, username, password string) (*domain.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.Internal("Internal server error", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, domain.Internal("Password hashing failed", fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}

	// no lookup first: the unique index decides concurrent signups
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("Username already exists")
		}
		return nil, domain.Internal("Internal server error", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	if err := validateCredentials(username, password); err != nil {
		return "", err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return "", domain.Unauthorized(domain.ReasonInvalidCredentials, msgInvalidCredentials)
		}
		return "", domain.Internal("Internal server error", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", domain.Unauthorized(domain.ReasonInvalidCredentials, msgInvalidCredentials)
		}
		return "", domain.Internal("Authentication system error", fmt.Errorf("compare password: %w", err))
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", domain.Internal("Internal server error", err)
	}
	return token, nil
}

func validateCredentials(username, password string) error {
	var details []domain.FieldError
	if err := validate.Struct(credentials{Username: username, Password: password}); err != nil {
		details = FieldErrors(err)
		if details == nil {
			return domain.Internal("Internal server error", err)
		}
	}

	// the struct rule counts runes, bcrypt counts bytes
	if len(password) > maxPasswordBytes && !hasField(details, "password") {
		details = append(details, domain.FieldError{
			Field:   "password",
			Rule:    "max",
			Param:   strconv.Itoa(maxPasswordBytes),
			Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes),
		})
	}

	if len(details) > 0 {
		return domain.Validation("Invalid input data", details...)
	}
	return nil
}

func hasField(details []domain.FieldError, field string) bool {
	for _, d := range details {
		if d.Field == field {
			return true
		}
	}
	return false
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
