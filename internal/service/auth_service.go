package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/repository"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by Register when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// AuthService は認証に関するビジネスロジックのインターフェース
type AuthService interface {
	// Register creates an account. The first account ever created becomes admin.
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

type authService struct {
	users repository.UserRepository
	cost  int
}

// NewAuthService creates an AuthService. cost <= 0 selects bcrypt.DefaultCost.
func NewAuthService(users repository.UserRepository, cost int) AuthService {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{users: users, cost: cost}
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	switch {
	case email == "":
		return nil, &ValidationError{Field: "email", Code: "email_required"}
	case !emailPattern.MatchString(email):
		return nil, &ValidationError{Field: "email", Code: "email_invalid"}
	case utf8.RuneCountInString(password) < minPasswordLength:
		return nil, &ValidationError{Field: "password", Code: "password_too_short"}
	case len(password) > 72:
		return nil, &ValidationError{Field: "password", Code: "password_too_long"}
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, &ValidationError{Field: "name", Code: "name_too_long"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "count users", Err: err}
	}
	role := model.RoleUser
	if n == 0 {
		role = model.RoleAdmin
	}

	u := &model.User{Email: email, Name: name, Role: role, PasswordHash: string(hash)}
	err = s.users.Create(ctx, u)
	if errors.Is(err, repository.ErrAdminExists) {
		// Lost the race for the first account; storage holds one admin only.
		u.Role = model.RoleUser
		err = s.users.Create(ctx, u)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, &PersistenceError{Op: "create user", Err: err}
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, &PersistenceError{Op: "find user", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	return u, nil
}
