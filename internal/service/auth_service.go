package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"finsd/internal/domain"
	"finsd/internal/mail"
	"finsd/internal/repository"
	"finsd/internal/verification"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserAlreadyExists is returned when the email or username is taken.
	ErrUserAlreadyExists = errors.New("email or username already exists")
)

// AuthService drives the registration, verification and login workflow.
type AuthService interface {
	// Register validates a fresh submission, issues a verification code
	// for its email and mails it. No account is created yet; the returned
	// pending registration must be held by the caller until verification.
	Register(ctx context.Context, username, email, password string) (*domain.PendingRegistration, error)
	// Verify checks the submitted code against the one issued for the
	// pending registration's email and creates the account on a match.
	Verify(ctx context.Context, pending domain.PendingRegistration, code string) (*domain.User, error)
	// Login authenticates an existing account by email and password.
	Login(ctx context.Context, email, password string) (*domain.User, error)
}

type authService struct {
	users  repository.UserRepository
	codes  *verification.Registry
	sender mail.Sender
}

func NewAuthService(users repository.UserRepository, codes *verification.Registry, sender mail.Sender) AuthService {
	return &authService{
		users:  users,
		codes:  codes,
		sender: sender,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*domain.PendingRegistration, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if email == "" {
		return nil, errors.New("email is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	taken, err := s.users.Exists(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if taken {
		return nil, ErrUserAlreadyExists
	}

	code := s.codes.Issue(email)
	if err := s.sender.SendVerificationCode(ctx, email, code); err != nil {
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	return &domain.PendingRegistration{
		Username: username,
		Email:    email,
		Password: password,
	}, nil
}

func (s *authService) Verify(ctx context.Context, pending domain.PendingRegistration, code string) (*domain.User, error) {
	if err := s.codes.Verify(pending.Email, strings.TrimSpace(code)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pending.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     pending.Username,
		Email:        pending.Email,
		PasswordHash: string(hash),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		// lost a race against a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
