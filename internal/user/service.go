package user

import (
	"context"
	"errors"

	"stocksave/internal/auth"
	"stocksave/internal/logger"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AccountProvisioner creates the savings account that backs every new
// customer. Satisfied by the ledger service.
type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, userID int) error
}

// ProvisionerFunc adapts a plain function to AccountProvisioner.
type ProvisionerFunc func(ctx context.Context, userID int) error

func (f ProvisionerFunc) EnsureAccount(ctx context.Context, userID int) error {
	return f(ctx, userID)
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*User, string, string, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo        Repository
	provisioner AccountProvisioner
	jwtSecret   string
}

func NewService(repo Repository, provisioner AccountProvisioner, jwtSecret string) Service {
	return &service{
		repo:        repo,
		provisioner: provisioner,
		jwtSecret:   jwtSecret,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	user, err := s.repo.Create(ctx, req.Name, req.Email, req.Phone, passwordHash, auth.RoleCustomer)
	if err != nil {
		return nil, "", "", err
	}

	// Every customer gets a zero-balance savings account at signup. A
	// provisioning failure is recoverable: the ledger re-creates the
	// account lazily on first use.
	if err := s.provisioner.EnsureAccount(ctx, user.ID); err != nil {
		logger.Errorf("Failed to provision account for user %d: %v", user.ID, err)
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		user.ID,
		user.Email,
		user.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, string, string, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		user.ID,
		user.Email,
		user.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *User, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, ErrUserNotFound
	}

	newAccessToken, err := auth.GenerateAccessToken(user.ID, user.Email, user.Role, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return newAccessToken, user, nil
}
