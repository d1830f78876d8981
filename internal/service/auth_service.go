package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/security"
)

// AuthService handles registration, login, and logout.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

type RegisterInput struct {
	Username    string
	Email       *string
	Password    string
	DisplayName string
	Role        string
}

type LoginInput struct {
	Username string
	Password string
}

type TokenResponse struct {
	AccessToken string
	TokenType   string
	User        *domain.User
}

// Register creates the user and issues the first access token directly;
// the password was just hashed, so there is nothing to re-verify.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*TokenResponse, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.InvalidArg("username and password are required")
	}
	switch in.Role {
	case "":
		in.Role = "candidate"
	case "candidate", "employer":
	default:
		return nil, domain.InvalidArg("role must be candidate or employer")
	}

	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, domain.AlreadyExists("username already registered")
	}

	if in.Email != nil && *in.Email != "" {
		if existing, err := s.users.GetByEmail(ctx, *in.Email); err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		} else if existing != nil {
			return nil, domain.AlreadyExists("email already registered")
		}
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}

	u := &domain.User{
		UID:            uuid.NewString(),
		Username:       in.Username,
		Email:          in.Email,
		DisplayName:    displayName,
		Role:           in.Role,
		HashedPassword: hashed,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.CreateForUser(u.UID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.InvalidArg("username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, domain.Unauthenticated("invalid username or password")
	}
	if err := s.hash.Verify(in.Password, u.HashedPassword); err != nil {
		return nil, domain.Unauthenticated("invalid username or password")
	}

	token, err := s.tokens.CreateForUser(u.UID)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	if err := s.users.UpdateLastSeen(ctx, u.UID); err != nil {
		return nil, fmt.Errorf("update last seen: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u,
	}, nil
}

// Logout records activity; token invalidation is client-side (tokens are
// short-lived JWTs).
func (s *AuthService) Logout(ctx context.Context, uid string) error {
	return s.users.UpdateLastSeen(ctx, uid)
}
