package service

import (
	"context"
	"fmt"

	"reelcv-backend/internal/domain"
)

// UserService provides profile directory operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, domain.NotFound("user not found")
	}
	return u, nil
}

// Search lists active users matching the query across username, display
// name, and headline.
func (s *UserService) Search(ctx context.Context, query string, offset, limit int) ([]*domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, query, offset, limit)
}

type ProfileUpdateInput struct {
	DisplayName *string
	AvatarURL   *string
	Headline    *string
}

// UpdateProfile applies the caller's own profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, in ProfileUpdateInput) (*domain.User, error) {
	u, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, domain.NotFound("user not found")
	}
	if in.DisplayName != nil {
		if *in.DisplayName == "" {
			return nil, domain.InvalidArg("display name cannot be empty")
		}
		u.DisplayName = *in.DisplayName
	}
	if in.AvatarURL != nil {
		u.AvatarURL = *in.AvatarURL
	}
	if in.Headline != nil {
		u.Headline = *in.Headline
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
