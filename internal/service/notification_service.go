package service

import (
	"context"
	"fmt"

	"reelcv-backend/internal/domain"
)

// NotificationService reads and acknowledges a user's notification feed.
// Feed entries are produced exclusively by the outbox worker.
type NotificationService struct {
	notifications domain.NotificationRepository
}

func NewNotificationService(notifications domain.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) ListForUser(ctx context.Context, callerUID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	res, err := s.notifications.ListForUser(ctx, callerUID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return res, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, callerUID, id string) error {
	if id == "" {
		return domain.InvalidArg("notification id is required")
	}
	return s.notifications.MarkRead(ctx, callerUID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, callerUID string) error {
	return s.notifications.MarkAllRead(ctx, callerUID)
}
