package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/security"
)

// MessageService owns the append-only message log. Sending is gated at
// this write boundary: a message is only created when the governing
// connection is accepted, whatever the client claims.
type MessageService struct {
	threads     domain.ThreadRepository
	connections domain.ConnectionRepository
	messages    domain.MessageRepository
	users       domain.UserRepository
	encryptor   *security.Encryptor

	MaxChars  int
	ListLimit int
}

func NewMessageService(
	threads domain.ThreadRepository,
	connections domain.ConnectionRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	maxChars, listLimit int,
) *MessageService {
	return &MessageService{
		threads:     threads,
		connections: connections,
		messages:    messages,
		users:       users,
		encryptor:   encryptor,
		MaxChars:    maxChars,
		ListLimit:   listLimit,
	}
}

// Send appends a message to the thread. The message keeps its full text;
// only the denormalized thread preview is truncated.
func (s *MessageService) Send(ctx context.Context, callerUID, threadID, text string) (*domain.Message, error) {
	if callerUID == "" {
		return nil, domain.Unauthenticated("caller identity required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.InvalidArg("message text cannot be empty")
	}
	if len([]rune(text)) > s.MaxChars {
		return nil, domain.InvalidArg(fmt.Sprintf("message text exceeds %d characters", s.MaxChars))
	}

	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, domain.NotFound("thread not found")
	}
	if !t.HasMember(callerUID) {
		return nil, domain.PermissionDenied("not a member of this thread")
	}

	// Thread ids are pair ids, so the governing connection shares the key.
	conn, err := s.connections.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn == nil || conn.Status != domain.ConnectionAccepted {
		return nil, domain.PermissionDenied("direct messaging requires an accepted connection")
	}

	encContent, err := s.encryptor.Encrypt(text)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	encPreview, err := s.encryptor.Encrypt(truncateRunes(text, domain.PreviewMaxChars))
	if err != nil {
		return nil, fmt.Errorf("encrypt preview: %w", err)
	}

	m := &domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderUID: callerUID,
		Content:   encContent,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, m, encPreview); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// List returns the thread's messages in chronological order, members only.
func (s *MessageService) List(ctx context.Context, callerUID, threadID string, limit int) ([]*domain.Message, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, domain.NotFound("thread not found")
	}
	if !t.HasMember(callerUID) {
		return nil, domain.PermissionDenied("not a member of this thread")
	}

	if limit <= 0 || limit > s.ListLimit {
		limit = s.ListLimit
	}
	return s.messages.ListForThread(ctx, threadID, limit)
}

// MessageResponse is the decrypted message DTO.
type MessageResponse struct {
	ID             string    `json:"id"`
	ThreadID       string    `json:"thread_id"`
	SenderUID      string    `json:"sender_uid"`
	SenderUsername string    `json:"sender_username,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToResponse converts a domain message into a decrypted response DTO.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) *MessageResponse {
	text := m.Content
	if plain, err := s.encryptor.Decrypt(m.Content); err == nil {
		text = plain
	}
	var username string
	if u, err := s.users.GetByUID(ctx, m.SenderUID); err == nil && u != nil {
		username = u.Username
	}
	return &MessageResponse{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		SenderUID:      m.SenderUID,
		SenderUsername: username,
		Text:           text,
		CreatedAt:      m.CreatedAt,
	}
}

// ToResponses converts a slice of domain messages into response DTOs.
func (s *MessageService) ToResponses(ctx context.Context, msgs []*domain.Message) []*MessageResponse {
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, s.ToResponse(ctx, m))
	}
	return res
}

// truncateRunes cuts s to at most n characters (runes, not bytes).
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
