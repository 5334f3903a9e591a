package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aichat-backend/internal/models"
)

// MemoryChatRepo is an in-memory conversation store honoring the same
// contract as ChatRepo: appends serialized per conversation, non-decreasing
// message timestamps, idempotent deletes. It backs tests that exercise the
// store contract without Postgres.
type MemoryChatRepo struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*memConversation
}

type memConversation struct {
	mu        sync.Mutex // serializes appends to this conversation only
	userID    uuid.UUID
	createdAt time.Time
	messages  []*models.Message
}

func NewMemoryChatRepo() *MemoryChatRepo {
	return &MemoryChatRepo{
		conversations: make(map[uuid.UUID]*memConversation),
	}
}

func (r *MemoryChatRepo) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	c := &memConversation{
		userID:    userID,
		createdAt: time.Now(),
	}
	id := uuid.New()

	r.mu.Lock()
	r.conversations[id] = c
	r.mu.Unlock()

	return &models.Conversation{ID: id, UserID: userID, CreatedAt: c.createdAt}, nil
}

func (r *MemoryChatRepo) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender models.Sender, content string) (*models.Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("invalid sender %q", sender)
	}

	r.mu.RLock()
	c, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if n := len(c.messages); n > 0 && c.messages[n-1].CreatedAt.After(now) {
		now = c.messages[n-1].CreatedAt
	}

	m := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      now,
	}
	c.messages = append(c.messages, m)

	copied := *m
	return &copied, nil
}

func (r *MemoryChatRepo) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]models.ConversationSummary, 0)
	for id, c := range r.conversations {
		if c.userID != userID {
			continue
		}
		s := models.ConversationSummary{ID: id, CreatedAt: c.createdAt}
		c.mu.Lock()
		if len(c.messages) > 0 {
			s.Preview = c.messages[0].Content
		}
		c.mu.Unlock()
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (r *MemoryChatRepo) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	r.mu.RLock()
	c, ok := r.conversations[conversationID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := &models.Conversation{
		ID:        conversationID,
		UserID:    c.userID,
		CreatedAt: c.createdAt,
		Messages:  make([]*models.Message, 0, len(c.messages)),
	}
	for _, m := range c.messages {
		copied := *m
		out.Messages = append(out.Messages, &copied)
	}
	return out, nil
}

func (r *MemoryChatRepo) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	r.mu.Lock()
	delete(r.conversations, conversationID)
	r.mu.Unlock()
	return nil
}
