package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aichat-backend/internal/models"
	"aichat-backend/internal/repository"
)

// ChatStore is the conversation persistence contract the pipeline runs
// against. Appends to the same conversation are serialized by the store;
// appends to different conversations do not block each other.
type ChatStore interface {
	CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, sender models.Sender, content string) (*models.Message, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID uuid.UUID) error
}

// Generator produces a complete response for a prompt in one synchronous
// call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatService struct {
	store ChatStore
	llm   Generator
}

func NewChatService(store ChatStore, llm Generator) *ChatService {
	return &ChatService{store: store, llm: llm}
}

// Send runs one exchange: create or continue a conversation, persist the
// user's prompt, call the inference backend, persist its reply.
//
// The user message is committed before the backend is invoked, so a backend
// failure never loses the caller's input: the conversation is left with the
// user message and no assistant message, which is a valid terminal state.
func (s *ChatService) Send(ctx context.Context, userID uuid.UUID, prompt string, conversationID *uuid.UUID) (*models.ChatResponse, error) {
	var conv *models.Conversation
	var err error

	if conversationID == nil {
		conv, err = s.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, &StoreError{Message: "Failed to create conversation", Err: err}
		}
	} else {
		conv, err = s.store.GetConversation(ctx, *conversationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &NotFoundError{Message: "Conversation not found"}
			}
			return nil, &StoreError{Message: "Failed to load conversation", Err: err}
		}
		if conv.UserID != userID {
			return nil, &ForbiddenError{Message: "Access denied"}
		}
	}

	if _, err := s.store.AppendMessage(ctx, conv.ID, models.SenderUser, prompt); err != nil {
		return nil, &StoreError{Message: "Failed to persist message", Err: err}
	}

	// The user message is durable from here on. The generate call and the
	// assistant append run detached from the client's context so a
	// disconnect mid-generation cannot leave the store in a broken state;
	// the call either completes and is recorded, or is abandoned whole.
	genCtx := context.WithoutCancel(ctx)

	reply, err := s.llm.Generate(genCtx, prompt)
	if err != nil {
		var infErr *InferenceError
		if errors.As(err, &infErr) {
			return nil, infErr
		}
		return nil, fmt.Errorf("generate failed: %w", err)
	}

	if _, err := s.store.AppendMessage(genCtx, conv.ID, models.SenderAssistant, reply); err != nil {
		return nil, &StoreError{Message: "Failed to persist response", Err: err}
	}

	return &models.ChatResponse{Response: reply, ConversationID: conv.ID}, nil
}

// List returns the user's conversations newest-first, each with its earliest
// message as preview and a relative timestamp label. A user with no
// conversations gets an empty list, never an error.
func (s *ChatService) List(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	summaries, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, &StoreError{Message: "Failed to list conversations", Err: err}
	}

	now := time.Now()
	for i := range summaries {
		summaries[i].Timestamp = relativeLabel(now, summaries[i].CreatedAt)
	}
	return summaries, nil
}

// Get returns a conversation with its ordered messages, owner only.
func (s *ChatService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Conversation not found"}
		}
		return nil, &StoreError{Message: "Failed to load conversation", Err: err}
	}
	if conv.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return conv, nil
}

// Delete removes a conversation and its messages. Deleting an id that does
// not exist is not an error.
func (s *ChatService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return &StoreError{Message: "Failed to load conversation", Err: err}
	}
	if conv.UserID != userID {
		return &ForbiddenError{Message: "Access denied"}
	}

	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return &StoreError{Message: "Failed to delete conversation", Err: err}
	}
	return nil
}

// relativeLabel is pure and total: every age maps to a label.
func relativeLabel(now, created time.Time) string {
	hours := int(now.Sub(created).Hours())
	switch {
	case hours < 1:
		return "just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case hours < 48:
		return "yesterday"
	case hours < 168:
		return fmt.Sprintf("%dd ago", hours/24)
	default:
		return created.Format("1/2/2006")
	}
}
