package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"aichat-backend/internal/models"
	"aichat-backend/internal/repository"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func TestSendPersistsUserThenAssistant(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "hello"})
	ctx := context.Background()
	userID := uuid.New()

	resp, err := svc.Send(ctx, userID, "hi", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Response != "hello" {
		t.Errorf("Expected response 'hello', got %q", resp.Response)
	}

	conv, err := store.GetConversation(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv.UserID != userID {
		t.Errorf("Expected conversation owned by %s, got %s", userID, conv.UserID)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Sender != models.SenderUser || conv.Messages[0].Content != "hi" {
		t.Errorf("Expected first message user/'hi', got %s/%q", conv.Messages[0].Sender, conv.Messages[0].Content)
	}
	if conv.Messages[1].Sender != models.SenderAssistant || conv.Messages[1].Content != "hello" {
		t.Errorf("Expected second message assistant/'hello', got %s/%q", conv.Messages[1].Sender, conv.Messages[1].Content)
	}
	if conv.Messages[1].CreatedAt.Before(conv.Messages[0].CreatedAt) {
		t.Error("Assistant message timestamp precedes the user message")
	}
}

func TestSendEachCallStartsFreshConversation(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "ok"})
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Send(ctx, userID, "one", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	second, err := svc.Send(ctx, userID, "two", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if first.ConversationID == second.ConversationID {
		t.Error("Expected two Send calls without an id to create distinct conversations")
	}
}

func TestSendContinuesExistingConversation(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "ok"})
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Send(ctx, userID, "one", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	second, err := svc.Send(ctx, userID, "two", &first.ConversationID)
	if err != nil {
		t.Fatalf("Continuation Send failed: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Error("Expected continuation to reuse the conversation")
	}

	conv, _ := store.GetConversation(ctx, first.ConversationID)
	if len(conv.Messages) != 4 {
		t.Fatalf("Expected 4 messages after two exchanges, got %d", len(conv.Messages))
	}
}

func TestSendUnknownConversation(t *testing.T) {
	svc := NewChatService(repository.NewMemoryChatRepo(), &stubGenerator{reply: "ok"})
	missing := uuid.New()

	_, err := svc.Send(context.Background(), uuid.New(), "hi", &missing)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestSendForeignConversationForbidden(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "ok"})
	ctx := context.Background()

	owner := uuid.New()
	conv, _ := store.CreateConversation(ctx, owner)

	_, err := svc.Send(ctx, uuid.New(), "hi", &conv.ID)

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Errorf("Expected ForbiddenError, got %v", err)
	}
}

func TestSendInferenceFailureKeepsUserMessage(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	gen := &stubGenerator{err: &InferenceError{Reason: InferenceUnreachable, Message: "backend down"}}
	svc := NewChatService(store, gen)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Send(ctx, userID, "hi", nil)

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected InferenceError, got %v", err)
	}
	if infErr.Reason != InferenceUnreachable {
		t.Errorf("Expected reason %q, got %q", InferenceUnreachable, infErr.Reason)
	}

	// The user message is durable; no assistant message was written.
	summaries, err := store.ListConversations(ctx, userID)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(summaries))
	}

	conv, _ := store.GetConversation(ctx, summaries[0].ID)
	if len(conv.Messages) != 1 {
		t.Fatalf("Expected only the user message, got %d messages", len(conv.Messages))
	}
	if conv.Messages[0].Sender != models.SenderUser {
		t.Errorf("Expected surviving message sender user, got %s", conv.Messages[0].Sender)
	}
}

func TestListAddsRelativeLabels(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "ok"})
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.Send(ctx, userID, "hi", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	summaries, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Timestamp != "just now" {
		t.Errorf("Expected label 'just now', got %q", summaries[0].Timestamp)
	}
	if summaries[0].Preview != "hi" {
		t.Errorf("Expected preview 'hi', got %q", summaries[0].Preview)
	}
}

func TestListEmptyUser(t *testing.T) {
	svc := NewChatService(repository.NewMemoryChatRepo(), &stubGenerator{})

	summaries, err := svc.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("Expected empty list, got %d entries", len(summaries))
	}
}

func TestDeleteOwnershipAndIdempotency(t *testing.T) {
	store := repository.NewMemoryChatRepo()
	svc := NewChatService(store, &stubGenerator{reply: "ok"})
	ctx := context.Background()
	userID := uuid.New()

	resp, _ := svc.Send(ctx, userID, "hi", nil)

	var forbidden *ForbiddenError
	if err := svc.Delete(ctx, uuid.New(), resp.ConversationID); !errors.As(err, &forbidden) {
		t.Errorf("Expected ForbiddenError for foreign delete, got %v", err)
	}

	if err := svc.Delete(ctx, userID, resp.ConversationID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting an id that no longer exists is not an error.
	if err := svc.Delete(ctx, userID, resp.ConversationID); err != nil {
		t.Errorf("Repeated delete should be a no-op, got %v", err)
	}
}

func TestRelativeLabel(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		expected string
	}{
		{"fresh", 10 * time.Minute, "just now"},
		{"almost an hour", 59 * time.Minute, "just now"},
		{"hours", 5 * time.Hour, "5h ago"},
		{"last hour of day", 23 * time.Hour, "23h ago"},
		{"yesterday", 30 * time.Hour, "yesterday"},
		{"edge of yesterday", 47 * time.Hour, "yesterday"},
		{"days", 72 * time.Hour, "3d ago"},
		{"almost a week", 167 * time.Hour, "6d ago"},
		{"calendar date", 200 * time.Hour, "8/22/2026"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := relativeLabel(now, now.Add(-tc.age))
			if got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
