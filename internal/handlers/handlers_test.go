package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"aichat-backend/internal/handlers"
	"aichat-backend/internal/middleware"
	"aichat-backend/internal/models"
	"aichat-backend/internal/repository"
	"aichat-backend/internal/router"
	"aichat-backend/internal/services"
)

// ─── Test doubles ───

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	s.users[user.Email] = user
	return nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type testEnv struct {
	handler http.Handler
}

func newTestEnv(t *testing.T, gen services.Generator) *testEnv {
	t.Helper()

	users := newMemUserStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	users.Create(context.Background(), &models.User{Email: "a@x.com", PasswordHash: string(hash)})

	jwtAuth := middleware.NewJWTAuth("test-secret")
	authService := services.NewAuthService(users, nil, jwtAuth)
	chatService := services.NewChatService(repository.NewMemoryChatRepo(), gen)

	h := router.New(
		jwtAuth,
		handlers.NewAuthHandler(authService),
		handlers.NewChatHandler(chatService),
		"http://localhost:3000",
	)
	return &testEnv{handler: h}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "a@x.com", Password: "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.LoginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("Expected non-empty token")
	}
	return resp.Token
}

// ─── End-to-end flow ───

func TestLoginChatListFlow(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "hello"})
	token := env.login(t)

	// Send a prompt.
	rr := env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "hi"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Chat: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var chatResp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&chatResp); err != nil {
		t.Fatalf("Failed to decode chat response: %v", err)
	}
	if chatResp.Response != "hello" {
		t.Errorf("Expected response 'hello', got %q", chatResp.Response)
	}
	if chatResp.ConversationID == uuid.Nil {
		t.Error("Expected a new conversation id")
	}

	// The conversation shows up in the list with the prompt as preview.
	rr = env.do(t, http.MethodGet, "/api/chat/list", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("List: expected 200, got %d", rr.Code)
	}

	var listResp models.ChatListResponse
	if err := json.NewDecoder(rr.Body).Decode(&listResp); err != nil {
		t.Fatalf("Failed to decode list response: %v", err)
	}
	if len(listResp.Chats) != 1 {
		t.Fatalf("Expected 1 chat, got %d", len(listResp.Chats))
	}
	if listResp.Chats[0].ID != chatResp.ConversationID {
		t.Error("Expected the new conversation in the list")
	}
	if listResp.Chats[0].Preview != "hi" {
		t.Errorf("Expected preview 'hi', got %q", listResp.Chats[0].Preview)
	}
	if listResp.Chats[0].Timestamp != "just now" {
		t.Errorf("Expected timestamp label 'just now', got %q", listResp.Chats[0].Timestamp)
	}

	// Fetch the full conversation.
	rr = env.do(t, http.MethodGet, "/api/chat/"+chatResp.ConversationID.String(), token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", rr.Code)
	}

	var conv models.Conversation
	if err := json.NewDecoder(rr.Body).Decode(&conv); err != nil {
		t.Fatalf("Failed to decode conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Sender != models.SenderUser || conv.Messages[1].Sender != models.SenderAssistant {
		t.Error("Expected user message followed by assistant message")
	}

	// Delete is idempotent.
	rr = env.do(t, http.MethodDelete, "/api/chat/"+chatResp.ConversationID.String(), token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Delete: expected 204, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodDelete, "/api/chat/"+chatResp.ConversationID.String(), token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Repeated delete: expected 204, got %d", rr.Code)
	}
}

func TestChatContinuation(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "ok"})
	token := env.login(t)

	rr := env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "one"})
	var first models.ChatResponse
	json.NewDecoder(rr.Body).Decode(&first)

	rr = env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "two", ConversationID: &first.ConversationID})
	if rr.Code != http.StatusOK {
		t.Fatalf("Continuation: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var second models.ChatResponse
	json.NewDecoder(rr.Body).Decode(&second)
	if second.ConversationID != first.ConversationID {
		t.Error("Expected continuation to reuse the conversation id")
	}
}

// ─── Auth error mapping ───

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "nobody@x.com", Password: "secret"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", rr.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "a@x.com", Password: "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad password, got %d", rr.Code)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	tests := []struct {
		name     string
		body     models.RegisterRequest
		expected int
	}{
		{"valid", models.RegisterRequest{Email: "new@x.com", Password: "Passw0rd"}, http.StatusCreated},
		{"duplicate email", models.RegisterRequest{Email: "a@x.com", Password: "Passw0rd"}, http.StatusConflict},
		{"bad email", models.RegisterRequest{Email: "not-an-email", Password: "Passw0rd"}, http.StatusBadRequest},
		{"weak password", models.RegisterRequest{Email: "weak@x.com", Password: "short"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/auth/register", "", tc.body)
			if rr.Code != tc.expected {
				t.Errorf("Expected %d, got %d: %s", tc.expected, rr.Code, rr.Body.String())
			}
		})
	}
}

// ─── Bearer token matrix ───

func TestChatRequiresAuth(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "hello"})
	token := env.login(t)

	tests := []struct {
		name     string
		path     string
		method   string
		token    string
		expected int
	}{
		{"chat without header", "/api/chat", http.MethodPost, "", http.StatusUnauthorized},
		{"list without header", "/api/chat/list", http.MethodGet, "", http.StatusUnauthorized},
		{"chat tampered token", "/api/chat", http.MethodPost, token + "x", http.StatusForbidden},
		{"list tampered token", "/api/chat/list", http.MethodGet, token + "x", http.StatusForbidden},
		{"chat garbage token", "/api/chat", http.MethodPost, "garbage", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body interface{}
			if tc.method == http.MethodPost {
				body = models.ChatRequest{Prompt: "hi"}
			}
			rr := env.do(t, tc.method, tc.path, tc.token, body)
			if rr.Code != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, rr.Code)
			}
		})
	}
}

func TestChatEmptyPrompt(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "hello"})
	token := env.login(t)

	rr := env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty prompt, got %d", rr.Code)
	}
}

// ─── Failure stages stay distinguishable ───

func TestChatInferenceFailure(t *testing.T) {
	gen := &stubGenerator{err: &services.InferenceError{Reason: services.InferenceUnreachable, Message: "backend down"}}
	env := newTestEnv(t, gen)
	token := env.login(t)

	rr := env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "hi"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 for inference failure, got %d", rr.Code)
	}

	var envelope models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode error envelope: %v", err)
	}
	if envelope.Error.Code != "INFERENCE_ERROR" {
		t.Errorf("Expected code INFERENCE_ERROR, got %q", envelope.Error.Code)
	}

	// The user message survived the failed generation.
	rr = env.do(t, http.MethodGet, "/api/chat/list", token, nil)
	var listResp models.ChatListResponse
	json.NewDecoder(rr.Body).Decode(&listResp)
	if len(listResp.Chats) != 1 {
		t.Fatalf("Expected the conversation to exist after inference failure, got %d chats", len(listResp.Chats))
	}
	if listResp.Chats[0].Preview != "hi" {
		t.Errorf("Expected preview 'hi', got %q", listResp.Chats[0].Preview)
	}
}

func TestForeignConversationAccess(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{reply: "hello"})
	token := env.login(t)

	rr := env.do(t, http.MethodPost, "/api/chat", token, models.ChatRequest{Prompt: "mine"})
	var chatResp models.ChatResponse
	json.NewDecoder(rr.Body).Decode(&chatResp)

	// Register a second user and try to read the first user's conversation.
	env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Email: "b@x.com", Password: "Passw0rd"})
	rr = env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "b@x.com", Password: "Passw0rd"})
	var other models.LoginResponse
	json.NewDecoder(rr.Body).Decode(&other)

	rr = env.do(t, http.MethodGet, "/api/chat/"+chatResp.ConversationID.String(), other.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for foreign conversation, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/chat", other.Token, models.ChatRequest{Prompt: "hi", ConversationID: &chatResp.ConversationID})
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 continuing a foreign conversation, got %d", rr.Code)
	}
}
