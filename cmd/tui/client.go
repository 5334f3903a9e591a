package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"aichat-backend/internal/models"
)

// apiClient talks to the chat backend. The bearer token lives here, in
// process memory, and is presented explicitly on every call.
type apiClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}
}

func (c *apiClient) Login(email, password string) error {
	body, _ := json.Marshal(models.LoginRequest{Email: email, Password: password})

	resp, err := c.httpClient.Post(c.baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	var out models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.token = out.Token
	return nil
}

func (c *apiClient) Send(prompt string, conversationID *uuid.UUID) (*models.ChatResponse, error) {
	body, _ := json.Marshal(models.ChatRequest{Prompt: prompt, ConversationID: conversationID})

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &out, nil
}

func (c *apiClient) List() ([]models.ConversationSummary, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/chat/list", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var out models.ChatListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode chat list: %w", err)
	}
	return out.Chats, nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s", envelope.Error.Message)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
