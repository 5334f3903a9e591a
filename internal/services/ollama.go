package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OllamaService is the gateway to the local inference backend. One
// synchronous call per request, no retries, no timeout beyond the transport
// default; the backend's own latency and failure behavior are out of scope.
type OllamaService struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaService(baseURL, model string) *OllamaService {
	return &OllamaService{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends the raw prompt to the backend and returns its full response
// text. Failures are typed: unreachable backend vs. a reply that cannot be
// parsed into a response string.
func (s *OllamaService) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &InferenceError{
			Reason:  InferenceUnreachable,
			Message: fmt.Sprintf("inference backend unreachable: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &InferenceError{
			Reason:  InferenceMalformed,
			Message: fmt.Sprintf("inference backend returned status %d", resp.StatusCode),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &InferenceError{
			Reason:  InferenceMalformed,
			Message: fmt.Sprintf("failed to decode inference response: %v", err),
		}
	}
	if out.Response == "" {
		return "", &InferenceError{
			Reason:  InferenceMalformed,
			Message: "inference response missing response text",
		}
	}

	return out.Response, nil
}
