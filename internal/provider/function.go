package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Function names of the server-side proxies.
const (
	FunctionGemini = "chat-with-gemini"
	FunctionClaude = "chat-with-claude"
)

// FunctionRequest is the body accepted by a chat function.
type FunctionRequest struct {
	Message string `json:"message"`
}

// FunctionResponse is returned by a chat function: Response on success, Error otherwise.
type FunctionResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionAdapter invokes a serverless function that holds the provider secret.
type FunctionAdapter struct {
	baseURL string
	name    string
	key     string
	client  *http.Client
}

// NewFunctionAdapter targets baseURL/name. key, when set, is sent as a bearer token.
func NewFunctionAdapter(baseURL, name, key string, client *http.Client) *FunctionAdapter {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &FunctionAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		name:    name,
		key:     key,
		client:  client,
	}
}

// Complete posts {message} and returns the function's response text.
func (a *FunctionAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(FunctionRequest{Message: strings.TrimSpace(prompt)})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := a.baseURL + "/" + a.name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
		req.Header.Set("apikey", a.key)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", a.name, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	var decoded FunctionResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if !isSuccess(resp.StatusCode) {
		if decodeErr == nil && decoded.Error != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrFunctionFailed, a.name, decoded.Error)
		}
		return "", fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, a.name, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("parse response: %w", decodeErr)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrFunctionFailed, a.name, decoded.Error)
	}
	if decoded.Response == "" {
		return "", ErrEmptyResponse
	}
	return decoded.Response, nil
}
