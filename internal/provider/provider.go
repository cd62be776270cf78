// Package provider routes slash commands to AI backends and holds the adapters
// that talk to them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnexpectedStatus is returned when a backend answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("provider: unexpected status")
	// ErrEmptyResponse is returned when a backend answers without any content.
	ErrEmptyResponse = errors.New("provider: empty response")
	// ErrFunctionFailed is returned when a serverless function reports an error payload.
	ErrFunctionFailed = errors.New("provider: function failed")
)

// maxResponseBytes bounds how much of a backend response body is read.
const maxResponseBytes = 1 << 20

// Completer turns a prompt into a single reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewHTTPClient returns the client adapters use when none is injected.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
