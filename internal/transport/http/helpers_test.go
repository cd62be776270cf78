package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/functions"
	"github.com/vovakirdan/relaychat/internal/metrics"
	"github.com/vovakirdan/relaychat/internal/objectstore"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/provider"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
	"github.com/vovakirdan/relaychat/internal/upload"
)

const testFunctionsKey = "test-fn-key"

const testWelcome = "Welcome to the chat! Try sending a message or asking the AI assistant a question."

type echoModel struct{ err error }

func (m echoModel) Generate(_ context.Context, message string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "echo: " + message, nil
}

type testEnv struct {
	ts      *httptest.Server
	hub     *core.Hub
	storage *persist.LocalStorage
	metrics *metrics.Metrics
}

// startTestServer wires the full stack on in-memory backends. The /gemini and
// /claude routes loop back through the function endpoints of the same server.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	var handler stdhttp.Handler = stdhttp.NotFoundHandler()
	ts := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Chat.TypingIdle = 100 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.New(nil)

	kv, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	storage := persist.New(kv, testWelcome, &logger)

	bucket, err := objectstore.NewBucket(afero.NewMemMapFs(), "/storage", "chat-files", ts.URL)
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	m := metrics.New()
	fnBase := ts.URL + "/functions/v1"
	router := provider.NewRouter(
		provider.Route{Command: provider.CommandGemini, Provider: "Gemini",
			Completer: provider.NewFunctionAdapter(fnBase, functions.NameGemini, testFunctionsKey, ts.Client())},
		provider.Route{Command: provider.CommandAI, Provider: "AI",
			Completer: provider.CompleterFunc(func(context.Context, string) (string, error) { return "4", nil })},
		provider.Route{Command: provider.CommandClaude, Provider: "Claude",
			Completer: provider.NewFunctionAdapter(fnBase, functions.NameClaude, testFunctionsKey, ts.Client())},
	)

	hub := core.NewHub(core.SessionDeps{
		Persister:  storage,
		Uploader:   upload.New(bucket),
		Router:     router,
		Metrics:    m,
		Logger:     &logger,
		TypingIdle: cfg.Chat.TypingIdle,
	})
	t.Cleanup(hub.Close)

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	fn := functions.NewHandler(&logger, testFunctionsKey, map[string]functions.Model{
		functions.NameGemini: echoModel{},
		functions.NameClaude: echoModel{err: errors.New("claude is down")},
	})

	handler = NewHandler(Deps{
		Hub:         hub,
		Auth:        authService,
		Preferences: storage,
		Bucket:      bucket,
		Functions:   fn,
		Metrics:     m,
	}, cfg, &logger)

	return &testEnv{ts: ts, hub: hub, storage: storage, metrics: m}
}

// newSession creates a session and returns its token and id.
func (e *testEnv) newSession(t *testing.T, userID string) (string, string) {
	t.Helper()

	var resp SessionResponse
	status := e.do(t, stdhttp.MethodPost, "/api/sessions", "", map[string]string{"userId": userID}, &resp)
	if status != stdhttp.StatusCreated {
		t.Fatalf("create session: unexpected status %d", status)
	}
	if resp.Token == "" || resp.SessionID == "" {
		t.Fatalf("create session: empty response %+v", resp)
	}
	return resp.Token, resp.SessionID
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req, out)
}

func (e *testEnv) send(t *testing.T, req *stdhttp.Request, out any) int {
	t.Helper()

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}
