package http

import (
	"bytes"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/proto"
)

type messagesResponse struct {
	Messages []proto.Message `json:"messages"`
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	env := startTestServer(t, nil)

	var errResp ErrorResponse
	if status := env.do(t, stdhttp.MethodGet, "/api/messages", "", nil, &errResp); status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if errResp.Code != core.ErrCodeUnauthorized {
		t.Fatalf("unexpected code %q", errResp.Code)
	}

	if status := env.do(t, stdhttp.MethodGet, "/api/messages", "garbage", nil, nil); status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestNewSessionStartsWithWelcome(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var resp messagesResponse
	if status := env.do(t, stdhttp.MethodGet, "/api/messages", token, nil, &resp); status != stdhttp.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Sender != "system" || resp.Messages[0].Text != testWelcome {
		t.Fatalf("unexpected messages: %+v", resp.Messages)
	}
}

func TestResumeSession(t *testing.T) {
	env := startTestServer(t, nil)
	token, sessionID := env.newSession(t, "")

	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "remember me"}, nil); status != stdhttp.StatusCreated {
		t.Fatalf("send: unexpected status %d", status)
	}

	var resumed SessionResponse
	body := map[string]string{"token": token}
	if status := env.do(t, stdhttp.MethodPost, "/api/sessions", "", body, &resumed); status != stdhttp.StatusCreated {
		t.Fatalf("resume: unexpected status %d", status)
	}
	if resumed.SessionID != sessionID {
		t.Fatalf("expected session %q, got %q", sessionID, resumed.SessionID)
	}

	var resp messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", resumed.Token, nil, &resp)
	if len(resp.Messages) != 2 || resp.Messages[1].Text != "remember me" {
		t.Fatalf("unexpected messages: %+v", resp.Messages)
	}

	if status := env.do(t, stdhttp.MethodPost, "/api/sessions", "", map[string]string{"token": "nope"}, nil); status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestSessionIDAloneCannotResume(t *testing.T) {
	env := startTestServer(t, nil)
	token, sessionID := env.newSession(t, "")

	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "private"}, nil); status != stdhttp.StatusCreated {
		t.Fatalf("send: unexpected status %d", status)
	}

	// an unknown field is ignored, so this starts an unrelated session
	var other SessionResponse
	body := map[string]string{"sessionId": sessionID}
	if status := env.do(t, stdhttp.MethodPost, "/api/sessions", "", body, &other); status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d", status)
	}
	if other.SessionID == sessionID {
		t.Fatal("knowing a session id must not grant access to it")
	}

	var resp messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", other.Token, nil, &resp)
	for _, m := range resp.Messages {
		if m.Text == "private" {
			t.Fatalf("foreign session leaked: %+v", resp.Messages)
		}
	}
}

func TestSendPlainText(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var resp SendMessageResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "hello"}, &resp); status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.Message.Sender != "user" || resp.Message.Text != "hello" || resp.Reply != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSendGeminiThroughFunction(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var resp SendMessageResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "/gemini hi"}, &resp); status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.Message.Text != "/gemini hi" {
		t.Fatalf("user message must keep full text: %+v", resp.Message)
	}
	if resp.Reply == nil || resp.Reply.Sender != "bot" || resp.Reply.Text != "echo: hi" {
		t.Fatalf("unexpected reply: %+v", resp.Reply)
	}
}

func TestSendProviderFailureReturnsNotice(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var resp SendMessageResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "/claude hi"}, &resp); status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.Reply != nil {
		t.Fatalf("no reply expected: %+v", resp.Reply)
	}
	if resp.Notice == nil || resp.Notice.Title != "Claude Assistant Error" {
		t.Fatalf("unexpected notice: %+v", resp.Notice)
	}

	var list messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", token, nil, &list)
	if len(list.Messages) != 2 {
		t.Fatalf("expected welcome and user message, got %d", len(list.Messages))
	}
}

func TestSendEmptyRejected(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var errResp ErrorResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "  "}, &errResp); status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if errResp.Code != core.ErrCodeEmptyMessage {
		t.Fatalf("unexpected code %q", errResp.Code)
	}
}

func multipartSend(t *testing.T, env *testEnv, token, text, filename, contentType string, content []byte) (int, []byte) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if text != "" {
		if err := w.WriteField("text", text); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := stdhttp.NewRequest(stdhttp.MethodPost, env.ts.URL+"/api/messages", &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp.StatusCode, data
}

func TestSendImageAttachmentIsServed(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	content := []byte("\x89PNG\r\n\x1a\nfake image bytes")
	status, body := multipartSend(t, env, token, "look", "cat.png", "image/png", content)
	if status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"imageUrl":"`+env.ts.URL+"/storage/v1/object/public/chat-files/") {
		t.Fatalf("expected image url in %s", body)
	}

	var list messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", token, nil, &list)
	url := list.Messages[len(list.Messages)-1].ImageURL
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("object name must keep the extension: %q", url)
	}

	resp, err := env.ts.Client().Get(url)
	if err != nil {
		t.Fatalf("fetch object: %v", err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != stdhttp.StatusOK || !bytes.Equal(got, content) {
		t.Fatalf("unexpected object response %d: %q", resp.StatusCode, got)
	}
}

func TestUploadedMarkupIsNeverServedAsHTML(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	markup := []byte("<html><script>alert(document.cookie)</script></html>")
	status, body := multipartSend(t, env, token, "", "evil.html", "image/png", markup)
	if status != stdhttp.StatusCreated {
		t.Fatalf("unexpected status %d: %s", status, body)
	}

	var list messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", token, nil, &list)
	url := list.Messages[len(list.Messages)-1].ImageURL
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("object name must follow the validated type: %q", url)
	}

	resp, err := env.ts.Client().Get(url)
	if err != nil {
		t.Fatalf("fetch object: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff header")
	}

	resp, err = env.ts.Client().Get(env.ts.URL + "/storage/v1/object/public/chat-files/page.html")
	if err != nil {
		t.Fatalf("fetch html: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 for unlisted extension, got %d", resp.StatusCode)
	}
}

func TestSendOversizedFileRejected(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	big := bytes.Repeat([]byte{'x'}, 6*1024*1024)
	status, body := multipartSend(t, env, token, "", "big.png", "image/png", big)
	if status != stdhttp.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "File too large") {
		t.Fatalf("expected size notice in %s", body)
	}

	var list messagesResponse
	env.do(t, stdhttp.MethodGet, "/api/messages", token, nil, &list)
	if len(list.Messages) != 1 {
		t.Fatalf("nothing may be appended, got %d messages", len(list.Messages))
	}
}

func TestSendInvalidFileTypeRejected(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	status, body := multipartSend(t, env, token, "", "run.sh", "application/x-sh", []byte("#!/bin/sh"))
	if status != stdhttp.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", status, body)
	}
}

func TestReactionUpsert(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "user-1")

	var sent SendMessageResponse
	env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "m1"}, &sent)

	path := "/api/messages/" + sent.Message.ID + "/reactions"
	if status := env.do(t, stdhttp.MethodPost, path, token, ReactionRequest{Emoji: "👍"}, nil); status != stdhttp.StatusOK {
		t.Fatalf("first reaction: unexpected status %d", status)
	}
	var msg proto.Message
	if status := env.do(t, stdhttp.MethodPost, path, token, ReactionRequest{Emoji: "❤️"}, &msg); status != stdhttp.StatusOK {
		t.Fatalf("second reaction: unexpected status %d", status)
	}
	if len(msg.Reactions) != 1 || msg.Reactions[0].Emoji != "❤️" || msg.Reactions[0].UserID != "user-1" {
		t.Fatalf("unexpected reactions: %+v", msg.Reactions)
	}

	if status := env.do(t, stdhttp.MethodPost, "/api/messages/missing/reactions", token, ReactionRequest{Emoji: "👍"}, nil); status != stdhttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestReactionWithoutUserIsAnonymous(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var sent SendMessageResponse
	env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "m1"}, &sent)

	var msg proto.Message
	env.do(t, stdhttp.MethodPost, "/api/messages/"+sent.Message.ID+"/reactions", token, ReactionRequest{Emoji: "🎉"}, &msg)
	if len(msg.Reactions) != 1 || msg.Reactions[0].UserID != core.AnonymousUserID {
		t.Fatalf("unexpected reactions: %+v", msg.Reactions)
	}
}

func TestShareAndBookmark(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var sent SendMessageResponse
	env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "worth keeping"}, &sent)
	id := sent.Message.ID

	var share ShareResponse
	if status := env.do(t, stdhttp.MethodGet, "/api/messages/"+id+"/share", token, nil, &share); status != stdhttp.StatusOK {
		t.Fatalf("share: unexpected status %d", status)
	}
	if share.Text != "worth keeping" {
		t.Fatalf("unexpected share text %q", share.Text)
	}

	var first, second BookmarkResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages/"+id+"/bookmark", token, nil, &first); status != stdhttp.StatusCreated {
		t.Fatalf("bookmark: unexpected status %d", status)
	}
	env.do(t, stdhttp.MethodPost, "/api/messages/"+id+"/bookmark", token, nil, &second)
	if !first.Bookmarked || second.Bookmarked || second.Message != "Already bookmarked" {
		t.Fatalf("unexpected bookmark responses: %+v %+v", first, second)
	}

	var list struct {
		Bookmarks []proto.Message `json:"bookmarks"`
	}
	env.do(t, stdhttp.MethodGet, "/api/bookmarks", token, nil, &list)
	if len(list.Bookmarks) != 1 || list.Bookmarks[0].ID != id {
		t.Fatalf("unexpected bookmarks: %+v", list.Bookmarks)
	}
}

func TestTheme(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var theme struct {
		Theme string `json:"theme"`
	}
	env.do(t, stdhttp.MethodGet, "/api/theme", token, nil, &theme)
	if theme.Theme != string(persist.ThemeLight) {
		t.Fatalf("expected light default, got %q", theme.Theme)
	}

	if status := env.do(t, stdhttp.MethodPut, "/api/theme", token, ThemeRequest{Theme: "dark"}, nil); status != stdhttp.StatusOK {
		t.Fatalf("set theme: unexpected status %d", status)
	}
	env.do(t, stdhttp.MethodGet, "/api/theme", token, nil, &theme)
	if theme.Theme != "dark" {
		t.Fatalf("expected dark, got %q", theme.Theme)
	}

	var errResp ErrorResponse
	if status := env.do(t, stdhttp.MethodPut, "/api/theme", token, ThemeRequest{Theme: "sepia"}, &errResp); status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if errResp.Code != core.ErrCodeInvalidTheme {
		t.Fatalf("unexpected code %q", errResp.Code)
	}
}

func TestCancelPendingWithNothingOutstanding(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")

	var resp struct {
		Cancelled int `json:"cancelled"`
	}
	if status := env.do(t, stdhttp.MethodDelete, "/api/messages/pending", token, nil, &resp); status != stdhttp.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.Cancelled != 0 {
		t.Fatalf("expected nothing cancelled, got %d", resp.Cancelled)
	}
}

func TestSendRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) {
		cfg.Chat.SendRatePerMinute = 2
	})
	token, _ := env.newSession(t, "")

	for i := 0; i < 2; i++ {
		if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "hi"}, nil); status != stdhttp.StatusCreated {
			t.Fatalf("send %d: unexpected status %d", i, status)
		}
	}
	var errResp ErrorResponse
	if status := env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "hi"}, &errResp); status != stdhttp.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if errResp.Code != core.ErrCodeRateLimited {
		t.Fatalf("unexpected code %q", errResp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, nil)
	token, _ := env.newSession(t, "")
	env.do(t, stdhttp.MethodPost, "/api/messages", token, SendMessageRequest{Text: "/ai 2+2"}, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`relaychat_messages_total{sender="user"} 1`,
		`relaychat_messages_total{sender="bot"} 1`,
		`relaychat_provider_requests_total{outcome="ok",provider="AI"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestFunctionEndpointsRequireKey(t *testing.T) {
	env := startTestServer(t, nil)

	var resp struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	status := env.do(t, stdhttp.MethodPost, "/functions/v1/chat-with-gemini", "", map[string]string{"message": "hi"}, &resp)
	if status != stdhttp.StatusUnauthorized || resp.Error != "unauthorized" {
		t.Fatalf("expected 401 for anonymous call, got %d %+v", status, resp)
	}

	status = env.do(t, stdhttp.MethodPost, "/functions/v1/chat-with-gemini", "wrong-key", map[string]string{"message": "hi"}, nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", status)
	}

	resp.Error = ""
	status = env.do(t, stdhttp.MethodPost, "/functions/v1/chat-with-gemini", testFunctionsKey, map[string]string{"message": "hi"}, &resp)
	if status != stdhttp.StatusOK || resp.Response != "echo: hi" {
		t.Fatalf("expected keyed call to succeed, got %d %+v", status, resp)
	}
}
