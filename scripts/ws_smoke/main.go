package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/relaychat/internal/proto"
)

type envelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	user := flag.String("user", "tester", "user id for the session token")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var session struct {
		Token     string `json:"token"`
		SessionID string `json:"sessionId"`
	}
	if err := postJSON(ctx, *base+"/api/sessions", "", map[string]string{"userId": *user}, &session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Printf("Session: %s\n", session.SessionID)

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(session.Token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sent := false
	for {
		var out envelope
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received outbound: type=%s event=%s\n", out.Type, out.Event)

		switch out.Event {
		case proto.EventHistory:
			var evt proto.HistoryData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal history: %w", err)
			}
			fmt.Printf("History: %d messages\n", len(evt.Messages))
			if !sent {
				sent = true
				if err := postJSON(ctx, *base+"/api/messages", session.Token, map[string]string{"text": *text}, nil); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
		case proto.EventMessage:
			var msg proto.Message
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: sender=%s text=%q ts=%s\n", msg.Sender, msg.Text, msg.Timestamp)
			if msg.Sender == "user" && msg.Text == *text {
				return nil
			}
		case proto.EventNotice:
			fmt.Printf("Notice: %s\n", string(out.Data))
		}
	}
}

func postJSON(ctx context.Context, target, token string, body, into any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
