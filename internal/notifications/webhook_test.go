package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNotify_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot", "", nil)
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Notify("Set up new stream", "")
	t.Log("Notify with no webhook: OK (log only)")
}

func TestNotify_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot", "ops@example.com", nil)
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}

	s.Notify("BUY DOGEUSD", `{"orderId":1}`)

	if received["username"] != "TestBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	text := received["text"]
	if !strings.Contains(text, "BUY DOGEUSD") || !strings.Contains(text, `{"orderId":1}`) {
		t.Fatalf("subject and body should both be in text, got %q", text)
	}
	if !strings.Contains(text, "ops@example.com") {
		t.Fatalf("recipient missing from text: %q", text)
	}
	t.Logf("Slack payload: %+v", received)
}

func TestNotify_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.URL+"/discord/webhook", "TrahnBot", "", nil)
	s.Notify("SELL DOGEUSD", "sold 20 DOGE")

	if received["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if received["username"] != "TrahnBot" {
		t.Fatalf("username: got %s", received["username"])
	}
	if _, hasText := received["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestNotify_WebhookErrorIsSwallowed(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "TestBot", "", nil)
	s.retry.BaseDelay = 10 * time.Millisecond
	s.retry.MaxDelay = 20 * time.Millisecond

	s.Notify("this will fail gracefully", "")
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", attempts.Load())
	}
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "", "", nil)
	if s.botName != "TrahnPostTrader" {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}
