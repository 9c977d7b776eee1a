package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := Notification{
		Kind:               KindSuggestion,
		Timestamp:          time.Now(),
		SourceChainID:      42161,
		DestinationChainID: 8453,
		AmountMicro:        6_000_000,
		ConfidenceScore:    2.0 / 3,
	}

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "6 USDC") {
		t.Fatalf("message should contain the amount, got %q", received["text"])
	}
	if !strings.Contains(received["text"], "Rebalance Suggested") {
		t.Fatalf("message should carry the suggestion header, got %q", received["text"])
	}
}

func TestTelegramNotifierAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Notification{Kind: KindRunFailure, Timestamp: time.Now()}); err == nil {
		t.Fatal("ok=false must be reported as an error")
	}
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), Notification{Kind: KindExecution, Timestamp: time.Now()}); err == nil {
		t.Fatal("HTTP 502 must be reported as an error")
	}
}

func TestRenderMessageKinds(t *testing.T) {
	note := Notification{
		Kind:               KindExecution,
		Timestamp:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SourceChainID:      42161,
		DestinationChainID: 8453,
		AmountMicro:        1_500_000,
		Message:            "Tx: 0xabc",
	}

	text := renderMessage(note)
	if !strings.Contains(text, "Rebalance Executed") {
		t.Fatalf("expected execution header, got %q", text)
	}
	if !strings.Contains(text, "1.5 USDC") {
		t.Fatalf("expected formatted amount, got %q", text)
	}
	if !strings.Contains(text, "Tx: 0xabc") {
		t.Fatalf("expected trailing message, got %q", text)
	}
}
