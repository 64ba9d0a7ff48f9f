package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "rektflow/config"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotReq sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(appconfig.TelegramConfig{
		APIURL:    srv.URL,
		BotToken:  "test-token",
		ChatID:    "-100123",
		TimeoutMs: 2000,
	})

	if err := n.Send(context.Background(), "<b>hello</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotReq.ChatID != "-100123" || gotReq.Text != "<b>hello</b>" || gotReq.ParseMode != "HTML" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(appconfig.TelegramConfig{
		APIURL:   srv.URL,
		BotToken: "test-token",
		ChatID:   "bogus",
	})

	err := n.Send(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error for api failure")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api description in error, got %v", err)
	}
}

func TestTelegramSendUnreachable(t *testing.T) {
	n := NewTelegramNotifier(appconfig.TelegramConfig{
		APIURL:    "http://127.0.0.1:1",
		BotToken:  "test-token",
		ChatID:    "-100123",
		TimeoutMs: 500,
	})

	if err := n.Send(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for unreachable api")
	}
}
