package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendCompletion(t *testing.T) {
	var got completionEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.SendCompletion(context.Background(), "big-story", 3); err != nil {
		t.Fatalf("SendCompletion: %v", err)
	}
	if got.Event != "article.completed" || got.Slug != "big-story" || got.Version != 3 {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.CompletedAt == "" {
		t.Error("missing completed_at timestamp")
	}
}

func TestSendCompletionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.SendCompletion(context.Background(), "s", 1); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestSendCompletionMisconfigured(t *testing.T) {
	n := NewWebhookNotifier("")
	if err := n.SendCompletion(context.Background(), "s", 1); err == nil {
		t.Fatal("expected error for empty webhook URL")
	}
}
