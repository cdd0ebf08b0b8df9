package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"home-hub/internal/infra/pushover"
)

func TestClient_Notify(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"message": r.PostForm.Get("message"),
			"title":   r.PostForm.Get("title"),
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := pushover.NewClient(pushover.Config{Token: "app", UserKey: "user", Endpoint: server.URL})
	if err := client.Notify(context.Background(), "Turning on Main Light."); err != nil {
		t.Fatalf("notifying: %v", err)
	}

	want := map[string]string{"token": "app", "user": "user", "message": "Turning on Main Light.", "title": "Home Hub"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %q, want %q", k, got[k], v)
		}
	}
}

func TestClient_DisabledWithoutCredentials(t *testing.T) {
	client := pushover.NewClient(pushover.Config{Endpoint: "http://127.0.0.1:1"})
	if client.Enabled() {
		t.Error("client without credentials should be disabled")
	}
	if err := client.Notify(context.Background(), "hello"); err != nil {
		t.Errorf("disabled notify: %v", err)
	}
}

func TestClient_RejectedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClient(pushover.Config{Token: "app", UserKey: "user", Endpoint: server.URL})
	if err := client.Notify(context.Background(), "hello"); err == nil {
		t.Error("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := pushover.NewClient(pushover.Config{Token: "app", UserKey: "user", Endpoint: server.URL})
	if err := client.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("notifying: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls: got %d, want 3", got)
	}
}
