package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"def f():\n    return 1\n"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key", "test-model", 3, 5*time.Second)
	out, err := client.Complete(context.Background(), Request{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "def f():\n    return 1\n" {
		t.Fatalf("unexpected completion: %q", out)
	}
}

func TestHTTPClientRetriesOnServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "test-model", 5, 5*time.Second)
	out, err := client.Complete(context.Background(), Request{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected completion: %q", out)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestHTTPClientExhaustsRetriesAndFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "test-model", 2, 5*time.Second)
	_, err := client.Complete(context.Background(), Request{System: "sys", User: "usr"})
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
}

func TestHTTPClientSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "test-model", 1, 5*time.Second)
	_, err := client.Complete(context.Background(), Request{System: "sys", User: "usr"})
	if err == nil {
		t.Fatal("expected an api error to surface")
	}
}
