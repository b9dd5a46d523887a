package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PasskeyWallet/internal/llm"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "check balance\n"}},
				},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test", Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{Instruction: "rules", Text: "how much do I have"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Reply != "check balance" {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}
	if !strings.Contains(path, "gemini-test:generateContent") {
		t.Fatalf("unexpected request path %q", path)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Fatalf("system instruction missing from request: %v", body)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{Text: "hi"}); err == nil {
		t.Fatalf("expected error for server failure")
	}
}
