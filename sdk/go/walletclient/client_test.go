package walletclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTransactionStagesSendBearerToken(t *testing.T) {
	var stages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		stages = append(stages, r.URL.Path)
		switch r.URL.Path {
		case "/api/v1/transactions":
			var req TransferRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if req.Recipient != "alice" || req.Amount != "0.5" {
				t.Fatalf("unexpected transfer: %+v", req)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Draft{Recipient: "0xa11ce", Amount: "0.5", Mist: "500000000"})
		case "/api/v1/transactions/sign":
			_, _ = w.Write([]byte(`{"status":"signed"}`))
		case "/api/v1/transactions/send":
			_ = json.NewEncoder(w).Encode(Broadcast{Digest: "9xDigest", Status: "success"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api/v1", srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetToken("secret")
	ctx := context.Background()

	draft, err := client.CreateTransaction(ctx, TransferRequest{Recipient: "alice", Amount: "0.5"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if draft.Mist != "500000000" {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if err := client.SignTransaction(ctx); err != nil {
		t.Fatalf("sign: %v", err)
	}
	out, err := client.SendTransaction(ctx)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Digest != "9xDigest" || len(stages) != 3 {
		t.Fatalf("unexpected result %+v after %v", out, stages)
	}
}

func TestAPIErrorCarriesCodeAndFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"PRECONDITION","message":"Please create or load a wallet first.","feedback":"Please create or load a wallet first."}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Balance(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "PRECONDITION" || apiErr.Feedback == "" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestWaitCommandPollsUntilFinished(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/commands":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(Command{ID: "cmd-1", Status: "pending"})
		case r.URL.Path == "/commands/cmd-1":
			status := "running"
			if calls.Add(1) >= 3 {
				status = "succeeded"
			}
			_ = json.NewEncoder(w).Encode(Command{ID: "cmd-1", Status: status, Outcome: Outcome{Balance: "1.2346"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	submitted, err := client.SubmitCommand(ctx, "", "check balance")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := client.WaitCommand(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != "succeeded" || done.Outcome.Balance != "1.2346" {
		t.Fatalf("unexpected command: %+v", done)
	}
}
