package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PasskeyWallet/internal/addressbook"
	"PasskeyWallet/internal/auth"
	"PasskeyWallet/internal/credential"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/task"
	"PasskeyWallet/internal/wallet"
)

const aliceAddr = "0xa11ce00000000000000000000000000000000000000000000000000000000001"

type stubWallet struct {
	handle    *credential.Handle
	createErr error
	sendErr   error
	created   []string
}

func (s *stubWallet) Status() wallet.Status {
	st := wallet.Status{State: wallet.StateIdle, Network: "testnet"}
	if s.handle != nil {
		st.Address = s.handle.Address
	}
	return st
}

func (s *stubWallet) Wallet() (credential.Handle, bool) {
	if s.handle == nil {
		return credential.Handle{}, false
	}
	return *s.handle, true
}

func (s *stubWallet) Network() string { return "testnet" }

func (s *stubWallet) CreateWallet(context.Context) (credential.Handle, error) {
	h := credential.Handle{ID: "cred-1", PublicKey: []byte{0x02, 0x11}, Address: aliceAddr}
	s.handle = &h
	return h, nil
}

func (s *stubWallet) LoadWallet(ctx context.Context) (credential.Handle, error) {
	return s.CreateWallet(ctx)
}

func (s *stubWallet) CheckBalance(context.Context) (*big.Int, error) {
	if s.handle == nil {
		return nil, xerrors.New(xerrors.CodePrecondition, "Please create or load a passkey wallet first.")
	}
	return big.NewInt(1_234_567_890), nil
}

func (s *stubWallet) RequestFaucet(context.Context) error { return nil }

func (s *stubWallet) Create(_ context.Context, recipient, amount string) (*wallet.Draft, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, recipient+"/"+amount)
	return &wallet.Draft{Sender: aliceAddr, Recipient: aliceAddr, Amount: big.NewInt(500_000_000), Digest: "D1", CreatedAt: time.Unix(1, 0)}, nil
}

func (s *stubWallet) Sign(context.Context) error { return nil }

func (s *stubWallet) Send(context.Context) (*wallet.BroadcastResult, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &wallet.BroadcastResult{Digest: "D1", Status: "success", ExplorerURL: "https://suiscan.xyz/testnet/tx/D1"}, nil
}

func newTestServer(t *testing.T, w *stubWallet, opts ...Option) http.Handler {
	t.Helper()
	fb := feedback.NewChannel()
	fb.Publish("Ready")
	base := []Option{
		WithFeedback(fb),
		WithAddressBook(addressbook.New(map[string]string{"alice": aliceAddr})),
		WithCommands(task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8))),
	}
	return NewServer(":0", w, append(base, opts...)...).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestBalanceRequiresWallet(t *testing.T) {
	h := newTestServer(t, &stubWallet{})

	rec := do(t, h, http.MethodGet, "/api/v1/wallet/balance", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != string(xerrors.CodePrecondition) || body.Feedback != "Ready" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestWalletLifecycleEndpoints(t *testing.T) {
	w := &stubWallet{}
	h := newTestServer(t, w)

	rec := do(t, h, http.MethodPost, "/api/v1/wallet", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create wallet: %d %s", rec.Code, rec.Body.String())
	}
	var created WalletResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Address != aliceAddr || created.PublicKey != "0211" {
		t.Fatalf("unexpected wallet: %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/wallet/balance", "")
	var bal BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.SUI != "1.2346" || bal.Mist != "1234567890" {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/wallet/qr?size=128", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected QR response: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected PNG payload")
	}
}

func TestTransactionEndpoints(t *testing.T) {
	w := &stubWallet{}
	h := newTestServer(t, w)

	rec := do(t, h, http.MethodPost, "/api/v1/transactions", `{"recipient":"alice","amount":"0.5"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var draft DraftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.Amount != "0.5" || draft.Mist != "500000000" || draft.Digest != "D1" {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/transactions", `{"recipient":"alice","amount":"0.5","memo":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields must be rejected, got %d", rec.Code)
	}

	w.sendErr = xerrors.New(xerrors.CodeNetwork, "could not broadcast transaction")
	rec = do(t, h, http.MethodPost, "/api/v1/transactions/send", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	w.sendErr = nil
	w.createErr = xerrors.New(xerrors.CodeResolution, `unknown alias "bo", did you mean "bob"?`)
	rec = do(t, h, http.MethodPost, "/api/v1/transactions", `{"recipient":"bo","amount":"1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if body := decodeError(t, rec); !strings.Contains(body.Message, "did you mean") {
		t.Fatalf("unexpected message: %+v", body)
	}
}

// The one-call pipeline is reachable only through interpreted commands.
func TestNoDirectTransferRoute(t *testing.T) {
	h := newTestServer(t, &stubWallet{})
	rec := do(t, h, http.MethodPost, "/api/v1/transfers", `{"recipient":"alice","amount":"1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/commands", `{"text":"send 1 sui to alice"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected command route to accept transfers, got %d", rec.Code)
	}
}

func TestCommandEndpoints(t *testing.T) {
	h := newTestServer(t, &stubWallet{})

	rec := do(t, h, http.MethodPost, "/api/v1/commands", `{"id":"c1","text":"check my balance"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/v1/commands/c1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: %d", rec.Code)
	}
	var got task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "c1" || got.Status != task.StatusPending {
		t.Fatalf("unexpected command: %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/commands?status=pending&limit=5", "")
	var list []task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one pending command, got %d", len(list))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/commands?status=done", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status filter must be rejected, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/commands/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/commands", `{"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAddressBookEndpoints(t *testing.T) {
	h := newTestServer(t, &stubWallet{})

	rec := do(t, h, http.MethodPost, "/api/v1/address-book", `{"alias":"Bob","address":"0xb0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add alias: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/v1/address-book", `{"alias":"carol","address":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid address, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/address-book", "")
	var entries []addressbook.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Alias != "alice" || entries[1].Alias != "bob" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestAuthAndPublicRoutes(t *testing.T) {
	h := newTestServer(t, &stubWallet{}, WithAuth(auth.NewService("s3cret")))

	if rec := do(t, h, http.MethodGet, "/api/v1/feedback", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	var msg feedback.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil || msg.Text != "Ready" {
		t.Fatalf("unexpected feedback: %+v, %v", msg, err)
	}

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz must stay public, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "passkey_wallet_http_requests_total") {
		t.Fatalf("expected metrics exposition, got %d", rec.Code)
	}
}
