package wallet

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/mr-tron/base58"

	"PasskeyWallet/internal/addressbook"
	"PasskeyWallet/internal/credential"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/sui"
)

var bobAddress = "0x" + strings.Repeat("b0", 32)

type ledgerStub struct {
	balance     *big.Int
	coins       []ledger.Coin
	coinsErr    error
	executeErrs []error

	balanceCalls int
	coinCalls    int
	buildCalls   int
	executeCalls int
	lastSpec     sui.TransferSpec
}

func (l *ledgerStub) Network() string { return "testnet" }

func (l *ledgerStub) GetBalance(context.Context, string) (*big.Int, error) {
	l.balanceCalls++
	return new(big.Int).Set(l.balance), nil
}

func (l *ledgerStub) GetCoins(context.Context, string, string) ([]ledger.Coin, error) {
	l.coinCalls++
	return l.coins, l.coinsErr
}

func (l *ledgerStub) BuildTransfer(_ context.Context, spec sui.TransferSpec) ([]byte, error) {
	l.buildCalls++
	l.lastSpec = spec
	return sui.BuildTransfer(spec)
}

func (l *ledgerStub) ExecuteTransaction(_ context.Context, txBytes, _ []byte) (ledger.ExecuteResult, error) {
	i := l.executeCalls
	l.executeCalls++
	if i < len(l.executeErrs) && l.executeErrs[i] != nil {
		return ledger.ExecuteResult{}, l.executeErrs[i]
	}
	return ledger.ExecuteResult{Digest: sui.TransactionDigest(txBytes), Status: "success"}, nil
}

func (l *ledgerStub) Close() {}

func (l *ledgerStub) calls() int {
	return l.balanceCalls + l.coinCalls + l.buildCalls + l.executeCalls
}

type signerStub struct {
	publicKey []byte
	signErrs  []error
	signCalls int
}

func (s *signerStub) CreateOrLoad(context.Context) (credential.Handle, error) {
	return credential.NewHandle("test", s.publicKey), nil
}

func (s *signerStub) Sign(_ context.Context, _ credential.Handle, txBytes []byte) ([]byte, error) {
	i := s.signCalls
	s.signCalls++
	if i < len(s.signErrs) && s.signErrs[i] != nil {
		return nil, s.signErrs[i]
	}
	return append([]byte{sui.FlagPasskey}, txBytes[:8]...), nil
}

func (s *signerStub) ChallengeSign(context.Context, []byte) ([][]byte, error) {
	return [][]byte{s.publicKey}, nil
}

func testCoin() ledger.Coin {
	return ledger.Coin{
		ObjectRef: sui.ObjectRef{
			ObjectID: "0x" + strings.Repeat("c1", 32),
			Version:  7,
			Digest:   base58.Encode(bytes.Repeat([]byte{9}, 32)),
		},
		CoinType: sui.CoinType,
		Balance:  big.NewInt(5_000_000_000),
	}
}

type fixture struct {
	orch   *Orchestrator
	ledger *ledgerStub
	signer *signerStub
	fb     *feedback.Channel
}

func newFixture(t *testing.T, balanceMist int64) *fixture {
	t.Helper()
	pk := append([]byte{0x02}, bytes.Repeat([]byte{0x11}, 32)...)
	l := &ledgerStub{balance: big.NewInt(balanceMist), coins: []ledger.Coin{testCoin()}}
	s := &signerStub{publicKey: pk}
	fb := feedback.NewChannel()
	book := addressbook.New(map[string]string{"bob": bobAddress, "eve": "0x123"})
	return &fixture{orch: New(l, s, book, WithFeedback(fb)), ledger: l, signer: s, fb: fb}
}

func (f *fixture) withWallet(t *testing.T) credential.Handle {
	t.Helper()
	h, err := f.orch.CreateWallet(context.Background())
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return h
}

func TestCheckBalanceWithoutWalletMakesNoCalls(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		_, err := f.orch.CheckBalance(context.Background())
		if !xerrors.HasCode(err, xerrors.CodePrecondition) {
			t.Fatalf("expected precondition error, got %v", err)
		}
		if got := f.fb.Last().Text; got != MsgWalletRequired {
			t.Fatalf("unexpected feedback %q", got)
		}
	}
	if f.ledger.calls() != 0 {
		t.Fatalf("expected no ledger calls, got %d", f.ledger.calls())
	}
}

func TestTransferPipelineReachesSent(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	h := f.withWallet(t)

	res, err := f.orch.Transfer(context.Background(), "BOB", "0.01")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if f.orch.Status().State != StateSent {
		t.Fatalf("expected sent state, got %s", f.orch.Status().State)
	}
	if !strings.Contains(f.fb.Last().Text, res.Digest) {
		t.Fatalf("final feedback %q does not contain digest %s", f.fb.Last().Text, res.Digest)
	}
	if f.ledger.lastSpec.Recipient != bobAddress || f.ledger.lastSpec.Sender != h.Address {
		t.Fatalf("unexpected transfer spec %+v", f.ledger.lastSpec)
	}
	if f.ledger.lastSpec.Amount.Int64() != 10_000_000 {
		t.Fatalf("expected 10_000_000 MIST, got %s", f.ledger.lastSpec.Amount)
	}
	if res.ExplorerURL != "https://suiscan.xyz/testnet/tx/"+res.Digest {
		t.Fatalf("unexpected explorer url %s", res.ExplorerURL)
	}
}

func TestCreateValidatesAmountBeforeNetwork(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.withWallet(t)
	before := f.ledger.calls()

	for _, amount := range []string{"-1", "0", "abc", "", "NaN", "1e400"} {
		_, err := f.orch.Create(context.Background(), "0xdead", amount)
		if !xerrors.HasCode(err, xerrors.CodeValidation) {
			t.Fatalf("amount %q: expected validation error, got %v", amount, err)
		}
	}
	if f.ledger.calls() != before {
		t.Fatalf("validation must not reach the ledger")
	}
	if f.orch.Status().State != StateIdle {
		t.Fatalf("state changed on validation failure: %s", f.orch.Status().State)
	}
}

func TestCreateResolutionMessages(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.withWallet(t)

	cases := []struct{ recipient, want string }{
		{"0xdead", "malformed address"},
		{"bobb", "unknown alias"},
		{"eve", "maps to an invalid address"},
	}
	for _, tc := range cases {
		recipient, want := tc.recipient, tc.want
		_, err := f.orch.Create(context.Background(), recipient, "0.01")
		if !xerrors.HasCode(err, xerrors.CodeResolution) {
			t.Fatalf("%s: expected resolution error, got %v", recipient, err)
		}
		if !strings.Contains(xerrors.UserMessage(err), want) {
			t.Fatalf("%s: message %q should contain %q", recipient, xerrors.UserMessage(err), want)
		}
	}
	if !strings.Contains(f.fb.Last().Text, "eve") {
		t.Fatalf("feedback should name the alias, got %q", f.fb.Last().Text)
	}
	if f.ledger.coinCalls != 0 {
		t.Fatalf("resolution failures must not query coins")
	}
}

func TestUnknownAliasSuggestsClosestMatch(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.withWallet(t)
	_, err := f.orch.Create(context.Background(), "bo", "1")
	if !strings.Contains(xerrors.UserMessage(err), `did you mean "bob"?`) {
		t.Fatalf("expected suggestion, got %v", err)
	}
}

func TestSignWithoutDraftKeepsIdle(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.withWallet(t)

	err := f.orch.Sign(context.Background())
	if !xerrors.HasCode(err, xerrors.CodePrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if f.orch.Status().State != StateIdle || f.signer.signCalls != 0 {
		t.Fatalf("sign without draft must not change state")
	}
}

func TestCreateInsufficientFundsSkipsCoinQuery(t *testing.T) {
	f := newFixture(t, 1_000)
	f.withWallet(t)

	_, err := f.orch.Create(context.Background(), "bob", "1")
	if !xerrors.HasCode(err, xerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if f.ledger.coinCalls != 0 {
		t.Fatalf("coin query should be skipped")
	}
}

func TestCreateWithoutCoinsFails(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.ledger.coins = nil
	f.withWallet(t)

	_, err := f.orch.Create(context.Background(), "bob", "1")
	if !xerrors.HasCode(err, xerrors.CodeNoFunds) {
		t.Fatalf("expected no funds error, got %v", err)
	}
	if f.orch.Status().State != StateFailed {
		t.Fatalf("expected failed state, got %s", f.orch.Status().State)
	}
}

func TestCreateCoinQueryFailureIsNetworkError(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.ledger.coinsErr = errors.New("connection refused")
	f.withWallet(t)

	_, err := f.orch.Create(context.Background(), "bob", "1")
	if !xerrors.HasCode(err, xerrors.CodeNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if f.orch.Status().State != StateFailed {
		t.Fatalf("expected failed state")
	}
}

func TestSignFailureKeepsDraftForRetry(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.signer.signErrs = []error{credential.ErrCancelled}
	f.withWallet(t)

	if _, err := f.orch.Transfer(context.Background(), "bob", "0.5"); !xerrors.HasCode(err, xerrors.CodeCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if f.orch.Status().State != StateFailed || f.ledger.executeCalls != 0 {
		t.Fatalf("pipeline should stop at sign")
	}
	if !strings.Contains(f.fb.Last().Text, "cancelled") {
		t.Fatalf("unexpected feedback %q", f.fb.Last().Text)
	}
	if _, ok := f.orch.Draft(); !ok {
		t.Fatalf("draft should survive a signing failure")
	}

	if err := f.orch.Sign(context.Background()); err != nil {
		t.Fatalf("retry sign: %v", err)
	}
	if _, err := f.orch.Send(context.Background()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if f.orch.Status().State != StateSent {
		t.Fatalf("expected sent state, got %s", f.orch.Status().State)
	}
}

func TestSendFailureAllowsRetry(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.ledger.executeErrs = []error{errors.New("timeout")}
	f.withWallet(t)

	if _, err := f.orch.Transfer(context.Background(), "bob", "0.5"); !xerrors.HasCode(err, xerrors.CodeNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !f.orch.Status().Signed {
		t.Fatalf("signature should survive a send failure")
	}
	if _, err := f.orch.Send(context.Background()); err != nil {
		t.Fatalf("retry send: %v", err)
	}
	if _, err := f.orch.Send(context.Background()); !xerrors.HasCode(err, xerrors.CodePrecondition) {
		t.Fatalf("a sent transaction must not be sent twice, got %v", err)
	}
}

func TestNewCreateInvalidatesSignature(t *testing.T) {
	f := newFixture(t, 2_000_000_000)
	f.withWallet(t)

	if _, err := f.orch.Create(context.Background(), "bob", "0.1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.orch.Sign(context.Background()); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := f.orch.Create(context.Background(), "bob", "0.2"); err != nil {
		t.Fatalf("second create: %v", err)
	}
	st := f.orch.Status()
	if st.State != StateCreated || st.Signed {
		t.Fatalf("new draft must drop the old signature, got %+v", st)
	}
	if _, err := f.orch.Send(context.Background()); !xerrors.HasCode(err, xerrors.CodePrecondition) {
		t.Fatalf("send without signature should fail, got %v", err)
	}
}

func TestLoadWalletRecoversHandle(t *testing.T) {
	f := newFixture(t, 0)
	h, err := f.orch.LoadWallet(context.Background())
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	want := sui.AddressFromPublicKey(sui.FlagPasskey, f.signer.publicKey)
	if h.Address != want {
		t.Fatalf("expected %s, got %s", want, h.Address)
	}
}

func TestRequestFaucetWithoutFaucet(t *testing.T) {
	f := newFixture(t, 0)
	f.withWallet(t)
	if err := f.orch.RequestFaucet(context.Background()); !xerrors.HasCode(err, xerrors.CodePrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}
