package agent

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/interpreter"
	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/internal/wallet"
)

type stubWallet struct {
	balance     *big.Int
	err         error
	wait        time.Duration
	transferTo  string
	transferAmt string
}

func (s *stubWallet) CheckBalance(ctx context.Context) (*big.Int, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.balance, nil
}

func (s *stubWallet) Transfer(_ context.Context, recipient, amount string) (*wallet.BroadcastResult, error) {
	s.transferTo, s.transferAmt = recipient, amount
	if s.err != nil {
		return nil, s.err
	}
	return &wallet.BroadcastResult{Digest: "DIGEST", ExplorerURL: "https://suiscan.xyz/testnet/tx/DIGEST"}, nil
}

func TestAgentExecuteBalance(t *testing.T) {
	w := &stubWallet{balance: big.NewInt(1_500_000_000)}
	ag := New(interpreter.New(nil), w)

	result, err := ag.Execute(context.Background(), CommandRequest{Text: "check balance"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Balance != "1.5000" || result.Intent != interpreter.KindCheckBalance || result.Strategy != "local" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAgentExecuteTransferPassesRawRecipient(t *testing.T) {
	w := &stubWallet{}
	ag := New(interpreter.New(nil), w)

	result, err := ag.Execute(context.Background(), CommandRequest{Text: "send 0.01 sui to bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.transferTo != "bob" || w.transferAmt != "0.01" {
		t.Fatalf("wallet received %q %q", w.transferTo, w.transferAmt)
	}
	if result.TxDigest != "DIGEST" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAgentExecuteUnrecognized(t *testing.T) {
	ag := New(interpreter.New(nil), &stubWallet{})
	result, err := ag.Execute(context.Background(), CommandRequest{Text: "dance"})
	if !xerrors.HasCode(err, xerrors.CodeInterpret) {
		t.Fatalf("expected interpret error, got %v", err)
	}
	if result == nil || result.Intent != interpreter.KindUnrecognized {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAgentExecuteRejectsEmptyText(t *testing.T) {
	ag := New(interpreter.New(nil), &stubWallet{})
	if _, err := ag.Execute(context.Background(), CommandRequest{Text: "  "}); !xerrors.HasCode(err, xerrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAgentExecuteTimeout(t *testing.T) {
	w := &stubWallet{wait: 50 * time.Millisecond}
	ag := New(interpreter.New(nil), w, WithTimeout(10*time.Millisecond))

	_, err := ag.Execute(context.Background(), CommandRequest{Text: "check balance"})
	if !xerrors.HasCode(err, xerrors.CodeTimeout) {
		t.Fatalf("expected timeout code, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

type countingLedger struct{ calls int }

func (c *countingLedger) Network() string { return "testnet" }
func (c *countingLedger) GetBalance(context.Context, string) (*big.Int, error) {
	c.calls++
	return big.NewInt(0), nil
}
func (c *countingLedger) GetCoins(context.Context, string, string) ([]ledger.Coin, error) {
	c.calls++
	return nil, nil
}
func (c *countingLedger) BuildTransfer(context.Context, sui.TransferSpec) ([]byte, error) {
	c.calls++
	return nil, nil
}
func (c *countingLedger) ExecuteTransaction(context.Context, []byte, []byte) (ledger.ExecuteResult, error) {
	c.calls++
	return ledger.ExecuteResult{}, nil
}
func (c *countingLedger) Close() {}

func TestCheckBalanceWithoutWalletIsIdempotent(t *testing.T) {
	l := &countingLedger{}
	fb := feedback.NewChannel()
	orch := wallet.New(l, nil, nil, wallet.WithFeedback(fb))
	ag := New(interpreter.New(fb), orch)

	var first string
	for i := 0; i < 3; i++ {
		result, err := ag.Execute(context.Background(), CommandRequest{Text: "check balance"})
		if !xerrors.HasCode(err, xerrors.CodePrecondition) {
			t.Fatalf("expected precondition error, got %v", err)
		}
		if i == 0 {
			first = result.Message
		}
		if result.Message != first || fb.Last().Text != wallet.MsgWalletRequired {
			t.Fatalf("message changed between calls: %q vs %q (feedback %q)", result.Message, first, fb.Last().Text)
		}
	}
	if l.calls != 0 {
		t.Fatalf("expected zero network calls, got %d", l.calls)
	}
}
