package interpreter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/llm"
)

type stubLLM struct {
	reply string
	err   error
	wait  time.Duration
	calls int
}

func (s *stubLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.calls++
	if req.Instruction != Instruction {
		return nil, errors.New("unexpected instruction")
	}
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
	return &llm.Response{Reply: s.reply}, nil
}

func (s *stubLLM) Name() string { return "stub" }

func TestLocalStrategyPatterns(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"send 0.01 sui to bob", Transfer{Amount: "0.01", Recipient: "bob"}},
		{"Please SEND 2 SUI to Alice.", Transfer{Amount: "2", Recipient: "Alice"}},
		{"transfer 1.5 to bob's", Transfer{Amount: "1.5", Recipient: "bob"}},
		{"pay 3sui to \"carol\"!", Transfer{Amount: "3", Recipient: "carol"}},
		{"send -1 sui to 0xdead", Transfer{Amount: "-1", Recipient: "0xdead"}},
		{"check balance", CheckBalance{}},
		{"Show my balance please", CheckBalance{}},
		{"what's my balance?", CheckBalance{}},
		{"balance", CheckBalance{}},
	}
	for _, tc := range cases {
		got, ok := LocalStrategy{}.Parse(context.Background(), tc.text)
		if !ok {
			t.Fatalf("%q: expected a match", tc.text)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%q: intent mismatch (-want +got):\n%s", tc.text, diff)
		}
	}

	for _, text := range []string{"hello there", "send money", "balances are hard to keep", "send sui to bob", "pay bob to carol"} {
		if got, ok := (LocalStrategy{}).Parse(context.Background(), text); ok {
			t.Fatalf("%q: unexpected match %v", text, got)
		}
	}
}

func TestParseCanonical(t *testing.T) {
	if got, ok := ParseCanonical("  Check Balance. "); !ok || got != (CheckBalance{}) {
		t.Fatalf("unexpected %v, %v", got, ok)
	}
	got, ok := ParseCanonical("send 0.5 sui to bob")
	if !ok || got != (Transfer{Amount: "0.5", Recipient: "bob"}) {
		t.Fatalf("unexpected %v, %v", got, ok)
	}
	for _, reply := range []string{"unknown", "Sure! send 1 sui to bob", "send 1 sui to bob and alice", "send all sui to bob", ""} {
		if got, ok := ParseCanonical(reply); ok {
			t.Fatalf("%q should be rejected, got %v", reply, got)
		}
	}
}

func TestInterpretPrefersRemote(t *testing.T) {
	remote := &stubLLM{reply: "send 1 sui to dave"}
	ch := feedback.NewChannel()
	in := New(ch, WithRemote(NewRemoteStrategy(remote, time.Second)))

	intent, source := in.Interpret(context.Background(), "could you move one sui over to dave")
	if intent != (Transfer{Amount: "1", Recipient: "dave"}) {
		t.Fatalf("unexpected intent %v", intent)
	}
	if source != "remote:stub" {
		t.Fatalf("unexpected source %q", source)
	}
	if !strings.Contains(ch.Last().Text, "remote:stub") {
		t.Fatalf("feedback should name the strategy, got %q", ch.Last().Text)
	}
}

func TestInterpretFallsBackWhenRemoteFails(t *testing.T) {
	const text = "send 0.01 sui to bob"
	baseline, _ := New(nil).Interpret(context.Background(), text)

	remotes := map[string]*stubLLM{
		"timeout": {wait: 200 * time.Millisecond},
		"garbage": {reply: "I am not sure what you mean"},
		"error":   {err: errors.New("status 500")},
	}
	for name, remote := range remotes {
		in := New(nil, WithRemote(NewRemoteStrategy(remote, 20*time.Millisecond)))
		got, source := in.Interpret(context.Background(), text)
		if got != baseline {
			t.Fatalf("%s: expected %v, got %v", name, baseline, got)
		}
		if source != "local" {
			t.Fatalf("%s: expected local source, got %q", name, source)
		}
		if remote.calls != 1 {
			t.Fatalf("%s: expected a single remote call, got %d", name, remote.calls)
		}
	}
}

func TestInterpretTransferWithoutAmountIsUnrecognized(t *testing.T) {
	in := New(feedback.Discard{})
	intent, source := in.Interpret(context.Background(), "send sui to bob")
	if _, ok := intent.(Unrecognized); !ok || source != "" {
		t.Fatalf("expected unrecognized intent, got %v from %q", intent, source)
	}
}

func TestInterpretUnrecognized(t *testing.T) {
	ch := feedback.NewChannel()
	intent, source := New(ch).Interpret(context.Background(), "make me a sandwich")
	if _, ok := intent.(Unrecognized); !ok || source != "" {
		t.Fatalf("expected unrecognized intent, got %v (%q)", intent, source)
	}
	if !strings.Contains(ch.Last().Text, "did not understand") {
		t.Fatalf("unexpected feedback %q", ch.Last().Text)
	}
}
