package credential

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

var (
	keyA = append([]byte{0x02}, bytes.Repeat([]byte{0xaa}, 32)...)
	keyB = append([]byte{0x03}, bytes.Repeat([]byte{0xbb}, 32)...)
	keyC = append([]byte{0x02}, bytes.Repeat([]byte{0xcc}, 32)...)
)

func TestFindCommonPublicKey(t *testing.T) {
	got, err := FindCommonPublicKey([][]byte{keyA, keyB}, [][]byte{keyC, keyB})
	if err != nil || !bytes.Equal(got, keyB) {
		t.Fatalf("got %x, %v", got, err)
	}
	if _, err := FindCommonPublicKey([][]byte{keyA}, [][]byte{keyC}); err == nil {
		t.Fatalf("expected error when nothing matches")
	}
	if _, err := FindCommonPublicKey([][]byte{keyA, keyB}, [][]byte{keyB, keyA}); err == nil {
		t.Fatalf("expected error when two keys match")
	}
}

type challengeStub struct {
	answers map[string][][]byte
	calls   []string
	err     error
}

func (c *challengeStub) CreateOrLoad(context.Context) (Handle, error) { return Handle{}, nil }
func (c *challengeStub) Sign(context.Context, Handle, []byte) ([]byte, error) {
	return nil, nil
}
func (c *challengeStub) ChallengeSign(_ context.Context, msg []byte) ([][]byte, error) {
	c.calls = append(c.calls, string(msg))
	if c.err != nil {
		return nil, c.err
	}
	return c.answers[string(msg)], nil
}

func TestRecoverUsesTwoDistinctChallenges(t *testing.T) {
	stub := &challengeStub{answers: map[string][][]byte{
		string(RecoveryMessageA): {keyA, keyB},
		string(RecoveryMessageB): {keyB, keyC},
	}}
	handle, err := Recover(context.Background(), stub)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(handle.PublicKey, keyB) || handle.Address != NewHandle("", keyB).Address {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if len(stub.calls) != 2 || stub.calls[0] == stub.calls[1] {
		t.Fatalf("unexpected challenges %v", stub.calls)
	}
}

func TestRecoverPropagatesCancellation(t *testing.T) {
	stub := &challengeStub{err: ErrCancelled}
	if _, err := Recover(context.Background(), stub); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
