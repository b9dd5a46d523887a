// Package wallet owns the session wallet and the create, sign and send state
// machine that turns a transfer request into a broadcast transaction.
package wallet

import (
	"math/big"
	"time"

	"PasskeyWallet/internal/credential"
	"PasskeyWallet/internal/sui"
)

// State is a stage of the transaction state machine.
type State string

const (
	StateIdle    State = "idle"
	StateCreated State = "created"
	StateSigned  State = "signed"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

// Draft is an unsigned, fully built transaction.
type Draft struct {
	Sender    string
	Recipient string
	Amount    *big.Int
	TxBytes   []byte
	Digest    string
	CreatedAt time.Time
}

// SignedTransaction pairs a draft with the signature produced over it.
type SignedTransaction struct {
	Draft     *Draft
	Signature []byte
}

// BroadcastResult is the terminal artifact of a successful send.
type BroadcastResult struct {
	Digest      string
	Status      string
	ExplorerURL string
	SentAt      time.Time
}

// session is the mutable state of one wallet session. All fields are
// mutated only by Orchestrator methods while holding its lock.
type session struct {
	wallet    *credential.Handle
	draft     *Draft
	signature []byte
	result    *BroadcastResult
	state     State
	lastErr   error
}

// resetTransaction drops the draft and everything derived from it.
func (s *session) resetTransaction() {
	s.draft = nil
	s.signature = nil
	s.result = nil
	s.lastErr = nil
	s.state = StateIdle
}

func (s *session) fail(err error) {
	s.state = StateFailed
	s.lastErr = err
}

// Status is a read-only view of the session.
type Status struct {
	State     State  `json:"state"`
	Address   string `json:"address,omitempty"`
	Network   string `json:"network,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	TxDigest  string `json:"txDigest,omitempty"`
	Signed    bool   `json:"signed"`
	Explorer  string `json:"explorer,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

func (s *session) status(network string) Status {
	st := Status{State: s.state, Network: network, Signed: s.signature != nil}
	if s.wallet != nil {
		st.Address = s.wallet.Address
	}
	if s.draft != nil {
		st.Recipient = s.draft.Recipient
		st.Amount = sui.FormatAmount(s.draft.Amount)
		st.TxDigest = s.draft.Digest
	}
	if s.result != nil {
		st.TxDigest = s.result.Digest
		st.Explorer = s.result.ExplorerURL
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
