// Package balance queries and caches the spendable SUI balance of the session
// wallet. The cached value is a snapshot: it is used for pre-flight checks
// and may lag the chain.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/pkg/logger"
)

// Fetcher is the ledger call the service wraps.
type Fetcher interface {
	GetBalance(ctx context.Context, owner string) (*big.Int, error)
}

// Snapshot is a cached balance reading.
type Snapshot struct {
	Owner     string
	Mist      *big.Int
	FetchedAt time.Time
}

// Service fetches balances and keeps the last successful reading.
type Service struct {
	ledger   Fetcher
	feedback feedback.Publisher

	mu     sync.RWMutex
	cached *Snapshot
	now    func() time.Time
}

// NewService creates a balance service.
func NewService(ledger Fetcher, fb feedback.Publisher) *Service {
	if fb == nil {
		fb = feedback.Discard{}
	}
	return &Service{ledger: ledger, feedback: fb, now: time.Now}
}

// Fetch queries the ledger. On failure the previous cache is kept and a
// NETWORK error is returned.
func (s *Service) Fetch(ctx context.Context, owner string) (*big.Int, error) {
	mist, err := s.ledger.GetBalance(ctx, owner)
	if err != nil {
		logger.Named("balance").Warn("fetch failed", "owner", owner, "error", err)
		return nil, xerrors.Wrap(xerrors.CodeNetwork, err, "could not fetch balance")
	}
	if mist == nil {
		mist = new(big.Int)
	}
	s.mu.Lock()
	s.cached = &Snapshot{Owner: owner, Mist: new(big.Int).Set(mist), FetchedAt: s.now()}
	s.mu.Unlock()
	return new(big.Int).Set(mist), nil
}

// Refresh fetches the balance; when announce is set the result (or the
// failure) is published as a status message in SUI.
func (s *Service) Refresh(ctx context.Context, owner string, announce bool) (*big.Int, error) {
	if announce {
		s.feedback.Publish("Fetching balance…")
	}
	mist, err := s.Fetch(ctx, owner)
	if err != nil {
		if announce {
			s.feedback.Publish(xerrors.UserMessage(err))
		}
		return nil, err
	}
	if announce {
		s.feedback.Publish(fmt.Sprintf("Balance: %s SUI", sui.FormatBalance(mist)))
	}
	return mist, nil
}

// Cached returns the last reading for owner, if any.
func (s *Service) Cached(owner string) (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.cached.Owner != owner {
		return nil, false
	}
	return new(big.Int).Set(s.cached.Mist), true
}

// Snapshot returns a copy of the cached reading.
func (s *Service) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return Snapshot{}, false
	}
	snap := *s.cached
	snap.Mist = new(big.Int).Set(s.cached.Mist)
	return snap, true
}

// Reset drops the cached reading, e.g. when the session wallet changes.
func (s *Service) Reset() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
