// Package ledger defines how the wallet talks to a ledger network: balance and
// coin queries, transaction building, and broadcast. Concrete clients live in
// subpackages; the registry picks one per configured network.
package ledger

import (
	"context"
	"math/big"

	"PasskeyWallet/internal/sui"
)

// Coin is a spendable coin object owned by an account.
type Coin struct {
	sui.ObjectRef
	CoinType string
	Balance  *big.Int
}

// ExecuteResult is the outcome of broadcasting a signed transaction.
type ExecuteResult struct {
	Digest string
	Status string
}

// Client is the ledger collaborator used by the balance service and the
// transaction orchestrator.
type Client interface {
	// Network is the network name used for explorer links.
	Network() string
	GetBalance(ctx context.Context, owner string) (*big.Int, error)
	GetCoins(ctx context.Context, owner, coinType string) ([]Coin, error)
	BuildTransfer(ctx context.Context, spec sui.TransferSpec) ([]byte, error)
	ExecuteTransaction(ctx context.Context, txBytes, signature []byte) (ExecuteResult, error)
	Close()
}

// PaymentRefs returns the object references of coins, capped at the gas
// payment limit.
func PaymentRefs(coins []Coin) []sui.ObjectRef {
	n := len(coins)
	if n > sui.MaxGasObjects {
		n = sui.MaxGasObjects
	}
	refs := make([]sui.ObjectRef, 0, n)
	for _, c := range coins[:n] {
		refs = append(refs, c.ObjectRef)
	}
	return refs
}
