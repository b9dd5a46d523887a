// Package credential defines the passkey collaborator: creating or loading a
// credential, signing transaction bytes with it, and recovering which
// credential a device holds from two challenge signatures.
package credential

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"PasskeyWallet/internal/sui"
)

// Recovery challenges signed when loading an existing passkey. Two distinct
// messages narrow the recovered candidates down to one public key.
var (
	RecoveryMessageA = []byte("Hello world!")
	RecoveryMessageB = []byte("Hello world 2!")
)

// ErrCancelled is returned when the user dismisses the credential ceremony.
var ErrCancelled = errors.New("passkey ceremony was cancelled")

// Handle identifies a passkey credential and the account it controls.
type Handle struct {
	ID        string `json:"id"`
	PublicKey []byte `json:"publicKey"`
	Address   string `json:"address"`
}

// Provider performs passkey ceremonies.
type Provider interface {
	// CreateOrLoad registers a new credential, or returns the existing one.
	CreateOrLoad(ctx context.Context) (Handle, error)
	// Sign returns a serialised Sui passkey signature over txBytes.
	Sign(ctx context.Context, handle Handle, txBytes []byte) ([]byte, error)
	// ChallengeSign signs message with whichever credential the device
	// chooses and returns every public key consistent with the signature.
	ChallengeSign(ctx context.Context, message []byte) ([][]byte, error)
}

// NewHandle derives the account address for a compressed public key.
func NewHandle(id string, publicKey []byte) Handle {
	if id == "" {
		id = hex.EncodeToString(publicKey)
	}
	return Handle{
		ID:        id,
		PublicKey: append([]byte(nil), publicKey...),
		Address:   sui.AddressFromPublicKey(sui.FlagPasskey, publicKey),
	}
}

// FindCommonPublicKey returns the single key present in both candidate
// lists.
func FindCommonPublicKey(a, b [][]byte) ([]byte, error) {
	var common []byte
	for _, x := range a {
		for _, y := range b {
			if !bytes.Equal(x, y) {
				continue
			}
			if common != nil && !bytes.Equal(common, x) {
				return nil, errors.New("more than one public key matches both challenges")
			}
			common = x
		}
	}
	if common == nil {
		return nil, errors.New("no public key matches both challenges")
	}
	return append([]byte(nil), common...), nil
}

// Recover identifies the device-held credential by signing the two recovery
// challenges and intersecting the candidate keys.
func Recover(ctx context.Context, p Provider) (Handle, error) {
	first, err := p.ChallengeSign(ctx, RecoveryMessageA)
	if err != nil {
		return Handle{}, fmt.Errorf("first recovery challenge: %w", err)
	}
	second, err := p.ChallengeSign(ctx, RecoveryMessageB)
	if err != nil {
		return Handle{}, fmt.Errorf("second recovery challenge: %w", err)
	}
	pk, err := FindCommonPublicKey(first, second)
	if err != nil {
		return Handle{}, err
	}
	return NewHandle("", pk), nil
}
