package sui

import (
	"errors"
	"fmt"
)

// CompressedP256Length is the size of a compressed secp256r1 public key.
const CompressedP256Length = 33

// PasskeyAssertion is the WebAuthn output a passkey signature is built from.
type PasskeyAssertion struct {
	AuthenticatorData []byte
	ClientDataJSON    string
	// Signature is the 64-byte r||s secp256r1 signature, low-s normalised.
	Signature []byte
	// PublicKey is the compressed 33-byte secp256r1 key.
	PublicKey []byte
}

// SerializePasskeySignature encodes an assertion as a Sui user signature:
// flag 0x06 followed by the BCS PasskeyAuthenticator.
func SerializePasskeySignature(a PasskeyAssertion) ([]byte, error) {
	if len(a.Signature) != 64 {
		return nil, fmt.Errorf("passkey signature must be 64 bytes, got %d", len(a.Signature))
	}
	if len(a.PublicKey) != CompressedP256Length {
		return nil, fmt.Errorf("passkey public key must be %d bytes, got %d", CompressedP256Length, len(a.PublicKey))
	}
	if len(a.AuthenticatorData) == 0 || a.ClientDataJSON == "" {
		return nil, errors.New("authenticator data and client data are required")
	}

	userSig := make([]byte, 0, 1+64+CompressedP256Length)
	userSig = append(userSig, FlagSecp256r1)
	userSig = append(userSig, a.Signature...)
	userSig = append(userSig, a.PublicKey...)

	w := &bcsWriter{}
	w.u8(FlagPasskey)
	w.vector(a.AuthenticatorData)
	w.str(a.ClientDataJSON)
	w.vector(userSig)
	return w.Bytes(), nil
}
