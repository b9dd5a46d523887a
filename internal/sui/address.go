package sui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

// AddressLength is the byte length of a Sui account address.
const AddressLength = 32

// Signature scheme flags prefixed to public keys and serialised signatures.
const (
	FlagEd25519   byte = 0x00
	FlagSecp256k1 byte = 0x01
	FlagSecp256r1 byte = 0x02
	FlagPasskey   byte = 0x06
)

var addressPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// IsAddress reports whether s has the canonical address shape: 64 hex
// characters with an optional 0x prefix, in any case.
func IsAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeAddress returns the lowercase 0x-prefixed form of an address.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("%q is not a valid Sui address", s)
	}
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s, nil
}

// AddressBytes decodes an address into its fixed-width byte form.
func AddressBytes(s string) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	normalized, err := NormalizeAddress(s)
	if err != nil {
		return out, err
	}
	raw, err := hexutil.Decode(normalized)
	if err != nil {
		return out, fmt.Errorf("decode address: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

// AddressFromPublicKey derives the account address owned by a public key of
// the given scheme: blake2b-256(flag || public key).
func AddressFromPublicKey(flag byte, publicKey []byte) string {
	payload := make([]byte, 0, len(publicKey)+1)
	payload = append(payload, flag)
	payload = append(payload, publicKey...)
	sum := blake2b.Sum256(payload)
	return hexutil.Encode(sum[:])
}

// ShortAddress abbreviates an address for status messages.
func ShortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:8] + "…" + addr[len(addr)-6:]
}
