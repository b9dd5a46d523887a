package sui

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// CoinType is the Move type of the native coin.
	CoinType = "0x2::sui::SUI"
	// GasPrice is the reference gas price set on every transfer.
	GasPrice uint64 = 1000
	// GasBudget caps the gas a transfer may consume, in MIST.
	GasBudget uint64 = 2_000_000
	// MaxGasObjects is the protocol limit on gas payment coins.
	MaxGasObjects = 256
)

// enum tags of the transaction data layout.
const (
	tagTransactionDataV1      = 0
	tagProgrammableTx         = 0
	tagCallArgPure            = 0
	tagCommandTransferObjects = 1
	tagCommandSplitCoins      = 2
	tagArgumentGasCoin        = 0
	tagArgumentInput          = 1
	tagArgumentNestedResult   = 3
	tagExpirationNone         = 0
)

// ObjectRef identifies a specific version of an owned object.
type ObjectRef struct {
	ObjectID string `json:"objectId"`
	Version  uint64 `json:"version"`
	Digest   string `json:"digest"`
}

// TransferSpec describes a transfer that splits Amount off the gas coin and
// sends it to Recipient.
type TransferSpec struct {
	Sender    string
	Recipient string
	Amount    *big.Int
	Payment   []ObjectRef
	GasPrice  uint64
	GasBudget uint64
}

// BuildTransfer serialises the transfer as TransactionData ready for
// signing. The programmable transaction is
//
//	SplitCoins(GasCoin, [Input(0)])
//	TransferObjects([NestedResult(0, 0)], Input(1))
//
// with the amount and recipient as pure inputs.
func BuildTransfer(spec TransferSpec) ([]byte, error) {
	if spec.Amount == nil || spec.Amount.Sign() <= 0 || !spec.Amount.IsUint64() {
		return nil, errors.New("transfer amount must be a positive u64")
	}
	if len(spec.Payment) == 0 {
		return nil, errors.New("at least one gas payment coin is required")
	}
	if len(spec.Payment) > MaxGasObjects {
		spec.Payment = spec.Payment[:MaxGasObjects]
	}
	sender, err := AddressBytes(spec.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	recipient, err := AddressBytes(spec.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if spec.GasPrice == 0 {
		spec.GasPrice = GasPrice
	}
	if spec.GasBudget == 0 {
		spec.GasBudget = GasBudget
	}

	w := &bcsWriter{}
	w.u8(tagTransactionDataV1)
	w.u8(tagProgrammableTx)

	// inputs
	w.length(2)
	w.u8(tagCallArgPure)
	w.length(8)
	w.u64(spec.Amount.Uint64())
	w.u8(tagCallArgPure)
	w.vector(recipient[:])

	// commands
	w.length(2)
	w.u8(tagCommandSplitCoins)
	w.u8(tagArgumentGasCoin)
	w.length(1)
	w.u8(tagArgumentInput)
	w.u16(0)

	w.u8(tagCommandTransferObjects)
	w.length(1)
	w.u8(tagArgumentNestedResult)
	w.u16(0)
	w.u16(0)
	w.u8(tagArgumentInput)
	w.u16(1)

	w.fixed(sender[:])

	// gas data
	w.length(len(spec.Payment))
	for i, ref := range spec.Payment {
		if err := writeObjectRef(w, ref); err != nil {
			return nil, fmt.Errorf("gas coin %d: %w", i, err)
		}
	}
	w.fixed(sender[:])
	w.u64(spec.GasPrice)
	w.u64(spec.GasBudget)

	w.u8(tagExpirationNone)
	return w.Bytes(), nil
}

func writeObjectRef(w *bcsWriter, ref ObjectRef) error {
	id, err := AddressBytes(ref.ObjectID)
	if err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	digest, err := base58.Decode(ref.Digest)
	if err != nil {
		return fmt.Errorf("object digest: %w", err)
	}
	if len(digest) != 32 {
		return fmt.Errorf("object digest has %d bytes, want 32", len(digest))
	}
	w.fixed(id[:])
	w.u64(ref.Version)
	w.vector(digest)
	return nil
}

// IntentMessage prefixes transaction bytes with the TransactionData intent
// (scope 0, version 0, app id Sui).
func IntentMessage(txBytes []byte) []byte {
	msg := make([]byte, 0, len(txBytes)+3)
	msg = append(msg, 0, 0, 0)
	return append(msg, txBytes...)
}

// IntentDigest is the blake2b-256 hash that transaction signatures commit to.
func IntentDigest(txBytes []byte) [32]byte {
	return blake2b.Sum256(IntentMessage(txBytes))
}

// TransactionDigest computes the base58 digest the network assigns to the
// transaction once executed.
func TransactionDigest(txBytes []byte) string {
	payload := make([]byte, 0, len(txBytes)+len("TransactionData::"))
	payload = append(payload, "TransactionData::"...)
	payload = append(payload, txBytes...)
	sum := blake2b.Sum256(payload)
	return base58.Encode(sum[:])
}

// ExplorerTxURL links a transaction digest on suiscan.
func ExplorerTxURL(network, digest string) string {
	if network == "" {
		network = "testnet"
	}
	return fmt.Sprintf("https://suiscan.xyz/%s/tx/%s", network, digest)
}
