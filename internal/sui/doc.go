// Package sui holds the Sui network primitives the wallet needs without a
// full SDK: address shape checks and derivation, SUI amount conversion, the
// BCS encoding of a split-and-transfer programmable transaction, and the
// intent digest that passkey signatures commit to.
package sui
