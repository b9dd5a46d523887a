package softkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"math/big"
)

// assertionDigest is the hash a WebAuthn authenticator signs:
// sha256(authenticatorData || sha256(clientDataJSON)).
func assertionDigest(authData []byte, clientDataJSON string) []byte {
	clientHash := sha256.Sum256([]byte(clientDataJSON))
	msg := make([]byte, 0, len(authData)+len(clientHash))
	msg = append(msg, authData...)
	msg = append(msg, clientHash[:]...)
	digest := sha256.Sum256(msg)
	return digest[:]
}

// RecoverP256 returns the compressed public keys that verify sig (r||s) over
// hash. A secp256r1 signature is consistent with up to two keys, one per
// parity of the nonce point.
func RecoverP256(hash, sig []byte) ([][]byte, error) {
	if len(sig) != 64 {
		return nil, errors.New("signature must be 64 bytes")
	}
	curve := elliptic.P256()
	params := curve.Params()

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if r.Sign() == 0 || s.Sign() == 0 || r.Cmp(params.N) >= 0 || s.Cmp(params.N) >= 0 {
		return nil, errors.New("signature scalars out of range")
	}

	// R.x = r; the r+n case is negligible for P-256.
	x := r
	y2 := new(big.Int).Exp(x, big.NewInt(3), params.P)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	y2.Sub(y2, threeX)
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)
	y := new(big.Int).ModSqrt(y2, params.P)
	if y == nil {
		return nil, errors.New("signature r is not a curve x-coordinate")
	}

	e := new(big.Int).SetBytes(hash)
	e.Mod(e, params.N)
	rInv := new(big.Int).ModInverse(r, params.N)
	eGx, eGy := curve.ScalarBaseMult(e.Bytes())
	negEGy := new(big.Int).Sub(params.P, eGy)
	negEGy.Mod(negEGy, params.P)

	var out [][]byte
	for _, ry := range []*big.Int{y, new(big.Int).Sub(params.P, y)} {
		sRx, sRy := curve.ScalarMult(x, ry, s.Bytes())
		sumX, sumY := curve.Add(sRx, sRy, eGx, negEGy)
		qx, qy := curve.ScalarMult(sumX, sumY, rInv.Bytes())
		if qx.Sign() == 0 && qy.Sign() == 0 {
			continue
		}
		pub := &ecdsa.PublicKey{Curve: curve, X: qx, Y: qy}
		if !ecdsa.Verify(pub, hash, r, s) {
			continue
		}
		out = append(out, elliptic.MarshalCompressed(curve, qx, qy))
	}
	if len(out) == 0 {
		return nil, errors.New("no public key recovered from signature")
	}
	return out, nil
}

// normalizeLowS returns the canonical low-s form required by the network.
func normalizeLowS(s *big.Int) *big.Int {
	n := elliptic.P256().Params().N
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return s
}
