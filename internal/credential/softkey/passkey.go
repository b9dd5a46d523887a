// Package softkey is a software passkey: a P-256 credential kept in an
// encrypted keystore file that produces the same WebAuthn assertions a
// platform authenticator would. It lets the wallet run headless (CLI, API,
// tests) where no browser ceremony is available.
package softkey

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"PasskeyWallet/internal/credential"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/pkg/logger"
)

// authenticator data flags: user present and user verified.
const assertionFlags = 0x01 | 0x04

// Config describes the keystore and the relying party the assertions are
// issued for.
type Config struct {
	KeystorePath string
	Password     string
	RPID         string
	Origin       string
	// ScryptN overrides the keystore KDF cost for newly created keystores.
	ScryptN int
}

// Provider implements credential.Provider with a local key.
type Provider struct {
	cfg Config

	mu      sync.Mutex
	priv    *ecdsa.PrivateKey
	handle  credential.Handle
	counter uint32
}

// New returns a provider; the keystore is opened lazily on first use.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		return nil, errors.New("keystore path is required")
	}
	if cfg.RPID == "" {
		cfg.RPID = "localhost"
	}
	if cfg.Origin == "" {
		cfg.Origin = "http://" + cfg.RPID
	}
	if cfg.ScryptN <= 0 {
		cfg.ScryptN = DefaultScryptN
	}
	return &Provider{cfg: cfg}, nil
}

// CreateOrLoad opens the keystore, creating a fresh credential when none
// exists yet.
func (p *Provider) CreateOrLoad(ctx context.Context) (credential.Handle, error) {
	if err := ctx.Err(); err != nil {
		return credential.Handle{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.unlockLocked()
	if err == nil {
		return p.handle, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return credential.Handle{}, err
	}

	password, err := p.password()
	if err != nil {
		return credential.Handle{}, err
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return credential.Handle{}, fmt.Errorf("generate passkey: %w", err)
	}
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return credential.Handle{}, fmt.Errorf("generate credential id: %w", err)
	}
	handle := credential.NewHandle(base64.RawURLEncoding.EncodeToString(idBytes), compress(&priv.PublicKey))

	ks := keystoreFile{
		CredentialID: handle.ID,
		Address:      handle.Address,
		PublicKey:    hex.EncodeToString(handle.PublicKey),
	}
	if err := writeKeystore(p.cfg.KeystorePath, ks, priv, password, p.cfg.ScryptN); err != nil {
		return credential.Handle{}, err
	}
	p.priv, p.handle = priv, handle
	logger.Audit().Info("passkey_created", "credential_id", handle.ID, "address", handle.Address)
	return handle, nil
}

// Sign produces a Sui passkey signature over the transaction intent digest.
func (p *Provider) Sign(ctx context.Context, handle credential.Handle, txBytes []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.unlockLocked(); err != nil {
		return nil, err
	}
	if !bytes.Equal(handle.PublicKey, p.handle.PublicKey) {
		return nil, fmt.Errorf("credential %s is not held by this device", handle.ID)
	}
	digest := sui.IntentDigest(txBytes)
	assertion, err := p.assertLocked(digest[:])
	if err != nil {
		return nil, err
	}
	return sui.SerializePasskeySignature(assertion)
}

// ChallengeSign signs message as a WebAuthn challenge and recovers the
// candidate public keys from the resulting assertion.
func (p *Provider) ChallengeSign(ctx context.Context, message []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.unlockLocked(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("no passkey found on this device")
		}
		return nil, err
	}
	assertion, err := p.assertLocked(message)
	if err != nil {
		return nil, err
	}
	return RecoverP256(assertionDigest(assertion.AuthenticatorData, assertion.ClientDataJSON), assertion.Signature)
}

func (p *Provider) unlockLocked() error {
	if p.priv != nil {
		return nil
	}
	if _, err := os.Stat(p.cfg.KeystorePath); err != nil {
		return err
	}
	password, err := p.password()
	if err != nil {
		return err
	}
	ks, priv, err := readKeystore(p.cfg.KeystorePath, password)
	if err != nil {
		return err
	}
	p.priv = priv
	p.handle = credential.NewHandle(ks.CredentialID, compress(&priv.PublicKey))
	return nil
}

func (p *Provider) password() ([]byte, error) {
	if p.cfg.Password == "" {
		return nil, errors.New("keystore password is not set")
	}
	return []byte(p.cfg.Password), nil
}

type clientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

func (p *Provider) assertLocked(challenge []byte) (sui.PasskeyAssertion, error) {
	cdj, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    p.cfg.Origin,
	})
	if err != nil {
		return sui.PasskeyAssertion{}, fmt.Errorf("encode client data: %w", err)
	}

	p.counter++
	rpHash := sha256.Sum256([]byte(p.cfg.RPID))
	authData := make([]byte, 0, 37)
	authData = append(authData, rpHash[:]...)
	authData = append(authData, assertionFlags)
	authData = binary.BigEndian.AppendUint32(authData, p.counter)

	digest := assertionDigest(authData, string(cdj))
	r, s, err := ecdsa.Sign(rand.Reader, p.priv, digest)
	if err != nil {
		return sui.PasskeyAssertion{}, fmt.Errorf("sign assertion: %w", err)
	}
	s = normalizeLowS(s)
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	return sui.PasskeyAssertion{
		AuthenticatorData: authData,
		ClientDataJSON:    string(cdj),
		Signature:         sig,
		PublicKey:         compress(&p.priv.PublicKey),
	}, nil
}

func compress(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y)
}

var _ credential.Provider = (*Provider)(nil)
