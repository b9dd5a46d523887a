package softkey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersion = 1

	// DefaultScryptN costs roughly 256MB and under two seconds per unlock.
	DefaultScryptN = 1 << 18
	scryptR        = 8
	scryptP        = 1
	scryptKeyLen   = 32
	saltLen        = 32
	nonceLen       = 12
)

// keystoreFile is the on-disk format. Only the private key is encrypted.
type keystoreFile struct {
	Version      int    `json:"version"`
	CredentialID string `json:"credential_id"`
	Address      string `json:"address"`
	PublicKey    string `json:"public_key"`
	ScryptN      int    `json:"scrypt_n"`
	Salt         string `json:"salt"`
	Nonce        string `json:"nonce"`
	CipherText   string `json:"ciphertext"`
}

func deriveKey(password []byte, salt []byte, n int) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, n, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// writeKeystore encrypts priv with password and writes it to path. An
// existing non-empty file is never overwritten.
func writeKeystore(path string, ks keystoreFile, priv *ecdsa.PrivateKey, password []byte, n int) error {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return fmt.Errorf("keystore %s is not empty: %w", path, os.ErrExist)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := deriveKey(password, salt, n)
	if err != nil {
		return err
	}
	plaintext, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	defer clear(plaintext)

	ks.Version = keystoreVersion
	ks.ScryptN = n
	ks.Salt = base64.StdEncoding.EncodeToString(salt)
	ks.Nonce = base64.StdEncoding.EncodeToString(nonce)
	ks.CipherText = base64.StdEncoding.EncodeToString(aesGCM.Seal(nil, nonce, plaintext, nil))

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// readKeystore decrypts the private key stored at path.
func readKeystore(path string, password []byte) (keystoreFile, *ecdsa.PrivateKey, error) {
	var ks keystoreFile
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ks, nil, err
		}
		return ks, nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	if len(data) == 0 {
		return ks, nil, errors.New("keystore file is empty")
	}
	if err := json.Unmarshal(data, &ks); err != nil {
		return ks, nil, fmt.Errorf("failed to unmarshal keystore: %w", err)
	}
	if ks.Version != keystoreVersion {
		return ks, nil, fmt.Errorf("unsupported keystore version %d", ks.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(ks.Salt)
	if err != nil {
		return ks, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(ks.Nonce)
	if err != nil {
		return ks, nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ks.CipherText)
	if err != nil {
		return ks, nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	n := ks.ScryptN
	if n <= 0 {
		n = DefaultScryptN
	}
	aesGCM, err := deriveKey(password, salt, n)
	if err != nil {
		return ks, nil, err
	}
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ks, nil, errors.New("invalid keystore password")
	}
	defer clear(plaintext)

	priv, err := x509.ParseECPrivateKey(plaintext)
	if err != nil {
		return ks, nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return ks, priv, nil
}
