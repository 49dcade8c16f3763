// Package crypto provides the envelope-sealing primitive used at the vault
// boundary: values are sealed to a vault's public key, and the vault's
// private key is itself sealed under the platform master key held by the
// boundary service.
//
// The engine treats this as a black box; only key generation and Seal run on
// the engine side. Open exists for the local enclave used in development and
// tests.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the byte length of public and private keys.
const KeySize = 32

// GenerateKeypair creates a fresh X25519 keypair from the OS CSPRNG.
func GenerateKeypair() (publicKey, privateKey []byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	return pub[:], priv[:], nil
}

// Seal encrypts plaintext to the recipient public key using an anonymous
// sealed box. Each call produces a distinct ciphertext.
func Seal(recipientPublicKey, plaintext []byte) ([]byte, error) {
	pub, err := toKey(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	sealed, err := box.SealAnonymous(nil, plaintext, pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return sealed, nil
}

// Open decrypts a sealed box with the recipient keypair.
func Open(recipientPublicKey, recipientPrivateKey, sealed []byte) ([]byte, error) {
	pub, err := toKey(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	priv, err := toKey(recipientPrivateKey)
	if err != nil {
		return nil, err
	}
	plaintext, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	if !ok {
		return nil, fmt.Errorf("open: ciphertext rejected")
	}
	return plaintext, nil
}

// Fingerprint computes the salted deterministic hash of a plaintext value:
// HMAC-SHA256 keyed by the salt. Equal (salt, value) pairs always collide,
// which is what makes fingerprint equality search work.
func Fingerprint(salt, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(plaintext)
	return mac.Sum(nil)
}

func toKey(b []byte) (*[KeySize]byte, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	var k [KeySize]byte
	copy(k[:], b)
	return &k, nil
}
