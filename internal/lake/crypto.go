package lake

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fluxcore/engine/internal/fluxerr"
)

// Argon2id parameters, adapted verbatim from the teacher's
// internal/sync/encrypt.go.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// deriveKey derives a 32-byte key from an operator-supplied secret and
// the lake's per-file salt.
func deriveKey(secret string, salt [saltLen]byte) []byte {
	return argon2.IDKey([]byte(secret), salt[:], argonTime, argonMemory, argonThreads, argonKeyLen)
}

// sealRecord encrypts plaintext under key, with a nonce built from the
// file's salt and a monotone counter: the first 16 bytes are the salt,
// the last 8 are the big-endian counter, so nonce reuse is structurally
// impossible as long as the counter only increases (spec.md §4.8).
func sealRecord(key []byte, salt [saltLen]byte, counter uint64, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("lake: create cipher: %w", err)
	}
	nonce = make([]byte, nonceLen)
	copy(nonce, salt[:])
	binary.BigEndian.PutUint64(nonce[16:], counter)
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

func openRecord(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("lake: create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fluxerr.InvalidKey
	}
	return plaintext, nil
}
