/*-------------------------------------------------------------------------
 *
 * encryption.go
 *    AES-GCM encryption of stored credentials
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/credentials/encryption.go
 *
 *-------------------------------------------------------------------------
 */

package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 100000

/* Encryption seals secrets with a key derived from a passphrase */
type Encryption struct {
	aead cipher.AEAD
}

/* NewEncryption derives an AES-256 key from secretKey and salt */
func NewEncryption(secretKey string, salt []byte) (*Encryption, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("encryption setup failed: empty_key=true")
	}
	if len(salt) == 0 {
		salt = []byte("neuronboard-credentials")
	}
	key := pbkdf2.Key([]byte(secretKey), salt, pbkdf2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryption setup failed: cipher_creation_error=true, error=%w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption setup failed: gcm_creation_error=true, error=%w", err)
	}
	return &Encryption{aead: aead}, nil
}

/* EncryptString encrypts plaintext and returns base64 of nonce||ciphertext */
func (e *Encryption) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encryption failed: nonce_creation_error=true, error=%w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

/* DecryptString reverses EncryptString */
func (e *Encryption) DecryptString(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decryption failed: base64_decode_error=true, error=%w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("decryption failed: invalid_ciphertext_length=true, length=%d", len(data))
	}
	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: decryption_error=true, error=%w", err)
	}
	return string(plaintext), nil
}
