/*-------------------------------------------------------------------------
 *
 * pkce.go
 *    PKCE verifier, challenge and nonce helpers
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/oauth/pkce.go
 *
 *-------------------------------------------------------------------------
 */

package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

/* generateCodeVerifier returns 32 random bytes, base64url encoded */
func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64URLEncode(b), nil
}

/* codeChallenge is the S256 challenge for a verifier */
func codeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64URLEncode(h[:])
}

func generateNonce() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64URLEncode(b), nil
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
