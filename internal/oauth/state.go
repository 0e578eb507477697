/*-------------------------------------------------------------------------
 *
 * state.go
 *    Signed OAuth state
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/oauth/state.go
 *
 *-------------------------------------------------------------------------
 */

package oauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

/* StateClaims is carried by the state parameter through the provider */
type StateClaims struct {
	ServerID  string `json:"server_id"`
	ProjectID string `json:"project_id"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

/* StateSigner signs and verifies state with HS256 */
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

/* NewStateSigner creates a signer; secret must be at least 32 bytes */
func NewStateSigner(secret string) (*StateSigner, error) {
	if len(secret) < 32 {
		return nil, errors.New("oauth state secret must be at least 32 bytes")
	}
	return &StateSigner{secret: []byte(secret), now: time.Now}, nil
}

/* Sign issues a state expiring at expiresAt */
func (s *StateSigner) Sign(serverID, projectID, nonce string, expiresAt time.Time) (string, error) {
	claims := &StateClaims{
		ServerID:  serverID,
		ProjectID: projectID,
		Nonce:     nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("oauth state signing failed: error=%w", err)
	}
	return signed, nil
}

/* Verify checks signature and expiry and returns the claims */
func (s *StateSigner) Verify(state string) (*StateClaims, error) {
	claims := &StateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid state token")
	}
	if claims.Nonce == "" || claims.ServerID == "" {
		return nil, errors.New("state token is missing claims")
	}
	return claims, nil
}
