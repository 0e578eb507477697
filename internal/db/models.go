/*-------------------------------------------------------------------------
 *
 * models.go
 *    Tool server, OAuth and credential models
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/db/models.go
 *
 *-------------------------------------------------------------------------
 */

package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* Tool server transports */
const (
	TransportHosted = "hosted"
	TransportRemote = "remote"
)

/* Tool server auth types */
const (
	AuthTypeNone   = "none"
	AuthTypeAPIKey = "apiKey"
	AuthTypeOAuth  = "oauth"
)

/* Tool server connection status */
const (
	ServerStatusDisconnected = "disconnected"
	ServerStatusConnected    = "connected"
	ServerStatusError        = "error"
)

/* ToolServer is the configuration of one tool server attached to a project */
type ToolServer struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	ProjectID     string        `db:"project_id" json:"project_id"`
	Name          string        `db:"name" json:"name"`
	Transport     string        `db:"transport" json:"transport"`
	Streamable    bool          `db:"streamable" json:"streamable"`
	URL           string        `db:"url" json:"url,omitempty"`
	HostedKind    string        `db:"hosted_kind" json:"hosted_kind,omitempty"`
	AuthType      string        `db:"auth_type" json:"auth_type"`
	CredentialRef string        `db:"credential_ref" json:"credential_ref,omitempty"`
	OAuthProvider string        `db:"oauth_provider" json:"oauth_provider,omitempty"`
	Scopes        StringList    `db:"scopes" json:"scopes"`
	ApprovalRules ApprovalRules `db:"approval_rules" json:"approval_rules"`
	Enabled       bool          `db:"enabled" json:"enabled"`
	Status        string        `db:"status" json:"status"`
	LastError     string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

/* PendingAuthorization is a single-use OAuth authorization in flight */
type PendingAuthorization struct {
	Nonce        string     `db:"nonce"`
	ServerID     uuid.UUID  `db:"server_id"`
	ProjectID    string     `db:"project_id"`
	Provider     string     `db:"provider"`
	CodeVerifier string     `db:"code_verifier"`
	RedirectURI  string     `db:"redirect_uri"`
	Scopes       StringList `db:"scopes"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

/* StoredCredential is an encrypted secret row */
type StoredCredential struct {
	ID         uuid.UUID  `db:"id"`
	ProjectID  string     `db:"project_id"`
	Kind       string     `db:"kind"`
	Ref        string     `db:"ref"`
	SecretEnc  string     `db:"secret_enc"`
	RefreshEnc string     `db:"refresh_enc"`
	Account    string     `db:"account"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

/* StringList is a JSON encoded list of strings */
type StringList []string

/* Value implements driver.Valuer */
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

/* Scan implements sql.Scanner */
func (s *StringList) Scan(src interface{}) error {
	return scanJSON(src, (*[]string)(s))
}

/* ApprovalRules maps tool name to fields that require approval */
type ApprovalRules map[string][]string

/* Value implements driver.Valuer */
func (a ApprovalRules) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string][]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

/* Scan implements sql.Scanner */
func (a *ApprovalRules) Scan(src interface{}) error {
	return scanJSON(src, (*map[string][]string)(a))
}

func scanJSON(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("json scan failed: unsupported_type=%T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
