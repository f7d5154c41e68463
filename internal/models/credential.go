// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package models

import "time"

// Credential is the stored external access credential for one user.
//
// The access token is encrypted at rest (see psn.Vault). The engine only
// reads credentials and detects expiry; obtaining and refreshing them is
// the host application's concern.
type Credential struct {
	UserID     string `json:"user_id"`
	ExternalID string `json:"external_id"`

	// EncryptedAccessToken is the sealed bearer token.
	EncryptedAccessToken []byte `json:"encrypted_access_token"`

	TokenType string    `json:"token_type"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`

	Active     bool       `json:"active"`
	SyncErrors int        `json:"sync_errors"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key returns the credential's natural key.
func (c *Credential) Key() string { return c.UserID }

// Expired reports whether the credential's recorded expiry has passed.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
