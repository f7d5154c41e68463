// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package psn

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the closed taxonomy every upstream failure is
// mapped into. Callers branch on these with errors.Is; no raw transport
// or decode error crosses the package boundary.
var (
	// ErrAuthExpired means the stored credential was rejected (HTTP 401).
	// Terminal for the job: retrying cannot help until the credential is
	// replaced.
	ErrAuthExpired = errors.New("psn: authentication expired")

	// ErrForbidden means the account's trophy data is not visible to the
	// caller (HTTP 403, private profile). Non-fatal: the specific call
	// degrades to no data.
	ErrForbidden = errors.New("psn: access forbidden")

	// ErrNotFound means the requested account or title does not exist
	// upstream (HTTP 404).
	ErrNotFound = errors.New("psn: not found")

	// ErrTransient covers timeouts, connection failures, and 5xx
	// responses that survived the retry budget.
	ErrTransient = errors.New("psn: transient upstream failure")

	// ErrSchemaDrift means a payload arrived without a field the caller
	// cannot default. Affected records are dropped, not the whole call.
	ErrSchemaDrift = errors.New("psn: unrecognized payload shape")

	// ErrNoCredential means no active credential is stored for the user.
	ErrNoCredential = errors.New("psn: no active credential")
)

// APIError wraps a taxonomy sentinel with call context. It unwraps to
// the sentinel so errors.Is branching works on wrapped values.
type APIError struct {
	Kind       error  // one of the sentinel errors above
	Endpoint   string // logical endpoint name, not the full URL
	StatusCode int    // zero when the failure happened before a response
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v (endpoint=%s, status=%d)", e.Kind, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%v (endpoint=%s, status=%d): %s", e.Kind, e.Endpoint, e.StatusCode, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// apiErr builds an APIError for the given sentinel and endpoint.
func apiErr(kind error, endpoint string, status int, detail string) *APIError {
	return &APIError{Kind: kind, Endpoint: endpoint, StatusCode: status, Detail: detail}
}

// IsTerminal reports whether err ends the sync job as failed rather
// than degrading a single call. Only expired authentication and total
// connectivity loss are terminal.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrTransient)
}

// outcomeLabel maps an error to the metrics outcome label for the call.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSchemaDrift):
		return "schema_drift"
	default:
		return "transient"
	}
}
