package database

import "errors"

var (
	ErrNotFound             = errors.New("database: entity not found")
	ErrTenantNotFound       = errors.New("database: tenant not found")
	ErrApiKeyNotFound       = errors.New("database: api key not found")
	ErrConsentNotFound      = errors.New("database: consent not found")
	ErrIdentityKeyNotFound  = errors.New("database: identity key not found")
	ErrIdempotencyNotFound  = errors.New("database: idempotency record not found")
	// ErrAppendOnlyViolation wraps any attempt to UPDATE or DELETE a row in
	// one of the append-only tables; the schema's before-update/before-delete
	// triggers (pkg/database/migrations/0002_append_only.sql) reject the
	// statement and the pq error is translated to this sentinel by
	// ClassifyPQError, so callers can emit security.append_only_violation_attempt
	// without parsing driver-specific error text themselves.
	ErrAppendOnlyViolation  = errors.New("database: append-only violation attempt")
)
