// Package server implements the HTTP surface of §6: a manually routed
// *http.ServeMux (no router framework, mirroring the validator's own
// server package), with auth, rate-limiting, idempotency, and tenant
// lifecycle enforcement composed as explicit helper calls inside each
// handler rather than a generic middleware chain.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/cryptosign"
	"github.com/nehagowda06/consent-ledger/pkg/database"
	"github.com/nehagowda06/consent-ledger/pkg/failure"
	"github.com/nehagowda06/consent-ledger/pkg/logging"
	"github.com/nehagowda06/consent-ledger/pkg/metrics"
	"github.com/nehagowda06/consent-ledger/pkg/ratelimit"
	"github.com/nehagowda06/consent-ledger/pkg/webhook"
)

// Closed error-code set from §6.
const (
	CodeAuthMissing        = "AUTH_MISSING"
	CodeAuthInvalid        = "AUTH_INVALID"
	CodeAuthRevoked        = "AUTH_REVOKED"
	CodeTenantDisabled     = "TENANT_DISABLED"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeForbidden          = "FORBIDDEN"
	CodeInternalError      = "INTERNAL_ERROR"
)

// maxVerifyBodyBytes bounds the public verify endpoints per §6.
const maxVerifyBodyBytes = 262144

// Server holds every dependency a handler needs: the repositories, the
// process-wide metrics registry, the rate limit and signing configuration,
// and (optionally) a system signing key used to co-sign exports and
// proofs.
type Server struct {
	Env            string
	AdminApiKey    string
	ApiKeyHashSecret string
	RateLimitPerMin int
	AnchorCommitFilePath string

	DB          *database.Client
	Tenants     *database.TenantRepository
	ApiKeys     *database.ApiKeyRepository
	Consents    *database.ConsentRepository
	Audits      *database.AuditRepository
	Lineage     *database.LineageRepository
	System      *database.SystemEventRepository
	Idempotency *database.IdempotencyRepository
	RateLimits  *database.RateLimitRepository
	Assertions  *database.AssertionRepository
	IdentityKeys *database.IdentityKeyRepository
	Webhooks    *database.WebhookRepository

	Metrics *metrics.Registry
	Logger  *log.Logger

	Worker *webhook.Worker

	Signer            *cryptosign.Signer
	SignerFingerprint string
}

// Mux builds the complete routing table described by §6.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/ready", s.handleReady)

	mux.HandleFunc("/consents", s.handleConsentsCollection)
	mux.HandleFunc("/consents/", s.handleConsentsItem)

	mux.HandleFunc("/lineage/verify", s.handleVerifyLineage)
	mux.HandleFunc("/proofs/verify", s.handleVerifyProof)
	mux.HandleFunc("/anchors/verify", s.handleVerifyAnchor)
	mux.HandleFunc("/system/verify", s.handleVerifySystem)

	mux.HandleFunc("/admin/tenants", s.handleAdminTenantsCollection)
	mux.HandleFunc("/admin/tenants/", s.handleAdminTenantsItem)
	mux.HandleFunc("/admin/anchors/snapshot", s.handleAdminAnchorSnapshot)
	mux.HandleFunc("/admin/system/export", s.handleAdminSystemExport)
	mux.HandleFunc("/admin/system/verify", s.handleAdminSystemVerify)

	return mux
}

// ---- envelope helpers, grounded on the validator server package's
// writeJSON/writeError pair (pkg/server/proof_handlers.go). ----

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeErr(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}

func newRequestID() string { return uuid.New().String() }

// authedTenant is the resolved identity of an authenticated write/read
// request against the tenant-scoped API.
type authedTenant struct {
	Tenant *database.TenantRow
	ApiKey *database.ApiKeyRow
}

// authenticate resolves the caller's API key per §6 (Bearer primary,
// X-Api-Key fallback), loads the owning tenant, and applies the fixed-window
// rate limit uniformly across every authenticated route (mirroring the
// original's require_tenant dependency, which every consent route is
// declared against). It does not enforce CanWrite; callers apply that gate
// only on write routes.
func (s *Server) authenticate(ctx context.Context, r *http.Request, requestID string) (*authedTenant, int, string, string) {
	raw := bearerToken(r)
	if raw == "" {
		raw = r.Header.Get("X-Api-Key")
	}
	if raw == "" {
		return nil, http.StatusUnauthorized, CodeAuthMissing, "missing API key"
	}

	keyHash := consent.HashApiKey(s.ApiKeyHashSecret, raw)
	row, err := s.ApiKeys.GetByHash(ctx, keyHash)
	if err != nil {
		return nil, http.StatusUnauthorized, CodeAuthInvalid, "invalid API key"
	}
	if row.RevokedAt != nil {
		return nil, http.StatusUnauthorized, CodeAuthRevoked, "API key has been revoked"
	}

	tenant, err := s.Tenants.GetByID(ctx, row.TenantID)
	if err != nil {
		return nil, http.StatusUnauthorized, CodeAuthInvalid, "tenant for API key not found"
	}

	allowed, err := s.checkRateLimit(ctx, ratelimit.Identity(row.KeyHash))
	if err != nil && !allowed {
		return nil, http.StatusServiceUnavailable, CodeInternalError, "rate limit store unavailable"
	}
	if !allowed {
		s.Metrics.Increment(metrics.RateLimitExceeded)
		return nil, http.StatusTooManyRequests, CodeRateLimitExceeded, "rate limit exceeded"
	}

	return &authedTenant{Tenant: tenant, ApiKey: row}, 0, "", ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, prefix))
	}
	return ""
}

// requireAdmin checks X-Admin-Api-Key against the configured admin key.
func (s *Server) requireAdmin(r *http.Request) bool {
	if s.AdminApiKey == "" {
		return false
	}
	got := r.Header.Get("X-Admin-Api-Key")
	return got != "" && constantTimeEqual(got, s.AdminApiKey)
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// checkRateLimit enforces the fixed 60-second window for identity. On a
// store failure it fails open outside prod and fails closed (503) in prod,
// per pkg/ratelimit's FailOpen policy.
func (s *Server) checkRateLimit(ctx context.Context, identity string) (allowed bool, storeErr error) {
	now := time.Now().UTC()
	window := ratelimit.Window(now)
	count, err := s.RateLimits.IncrementAndGet(ctx, identity, window)
	if err != nil {
		return ratelimit.FailOpen(s.Env), err
	}
	go s.RateLimits.EvictBefore(context.Background(), ratelimit.EvictBefore(window))
	return ratelimit.Evaluate(count, s.RateLimitPerMin).Allowed, nil
}

// recordSystemFailure emits a best-effort system event for an operation
// failure on a fresh session, per §7's propagation policy. Callers invoke it
// while their transaction is still open; that transaction is rolled back by
// the caller's deferred Rollback when the handler returns. appendSystemEvent
// always opens its own context, independent of any caller transaction, so
// the event never shares that transaction.
func (s *Server) recordSystemFailure(tenantID *uuid.UUID, operation string, err error) {
	class := failure.Classify(err)
	s.Metrics.Increment(metrics.OperationFailed)
	logging.Structured(s.Logger, failure.EventType(operation), map[string]string{
		"operation":     operation,
		"failure_class": string(class),
	})
	s.appendSystemEvent(tenantID, failure.EventType(operation), nil, nil, map[string]string{
		"failure_class": string(class),
	})
}

func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
