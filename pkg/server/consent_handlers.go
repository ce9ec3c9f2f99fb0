package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/database"
	"github.com/nehagowda06/consent-ledger/pkg/idempotency"
	"github.com/nehagowda06/consent-ledger/pkg/lineage"
	"github.com/nehagowda06/consent-ledger/pkg/metrics"
	"github.com/nehagowda06/consent-ledger/pkg/proof"
)

const maxWriteBodyBytes = 65536

type consentView struct {
	ID        uuid.UUID  `json:"id"`
	SubjectID string     `json:"subject_id"`
	Purpose   string     `json:"purpose"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func consentViewFromRow(r *database.ConsentRow) consentView {
	return consentView{
		ID: r.ID, SubjectID: r.SubjectID, Purpose: r.Purpose, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, RevokedAt: r.RevokedAt,
	}
}

// handleConsentsCollection serves POST /consents (create) and PUT /consents
// (set an existing consent's status).
func (s *Server) handleConsentsCollection(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	switch r.Method {
	case http.MethodPost:
		s.createConsent(w, r, requestID)
	case http.MethodPut:
		s.updateConsent(w, r, requestID)
	default:
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "method not allowed", requestID)
	}
}

type createConsentRequest struct {
	SubjectID string `json:"subject_id"`
	Purpose   string `json:"purpose"`
}

func (s *Server) createConsent(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx := r.Context()
	at, authStatus, authCode, authMsg := s.authenticate(ctx, r, requestID)
	if at == nil {
		writeErr(w, authStatus, authCode, authMsg, requestID)
		return
	}

	if !tenantCanWrite(at.Tenant) {
		s.Metrics.Increment(metrics.TenantWriteDenied)
		s.appendSystemEvent(&at.Tenant.ID, "tenant_write_denied", nil, nil, map[string]string{"reason": "lifecycle_state"})
		writeErr(w, http.StatusForbidden, CodeTenantDisabled, "tenant is not writable", requestID)
		return
	}

	rawBody, decoded, err := decodeBodyStrict(w, r, maxWriteBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, CodeValidationError, err.Error(), requestID)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if handled := s.replayIdempotent(w, ctx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, requestID); handled {
			return
		}
	}

	var req createConsentRequest
	if err := json.Unmarshal(rawBody, &req); err != nil || req.SubjectID == "" || req.Purpose == "" {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, "subject_id and purpose are required", requestID)
		return
	}

	if existing, err := s.Consents.GetBySubjectPurpose(ctx, at.Tenant.ID, req.SubjectID, req.Purpose); err == nil && existing != nil {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, "a consent for this subject and purpose already exists", requestID)
		return
	}

	now := time.Now().UTC()
	consentID := uuid.New()
	ev, err := lineage.Append(nil, at.Tenant.ID, consentID, lineage.ActionCreated, req.SubjectID, req.Purpose, consent.StatusActive, now)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to build lineage event", requestID)
		return
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusServiceUnavailable, CodeInternalError, "database unavailable", requestID)
		return
	}
	rollback := true
	defer func() {
		if rollback {
			tx.Rollback()
		}
	}()

	row := database.ConsentRow{
		ID: consentID, TenantID: at.Tenant.ID, SubjectID: req.SubjectID, Purpose: req.Purpose,
		Status: string(consent.StatusActive), CreatedAt: ev.CreatedAt, UpdatedAt: ev.CreatedAt,
	}
	if err := s.Consents.Insert(ctx, tx, &row); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusConflict, CodeValidationError, "failed to create consent", requestID)
		return
	}
	lrow := fromLineageEvent(*ev)
	if err := s.Lineage.Insert(ctx, tx, &lrow); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append lineage event", requestID)
		return
	}
	audit := database.AuditEventRow{ID: uuid.New(), TenantID: at.Tenant.ID, ConsentID: consentID, Action: lineage.ActionCreated, Actor: at.ApiKey.Label, At: ev.CreatedAt}
	if err := s.Audits.Insert(ctx, tx, &audit); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append audit event", requestID)
		return
	}

	view := consentViewFromRow(&row)
	if idemKey != "" {
		if err := s.persistIdempotentResponse(ctx, tx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, http.StatusCreated, view); err != nil {
			s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
			writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to persist idempotency record", requestID)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.created", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to commit", requestID)
		return
	}
	rollback = false

	s.appendSystemEvent(&at.Tenant.ID, "consent.created", strPtr("consent"), strPtr(consentID.String()), map[string]string{"subject_id": req.SubjectID, "purpose": req.Purpose})

	writeData(w, http.StatusCreated, view)
}

type updateConsentRequest struct {
	SubjectID string `json:"subject_id"`
	Purpose   string `json:"purpose"`
	Status    string `json:"status"`
}

func (s *Server) updateConsent(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx := r.Context()
	at, authStatus, authCode, authMsg := s.authenticate(ctx, r, requestID)
	if at == nil {
		writeErr(w, authStatus, authCode, authMsg, requestID)
		return
	}
	if !tenantCanWrite(at.Tenant) {
		s.Metrics.Increment(metrics.TenantWriteDenied)
		s.appendSystemEvent(&at.Tenant.ID, "tenant_write_denied", nil, nil, map[string]string{"reason": "lifecycle_state"})
		writeErr(w, http.StatusForbidden, CodeTenantDisabled, "tenant is not writable", requestID)
		return
	}

	rawBody, decoded, err := decodeBodyStrict(w, r, maxWriteBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, CodeValidationError, err.Error(), requestID)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if handled := s.replayIdempotent(w, ctx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, requestID); handled {
			return
		}
	}

	var req updateConsentRequest
	if err := json.Unmarshal(rawBody, &req); err != nil || req.SubjectID == "" || req.Purpose == "" {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, "subject_id and purpose are required", requestID)
		return
	}
	newStatus := consent.Status(req.Status)
	if newStatus != consent.StatusActive && newStatus != consent.StatusRevoked {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, "status must be ACTIVE or REVOKED", requestID)
		return
	}

	existing, err := s.Consents.GetBySubjectPurpose(ctx, at.Tenant.ID, req.SubjectID, req.Purpose)
	if err != nil {
		writeErr(w, http.StatusNotFound, CodeNotFound, "consent not found", requestID)
		return
	}

	action := lineage.ActionNoop
	if newStatus != consent.Status(existing.Status) {
		if newStatus == consent.StatusRevoked {
			action = lineage.ActionRevoked
		} else {
			action = lineage.ActionUpdated
		}
	}

	tip, err := s.Lineage.LatestByConsent(ctx, at.Tenant.ID, existing.ID)
	var tipEvent *lineage.Event
	if err == nil {
		e := toLineageEvent(*tip)
		tipEvent = &e
	}

	now := time.Now().UTC()
	ev, err := lineage.Append(tipEvent, at.Tenant.ID, existing.ID, action, req.SubjectID, req.Purpose, newStatus, now)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to build lineage event", requestID)
		return
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusServiceUnavailable, CodeInternalError, "database unavailable", requestID)
		return
	}
	rollback := true
	defer func() {
		if rollback {
			tx.Rollback()
		}
	}()

	var revokedAt *time.Time
	if newStatus == consent.StatusRevoked {
		revokedAt = &ev.CreatedAt
	}
	if err := s.Consents.UpdateStatus(ctx, tx, existing.ID, string(newStatus), ev.CreatedAt, revokedAt); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to update consent", requestID)
		return
	}
	lrow := fromLineageEvent(*ev)
	if err := s.Lineage.Insert(ctx, tx, &lrow); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append lineage event", requestID)
		return
	}
	audit := database.AuditEventRow{ID: uuid.New(), TenantID: at.Tenant.ID, ConsentID: existing.ID, Action: action, Actor: at.ApiKey.Label, At: ev.CreatedAt}
	if err := s.Audits.Insert(ctx, tx, &audit); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append audit event", requestID)
		return
	}

	existing.Status = string(newStatus)
	existing.UpdatedAt = ev.CreatedAt
	existing.RevokedAt = revokedAt
	view := consentViewFromRow(existing)

	if idemKey != "" {
		if err := s.persistIdempotentResponse(ctx, tx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, http.StatusOK, view); err != nil {
			s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
			writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to persist idempotency record", requestID)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.updated", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to commit", requestID)
		return
	}
	rollback = false

	s.appendSystemEvent(&at.Tenant.ID, "consent."+action, strPtr("consent"), strPtr(existing.ID.String()), map[string]string{"status": string(newStatus)})

	writeData(w, http.StatusOK, view)
}

// handleConsentsItem serves every /consents/{id}/... route: revoke,
// lineage, lineage/export, proof.
func (s *Server) handleConsentsItem(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	path := strings.TrimPrefix(r.URL.Path, "/consents/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, CodeNotFound, "consent id required", requestID)
		return
	}
	consentID, err := uuid.Parse(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, CodeValidationError, "invalid consent id", requestID)
		return
	}

	ctx := r.Context()
	at, authStatus, authCode, authMsg := s.authenticate(ctx, r, requestID)
	if at == nil {
		writeErr(w, authStatus, authCode, authMsg, requestID)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "revoke" && r.Method == http.MethodPost:
		s.revokeConsent(w, r, at, consentID, requestID)
	case len(parts) == 2 && parts[1] == "lineage" && r.Method == http.MethodGet:
		s.getLineage(w, r, at, consentID, requestID)
	case len(parts) == 3 && parts[1] == "lineage" && parts[2] == "export" && r.Method == http.MethodGet:
		s.exportLineage(w, r, at, consentID, requestID)
	case len(parts) == 2 && parts[1] == "proof" && r.Method == http.MethodPost:
		s.buildProof(w, r, at, consentID, requestID)
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getConsent(w, r, at, consentID, requestID)
	default:
		writeErr(w, http.StatusNotFound, CodeNotFound, "no such route", requestID)
	}
}

func (s *Server) getConsent(w http.ResponseWriter, r *http.Request, at *authedTenant, consentID uuid.UUID, requestID string) {
	row, err := s.Consents.GetByID(r.Context(), at.Tenant.ID, consentID)
	if err != nil {
		writeErr(w, http.StatusNotFound, CodeNotFound, "consent not found", requestID)
		return
	}
	writeData(w, http.StatusOK, consentViewFromRow(row))
}

func (s *Server) revokeConsent(w http.ResponseWriter, r *http.Request, at *authedTenant, consentID uuid.UUID, requestID string) {
	if !tenantCanWrite(at.Tenant) {
		s.Metrics.Increment(metrics.TenantWriteDenied)
		s.appendSystemEvent(&at.Tenant.ID, "tenant_write_denied", nil, nil, map[string]string{"reason": "lifecycle_state"})
		writeErr(w, http.StatusForbidden, CodeTenantDisabled, "tenant is not writable", requestID)
		return
	}

	ctx := r.Context()

	_, decoded, err := decodeBodyStrict(w, r, maxWriteBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, CodeValidationError, err.Error(), requestID)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if handled := s.replayIdempotent(w, ctx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, requestID); handled {
			return
		}
	}

	existing, err := s.Consents.GetByID(ctx, at.Tenant.ID, consentID)
	if err != nil {
		writeErr(w, http.StatusNotFound, CodeNotFound, "consent not found", requestID)
		return
	}
	if existing.Status == string(consent.StatusRevoked) {
		writeData(w, http.StatusOK, consentViewFromRow(existing))
		return
	}

	tip, err := s.Lineage.LatestByConsent(ctx, at.Tenant.ID, consentID)
	var tipEvent *lineage.Event
	if err == nil {
		e := toLineageEvent(*tip)
		tipEvent = &e
	}

	now := time.Now().UTC()
	ev, err := lineage.Append(tipEvent, at.Tenant.ID, consentID, lineage.ActionRevoked, existing.SubjectID, existing.Purpose, consent.StatusRevoked, now)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to build lineage event", requestID)
		return
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusServiceUnavailable, CodeInternalError, "database unavailable", requestID)
		return
	}
	rollback := true
	defer func() {
		if rollback {
			tx.Rollback()
		}
	}()

	if err := s.Consents.UpdateStatus(ctx, tx, consentID, string(consent.StatusRevoked), ev.CreatedAt, &ev.CreatedAt); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to revoke consent", requestID)
		return
	}
	lrow := fromLineageEvent(*ev)
	if err := s.Lineage.Insert(ctx, tx, &lrow); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append lineage event", requestID)
		return
	}
	audit := database.AuditEventRow{ID: uuid.New(), TenantID: at.Tenant.ID, ConsentID: consentID, Action: lineage.ActionRevoked, Actor: at.ApiKey.Label, At: ev.CreatedAt}
	if err := s.Audits.Insert(ctx, tx, &audit); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append audit event", requestID)
		return
	}

	existing.Status = string(consent.StatusRevoked)
	existing.UpdatedAt = ev.CreatedAt
	existing.RevokedAt = &ev.CreatedAt
	view := consentViewFromRow(existing)

	if idemKey != "" {
		if err := s.persistIdempotentResponse(ctx, tx, at.Tenant.ID, idemKey, r.Method, r.URL.Path, decoded, http.StatusOK, view); err != nil {
			s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
			writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to persist idempotency record", requestID)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.recordSystemFailure(&at.Tenant.ID, "consent.revoked", err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to commit", requestID)
		return
	}
	rollback = false

	s.appendSystemEvent(&at.Tenant.ID, "consent.revoked", strPtr("consent"), strPtr(consentID.String()), nil)

	writeData(w, http.StatusOK, view)
}

func (s *Server) getLineage(w http.ResponseWriter, r *http.Request, at *authedTenant, consentID uuid.UUID, requestID string) {
	rows, err := s.Lineage.ListByConsent(r.Context(), at.Tenant.ID, consentID)
	if err != nil || len(rows) == 0 {
		writeErr(w, http.StatusNotFound, CodeNotFound, "no lineage for this consent", requestID)
		return
	}
	writeData(w, http.StatusOK, toLineageEvents(rows))
}

func (s *Server) exportLineage(w http.ResponseWriter, r *http.Request, at *authedTenant, consentID uuid.UUID, requestID string) {
	ctx := r.Context()
	rows, err := s.Lineage.ListByConsent(ctx, at.Tenant.ID, consentID)
	if err != nil || len(rows) == 0 {
		writeErr(w, http.StatusNotFound, CodeNotFound, "no lineage for this consent", requestID)
		return
	}
	export, err := proof.BuildLineageExport(toLineageEvents(rows), at.Tenant.ID, consentID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to build export", requestID)
		return
	}
	if s.Signer != nil {
		if err := export.Sign(s.Signer, s.SignerFingerprint); err != nil {
			writeErr(w, http.StatusUnprocessableEntity, CodeInternalError, "failed to sign export", requestID)
			return
		}
	}
	s.persistAssertion(ctx, "lineage_export", consentID, export.Signature, export)
	writeData(w, http.StatusOK, export)
}

func (s *Server) buildProof(w http.ResponseWriter, r *http.Request, at *authedTenant, consentID uuid.UUID, requestID string) {
	ctx := r.Context()
	rows, err := s.Lineage.ListByConsent(ctx, at.Tenant.ID, consentID)
	if err != nil || len(rows) == 0 {
		writeErr(w, http.StatusNotFound, CodeNotFound, "no lineage for this consent", requestID)
		return
	}

	var body struct {
		AssertedAt *time.Time `json:"asserted_at"`
	}
	if r.ContentLength != 0 {
		raw, _, err := decodeBodyStrict(w, r, maxWriteBodyBytes)
		if err == nil && len(raw) > 0 {
			json.Unmarshal(raw, &body)
		}
	}
	now := time.Now().UTC()
	assertedAt := now
	if body.AssertedAt != nil {
		assertedAt = body.AssertedAt.UTC()
	}

	p, err := proof.BuildConsentProof(toLineageEvents(rows), at.Tenant.ID, consentID, assertedAt, now)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, err.Error(), requestID)
		return
	}
	if s.Signer != nil {
		if err := p.Sign(s.Signer, s.SignerFingerprint); err != nil {
			writeErr(w, http.StatusUnprocessableEntity, CodeInternalError, "failed to sign proof", requestID)
			return
		}
	}
	s.persistAssertion(ctx, "consent_proof", consentID, p.Signature, p)
	writeData(w, http.StatusOK, p)
}

func (s *Server) persistAssertion(ctx context.Context, assertionType string, consentID uuid.UUID, signature string, v interface{}) {
	if s.SignerFingerprint == "" || signature == "" {
		return
	}
	payload, err := canonical.Marshal(v)
	if err != nil {
		return
	}
	key, err := s.IdentityKeys.GetByFingerprint(ctx, s.SignerFingerprint)
	if err != nil {
		return
	}
	row := database.SignedAssertionRow{
		ID: uuid.New(), IdentityKeyID: key.ID, SubjectType: "consent", SubjectID: &consentID,
		AssertionType: assertionType, PayloadJSON: payload, Signature: signature, CreatedAt: time.Now().UTC(),
	}
	s.Assertions.Insert(ctx, &row)
}

// decodeBodyStrict reads the request body under limit, validates it as
// strict canonical JSON (rejecting duplicate keys), and returns both the
// raw bytes (for typed unmarshaling) and the decoded generic value (for
// idempotency request-hash material).
func decodeBodyStrict(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, interface{}, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("request body too large or unreadable: %w", err)
	}
	if len(raw) == 0 {
		return []byte("{}"), map[string]interface{}{}, nil
	}
	decoded, err := canonical.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("malformed or duplicate-key JSON body: %w", err)
	}
	return raw, decoded, nil
}

func (s *Server) replayIdempotent(w http.ResponseWriter, ctx context.Context, tenantID uuid.UUID, key, method, path string, body interface{}, requestID string) bool {
	requestHash, err := idempotency.BuildRequestHash(method, path, body)
	if err != nil {
		return false
	}
	existing, err := s.Idempotency.GetByKey(ctx, tenantID, key)
	var rec *idempotency.Record
	if err == nil {
		rec = &idempotency.Record{RequestHash: existing.RequestHash}
	}
	switch idempotency.Check(rec, requestHash) {
	case idempotency.OutcomeReplay:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.StatusCode)
		w.Write(existing.ResponseJSON)
		return true
	case idempotency.OutcomeConflict:
		s.Metrics.Increment(metrics.IdempotencyConflict)
		writeErr(w, http.StatusConflict, CodeIdempotencyConflict, "idempotency key reused with a different request", requestID)
		return true
	default:
		return false
	}
}

// persistIdempotentResponse writes the idempotency replay row inside tx, the
// same transaction as the mutation it records, so a commit failure leaves no
// partial state (§4.H) and a retried request after a crash either sees the
// whole mutation (and can replay) or none of it.
func (s *Server) persistIdempotentResponse(ctx context.Context, tx *database.Tx, tenantID uuid.UUID, key, method, path string, body interface{}, statusCode int, response interface{}) error {
	requestHash, err := idempotency.BuildRequestHash(method, path, body)
	if err != nil {
		return err
	}
	responseJSON, err := json.Marshal(map[string]interface{}{"data": response})
	if err != nil {
		return err
	}
	rec := idempotency.NewRecord(tenantID, key, requestHash, string(responseJSON), statusCode, time.Now().UTC())
	row := database.IdempotencyRow{
		ID: rec.ID, TenantID: rec.TenantID, Key: rec.Key, RequestHash: rec.RequestHash,
		ResponseJSON: []byte(rec.ResponseJSON), StatusCode: rec.StatusCode, CreatedAt: rec.CreatedAt,
	}
	return s.Idempotency.Insert(ctx, tx, &row)
}
