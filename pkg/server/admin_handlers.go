package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/anchor"
	"github.com/nehagowda06/consent-ledger/pkg/consent"
	"github.com/nehagowda06/consent-ledger/pkg/database"
	"github.com/nehagowda06/consent-ledger/pkg/systemledger"
)

func (s *Server) requireAdminOrReject(w http.ResponseWriter, r *http.Request, requestID string) bool {
	if !s.requireAdmin(r) {
		writeErr(w, http.StatusUnauthorized, CodeAuthInvalid, "invalid or missing admin API key", requestID)
		return false
	}
	return true
}

type createTenantRequest struct {
	Name string `json:"name"`
}

type tenantView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	LifecycleState string    `json:"lifecycle_state"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

func tenantViewFromRow(r *database.TenantRow) tenantView {
	return tenantView{ID: r.ID, Name: r.Name, LifecycleState: r.LifecycleState, IsActive: r.IsActive, CreatedAt: r.CreatedAt}
}

func (s *Server) handleAdminTenantsCollection(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if !s.requireAdminOrReject(w, r, requestID) {
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}
	var req createTenantRequest
	if err := readJSONBody(w, r, maxWriteBodyBytes, &req); err != nil || req.Name == "" {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, "name is required", requestID)
		return
	}

	row := database.TenantRow{ID: uuid.New(), Name: req.Name, LifecycleState: string(consent.LifecycleActive), IsActive: true, CreatedAt: time.Now().UTC()}
	if err := s.Tenants.Insert(r.Context(), &row); err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to create tenant", requestID)
		return
	}
	s.appendSystemEvent(&row.ID, "tenant.created", strPtr("tenant"), strPtr(row.ID.String()), map[string]string{"name": req.Name})
	writeData(w, http.StatusCreated, tenantViewFromRow(&row))
}

// handleAdminTenantsItem serves /admin/tenants/{id}/{suspend,reactivate,disable}
// and /admin/tenants/{id}/api-keys.
func (s *Server) handleAdminTenantsItem(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if !s.requireAdminOrReject(w, r, requestID) {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/admin/tenants/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) < 2 {
		writeErr(w, http.StatusNotFound, CodeNotFound, "no such route", requestID)
		return
	}
	tenantID, err := uuid.Parse(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, CodeValidationError, "invalid tenant id", requestID)
		return
	}

	switch {
	case parts[1] == "api-keys" && r.Method == http.MethodPost:
		s.createApiKey(w, r, tenantID, requestID)
	case len(parts) == 2 && r.Method == http.MethodPatch && isLifecycleAction(parts[1]):
		s.transitionLifecycle(w, r, tenantID, parts[1], requestID)
	default:
		writeErr(w, http.StatusNotFound, CodeNotFound, "no such route", requestID)
	}
}

func isLifecycleAction(action string) bool {
	switch action {
	case "suspend", "reactivate", "disable":
		return true
	}
	return false
}

type apiKeyView struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	RawKey    string    `json:"raw_key"`
	CreatedAt time.Time `json:"created_at"`
}

type createApiKeyRequest struct {
	Label string `json:"label"`
}

func (s *Server) createApiKey(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID, requestID string) {
	ctx := r.Context()
	if _, err := s.Tenants.GetByID(ctx, tenantID); err != nil {
		writeErr(w, http.StatusNotFound, CodeNotFound, "tenant not found", requestID)
		return
	}

	var req createApiKeyRequest
	readJSONBody(w, r, maxWriteBodyBytes, &req)

	rawKeyBytes := make([]byte, 32)
	if _, err := rand.Read(rawKeyBytes); err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to generate key", requestID)
		return
	}
	rawKey := hex.EncodeToString(rawKeyBytes)
	keyHash := consent.HashApiKey(s.ApiKeyHashSecret, rawKey)

	row := database.ApiKeyRow{ID: uuid.New(), TenantID: tenantID, KeyHash: keyHash, Label: req.Label, CreatedAt: time.Now().UTC()}
	if err := s.ApiKeys.Insert(ctx, &row); err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to create API key", requestID)
		return
	}
	s.appendSystemEvent(&tenantID, "api_key.created", strPtr("api_key"), strPtr(row.ID.String()), map[string]string{"label": req.Label})

	// raw_key is returned exactly once; only its HMAC digest is ever persisted.
	writeData(w, http.StatusCreated, apiKeyView{ID: row.ID, Label: row.Label, RawKey: rawKey, CreatedAt: row.CreatedAt})
}

func (s *Server) transitionLifecycle(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID, action, requestID string) {
	ctx := r.Context()
	tenant, err := s.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		writeErr(w, http.StatusNotFound, CodeNotFound, "tenant not found", requestID)
		return
	}

	var newState consent.LifecycleState
	var isActive bool
	switch action {
	case "suspend":
		newState, isActive = consent.LifecycleSuspended, false
	case "reactivate":
		newState, isActive = consent.LifecycleActive, true
	case "disable":
		newState, isActive = consent.LifecycleDisabled, false
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		s.recordSystemFailure(&tenantID, "tenant."+action, err)
		writeErr(w, http.StatusServiceUnavailable, CodeInternalError, "database unavailable", requestID)
		return
	}
	rollback := true
	defer func() {
		if rollback {
			tx.Rollback()
		}
	}()

	if err := s.Tenants.SetLifecycleState(ctx, tx, tenantID, string(newState), isActive); err != nil {
		s.recordSystemFailure(&tenantID, "tenant."+action, err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to update lifecycle", requestID)
		return
	}
	audit := database.AuditEventRow{ID: uuid.New(), TenantID: tenantID, ConsentID: uuid.Nil, Action: "tenant." + action, Actor: "admin", At: time.Now().UTC()}
	if err := s.Audits.Insert(ctx, tx, &audit); err != nil {
		s.recordSystemFailure(&tenantID, "tenant."+action, err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to append audit event", requestID)
		return
	}
	if err := tx.Commit(); err != nil {
		s.recordSystemFailure(&tenantID, "tenant."+action, err)
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to commit", requestID)
		return
	}
	rollback = false

	s.appendSystemEvent(&tenantID, "tenant."+action, strPtr("tenant"), strPtr(tenantID.String()), map[string]string{"lifecycle_state": string(newState)})

	tenant.LifecycleState = string(newState)
	tenant.IsActive = isActive
	writeData(w, http.StatusOK, tenantViewFromRow(tenant))
}

func (s *Server) handleAdminAnchorSnapshot(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if !s.requireAdminOrReject(w, r, requestID) {
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}

	lineageRoots, err := s.collectLineageRoots(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to collect lineage roots", requestID)
		return
	}

	snapshot := anchor.BuildSnapshot(lineageRoots, time.Now().UTC())
	if err := anchor.AppendCommit(s.AnchorCommitFilePath, snapshot); err != nil {
		s.Logger.Printf("anchor commit file append failed (non-fatal): %v", err)
	}
	s.appendSystemEvent(nil, "anchor.snapshot_created", strPtr("anchor_snapshot"), nil, map[string]interface{}{"digest": snapshot.Digest, "count": len(snapshot.Anchors)})
	writeData(w, http.StatusCreated, snapshot)
}

// collectLineageRoots returns one map entry per (tenant_id, consent_id)
// pair, keyed by "tenant_id:consent_id" so every consent contributes an
// independent anchor line to the snapshot rather than collapsing a
// tenant's consents into a single root.
func (s *Server) collectLineageRoots(ctx context.Context) (map[string]string, error) {
	rows, err := s.Lineage.LatestPerConsent(ctx)
	if err != nil {
		return nil, err
	}
	roots := make(map[string]string, len(rows))
	for _, row := range rows {
		key := row.TenantID.String() + ":" + row.ConsentID.String()
		roots[key] = row.EventHash
	}
	return roots, nil
}

func (s *Server) handleAdminSystemExport(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if !s.requireAdminOrReject(w, r, requestID) {
		return
	}
	rows, err := s.System.ListAll(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to list system events", requestID)
		return
	}
	exported := systemledger.ForensicExport(toSystemEvents(rows))
	writeData(w, http.StatusOK, exported)
}

func (s *Server) handleAdminSystemVerify(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if !s.requireAdminOrReject(w, r, requestID) {
		return
	}
	rows, err := s.System.ListAll(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, CodeInternalError, "failed to list system events", requestID)
		return
	}
	result := systemledger.VerifySystemLedger(toSystemEvents(rows))
	writeData(w, http.StatusOK, result)
}
