package server

import (
	"context"
	"net/http"
	"time"

	"github.com/nehagowda06/consent-ledger/pkg/webhook"
)

// handleLive always answers 200: it reports the process is up, nothing more.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "live"})
}

// handleReady checks store connectivity, the applied migration head, and the
// webhook worker's run state, per §6, and reports whether signing material is
// configured. The migration check fails only when no migration is applied;
// the head is not compared against the newest embedded migration. Missing
// signing material is reported but never fails the check. Any failure
// answers 503 so a load balancer stops routing traffic here.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := s.DB.Health(ctx); err != nil {
		checks["database"] = "unreachable: " + err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if head, err := s.DB.MigrationStatus(ctx); err != nil {
		checks["migrations"] = "unknown: " + err.Error()
		ready = false
	} else if head == "" {
		checks["migrations"] = "none applied"
		ready = false
	} else {
		checks["migrations"] = head
	}

	if s.Signer == nil {
		checks["signing"] = "not configured"
	} else {
		checks["signing"] = s.SignerFingerprint
	}

	if s.Worker != nil {
		state := s.Worker.State()
		checks["webhook_worker"] = string(state)
		if state != webhook.WorkerStateRunning {
			ready = false
		}
	} else {
		checks["webhook_worker"] = "disabled"
	}

	if !ready {
		writeErr(w, http.StatusServiceUnavailable, CodeInternalError, "not ready", requestID)
		return
	}
	writeData(w, http.StatusOK, checks)
}
