package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nehagowda06/consent-ledger/pkg/anchor"
	"github.com/nehagowda06/consent-ledger/pkg/canonical"
	"github.com/nehagowda06/consent-ledger/pkg/proof"
	"github.com/nehagowda06/consent-ledger/pkg/systemledger"
)

// readVerifyBody enforces the public verify endpoints' shared contract:
// body at most maxVerifyBodyBytes, duplicate JSON keys rejected, no
// authentication required.
func readVerifyBody(w http.ResponseWriter, r *http.Request, v interface{}) (bool, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVerifyBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return false, "request body exceeds the maximum size"
	}
	if _, err := canonical.Decode(raw); err != nil {
		return false, "malformed or duplicate-key JSON body"
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, "request body does not match the expected schema"
	}
	return true, ""
}

func (s *Server) handleVerifyLineage(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}
	var export proof.LineageExport
	if ok, msg := readVerifyBody(w, r, &export); !ok {
		writeErr(w, http.StatusBadRequest, CodeValidationError, msg, requestID)
		return
	}
	result := proof.VerifyExportedLineage(export)
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}
	var p proof.ConsentProof
	if ok, msg := readVerifyBody(w, r, &p); !ok {
		writeErr(w, http.StatusBadRequest, CodeValidationError, msg, requestID)
		return
	}
	result := proof.VerifyConsentProof(p)
	writeData(w, http.StatusOK, result)
}

type anchorVerifyRequest struct {
	Snapshot      anchor.Snapshot `json:"snapshot"`
	ExpectedCount int             `json:"expected_count"`
}

func (s *Server) handleVerifyAnchor(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}
	var req anchorVerifyRequest
	if ok, msg := readVerifyBody(w, r, &req); !ok {
		writeErr(w, http.StatusBadRequest, CodeValidationError, msg, requestID)
		return
	}
	verified, err := anchor.VerifySnapshot(req.Snapshot, req.ExpectedCount)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, CodeValidationError, err.Error(), requestID)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"verified": verified})
}

type systemVerifyRequest struct {
	Events []systemledger.Event `json:"events"`
}

func (s *Server) handleVerifySystem(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, CodeValidationError, "POST required", requestID)
		return
	}
	var req systemVerifyRequest
	if ok, msg := readVerifyBody(w, r, &req); !ok {
		writeErr(w, http.StatusBadRequest, CodeValidationError, msg, requestID)
		return
	}
	result := systemledger.VerifySystemLedger(req.Events)
	writeData(w, http.StatusOK, result)
}
