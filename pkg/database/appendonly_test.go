package database

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyPQErrorTranslatesAppendOnlyViolation(t *testing.T) {
	raw := &pq.Error{
		Code:    "P0001",
		Message: "append_only_violation_attempt: UPDATE on consent_lineage_events is not permitted",
	}
	got := ClassifyPQError(raw)
	if !errors.Is(got, ErrAppendOnlyViolation) {
		t.Fatalf("expected ClassifyPQError to translate to ErrAppendOnlyViolation, got %v", got)
	}
}

func TestClassifyPQErrorLeavesOtherErrorsUnchanged(t *testing.T) {
	raw := &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	got := ClassifyPQError(raw)
	if errors.Is(got, ErrAppendOnlyViolation) {
		t.Fatal("expected a non-append-only pq error to be left unchanged")
	}
	if got != raw {
		t.Fatal("expected non-matching errors to be returned unchanged")
	}
}

func TestClassifyPQErrorPassesThroughNonPQErrors(t *testing.T) {
	other := errors.New("connection reset")
	if got := ClassifyPQError(other); got != other {
		t.Fatal("expected non-pq errors to pass through unchanged")
	}
}
