package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// appendOnlyViolationCode is the ERRCODE raised by every trigger in
// 0002_append_only.sql.
const appendOnlyViolationCode = "P0001"

// ClassifyPQError translates a raw error returned by an UPDATE or DELETE
// against an append-only table into ErrAppendOnlyViolation, wrapping the
// original error so callers can still log the driver detail. Any other
// error is returned unchanged.
func ClassifyPQError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == appendOnlyViolationCode &&
			strings.Contains(pqErr.Message, "append_only_violation_attempt") {
			return ErrAppendOnlyViolationWrap(err)
		}
	}
	return err
}

// ErrAppendOnlyViolationWrap wraps err so errors.Is(result, ErrAppendOnlyViolation) holds.
func ErrAppendOnlyViolationWrap(err error) error {
	return &appendOnlyError{cause: err}
}

type appendOnlyError struct {
	cause error
}

func (e *appendOnlyError) Error() string {
	return "database: append-only violation attempt: " + e.cause.Error()
}

func (e *appendOnlyError) Unwrap() error {
	return ErrAppendOnlyViolation
}

func (e *appendOnlyError) Cause() error {
	return e.cause
}
