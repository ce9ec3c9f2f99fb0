package failure

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyAndHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		class  Class
		status int
	}{
		{fmt.Errorf("pool exhausted: %w", ErrDBUnavailable), ClassDBUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("unique violation: %w", ErrDBConstraintViolation), ClassDBConstraintViolation, http.StatusConflict},
		{fmt.Errorf("bad sig: %w", ErrSignatureFailed), ClassSignatureFailed, http.StatusUnprocessableEntity},
		{fmt.Errorf("bad json: %w", ErrSerializationFailed), ClassSerializationFailed, http.StatusUnprocessableEntity},
		{errors.New("boom"), ClassUnexpected, http.StatusInternalServerError},
	}
	for _, c := range cases {
		got := Classify(c.err)
		if got != c.class {
			t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.class)
		}
		if HTTPStatus(got) != c.status {
			t.Errorf("HTTPStatus(%s) = %d, want %d", got, HTTPStatus(got), c.status)
		}
	}
}

func TestEventTypeSuffix(t *testing.T) {
	if got := EventType("consent.create"); got != "consent.create.failed" {
		t.Fatalf("EventType = %s", got)
	}
}
