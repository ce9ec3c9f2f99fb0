// Package logging wraps the standard library's *log.Logger with an
// allow-listed, redacting structured-field writer so operational logs never
// carry secret material.
package logging

import (
	"log"
	"sort"
	"strings"
)

// AllowedFields is the closed set of field names a structured log line may
// carry. Anything not in this set is silently omitted.
var AllowedFields = map[string]bool{
	"event":        true,
	"tenant_id":    true,
	"consent_id":   true,
	"request_id":   true,
	"identity_id":  true,
	"fingerprint":  true,
	"operation":    true,
	"status_code":  true,
	"failure_class": true,
	"count":        true,
}

// redactedSubstrings triggers redaction of a field's value, regardless of
// field name, whenever the lowercased value contains one of these.
var redactedSubstrings = []string{"secret", "private_key", "authorization", "bearer", "api_key", "password"}

// Structured logs a single event line with its allow-listed fields, sorted
// for deterministic output. Fields outside AllowedFields are dropped; any
// surviving value containing a sensitive substring is redacted.
func Structured(logger *log.Logger, event string, fields map[string]string) {
	keys := make([]string, 0, len(fields)+1)
	keys = append(keys, "event")
	for k := range fields {
		if AllowedFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[1:])

	var b strings.Builder
	b.WriteString("event=")
	b.WriteString(event)
	for _, k := range keys[1:] {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(redactValue(fields[k]))
	}
	logger.Println(b.String())
}

func redactValue(v string) string {
	lower := strings.ToLower(v)
	for _, needle := range redactedSubstrings {
		if strings.Contains(lower, needle) {
			return "[REDACTED]"
		}
	}
	return v
}
