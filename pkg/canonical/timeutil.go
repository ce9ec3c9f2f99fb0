package canonical

import "time"

// FormatTime renders t as RFC3339 with microsecond precision and a literal
// "Z" suffix, matching every timestamp persisted or exported by the ledger.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// ParseTime parses the RFC3339Z form produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000000Z", s)
}
