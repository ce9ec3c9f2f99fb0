// Package anchor binds consent lineage roots to tenant identities and
// produces portable, offline-verifiable digests over every tenant anchor.
package anchor

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nehagowda06/consent-ledger/pkg/canonical"
)

const (
	SnapshotVersion   = 1
	SnapshotAlgorithm = "SHA256"
)

// TenantAnchor binds a tenant's final lineage event hash to its identity.
// It is a function of tenant identity and the lineage root only, so it is
// stable across API-key rotation.
func TenantAnchor(tenantID, lineageRootHash string) string {
	return canonical.TenantAnchor(tenantID, lineageRootHash)
}

// Snapshot is the portable digest over every (tenant, consent) anchor as of
// a point in time.
type Snapshot struct {
	Version     int
	Algorithm   string
	GeneratedAt time.Time
	Anchors     []string // sorted
	Digest      string
}

// BuildSnapshot computes per-(tenant,consent) anchors from the supplied
// lineage roots, sorts them, and returns the snapshot plus its digest.
func BuildSnapshot(lineageRoots map[string]string, generatedAt time.Time) Snapshot {
	anchors := make([]string, 0, len(lineageRoots))
	for tenantID, root := range lineageRoots {
		anchors = append(anchors, TenantAnchor(tenantID, root))
	}
	sort.Strings(anchors)
	return Snapshot{
		Version:     SnapshotVersion,
		Algorithm:   SnapshotAlgorithm,
		GeneratedAt: generatedAt,
		Anchors:     anchors,
		Digest:      canonical.AnchorDigest(anchors),
	}
}

// VerifySnapshot rejects unsupported versions/algorithms, unsorted anchor
// lists, anchor-count mismatches against the supplied reference count, and
// digest mismatches (constant-time compare).
func VerifySnapshot(s Snapshot, expectedCount int) (bool, error) {
	if s.Version != SnapshotVersion {
		return false, fmt.Errorf("anchor: unsupported snapshot version %d", s.Version)
	}
	if s.Algorithm != SnapshotAlgorithm {
		return false, fmt.Errorf("anchor: unsupported algorithm %q", s.Algorithm)
	}
	if len(s.Anchors) != expectedCount {
		return false, nil
	}
	if !sort.StringsAreSorted(s.Anchors) {
		return false, nil
	}
	recomputed := canonical.AnchorDigest(s.Anchors)
	return canonical.ConstantTimeHexEqual(recomputed, s.Digest), nil
}

// AppendCommit appends "{generated_at} | {digest}\n" to an append-only file.
// Write failures are non-fatal: the caller's snapshot creation has already
// succeeded by the time this runs, so an error here is only logged by the
// caller, never propagated as a snapshot failure.
func AppendCommit(path string, s Snapshot) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("anchor: open commit file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s | %s\n", canonical.FormatTime(s.GeneratedAt), s.Digest)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("anchor: write commit file: %w", err)
	}
	return nil
}
