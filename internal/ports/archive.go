package ports

import (
	"context"

	"github.com/chattyhq/export-service/internal/domain"
)

// ArchiveCounts mirrors the totals written into the manifest export_info.
type ArchiveCounts struct {
	Conversations int
	Messages      int
}

// ArchiveResult describes a freshly built artifact. The owner snapshot rides
// along so the caller can address the export-ready notification without a
// second data-source round trip.
type ArchiveResult struct {
	Path   string
	Owner  domain.OwnerSnapshot
	Counts ArchiveCounts
}

// ArchiveBuilder packages the owner's records into a single compressed
// artifact and returns its filesystem location. Implementations own the file
// until the caller records it on a session.
type ArchiveBuilder interface {
	Build(ctx context.Context, ownerID string) (ArchiveResult, error)
}
