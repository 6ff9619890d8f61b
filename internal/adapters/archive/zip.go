package archive

import (
	"archive/zip"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chattyhq/export-service/internal/domain"
	"github.com/chattyhq/export-service/internal/ports"
)

// manifestEntryName is the single entry inside every export artifact.
const manifestEntryName = "chatty-export.json"

// ZipArchiver packages an owner's records into a one-entry zip at maximum
// compression. It owns the artifact file until the caller records it on a
// session; on any failure the partial file is removed.
type ZipArchiver struct {
	data  ports.ChatDataSource
	dir   string
	nowFn func() time.Time
}

func NewZipArchiver(data ports.ChatDataSource, dir string) *ZipArchiver {
	return &ZipArchiver{
		data:  data,
		dir:   dir,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (a *ZipArchiver) Build(ctx context.Context, ownerID string) (ports.ArchiveResult, error) {
	owner, err := a.data.OwnerSnapshot(ctx, ownerID)
	if err != nil {
		return ports.ArchiveResult{}, err
	}
	conversations, err := a.data.Conversations(ctx, ownerID)
	if err != nil {
		return ports.ArchiveResult{}, err
	}
	messages, err := a.data.Messages(ctx, ownerID)
	if err != nil {
		return ports.ArchiveResult{}, err
	}

	manifest := domain.NewArchiveManifest(owner, conversations, messages, a.nowFn())
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return ports.ArchiveResult{}, fmt.Errorf("%w: encode manifest: %v", domain.ErrArchiveFailed, err)
	}

	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return ports.ArchiveResult{}, fmt.Errorf("%w: create export dir: %v", domain.ErrArchiveFailed, err)
	}
	path := filepath.Join(a.dir, fmt.Sprintf("export-%s-%s.zip", ownerID, uuid.NewString()))

	if err := writeZip(path, payload); err != nil {
		_ = os.Remove(path)
		return ports.ArchiveResult{}, fmt.Errorf("%w: %v", domain.ErrArchiveFailed, err)
	}

	return ports.ArchiveResult{
		Path:  path,
		Owner: owner,
		Counts: ports.ArchiveCounts{
			Conversations: manifest.ExportInfo.TotalConversations,
			Messages:      manifest.ExportInfo.TotalMessages,
		},
	}, nil
}

func writeZip(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	entry, err := zw.Create(manifestEntryName)
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := entry.Write(payload); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return f.Sync()
}
