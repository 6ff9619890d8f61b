package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
	"github.com/chattyhq/export-service/internal/ports"
)

type stubData struct {
	owner         domain.OwnerSnapshot
	conversations []domain.Conversation
	messages      []domain.Message
	err           error
}

func (s *stubData) OwnerSnapshot(context.Context, string) (domain.OwnerSnapshot, error) {
	return s.owner, s.err
}

func (s *stubData) Conversations(context.Context, string) ([]domain.Conversation, error) {
	return s.conversations, s.err
}

func (s *stubData) Messages(context.Context, string) ([]domain.Message, error) {
	return s.messages, s.err
}

func fixtureData() *stubData {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	conversations := []domain.Conversation{
		{ConversationID: "c1", OwnerID: "owner-1", Title: "First", CreatedAt: now, UpdatedAt: now},
		{ConversationID: "c2", OwnerID: "owner-1", Title: "Second", CreatedAt: now, UpdatedAt: now},
	}
	messages := []domain.Message{
		{MessageID: "m1", ConversationID: "c1", Role: "user", Content: "hello", CreatedAt: now},
		{MessageID: "m2", ConversationID: "c1", Role: "assistant", Content: "hi", CreatedAt: now},
		{MessageID: "m3", ConversationID: "c2", Role: "user", Content: "again", CreatedAt: now},
	}
	return &stubData{
		owner: domain.OwnerSnapshot{
			OwnerID:   "owner-1",
			Username:  "alice",
			Email:     "alice@chatty.test",
			CreatedAt: now.Add(-30 * 24 * time.Hour),
		},
		conversations: conversations,
		messages:      messages,
	}
}

func readManifest(t *testing.T, path string) domain.ArchiveManifest {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 {
		t.Fatalf("artifact must hold exactly one entry, got %d", len(zr.File))
	}
	entry := zr.File[0]
	if entry.Name != manifestEntryName {
		t.Fatalf("unexpected entry name: got=%s want=%s", entry.Name, manifestEntryName)
	}
	if entry.Method != zip.Deflate {
		t.Fatalf("entry must be deflate-compressed, got method %d", entry.Method)
	}

	rc, err := entry.Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}

	var manifest domain.ArchiveManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return manifest
}

func TestBuildWritesManifestWithCountInvariants(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	archiver := NewZipArchiver(fixtureData(), dir)
	archiver.nowFn = func() time.Time { return at }

	res, err := archiver.Build(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if filepath.Dir(res.Path) != dir {
		t.Fatalf("artifact outside export dir: %s", res.Path)
	}
	if res.Owner.Email != "alice@chatty.test" {
		t.Fatalf("unexpected owner snapshot: %+v", res.Owner)
	}
	if res.Counts.Conversations != 2 || res.Counts.Messages != 3 {
		t.Fatalf("unexpected counts: %+v", res.Counts)
	}

	manifest := readManifest(t, res.Path)
	if manifest.ExportInfo.Version != domain.ManifestVersion {
		t.Fatalf("unexpected manifest version: %s", manifest.ExportInfo.Version)
	}
	if !manifest.ExportInfo.Timestamp.Equal(at) {
		t.Fatalf("unexpected timestamp: got=%v want=%v", manifest.ExportInfo.Timestamp, at)
	}
	if manifest.ExportInfo.TotalConversations != len(manifest.Conversations) {
		t.Fatalf("conversation count mismatch: info=%d list=%d",
			manifest.ExportInfo.TotalConversations, len(manifest.Conversations))
	}
	if manifest.ExportInfo.TotalMessages != len(manifest.Messages) {
		t.Fatalf("message count mismatch: info=%d list=%d",
			manifest.ExportInfo.TotalMessages, len(manifest.Messages))
	}
}

func TestBuildEmptyAccountYieldsEmptyLists(t *testing.T) {
	data := fixtureData()
	data.conversations = nil
	data.messages = nil
	archiver := NewZipArchiver(data, t.TempDir())

	res, err := archiver.Build(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Counts.Conversations != 0 || res.Counts.Messages != 0 {
		t.Fatalf("unexpected counts for empty account: %+v", res.Counts)
	}

	manifest := readManifest(t, res.Path)
	if manifest.Conversations == nil || manifest.Messages == nil {
		t.Fatalf("empty account must serialize empty lists, not null")
	}
}

func TestBuildPropagatesDataSourceError(t *testing.T) {
	data := fixtureData()
	data.err = domain.ErrDataUnavailable
	dir := t.TempDir()
	archiver := NewZipArchiver(data, dir)

	if _, err := archiver.Build(context.Background(), "owner-1"); !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("no artifact should remain after a failed build, found %d", len(entries))
	}
}

func TestPoolBuildsThroughWorkers(t *testing.T) {
	pool := NewPool(NewZipArchiver(fixtureData(), t.TempDir()), 2)

	res, err := pool.Build(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("pool build: %v", err)
	}
	if res.Counts.Conversations != 2 {
		t.Fatalf("unexpected counts through pool: %+v", res.Counts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Build(ctx, "owner-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled build: expected context.Canceled, got %v", err)
	}
}

var _ ports.ChatDataSource = (*stubData)(nil)
