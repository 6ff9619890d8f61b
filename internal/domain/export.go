package domain

import "time"

// ManifestVersion is stamped into every archive so downstream tooling can
// detect schema changes in exported data.
const ManifestVersion = "1.0"

// ExportPurpose is the only claim purpose the export gates accept.
const ExportPurpose = "export"

// ExportSession tracks one owner's pending-to-consumed data export.
// The session store is the single source of truth for verification and
// consumption status; the token itself carries no mutable state.
type ExportSession struct {
	Token         string     `json:"token"`
	OwnerID       string     `json:"owner_id"`
	ArtifactPath  string     `json:"artifact_path"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	DownloadCount int        `json:"download_count"`
}

// MarkVerified flips the session to verified. The transition is one-way:
// repeated verification keeps the original timestamp.
func (s *ExportSession) MarkVerified(at time.Time) {
	if !s.Verified {
		s.Verified = true
		t := at.UTC()
		s.VerifiedAt = &t
	}
}

// OwnerSnapshot is the exported view of the owner's account record.
type OwnerSnapshot struct {
	OwnerID   string    `json:"owner_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Message struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExportInfo is the aggregate manifest header. Totals always equal the length
// of the corresponding packaged lists.
type ExportInfo struct {
	Timestamp          time.Time `json:"timestamp"`
	Version            string    `json:"version"`
	TotalConversations int       `json:"total_conversations"`
	TotalMessages      int       `json:"total_messages"`
}

// ArchiveManifest is the full serialized payload written into the artifact.
type ArchiveManifest struct {
	Owner         OwnerSnapshot  `json:"owner"`
	Conversations []Conversation `json:"conversations"`
	Messages      []Message      `json:"messages"`
	ExportInfo    ExportInfo     `json:"export_info"`
}

// NewArchiveManifest assembles a manifest and stamps the count invariants.
func NewArchiveManifest(owner OwnerSnapshot, conversations []Conversation, messages []Message, at time.Time) ArchiveManifest {
	if conversations == nil {
		conversations = []Conversation{}
	}
	if messages == nil {
		messages = []Message{}
	}
	return ArchiveManifest{
		Owner:         owner,
		Conversations: conversations,
		Messages:      messages,
		ExportInfo: ExportInfo{
			Timestamp:          at.UTC(),
			Version:            ManifestVersion,
			TotalConversations: len(conversations),
			TotalMessages:      len(messages),
		},
	}
}
