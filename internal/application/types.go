package application

import (
	"os"
	"time"
)

// ExportDetails summarizes what was packaged into the artifact.
type ExportDetails struct {
	TotalConversations int       `json:"total_conversations"`
	TotalMessages      int       `json:"total_messages"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// ExportRequestResponse is returned when an export was built and the owner was
// notified on their verification channel.
type ExportRequestResponse struct {
	VerificationURL string        `json:"verification_url"`
	ExportDetails   ExportDetails `json:"export_details"`
}

// StatusResponse reflects the current session state for a token.
type StatusResponse struct {
	Verified      bool      `json:"verified"`
	DownloadCount int       `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// DownloadResult hands the opened artifact to the transport layer. The caller
// must pass it to FinishDownload after streaming, on every path, so the file
// handle is released and cleanup runs.
type DownloadResult struct {
	File     *os.File
	Filename string
	Size     int64

	token        string
	artifactPath string
}
