package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
)

// SampleDataSource serves fixture records for local development when no chat
// database is reachable. It is only wired when the allow_sample_data config
// flag is set; the export path never falls back to it implicitly, so a
// production build can never silently package placeholder records.
type SampleDataSource struct {
	nowFn func() time.Time
}

func NewSampleDataSource() *SampleDataSource {
	return &SampleDataSource{nowFn: func() time.Time { return time.Now().UTC() }}
}

func (s *SampleDataSource) OwnerSnapshot(_ context.Context, ownerID string) (domain.OwnerSnapshot, error) {
	now := s.nowFn()
	return domain.OwnerSnapshot{
		OwnerID:   ownerID,
		Username:  "sample-user",
		Email:     fmt.Sprintf("%s@sample.invalid", ownerID),
		CreatedAt: now.Add(-30 * 24 * time.Hour),
	}, nil
}

func (s *SampleDataSource) Conversations(_ context.Context, ownerID string) ([]domain.Conversation, error) {
	now := s.nowFn()
	conversations := make([]domain.Conversation, 0, 3)
	for i := 1; i <= 3; i++ {
		conversations = append(conversations, domain.Conversation{
			ConversationID: fmt.Sprintf("sample-conv-%d", i),
			OwnerID:        ownerID,
			Title:          fmt.Sprintf("Sample conversation %d", i),
			CreatedAt:      now.Add(-time.Duration(i) * 24 * time.Hour),
			UpdatedAt:      now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return conversations, nil
}

func (s *SampleDataSource) Messages(_ context.Context, _ string) ([]domain.Message, error) {
	now := s.nowFn()
	messages := make([]domain.Message, 0, 6)
	for i := 1; i <= 6; i++ {
		role := "user"
		if i%2 == 0 {
			role = "assistant"
		}
		messages = append(messages, domain.Message{
			MessageID:      fmt.Sprintf("sample-msg-%d", i),
			ConversationID: fmt.Sprintf("sample-conv-%d", (i%3)+1),
			Role:           role,
			Content:        fmt.Sprintf("Sample message %d", i),
			CreatedAt:      now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return messages, nil
}
