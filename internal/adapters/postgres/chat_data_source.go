package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/chattyhq/export-service/internal/domain"
)

// ChatDataSource reads the owner's exportable records from the chat database.
// Any infrastructure failure surfaces as domain.ErrDataUnavailable so the
// archiver never substitutes synthetic data for a broken backend.
type ChatDataSource struct {
	db *gorm.DB
}

func NewChatDataSource(db *gorm.DB) *ChatDataSource {
	return &ChatDataSource{db: db}
}

func (s *ChatDataSource) OwnerSnapshot(ctx context.Context, ownerID string) (domain.OwnerSnapshot, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OwnerSnapshot{}, fmt.Errorf("%w: owner %s", domain.ErrNotFound, ownerID)
		}
		return domain.OwnerSnapshot{}, fmt.Errorf("%w: load owner: %v", domain.ErrDataUnavailable, err)
	}
	return domain.OwnerSnapshot{
		OwnerID:   row.ID,
		Username:  row.Username,
		Email:     row.Email,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (s *ChatDataSource) Conversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: load conversations: %v", domain.ErrDataUnavailable, err)
	}

	conversations := make([]domain.Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, domain.Conversation{
			ConversationID: row.ID,
			OwnerID:        row.UserID,
			Title:          row.Title,
			CreatedAt:      row.CreatedAt.UTC(),
			UpdatedAt:      row.UpdatedAt.UTC(),
		})
	}
	return conversations, nil
}

func (s *ChatDataSource) Messages(ctx context.Context, ownerID string) ([]domain.Message, error) {
	var rows []messageRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", domain.ErrDataUnavailable, err)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, domain.Message{
			MessageID:      row.ID,
			ConversationID: row.ConversationID,
			Role:           row.Role,
			Content:        row.Content,
			CreatedAt:      row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}
