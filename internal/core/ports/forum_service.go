package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// TopicDetail is a topic with its posts.
type TopicDetail struct {
	Topic domain.Topic
	Posts []domain.Post
}

// ForumService defines the thin forum read/write surface.
type ForumService interface {
	ListTopics(ctx context.Context, limit int) ([]domain.Topic, error)
	// GetTopic returns domain.ErrPremiumRequired when the viewer may not read it.
	GetTopic(ctx context.Context, topicID string, viewer *domain.Session) (*TopicDetail, error)
	CreateTopic(ctx context.Context, author *domain.Session, title, content string, premium bool) (*TopicDetail, error)
	Reply(ctx context.Context, author *domain.Session, topicID, content string) (*domain.Post, error)
	Thank(ctx context.Context, viewer *domain.Session, postID string) error
}
