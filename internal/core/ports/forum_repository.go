package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// ForumRepository defines persistence operations for topics, posts and thanks.
type ForumRepository interface {
	ListTopics(ctx context.Context, limit int) ([]domain.Topic, error)
	FindTopic(ctx context.Context, id string) (*domain.Topic, error)
	CreateTopic(ctx context.Context, t *domain.Topic) (*domain.Topic, error)
	ListPosts(ctx context.Context, topicID string) ([]domain.Post, error)
	FindPost(ctx context.Context, id string) (*domain.Post, error)
	// CreatePost inserts p and increments the topic's reply_count.
	CreatePost(ctx context.Context, p *domain.Post) (*domain.Post, error)
	// AddThank records the (user, post) pair and increments the post's
	// thanks_count. Returns domain.ErrAlreadyThanked on a repeat.
	AddThank(ctx context.Context, userID, postID string) error
}
