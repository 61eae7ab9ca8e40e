package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	defaultTopicLimit = 50
	maxTopicLimit     = 100
	minTitleLen       = 3
	maxTitleLen       = 200
	maxPostLen        = 20000
)

// ForumService implements the thin topic/post surface around the access gate.
type ForumService struct {
	repo    ports.ForumRepository
	users   ports.UserRepository
	gate    ports.AccessGate
	content *bluemonday.Policy
	log     zerolog.Logger
	now     func() time.Time
}

var _ ports.ForumService = (*ForumService)(nil)

func NewForumService(repo ports.ForumRepository, users ports.UserRepository, gate ports.AccessGate, log zerolog.Logger) *ForumService {
	return &ForumService{
		repo:    repo,
		users:   users,
		gate:    gate,
		content: bluemonday.UGCPolicy(),
		log:     log,
		now:     time.Now,
	}
}

// ListTopics returns recent topics. The premium flag is informational; no
// license check happens here.
func (s *ForumService) ListTopics(ctx context.Context, limit int) ([]domain.Topic, error) {
	if limit <= 0 {
		limit = defaultTopicLimit
	}
	if limit > maxTopicLimit {
		limit = maxTopicLimit
	}
	return s.repo.ListTopics(ctx, limit)
}

// GetTopic returns a topic with its posts if the viewer may read it.
func (s *ForumService) GetTopic(ctx context.Context, topicID string, viewer *domain.Session) (*ports.TopicDetail, error) {
	topic, err := s.repo.FindTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanView(ctx, viewer, topic.Premium) {
		return nil, domain.ErrPremiumRequired
	}
	posts, err := s.repo.ListPosts(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return &ports.TopicDetail{Topic: *topic, Posts: posts}, nil
}

// CreateTopic opens a topic with its first post. Only moderators may mark a topic premium.
func (s *ForumService) CreateTopic(ctx context.Context, author *domain.Session, title, content string, premium bool) (*ports.TopicDetail, error) {
	if _, err := s.activeAuthor(ctx, author); err != nil {
		return nil, err
	}
	if premium && !author.Can(domain.CapModerateContent) {
		return nil, domain.ErrForbidden
	}

	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return nil, domain.NewValidationError("title", "Title must be between 3 and 200 characters.")
	}
	body, err := s.sanitize(content)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	topic, err := s.repo.CreateTopic(ctx, &domain.Topic{
		AuthorID:  author.UserID,
		Title:     title,
		Premium:   premium,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	post, err := s.repo.CreatePost(ctx, &domain.Post{
		TopicID:   topic.ID,
		AuthorID:  author.UserID,
		Content:   body,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.countPost(ctx, author.UserID)
	return &ports.TopicDetail{Topic: *topic, Posts: []domain.Post{*post}}, nil
}

// Reply appends a post. Locked topics accept replies from moderators only.
func (s *ForumService) Reply(ctx context.Context, author *domain.Session, topicID, content string) (*domain.Post, error) {
	if _, err := s.activeAuthor(ctx, author); err != nil {
		return nil, err
	}
	topic, err := s.repo.FindTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanView(ctx, author, topic.Premium) {
		return nil, domain.ErrPremiumRequired
	}
	if topic.Locked && !author.Can(domain.CapModerateContent) {
		return nil, domain.ErrTopicLocked
	}
	body, err := s.sanitize(content)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.CreatePost(ctx, &domain.Post{
		TopicID:   topic.ID,
		AuthorID:  author.UserID,
		Content:   body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.countPost(ctx, author.UserID)
	return post, nil
}

// Thank credits a post's author once per viewer. Repeats succeed silently.
func (s *ForumService) Thank(ctx context.Context, viewer *domain.Session, postID string) error {
	if viewer == nil || viewer.UserID == "" {
		return domain.ErrUnauthenticated
	}
	post, err := s.repo.FindPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID == viewer.UserID {
		return domain.ErrSelfThank
	}
	topic, err := s.repo.FindTopic(ctx, post.TopicID)
	if err != nil {
		return err
	}
	if !s.gate.CanView(ctx, viewer, topic.Premium) {
		return domain.ErrPremiumRequired
	}

	if err := s.repo.AddThank(ctx, viewer.UserID, postID); err != nil {
		if errors.Is(err, domain.ErrAlreadyThanked) {
			return nil
		}
		return err
	}
	if err := s.users.AdjustReputation(ctx, post.AuthorID, 1); err != nil {
		s.log.Warn().Err(err).Str("user_id", post.AuthorID).Msg("failed to credit reputation")
	}
	return nil
}

func (s *ForumService) activeAuthor(ctx context.Context, author *domain.Session) (*domain.User, error) {
	if author == nil || author.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, author.UserID)
	if err != nil {
		return nil, err
	}
	if user.Banned {
		return nil, domain.ErrBanned
	}
	return user, nil
}

func (s *ForumService) sanitize(content string) (string, error) {
	if utf8.RuneCountInString(content) > maxPostLen {
		return "", domain.NewValidationError("content", "Post is too long.")
	}
	body := strings.TrimSpace(s.content.Sanitize(content))
	if body == "" {
		return "", domain.NewValidationError("content", "Post cannot be empty.")
	}
	return body, nil
}

func (s *ForumService) countPost(ctx context.Context, userID string) {
	if err := s.users.IncrementPostCount(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to increment post count")
	}
}
