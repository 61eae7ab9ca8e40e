package domain

import "time"

// Topic is a forum thread. Premium topics are readable only by license holders.
type Topic struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	Title      string    `json:"title"`
	Premium    bool      `json:"premium"`
	Locked     bool      `json:"locked"`
	ReplyCount int       `json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a single message within a topic. Content is stored sanitised.
type Post struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	ThanksCount int       `json:"thanks_count"`
	CreatedAt   time.Time `json:"created_at"`
}
