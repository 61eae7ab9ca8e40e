package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/api/middleware"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

type ForumHandler struct {
	forum ports.ForumService
}

func NewForumHandler(forum ports.ForumService) *ForumHandler {
	return &ForumHandler{forum: forum}
}

// ListTopics returns the most recent topics. Premium topics are listed for
// everyone; only their content is gated.
//
// @Summary      List topics
// @Tags         forum
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of topics (default 50, max 100)"
// @Success      200    {array}   domain.Topic
// @Router       /v1/topics [get]
func (h *ForumHandler) ListTopics(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.NewValidationError("limit", "limit must be a positive integer")
		}
		limit = n
	}
	topics, err := h.forum.ListTopics(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, topics)
}

// GetTopic returns a topic with its posts.
//
// @Summary      Read a topic
// @Tags         forum
// @Produce      json
// @Param        id   path      string  true  "Topic ID"
// @Success      200  {object}  topicDetailResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/topics/{id} [get]
func (h *ForumHandler) GetTopic(c echo.Context) error {
	detail, err := h.forum.GetTopic(c.Request().Context(), c.Param("id"), middleware.SessionFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTopicDetail(detail))
}

// CreateTopic opens a new topic with its first post.
//
// @Summary      Create a topic
// @Tags         forum
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createTopicRequest  true  "Topic"
// @Success      201   {object}  topicDetailResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /v1/topics [post]
func (h *ForumHandler) CreateTopic(c echo.Context) error {
	author, err := requireSession(c)
	if err != nil {
		return err
	}
	var req createTopicRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	detail, err := h.forum.CreateTopic(c.Request().Context(), author, req.Title, req.Content, req.Premium)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTopicDetail(detail))
}

// Reply adds a post to a topic.
//
// @Summary      Reply to a topic
// @Tags         forum
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string        true  "Topic ID"
// @Param        body  body      replyRequest  true  "Post"
// @Success      201   {object}  domain.Post
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /v1/topics/{id}/posts [post]
func (h *ForumHandler) Reply(c echo.Context) error {
	author, err := requireSession(c)
	if err != nil {
		return err
	}
	var req replyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	post, err := h.forum.Reply(c.Request().Context(), author, c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

// Thank credits a post's author. Repeats are accepted silently.
//
// @Summary      Thank a post
// @Tags         forum
// @Security     BearerAuth
// @Param        id   path  string  true  "Post ID"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/posts/{id}/thanks [post]
func (h *ForumHandler) Thank(c echo.Context) error {
	viewer, err := requireSession(c)
	if err != nil {
		return err
	}
	if err := h.forum.Thank(c.Request().Context(), viewer, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func toTopicDetail(d *ports.TopicDetail) topicDetailResponse {
	posts := d.Posts
	if posts == nil {
		posts = []domain.Post{}
	}
	return topicDetailResponse{Topic: d.Topic, Posts: posts}
}
