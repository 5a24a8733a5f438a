package upstream

import (
	"context"
	"fmt"
	"net/url"

	"reviewdeck/internal/models"
)

type postsEnvelope struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
}

type reviewedPostsEnvelope struct {
	Posts []models.ReviewedPost `json:"posts"`
	Total int                   `json:"total"`
}

// GetPost fetches a single post by ID. Returns a NOT_FOUND AppError when the
// post does not exist (the endpoint answers with an empty list, not a 404).
func (c *Client) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	q := url.Values{}
	q.Set("postId", fmt.Sprintf("%d", postID))

	var env postsEnvelope
	if err := c.get(ctx, "/posts", q, &env); err != nil {
		return nil, err
	}
	if len(env.Posts) == 0 {
		return nil, models.NewNotFoundError("post", postID)
	}
	post := env.Posts[0]
	return &post, nil
}

// ListPostsWithReviewStatus fetches the ordered, review-annotated post list
// for a profile. The returned order is the traversal order for that profile.
func (c *Client) ListPostsWithReviewStatus(ctx context.Context, profileID uint) ([]models.ReviewedPost, error) {
	q := url.Values{}
	q.Set("profileId", fmt.Sprintf("%d", profileID))
	q.Set("limit", "1000")

	var env reviewedPostsEnvelope
	if err := c.get(ctx, "/posts/with-review-status", q, &env); err != nil {
		return nil, err
	}
	return env.Posts, nil
}
