package upstream

import (
	"context"
	"fmt"
	"net/http"

	"reviewdeck/internal/models"
)

// GetClassification fetches the classification for a post, or a NOT_FOUND
// AppError when the post has not been reviewed yet.
func (c *Client) GetClassification(ctx context.Context, postID uint) (*models.Classification, error) {
	var cls models.Classification
	if err := c.get(ctx, fmt.Sprintf("/classifications/%d", postID), nil, &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

// CreateClassification creates the first classification for a post.
func (c *Client) CreateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error) {
	var created models.Classification
	if err := c.do(ctx, http.MethodPost, "/classifications", nil, cls, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateClassification updates the classification keyed by the post ID.
func (c *Client) UpdateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error) {
	var updated models.Classification
	path := fmt.Sprintf("/classifications/%d", cls.PostID)
	if err := c.do(ctx, http.MethodPut, path, nil, cls, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
