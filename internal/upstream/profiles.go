package upstream

import (
	"context"
	"net/url"

	"reviewdeck/internal/models"
)

type profilesEnvelope struct {
	Profiles []models.Profile `json:"profiles"`
}

type categoriesEnvelope struct {
	Categories []models.Category `json:"categories"`
}

// ListProfilesWithReviewStats fetches the category's profiles annotated with
// unreviewed-post counts. Counts are derived upstream from classification
// existence and must be treated as a snapshot.
func (c *Client) ListProfilesWithReviewStats(ctx context.Context, category string) ([]models.Profile, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	q.Set("reviewStatus", "has_unreviewed")

	var env profilesEnvelope
	if err := c.get(ctx, "/profiles/with-review-stats", q, &env); err != nil {
		return nil, err
	}
	return env.Profiles, nil
}

// ListCategories fetches all categories.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var env categoriesEnvelope
	if err := c.get(ctx, "/categories", nil, &env); err != nil {
		return nil, err
	}
	return env.Categories, nil
}
