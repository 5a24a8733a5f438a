package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"reviewdeck/internal/models"
)

type queueEnvelope struct {
	Items []models.QueueItem `json:"items"`
}

type jobsEnvelope struct {
	Jobs []models.ScrapeJob `json:"jobs"`
}

// EnqueueProfile adds a profile to the scrape queue.
func (c *Client) EnqueueProfile(ctx context.Context, profileID uint) (*models.QueueItem, error) {
	body := map[string]uint{"profile_id": profileID}
	var item models.QueueItem
	if err := c.do(ctx, http.MethodPost, "/queue", nil, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListQueue fetches the current scrape queue.
func (c *Client) ListQueue(ctx context.Context) ([]models.QueueItem, error) {
	var env queueEnvelope
	if err := c.get(ctx, "/queue", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// RemoveQueueItem deletes a single queue entry.
func (c *Client) RemoveQueueItem(ctx context.Context, queueID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/queue/%d", queueID), nil, nil, nil)
}

// ClearPendingQueue drops all pending queue entries.
func (c *Client) ClearPendingQueue(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/queue/clear-pending", nil, nil, nil)
}

// TriggerScrape starts a scrape run for a profile.
func (c *Client) TriggerScrape(ctx context.Context, profileID uint) (*models.ScrapeJob, error) {
	body := map[string]uint{"profile_id": profileID}
	var job models.ScrapeJob
	if err := c.do(ctx, http.MethodPost, "/scrape/trigger", nil, body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListScrapeJobs fetches recent scrape jobs, optionally filtered by status.
func (c *Client) ListScrapeJobs(ctx context.Context, status string) ([]models.ScrapeJob, error) {
	var q url.Values
	if status != "" {
		q = url.Values{}
		q.Set("status", status)
	}
	var env jobsEnvelope
	if err := c.get(ctx, "/scrape/jobs", q, &env); err != nil {
		return nil, err
	}
	return env.Jobs, nil
}

// GetScrapeStatus fetches the status of a single scrape job.
func (c *Client) GetScrapeStatus(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	if err := c.get(ctx, "/scrape/status/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
