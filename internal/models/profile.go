package models

import "time"

// Profile is a tracked content source on a social platform.
type Profile struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Platform Platform `json:"platform"`
	// UnreviewedPostCount and TotalPostCount are derived upstream from
	// classification existence and go stale as verdicts are saved.
	UnreviewedPostCount int `json:"unreviewed_posts"`
	TotalPostCount      int `json:"total_posts"`
}

// Category is a named grouping of profiles, used only to scope the
// cross-profile work-list.
type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// QueueItem is a pending entry in the upstream scrape queue.
type QueueItem struct {
	ID         uint      `json:"id"`
	ProfileID  uint      `json:"profile_id"`
	Username   string    `json:"username"`
	Status     string    `json:"status"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ScrapeJob is a scrape run tracked by the upstream pipeline.
type ScrapeJob struct {
	ID           string     `json:"id"`
	ProfileID    uint       `json:"profile_id"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ItemsScraped int        `json:"items_scraped"`
}
