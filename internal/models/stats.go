package models

// StatsSnapshot is the payload relayed to operator clients over /ws/stats.
// Shape follows the upstream stats feed: a type discriminator plus storage,
// queue, and recent-activity sections.
type StatsSnapshot struct {
	Type        string        `json:"type"`
	Storage     *StorageStats `json:"storage,omitempty"`
	Queue       *QueueStats   `json:"queue,omitempty"`
	RecentItems []RecentItem  `json:"recent_items,omitempty"`
}

// StorageStats reports upstream storage accounting.
type StorageStats struct {
	UsedBytes  int64   `json:"used_bytes"`
	TotalBytes int64   `json:"total_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

// QueueStats reports the scrape backlog.
type QueueStats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Failed  int `json:"failed"`
}

// RecentItem is a recently scraped or reviewed item surfaced in the stats feed.
type RecentItem struct {
	PostID   uint   `json:"post_id"`
	Username string `json:"username"`
	Action   string `json:"action"`
}
