// Package models contains data structures for the application's domain models.
package models

import "time"

// Platform identifies the social network a profile was scraped from.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// Post is a single scraped content item awaiting or having received a review
// verdict. Posts are owned by the upstream pipeline API and are immutable here.
type Post struct {
	ID           uint       `json:"id"`
	ProfileID    uint       `json:"profile_id"`
	PostURL      string     `json:"post_url"`
	Caption      string     `json:"caption,omitempty"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	VideoURL     string     `json:"video_url,omitempty"`
}

// ReviewedPost is a Post annotated with its review status, as returned by the
// upstream /posts/with-review-status endpoint.
type ReviewedPost struct {
	Post
	ClassificationID *uint    `json:"classification_id"`
	IsApproved       *bool    `json:"is_approved"`
	TrickTypes       []string `json:"trick_type"`
}

// Reviewed reports whether a classification exists for this post.
func (p *ReviewedPost) Reviewed() bool {
	return p.ClassificationID != nil
}
