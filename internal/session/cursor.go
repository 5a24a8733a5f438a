package session

import (
	"fmt"
	"strconv"
	"strings"

	"reviewdeck/internal/models"
)

// Cursor is the review position: which category work-list the operator is
// walking, which profile within it, and which post is on screen. A zero
// PostID means the position is not yet resolved to a concrete post.
type Cursor struct {
	CategoryKey string `json:"category"`
	ProfileID   uint   `json:"profile_id"`
	PostID      uint   `json:"post_id"`
	Clipping    bool   `json:"clipping"`
}

// Path renders the canonical review path for the cursor, e.g.
// /skateboarding/42/classify/1337 (with a trailing /clip while the
// operator is in the clipping view).
func (c Cursor) Path() string {
	var b strings.Builder
	fmt.Fprintf(&b, "/%s/%d/classify/%d", c.CategoryKey, c.ProfileID, c.PostID)
	if c.Clipping {
		b.WriteString("/clip")
	}
	return b.String()
}

// ParsePath decodes a canonical review path back into a Cursor. Accepts an
// optional trailing /clip segment.
func ParsePath(path string) (Cursor, error) {
	trimmed := strings.Trim(path, "/")
	parts := strings.Split(trimmed, "/")

	var clipping bool
	if len(parts) == 5 && parts[4] == "clip" {
		clipping = true
		parts = parts[:4]
	}
	if len(parts) != 4 || parts[2] != "classify" {
		return Cursor{}, models.NewValidationError("path: expected /{category}/{profileId}/classify/{postId}")
	}

	category := parts[0]
	if category == "" {
		return Cursor{}, models.NewValidationError("path: category segment is empty")
	}
	profileID, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || profileID == 0 {
		return Cursor{}, models.NewValidationError("path: profile segment must be a positive integer")
	}
	postID, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil || postID == 0 {
		return Cursor{}, models.NewValidationError("path: post segment must be a positive integer")
	}

	return Cursor{
		CategoryKey: category,
		ProfileID:   uint(profileID),
		PostID:      uint(postID),
		Clipping:    clipping,
	}, nil
}
