package models

// Rating bounds for trick ranking and difficulty.
const (
	MinRating = 0
	MaxRating = 5
)

// Classification is the structured review verdict for exactly one Post.
// The upstream API is authoritative; instances held here are drafts that are
// reconciled whenever the review cursor moves.
type Classification struct {
	PostID           uint     `json:"post_id"`
	IsApproved       *bool    `json:"is_approved"`
	TrickTypes       []string `json:"trick_type"`
	TrickRanking     int      `json:"trick_ranking"`
	TrickDifficulty  int      `json:"trick_difficulty"`
	RequiresClipping *bool    `json:"requires_clipping"`
}

// ClampRating forces v into the [MinRating, MaxRating] range.
func ClampRating(v int) int {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}

// Decided reports whether an approve/reject verdict has been recorded.
// Undecided classifications are never persisted.
func (c *Classification) Decided() bool {
	return c.IsApproved != nil
}
