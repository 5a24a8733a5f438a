package session

import (
	"context"

	"reviewdeck/internal/models"
	"reviewdeck/internal/worklist"
)

// State is the traversal state of a review session.
type State string

const (
	// StateViewing means the cursor points at a concrete post.
	StateViewing State = "viewing"
	// StateLoading means a navigation step is resolving work-lists.
	StateLoading State = "loading"
	// StateAllDone means every candidate profile in the category has been
	// exhausted. Only a backward step leaves this state.
	StateAllDone State = "all_done"
)

// Lists is the slice of the work-list resolver the engine needs.
// *worklist.Resolver satisfies it.
type Lists interface {
	ProfilePosts(ctx context.Context, profileID uint) ([]models.ReviewedPost, error)
	CategoryProfiles(ctx context.Context, category string) ([]models.Profile, error)
}

// Engine computes traversal steps over resolver-backed work-lists. It holds
// no position of its own; the session owns the cursor and feeds it in, so a
// slow resolution can be discarded without corrupting engine state.
type Engine struct {
	lists Lists
}

func NewEngine(lists Lists) *Engine {
	return &Engine{lists: lists}
}

// Resolve turns a session entry point into a concrete starting cursor.
// With a post ID the post must exist in the profile's work-list; with only a
// profile the first unreviewed post is chosen; with only a category the
// profile scan picks the first candidate. The bool result reports whether
// the category is already exhausted.
func (e *Engine) Resolve(ctx context.Context, category string, profileID, postID uint) (Cursor, bool, error) {
	cur := Cursor{CategoryKey: category, ProfileID: profileID, PostID: postID}

	if profileID == 0 {
		// No profile pinned: treat it like stepping past a profile that
		// does not exist, which scans the whole category from the top.
		return e.nextProfile(ctx, cur)
	}

	posts, err := e.lists.ProfilePosts(ctx, profileID)
	if err != nil {
		return cur, false, err
	}

	if postID != 0 {
		if worklist.IndexOfPost(posts, postID) < 0 {
			return cur, false, models.NewNotFoundError("post", postID)
		}
		return cur, false, nil
	}

	if id, ok := firstUnreviewed(posts); ok {
		cur.PostID = id
		return cur, false, nil
	}
	if len(posts) > 0 {
		// Everything in this profile is reviewed; land on the first post so
		// the operator can still inspect or amend it.
		cur.PostID = posts[0].ID
		return cur, false, nil
	}
	return e.nextProfile(ctx, cur)
}

// Advance computes the cursor after a forward step: the next post within the
// current profile, or the first unreviewed post of the next candidate
// profile. The bool result reports category exhaustion. On a resolution
// error the input cursor is returned unchanged so the caller stays put.
func (e *Engine) Advance(ctx context.Context, cur Cursor) (Cursor, bool, error) {
	posts, err := e.lists.ProfilePosts(ctx, cur.ProfileID)
	if err != nil {
		return cur, false, err
	}
	idx := worklist.IndexOfPost(posts, cur.PostID)
	if idx >= 0 && idx+1 < len(posts) {
		cur.PostID = posts[idx+1].ID
		cur.Clipping = false
		return cur, false, nil
	}
	return e.nextProfile(ctx, cur)
}

// Retreat computes the cursor after a backward step. Backward movement never
// crosses a profile boundary: on the first post it reports moved=false and
// the caller keeps the cursor as is.
func (e *Engine) Retreat(ctx context.Context, cur Cursor) (Cursor, bool, error) {
	posts, err := e.lists.ProfilePosts(ctx, cur.ProfileID)
	if err != nil {
		return cur, false, err
	}
	idx := worklist.IndexOfPost(posts, cur.PostID)
	if idx <= 0 {
		return cur, false, nil
	}
	cur.PostID = posts[idx-1].ID
	cur.Clipping = false
	return cur, true, nil
}

// nextProfile scans the category's candidate profiles forward from the
// current one, wrapping around once and never revisiting the profile being
// left. A candidate whose work-list turns out to have no unreviewed posts
// (a stale count) is skipped; a candidate whose work-list cannot be
// resolved aborts the step so the operator is not silently skipped past it.
func (e *Engine) nextProfile(ctx context.Context, cur Cursor) (Cursor, bool, error) {
	profiles, err := e.lists.CategoryProfiles(ctx, cur.CategoryKey)
	if err != nil {
		return cur, false, err
	}

	start := len(profiles)
	for i, p := range profiles {
		if p.ID > cur.ProfileID {
			start = i
			break
		}
	}

	for n := 0; n < len(profiles); n++ {
		p := profiles[(start+n)%len(profiles)]
		if p.ID == cur.ProfileID {
			continue
		}
		posts, err := e.lists.ProfilePosts(ctx, p.ID)
		if err != nil {
			return cur, false, err
		}
		id, ok := firstUnreviewed(posts)
		if !ok {
			continue
		}
		return Cursor{CategoryKey: cur.CategoryKey, ProfileID: p.ID, PostID: id}, false, nil
	}
	return cur, true, nil
}

// Position locates a cursor inside its work-lists for display: post index
// within the profile and profile index within the category candidates.
// Indexes are -1 when the cursor is not on the corresponding list.
type Position struct {
	PostIndex      int `json:"current_index"`
	ListLen        int `json:"list_len"`
	ProfileIndex   int `json:"profile_index"`
	ProfileListLen int `json:"profile_list_len"`
}

func (e *Engine) Position(ctx context.Context, cur Cursor) (Position, error) {
	posts, err := e.lists.ProfilePosts(ctx, cur.ProfileID)
	if err != nil {
		return Position{}, err
	}
	profiles, err := e.lists.CategoryProfiles(ctx, cur.CategoryKey)
	if err != nil {
		return Position{}, err
	}
	return Position{
		PostIndex:      worklist.IndexOfPost(posts, cur.PostID),
		ListLen:        len(posts),
		ProfileIndex:   worklist.IndexOfProfile(profiles, cur.ProfileID),
		ProfileListLen: len(profiles),
	}, nil
}

func firstUnreviewed(posts []models.ReviewedPost) (uint, bool) {
	for _, p := range posts {
		if !p.Reviewed() {
			return p.ID, true
		}
	}
	return 0, false
}
