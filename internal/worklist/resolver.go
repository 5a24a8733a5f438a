// Package worklist derives the ordered traversal sequences a review session
// walks: posts within a profile and profiles within a category.
package worklist

import (
	"context"
	"sort"

	"reviewdeck/internal/cache"
	"reviewdeck/internal/models"
)

// PostLister fetches a profile's review-annotated posts from the upstream API.
type PostLister interface {
	ListPostsWithReviewStatus(ctx context.Context, profileID uint) ([]models.ReviewedPost, error)
}

// ProfileLister fetches a category's profiles with review stats.
type ProfileLister interface {
	ListProfilesWithReviewStats(ctx context.Context, category string) ([]models.Profile, error)
}

// Resolver computes work-list snapshots. Results go stale as soon as any
// classification is saved (by this session or another reviewer), so callers
// re-resolve at every profile/category boundary crossing; the cache layer
// only smooths repeated resolution within a short window and is invalidated
// on every save.
type Resolver struct {
	posts    PostLister
	profiles ProfileLister
}

// NewResolver creates a Resolver over the given upstream listers.
func NewResolver(posts PostLister, profiles ProfileLister) *Resolver {
	return &Resolver{posts: posts, profiles: profiles}
}

// ProfilePosts returns the ordered post list for a profile, in the upstream
// list order. A fetch failure is reported as UNAVAILABLE, never as an empty
// list: an empty list legitimately ends traversal, an unavailable one must not.
func (r *Resolver) ProfilePosts(ctx context.Context, profileID uint) ([]models.ReviewedPost, error) {
	var posts []models.ReviewedPost
	err := cache.Aside(ctx, cache.ProfilePostsKey(profileID), &posts, cache.ProfilePostsTTL, func() error {
		var fetchErr error
		posts, fetchErr = r.posts.ListPostsWithReviewStatus(ctx, profileID)
		return fetchErr
	})
	if err != nil {
		return nil, models.NewUnavailableError("profile work-list", err)
	}
	return posts, nil
}

// ProfilePostIDs returns just the ordered post IDs for a profile.
func (r *Resolver) ProfilePostIDs(ctx context.Context, profileID uint) ([]uint, error) {
	posts, err := r.ProfilePosts(ctx, profileID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids, nil
}

// CategoryProfiles returns the category's profiles that still have unreviewed
// work, sorted ascending by profile ID so traversal is deterministic and
// resumable from any cursor position.
func (r *Resolver) CategoryProfiles(ctx context.Context, category string) ([]models.Profile, error) {
	var all []models.Profile
	err := cache.Aside(ctx, cache.CategoryProfilesKey(category), &all, cache.CategoryProfilesTTL, func() error {
		var fetchErr error
		all, fetchErr = r.profiles.ListProfilesWithReviewStats(ctx, category)
		return fetchErr
	})
	if err != nil {
		return nil, models.NewUnavailableError("category work-list", err)
	}

	profiles := make([]models.Profile, 0, len(all))
	for _, p := range all {
		if p.UnreviewedPostCount > 0 {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

// IndexOfPost returns the position of postID in the ordered list, or -1.
func IndexOfPost(posts []models.ReviewedPost, postID uint) int {
	for i, p := range posts {
		if p.ID == postID {
			return i
		}
	}
	return -1
}

// IndexOfProfile returns the position of profileID in the ordered list, or -1.
func IndexOfProfile(profiles []models.Profile, profileID uint) int {
	for i, p := range profiles {
		if p.ID == profileID {
			return i
		}
	}
	return -1
}
