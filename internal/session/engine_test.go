package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdeck/internal/models"
)

// listsStub is a stub for the work-list resolver.
type listsStub struct {
	profilePostsFn     func(context.Context, uint) ([]models.ReviewedPost, error)
	categoryProfilesFn func(context.Context, string) ([]models.Profile, error)
}

func (s *listsStub) ProfilePosts(ctx context.Context, profileID uint) ([]models.ReviewedPost, error) {
	return s.profilePostsFn(ctx, profileID)
}
func (s *listsStub) CategoryProfiles(ctx context.Context, category string) ([]models.Profile, error) {
	return s.categoryProfilesFn(ctx, category)
}

func post(id uint, reviewed bool) models.ReviewedPost {
	p := models.ReviewedPost{Post: models.Post{ID: id}}
	if reviewed {
		clsID := id
		p.ClassificationID = &clsID
	}
	return p
}

// fixtureLists builds a category of three profiles: 10 (posts 100,101), 20
// (post 200, fully reviewed) and 30 (posts 300,301 with 300 reviewed).
func fixtureLists() *listsStub {
	return &listsStub{
		profilePostsFn: func(_ context.Context, profileID uint) ([]models.ReviewedPost, error) {
			switch profileID {
			case 10:
				return []models.ReviewedPost{post(100, false), post(101, false)}, nil
			case 20:
				return []models.ReviewedPost{post(200, true)}, nil
			case 30:
				return []models.ReviewedPost{post(300, true), post(301, false)}, nil
			default:
				return nil, nil
			}
		},
		categoryProfilesFn: func(_ context.Context, _ string) ([]models.Profile, error) {
			return []models.Profile{
				{ID: 10, UnreviewedPostCount: 2},
				{ID: 20, UnreviewedPostCount: 1}, // stale count, actually done
				{ID: 30, UnreviewedPostCount: 1},
			}, nil
		},
	}
}

func TestEngine_AdvanceWithinProfile(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	cur, done, err := e.Advance(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 100})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, uint(10), cur.ProfileID)
	assert.Equal(t, uint(101), cur.PostID)
}

func TestEngine_AdvanceSkipsStaleCandidate(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	// End of profile 10. Profile 20 claims unreviewed posts but has none
	// left, so the scan continues to profile 30 and lands on its first
	// unreviewed post.
	cur, done, err := e.Advance(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 101})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, uint(30), cur.ProfileID)
	assert.Equal(t, uint(301), cur.PostID)
}

func TestEngine_AdvanceWrapsAroundCategory(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	// Leaving the last profile wraps the scan to the top of the list.
	cur, done, err := e.Advance(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 30, PostID: 301})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, uint(10), cur.ProfileID)
	assert.Equal(t, uint(100), cur.PostID)
}

func TestEngine_AdvanceReportsExhaustion(t *testing.T) {
	t.Parallel()
	lists := fixtureLists()
	lists.profilePostsFn = func(_ context.Context, profileID uint) ([]models.ReviewedPost, error) {
		if profileID == 10 {
			return []models.ReviewedPost{post(100, true), post(101, false)}, nil
		}
		// Every other profile is fully reviewed.
		return []models.ReviewedPost{post(profileID*10, true)}, nil
	}
	e := NewEngine(lists)

	// 101 is the last post of the only profile with work left.
	cur, done, err := e.Advance(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 101})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, uint(101), cur.PostID, "cursor stays put on exhaustion")
}

func TestEngine_AdvanceFailsClosedOnResolutionError(t *testing.T) {
	t.Parallel()
	lists := fixtureLists()
	lists.categoryProfilesFn = func(_ context.Context, _ string) ([]models.Profile, error) {
		return nil, models.NewUnavailableError("category work-list", nil)
	}
	e := NewEngine(lists)

	start := Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 101}
	cur, done, err := e.Advance(context.Background(), start)
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))
	assert.False(t, done, "a resolution failure is not exhaustion")
	assert.Equal(t, start, cur)
}

func TestEngine_RetreatStopsAtProfileBoundary(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	cur, moved, err := e.Retreat(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 101})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, uint(100), cur.PostID)

	// First post of the profile: backward movement never crosses into
	// another profile.
	cur, moved, err = e.Retreat(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 10, PostID: 100})
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, uint(100), cur.PostID)
}

func TestEngine_ResolvePicksFirstUnreviewed(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	// Category only: scan finds profile 10 first.
	cur, done, err := e.Resolve(context.Background(), "sk8", 0, 0)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, uint(10), cur.ProfileID)
	assert.Equal(t, uint(100), cur.PostID)

	// Profile pinned: first unreviewed post within it.
	cur, done, err = e.Resolve(context.Background(), "sk8", 30, 0)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, uint(301), cur.PostID)
}

func TestEngine_ResolveRejectsUnknownPost(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	_, _, err := e.Resolve(context.Background(), "sk8", 10, 999)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestEngine_Position(t *testing.T) {
	t.Parallel()
	e := NewEngine(fixtureLists())

	pos, err := e.Position(context.Background(),
		Cursor{CategoryKey: "sk8", ProfileID: 30, PostID: 301})
	require.NoError(t, err)
	assert.Equal(t, 1, pos.PostIndex)
	assert.Equal(t, 2, pos.ListLen)
	assert.Equal(t, 2, pos.ProfileIndex)
	assert.Equal(t, 3, pos.ProfileListLen)
}
