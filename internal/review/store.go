// Package review holds the in-progress classification draft for the post
// under review and the autosave scheduler that persists it.
package review

import (
	"sync"

	"reviewdeck/internal/models"
)

// Store holds the single live classification draft. The draft is keyed by
// post ID and fully replaced on every cursor change, so edits from one post
// can never leak into another post's draft.
type Store struct {
	mu       sync.Mutex
	draft    models.Classification
	revision uint64
	dirty    bool
	exists   bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the draft wholesale for the given post. When a server-side
// classification exists its fields populate the draft; otherwise the draft
// resets to the all-null/zero default.
func (s *Store) Load(postID uint, existing *models.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing != nil {
		s.draft = cloneClassification(*existing)
		s.draft.PostID = postID
		s.exists = true
	} else {
		s.draft = models.Classification{PostID: postID}
		s.exists = false
	}
	s.draft.TrickRanking = models.ClampRating(s.draft.TrickRanking)
	s.draft.TrickDifficulty = models.ClampRating(s.draft.TrickDifficulty)
	s.dirty = false
	s.revision++
}

// Edit merges the patch into the current draft, clamping ratings, and marks
// the draft dirty. Returns a copy of the updated draft.
func (s *Store) Edit(p Patch) models.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsApproved.Set {
		s.draft.IsApproved = p.IsApproved.Value
	}
	if p.TrickTypes != nil {
		s.draft.TrickTypes = append([]string(nil), (*p.TrickTypes)...)
	}
	if p.TrickRanking != nil {
		s.draft.TrickRanking = models.ClampRating(*p.TrickRanking)
	}
	if p.TrickDifficulty != nil {
		s.draft.TrickDifficulty = models.ClampRating(*p.TrickDifficulty)
	}
	if p.RequiresClipping.Set {
		s.draft.RequiresClipping = p.RequiresClipping.Value
	}
	s.dirty = true
	s.revision++
	return cloneClassification(s.draft)
}

// Draft returns a copy of the current draft.
func (s *Store) Draft() models.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneClassification(s.draft)
}

// Dirty reports whether the draft has unsaved edits.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Exists reports whether a server-side classification is known to exist for
// the draft's post (create vs update on save).
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}

// Snapshot returns a copy of the draft with its revision and flags, for a
// save attempt.
func (s *Store) Snapshot() (draft models.Classification, revision uint64, exists, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneClassification(s.draft), s.revision, s.exists, s.dirty
}

// MarkSaved records a successful save of the snapshot taken at revision.
// The dirty flag is cleared only when no newer edit arrived in the meantime;
// the server-side record now exists either way. Returns true when the draft
// is still dirty (a follow-up save is needed).
func (s *Store) MarkSaved(revision uint64, postID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A late save completion for a previous post must not touch the new draft.
	if s.draft.PostID != postID {
		return false
	}
	s.exists = true
	if s.revision == revision {
		s.dirty = false
	}
	return s.dirty
}

func cloneClassification(c models.Classification) models.Classification {
	if c.TrickTypes != nil {
		c.TrickTypes = append([]string(nil), c.TrickTypes...)
	}
	return c
}
