package session

import (
	"context"
	"sync"
	"time"

	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
	"reviewdeck/internal/review"
)

// PostSource fetches the payload behind a cursor position.
// *upstream.Client satisfies it.
type PostSource interface {
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
	GetClassification(ctx context.Context, postID uint) (*models.Classification, error)
}

// Session is one operator's review position: a cursor over the category
// work-list, the draft for the post on screen, and the autosave scheduler
// that persists it. All methods are safe for concurrent use.
type Session struct {
	ID       string
	Operator string

	engine *Engine
	posts  PostSource
	store  *review.Store
	sched  *review.Scheduler

	mu         sync.Mutex
	state      State
	cursor     Cursor
	lastCursor Cursor
	post       *models.Post
	pos        Position
	warning    string
	loadGen    uint64
	lastSeen   time.Time
	closed     bool
}

// Snapshot is the serialized view of a session returned to handlers.
type Snapshot struct {
	ID        string                 `json:"id"`
	Operator  string                 `json:"operator"`
	State     State                  `json:"state"`
	Cursor    Cursor                 `json:"cursor"`
	Position  Position               `json:"position"`
	Path      string                 `json:"path,omitempty"`
	Post      *models.Post           `json:"post,omitempty"`
	Draft     *models.Classification `json:"draft,omitempty"`
	Dirty     bool                   `json:"dirty"`
	SaveState review.SaveState       `json:"save_state"`
	Warning   string                 `json:"warning,omitempty"`
}

func newSession(id, operator string, engine *Engine, posts PostSource, store *review.Store, sched *review.Scheduler) *Session {
	return &Session{
		ID:       id,
		Operator: operator,
		engine:   engine,
		posts:    posts,
		store:    store,
		sched:    sched,
		state:    StateLoading,
		lastSeen: time.Now(),
	}
}

// start resolves the session's entry point into a concrete position and
// loads the first post. Called once by the manager before the session is
// handed out.
func (s *Session) start(ctx context.Context, category string, profileID, postID uint) error {
	cur, done, err := s.engine.Resolve(ctx, category, profileID, postID)
	if err != nil {
		return err
	}
	if done {
		s.mu.Lock()
		s.cursor = cur
		s.setStateLocked(StateAllDone)
		s.mu.Unlock()
		return nil
	}
	post, existing, err := s.fetchPost(ctx, cur.PostID)
	if err != nil {
		return err
	}
	pos := s.locate(ctx, cur)
	s.mu.Lock()
	s.applyLocked(cur, post, existing, pos)
	s.mu.Unlock()
	return nil
}

// locate computes display indexes for a cursor. Display-only, so a failed
// lookup degrades to unknown positions rather than failing the navigation.
func (s *Session) locate(ctx context.Context, cur Cursor) Position {
	pos, err := s.engine.Position(ctx, cur)
	if err != nil {
		return Position{PostIndex: -1, ProfileIndex: -1}
	}
	return pos
}

// Next moves the cursor forward. The current draft is flushed first so a
// pending debounced edit is never dropped when the store is reloaded for
// the next post; if the flush fails the session stays put and the error is
// returned. From the exhausted state Next is a no-op.
func (s *Session) Next(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.state == StateAllDone {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()
	return s.navigate(ctx, func(cur Cursor) (Cursor, bool, error) {
		return s.engine.Advance(ctx, cur)
	})
}

// Prev moves the cursor backward within the current profile. On the first
// post it is a no-op. From the exhausted state it returns to the last post
// that was on screen.
func (s *Session) Prev(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.state == StateAllDone {
		back := s.lastCursor
		s.mu.Unlock()
		if back.PostID == 0 {
			return s.CurrentSnapshot(), nil
		}
		return s.Goto(ctx, back)
	}
	s.mu.Unlock()
	return s.navigate(ctx, func(cur Cursor) (Cursor, bool, error) {
		next, moved, err := s.engine.Retreat(ctx, cur)
		if err != nil {
			return cur, false, err
		}
		if !moved {
			return cur, false, errBoundary
		}
		return next, false, nil
	})
}

// errBoundary is an internal sentinel for a backward step at the start of a
// profile. It never escapes navigate.
var errBoundary = models.NewValidationError("boundary")

// Goto jumps the session to an explicit cursor, flushing the current draft
// first. Used for direct deep links into a profile's work-list.
func (s *Session) Goto(ctx context.Context, target Cursor) (Snapshot, error) {
	return s.navigate(ctx, func(Cursor) (Cursor, bool, error) {
		if _, err := s.posts.GetPost(ctx, target.PostID); err != nil {
			return target, false, err
		}
		return target, false, nil
	})
}

// navigate is the shared cursor-move path: flush, compute the step, fetch
// the target post, then apply the result only if no newer navigation
// started in the meantime. The generation check keeps a slow resolution
// from clobbering the position a faster, later step already established.
func (s *Session) navigate(ctx context.Context, step func(Cursor) (Cursor, bool, error)) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, models.NewNotFoundError("session", s.ID)
	}
	cur := s.cursor
	s.loadGen++
	gen := s.loadGen
	s.setStateLocked(StateLoading)
	s.mu.Unlock()

	if err := s.sched.Flush(ctx); err != nil {
		return s.failNavigate(gen, err)
	}

	next, done, err := step(cur)
	if err != nil {
		if err == errBoundary {
			return s.settleNavigate(gen, StateViewing, ""), nil
		}
		return s.failNavigate(gen, err)
	}
	if done {
		s.mu.Lock()
		if s.loadGen == gen {
			s.lastCursor = cur
			s.setStateLocked(StateAllDone)
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	post, existing, err := s.fetchPost(ctx, next.PostID)
	if err != nil {
		return s.failNavigate(gen, err)
	}
	pos := s.locate(ctx, next)

	s.mu.Lock()
	if s.loadGen == gen {
		s.applyLocked(next, post, existing, pos)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, nil
}

// failNavigate keeps the session on its current post after a failed step
// and surfaces the error to the caller without tearing the session down.
func (s *Session) failNavigate(gen uint64, err error) (Snapshot, error) {
	snap := s.settleNavigate(gen, StateViewing, err.Error())
	return snap, err
}

func (s *Session) settleNavigate(gen uint64, state State, warning string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadGen == gen && s.state == StateLoading {
		s.setStateLocked(state)
		s.warning = warning
	}
	return s.snapshotLocked()
}

// fetchPost loads the post payload and any stored classification for it.
// A missing classification is the normal unreviewed case, not an error.
func (s *Session) fetchPost(ctx context.Context, postID uint) (*models.Post, *models.Classification, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.posts.GetClassification(ctx, postID)
	if err != nil {
		if !models.IsNotFound(err) {
			return nil, nil, err
		}
		existing = nil
	}
	return post, existing, nil
}

// applyLocked installs a resolved position: cursor, post payload, and a
// fresh draft seeded from the stored classification.
func (s *Session) applyLocked(cur Cursor, post *models.Post, existing *models.Classification, pos Position) {
	s.lastCursor = s.cursor
	s.cursor = cur
	s.post = post
	s.pos = pos
	s.warning = ""
	s.store.Load(cur.PostID, existing)
	s.setStateLocked(StateViewing)
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	middleware.TraversalTransitions.WithLabelValues(string(state)).Inc()
}

// ApplyPatch merges an edit into the draft and arms the autosave debounce.
// Edits are only accepted while a post is on screen. The session mutex is
// held across the state check and the edit so a concurrent navigation cannot
// swap the draft in between and have the edit land on the wrong post.
func (s *Session) ApplyPatch(p review.Patch) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateViewing {
		return s.snapshotLocked(), models.NewValidationError("no post is on screen")
	}
	if p.Empty() {
		return s.snapshotLocked(), nil
	}
	s.warning = ""
	s.store.Edit(p)
	s.sched.NotifyDirty()
	return s.snapshotLocked(), nil
}

// SetClipping toggles the clipping view flag on the cursor.
func (s *Session) SetClipping(clipping bool) Snapshot {
	s.mu.Lock()
	if s.state == StateViewing {
		s.cursor.Clipping = clipping
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap
}

// Flush persists the draft immediately, bypassing the debounce. Used by the
// explicit save/retry action.
func (s *Session) Flush(ctx context.Context) (Snapshot, error) {
	err := s.sched.Flush(ctx)
	s.mu.Lock()
	if err != nil {
		s.warning = err.Error()
	} else {
		s.warning = ""
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, err
}

// CurrentSnapshot returns the session's serialized view.
func (s *Session) CurrentSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		Operator:  s.Operator,
		State:     s.state,
		Cursor:    s.cursor,
		Position:  s.pos,
		Dirty:     s.store.Dirty(),
		SaveState: s.sched.State(),
		Warning:   s.warning,
	}
	if s.state == StateViewing {
		snap.Path = s.cursor.Path()
		snap.Post = s.post
		draft := s.store.Draft()
		snap.Draft = &draft
	}
	if snap.Warning == "" {
		if err := s.sched.LastError(); err != nil {
			snap.Warning = err.Error()
		}
	}
	return snap
}

// Touch marks the session as recently used for the idle janitor.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close flushes a dirty draft on a best-effort basis and stops the
// scheduler. Called by the manager on delete and expiry.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	_ = s.sched.Flush(ctx)
	s.sched.Close()
}
