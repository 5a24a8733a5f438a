package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"reviewdeck/internal/cache"
	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
	"reviewdeck/internal/review"
)

// Saver is the slice of the upstream client the autosave path needs.
// *upstream.Client satisfies it.
type Saver interface {
	CreateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error)
	UpdateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error)
}

// Manager owns every live review session: creation, operator-scoped lookup,
// deletion, and expiry of idle sessions.
type Manager struct {
	engine     *Engine
	posts      PostSource
	saver      Saver
	debounce   time.Duration
	maxRetries int
	ttl        time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	stop chan struct{}
	done chan struct{}
}

func NewManager(lists Lists, posts PostSource, saver Saver, debounce, ttl time.Duration, maxRetries int) *Manager {
	m := &Manager{
		engine:     NewEngine(lists),
		posts:      posts,
		saver:      saver,
		debounce:   debounce,
		maxRetries: maxRetries,
		ttl:        ttl,
		sessions:   make(map[string]*Session),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Create resolves the entry point and returns a started session bound to
// the operator. The entry point is either a category (optionally narrowed
// to a profile or a post) or a canonical review path.
func (m *Manager) Create(ctx context.Context, operator, category string, profileID, postID uint) (*Session, error) {
	if category == "" {
		return nil, models.NewValidationError("category is required")
	}

	store := review.NewStore()
	sess := newSession(uuid.New().String(), operator, m.engine, m.posts, store, nil)
	sess.sched = review.NewScheduler(store, m.saveFunc(sess), m.debounce, m.maxRetries)

	if err := sess.start(ctx, category, profileID, postID); err != nil {
		sess.sched.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	middleware.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return sess, nil
}

// saveFunc wires a session's scheduler to the upstream classification
// endpoints and drops the cached reads the write invalidates.
func (m *Manager) saveFunc(sess *Session) review.SaveFunc {
	return func(ctx context.Context, draft models.Classification, exists bool) error {
		var err error
		if exists {
			_, err = m.saver.UpdateClassification(ctx, &draft)
		} else {
			_, err = m.saver.CreateClassification(ctx, &draft)
		}
		if err != nil {
			return err
		}
		cur := sess.CurrentSnapshot().Cursor
		cache.InvalidateClassification(ctx, draft.PostID, cur.ProfileID, cur.CategoryKey)
		return nil
	}
}

// Get returns the operator's session. Sessions are private: a lookup with
// someone else's ID reports not found rather than forbidden, so session IDs
// cannot be probed.
func (m *Manager) Get(id, operator string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || sess.Operator != operator {
		return nil, models.NewNotFoundError("session", id)
	}
	sess.Touch()
	return sess, nil
}

// Delete closes and removes the operator's session, flushing any dirty
// draft on the way out.
func (m *Manager) Delete(ctx context.Context, id, operator string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok && sess.Operator == operator {
		delete(m.sessions, id)
	}
	middleware.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if !ok || sess.Operator != operator {
		return models.NewNotFoundError("session", id)
	}
	sess.close(ctx)
	return nil
}

// janitor expires sessions idle past the TTL.
func (m *Manager) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.expire(time.Now().Add(-m.ttl))
		}
	}
}

func (m *Manager) expire(cutoff time.Time) {
	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	middleware.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, sess := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sess.close(ctx)
		cancel()
		middleware.Logger.Info("expired idle review session",
			"session_id", sess.ID, "operator", sess.Operator)
	}
}

// Close stops the janitor and closes every live session.
func (m *Manager) Close(ctx context.Context) {
	close(m.stop)
	<-m.done

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	middleware.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.close(ctx)
	}
}
