package review

import (
	"context"
	"sync"
	"time"

	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
)

// SaveFunc persists a draft snapshot: create when no server-side
// classification exists for the post yet, update otherwise.
type SaveFunc func(ctx context.Context, draft models.Classification, exists bool) error

// SaveState is the user-visible persistence status of the draft.
type SaveState string

const (
	SaveIdle    SaveState = "idle"
	SavePending SaveState = "pending"
	SaveSaving  SaveState = "saving"
	SaveFailed  SaveState = "failed"
)

// Scheduler debounces draft edits and issues create-or-update calls.
// Invariants: at most one persistence call in flight per draft at a time
// (a slow first write must never land after a fast second write); a save
// failure keeps the dirty flag set and never discards the operator's edits.
type Scheduler struct {
	store      *Store
	save       SaveFunc
	debounce   time.Duration
	maxRetries int

	mu       sync.Mutex
	cond     *sync.Cond
	timer    *time.Timer
	inFlight bool
	queued   bool
	retries  int
	state    SaveState
	lastErr  error
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler over the store. Debounced saves run on the
// scheduler's own context so they survive the request that triggered them.
func NewScheduler(store *Store, save SaveFunc, debounce time.Duration, maxRetries int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:      store,
		save:       save,
		debounce:   debounce,
		maxRetries: maxRetries,
		state:      SaveIdle,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// NotifyDirty arms (or re-arms) the debounce window after an edit. A fresh
// edit also resets the retry budget of a previously failed save.
func (s *Scheduler) NotifyDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.retries = 0
	if s.state != SaveSaving {
		s.state = SavePending
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// fire runs when the debounce window elapses. It issues exactly one save if
// the draft is still dirty and a verdict has been recorded; undecided drafts
// are never persisted.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		// Queue a follow-up instead of overlapping the in-flight write.
		s.queued = true
		s.mu.Unlock()
		return
	}
	draft, rev, exists, dirty := s.store.Snapshot()
	if !dirty || !draft.Decided() {
		// Nothing will be persisted, so the payload must not keep
		// advertising an imminent save. Undecided edits stay in memory
		// until a verdict re-arms the debounce.
		if s.state == SavePending {
			s.state = SaveIdle
		}
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.state = SaveSaving
	s.mu.Unlock()

	go func() {
		err := s.save(s.ctx, draft, exists)
		if followUp := s.finish(draft, rev, err); followUp {
			s.fire()
		}
	}()
}

// finish records a save result and reports whether a follow-up save is due.
func (s *Scheduler) finish(draft models.Classification, revision uint64, err error) bool {
	s.mu.Lock()
	defer func() {
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	s.inFlight = false
	if s.closed {
		return false
	}

	if err != nil {
		middleware.ClassificationSaves.WithLabelValues("failure").Inc()
		s.lastErr = err
		s.state = SaveFailed
		s.queued = false
		// Dirty stays set; retry on a fixed low budget, then wait for the
		// next edit or an explicit flush.
		if s.retries < s.maxRetries {
			s.retries++
			if s.timer != nil {
				s.timer.Stop()
			}
			s.timer = time.AfterFunc(s.debounce, s.fire)
		}
		return false
	}

	middleware.ClassificationSaves.WithLabelValues("success").Inc()
	s.lastErr = nil
	s.retries = 0
	stillDirty := s.store.MarkSaved(revision, draft.PostID)
	followUp := s.queued || stillDirty
	s.queued = false
	if followUp {
		s.state = SavePending
	} else {
		s.state = SaveIdle
	}
	return followUp
}

// Flush saves a dirty, decided draft synchronously. It is called on cursor
// changes (leaving a post must not drop a pending debounced edit) and by the
// explicit retry action. Waits for an in-flight save so the final field
// values are the ones persisted.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.inFlight {
		s.cond.Wait()
	}
	draft, rev, exists, dirty := s.store.Snapshot()
	if !dirty || !draft.Decided() {
		if s.state == SavePending {
			s.state = SaveIdle
		}
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.state = SaveSaving
	s.mu.Unlock()

	err := s.save(ctx, draft, exists)
	if followUp := s.finish(draft, rev, err); followUp {
		s.fire()
	}
	return err
}

// State returns the current save state.
func (s *Scheduler) State() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error of the most recent failed save, if any.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close cancels the pending debounce timer and stops future saves. An
// in-flight save is allowed to complete; its result is discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
	s.cond.Broadcast()
}
