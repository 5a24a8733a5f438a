package review

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdeck/internal/models"
)

const (
	testEventuallyTimeout = 2 * time.Second
	testPollInterval      = 5 * time.Millisecond
)

func approvedStore(t *testing.T, postID uint) *Store {
	t.Helper()
	store := NewStore()
	store.Load(postID, nil)
	store.Edit(Patch{IsApproved: OptionalBool{Set: true, Value: boolPtr(true)}})
	return store
}

func TestScheduler_DebounceCoalescesEdits(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	var saves atomic.Int32
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		saves.Add(1)
		return nil
	}, 30*time.Millisecond, 2)
	defer sched.Close()

	// A burst of edits inside the window must produce exactly one save.
	sched.NotifyDirty()
	store.Edit(Patch{TrickRanking: intPtr(2)})
	sched.NotifyDirty()
	store.Edit(Patch{TrickRanking: intPtr(3)})
	sched.NotifyDirty()

	require.Eventually(t, func() bool { return saves.Load() == 1 }, testEventuallyTimeout, testPollInterval)
	require.Eventually(t, func() bool { return !store.Dirty() }, testEventuallyTimeout, testPollInterval)
	assert.Never(t, func() bool { return saves.Load() > 1 }, 150*time.Millisecond, testPollInterval)
	assert.Equal(t, SaveIdle, sched.State())
}

func TestScheduler_UndecidedDraftIsNeverSaved(t *testing.T) {
	t.Parallel()
	store := NewStore()
	store.Load(1, nil)
	store.Edit(Patch{TrickRanking: intPtr(4)}) // dirty, but no verdict yet

	var saves atomic.Int32
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		saves.Add(1)
		return nil
	}, 10*time.Millisecond, 2)
	defer sched.Close()

	sched.NotifyDirty()
	assert.Never(t, func() bool { return saves.Load() > 0 }, 100*time.Millisecond, testPollInterval)
	assert.True(t, store.Dirty())
}

func TestScheduler_UndecidedDraftSettlesToIdle(t *testing.T) {
	t.Parallel()
	store := NewStore()
	store.Load(1, nil)
	store.Edit(Patch{TrickRanking: intPtr(4)}) // dirty, but no verdict yet

	var saves atomic.Int32
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		saves.Add(1)
		return nil
	}, 30*time.Millisecond, 2)
	defer sched.Close()

	sched.NotifyDirty()
	require.Equal(t, SavePending, sched.State())

	// The window elapses without a save; the state must not keep promising
	// one. The edits stay in memory (still dirty) until a verdict arrives.
	require.Eventually(t, func() bool { return sched.State() == SaveIdle }, testEventuallyTimeout, testPollInterval)
	assert.True(t, store.Dirty())
	assert.Zero(t, saves.Load())

	// Flush on an undecided draft settles the same way.
	sched.NotifyDirty()
	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, SaveIdle, sched.State())
	assert.Zero(t, saves.Load())

	// A verdict re-arms the pipeline and the draft finally persists.
	store.Edit(Patch{IsApproved: OptionalBool{Set: true, Value: boolPtr(true)}})
	sched.NotifyDirty()
	require.Eventually(t, func() bool { return saves.Load() == 1 && !store.Dirty() }, testEventuallyTimeout, testPollInterval)
	assert.Equal(t, SaveIdle, sched.State())
}

func TestScheduler_NoOverlappingSaves(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	release := make(chan struct{})
	var inFlight, maxInFlight, saves atomic.Int32
	var savedRankings []int
	var mu sync.Mutex

	sched := NewScheduler(store, func(_ context.Context, draft models.Classification, _ bool) error {
		cur := inFlight.Add(1)
		if cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		if saves.Add(1) == 1 {
			<-release
		}
		mu.Lock()
		savedRankings = append(savedRankings, draft.TrickRanking)
		mu.Unlock()
		inFlight.Add(-1)
		return nil
	}, 10*time.Millisecond, 2)
	defer sched.Close()

	sched.NotifyDirty()
	require.Eventually(t, func() bool { return saves.Load() == 1 }, testEventuallyTimeout, testPollInterval)

	// An edit while the first save is in flight queues a follow-up instead
	// of starting a second concurrent write.
	store.Edit(Patch{TrickRanking: intPtr(5)})
	sched.NotifyDirty()
	assert.Never(t, func() bool { return saves.Load() > 1 }, 100*time.Millisecond, testPollInterval)

	close(release)
	require.Eventually(t, func() bool { return saves.Load() == 2 && !store.Dirty() }, testEventuallyTimeout, testPollInterval)
	assert.Equal(t, int32(1), maxInFlight.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, savedRankings, 2)
	assert.Equal(t, 5, savedRankings[1], "follow-up save must carry the in-flight edit")
}

func TestScheduler_FailureKeepsDirtyWithBoundedRetries(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	var saves atomic.Int32
	saveErr := errors.New("upstream down")
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		saves.Add(1)
		return saveErr
	}, 10*time.Millisecond, 1)
	defer sched.Close()

	sched.NotifyDirty()

	// Initial attempt plus exactly one retry, then give up until the next
	// edit or an explicit flush.
	require.Eventually(t, func() bool { return saves.Load() == 2 }, testEventuallyTimeout, testPollInterval)
	assert.Never(t, func() bool { return saves.Load() > 2 }, 100*time.Millisecond, testPollInterval)

	assert.True(t, store.Dirty(), "a failed save must never discard edits")
	assert.Equal(t, SaveFailed, sched.State())
	assert.ErrorIs(t, sched.LastError(), saveErr)
}

func TestScheduler_FlushSavesImmediately(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	var saves atomic.Int32
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		saves.Add(1)
		return nil
	}, time.Hour, 2)
	defer sched.Close()

	sched.NotifyDirty() // debounce far in the future
	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, int32(1), saves.Load())
	assert.False(t, store.Dirty())
	assert.Equal(t, SaveIdle, sched.State())

	// Clean draft: flush is a no-op.
	require.NoError(t, sched.Flush(context.Background()))
	assert.Equal(t, int32(1), saves.Load())
}

func TestScheduler_FlushWaitsForInFlightSave(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	release := make(chan struct{})
	var saves atomic.Int32
	var mu sync.Mutex
	var lastSaved models.Classification

	sched := NewScheduler(store, func(_ context.Context, draft models.Classification, _ bool) error {
		if saves.Add(1) == 1 {
			<-release
		}
		mu.Lock()
		lastSaved = draft
		mu.Unlock()
		return nil
	}, 10*time.Millisecond, 2)
	defer sched.Close()

	sched.NotifyDirty()
	require.Eventually(t, func() bool { return saves.Load() == 1 }, testEventuallyTimeout, testPollInterval)

	// Edit while the first save is blocked, then flush: the flush must wait
	// the first save out and persist the final field values itself.
	store.Edit(Patch{TrickDifficulty: intPtr(4)})
	sched.NotifyDirty()

	flushDone := make(chan error, 1)
	go func() { flushDone <- sched.Flush(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	close(release)

	require.NoError(t, <-flushDone)
	require.Eventually(t, func() bool { return !store.Dirty() }, testEventuallyTimeout, testPollInterval)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, lastSaved.TrickDifficulty)
}

func TestScheduler_FlushSurfacesSaveError(t *testing.T) {
	t.Parallel()
	store := approvedStore(t, 1)

	saveErr := errors.New("upstream down")
	sched := NewScheduler(store, func(_ context.Context, _ models.Classification, _ bool) error {
		return saveErr
	}, time.Hour, 0)
	defer sched.Close()

	err := sched.Flush(context.Background())
	assert.ErrorIs(t, err, saveErr)
	assert.True(t, store.Dirty())
	assert.Equal(t, SaveFailed, sched.State())
}
