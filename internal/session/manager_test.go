package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdeck/internal/models"
	"reviewdeck/internal/review"
)

// saverStub is a stub for the upstream classification writes.
type saverStub struct {
	createFn func(context.Context, *models.Classification) (*models.Classification, error)
	updateFn func(context.Context, *models.Classification) (*models.Classification, error)
}

func (s *saverStub) CreateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error) {
	return s.createFn(ctx, cls)
}
func (s *saverStub) UpdateClassification(ctx context.Context, cls *models.Classification) (*models.Classification, error) {
	return s.updateFn(ctx, cls)
}

func noopSaver() *saverStub {
	return &saverStub{
		createFn: func(_ context.Context, cls *models.Classification) (*models.Classification, error) {
			return cls, nil
		},
		updateFn: func(_ context.Context, cls *models.Classification) (*models.Classification, error) {
			return cls, nil
		},
	}
}

func newTestManager(t *testing.T, saver Saver) *Manager {
	t.Helper()
	if saver == nil {
		saver = noopSaver()
	}
	m := NewManager(fixtureLists(), noopPostSource(), saver, time.Hour, time.Hour, 0)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m
}

func TestManager_SessionsAreOperatorScoped(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, nil)

	sess, err := m.Create(context.Background(), "alice", "sk8", 10, 100)
	require.NoError(t, err)

	got, err := m.Get(sess.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	// Someone else's lookup reports not found, not forbidden.
	_, err = m.Get(sess.ID, "bob")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))

	err = m.Delete(context.Background(), sess.ID, "bob")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestManager_CreateRequiresCategory(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, nil)

	_, err := m.Create(context.Background(), "alice", "", 0, 0)
	assert.Error(t, err)
}

func TestManager_DeleteFlushesDirtyDraft(t *testing.T) {
	t.Parallel()
	var creates atomic.Int32
	saver := noopSaver()
	saver.createFn = func(_ context.Context, cls *models.Classification) (*models.Classification, error) {
		creates.Add(1)
		return cls, nil
	}
	m := newTestManager(t, saver)

	sess, err := m.Create(context.Background(), "alice", "sk8", 10, 100)
	require.NoError(t, err)

	_, err = sess.ApplyPatch(review.Patch{
		IsApproved: review.OptionalBool{Set: true, Value: boolPtr(true)},
	})
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), sess.ID, "alice"))
	assert.Equal(t, int32(1), creates.Load())

	_, err = m.Get(sess.ID, "alice")
	assert.Error(t, err)
}

func TestManager_ExpiresIdleSessions(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, nil)

	sess, err := m.Create(context.Background(), "alice", "sk8", 10, 100)
	require.NoError(t, err)

	// Force the cutoff past the session's last activity.
	m.expire(time.Now().Add(time.Minute))

	_, err = m.Get(sess.ID, "alice")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}
