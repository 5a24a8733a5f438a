package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdeck/internal/models"
)

type queueSourceStub struct {
	listQueueFn      func(ctx context.Context) ([]models.QueueItem, error)
	listScrapeJobsFn func(ctx context.Context, status string) ([]models.ScrapeJob, error)
}

func (s *queueSourceStub) ListQueue(ctx context.Context) ([]models.QueueItem, error) {
	return s.listQueueFn(ctx)
}

func (s *queueSourceStub) ListScrapeJobs(ctx context.Context, status string) ([]models.ScrapeJob, error) {
	return s.listScrapeJobsFn(ctx, status)
}

type publisherStub struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (p *publisherStub) PublishStats(_ context.Context, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *publisherStub) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.payloads...)
}

func TestPoller_SynthesizesQueueSnapshot(t *testing.T) {
	t.Parallel()
	source := &queueSourceStub{
		listQueueFn: func(context.Context) ([]models.QueueItem, error) {
			return []models.QueueItem{{ID: 1}, {ID: 2}, {ID: 3}}, nil
		},
		listScrapeJobsFn: func(context.Context, string) ([]models.ScrapeJob, error) {
			return []models.ScrapeJob{
				{ID: "a", Status: "running"},
				{ID: "b", Status: "running"},
				{ID: "c", Status: "failed"},
				{ID: "d", Status: "completed"},
			}, nil
		},
	}
	pub := &publisherStub{}

	p := NewPoller(source, pub, 0)
	p.poll(context.Background())

	payloads := pub.published()
	require.Len(t, payloads, 1)

	var snapshot models.StatsSnapshot
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &snapshot))
	assert.Equal(t, "queue_update", snapshot.Type)
	require.NotNil(t, snapshot.Queue)
	assert.Equal(t, 3, snapshot.Queue.Pending)
	assert.Equal(t, 2, snapshot.Queue.Running)
	assert.Equal(t, 1, snapshot.Queue.Failed)
}

func TestPoller_FetchFailurePublishesNothing(t *testing.T) {
	t.Parallel()
	source := &queueSourceStub{
		listQueueFn: func(context.Context) ([]models.QueueItem, error) {
			return nil, errors.New("upstream down")
		},
	}
	pub := &publisherStub{}

	p := NewPoller(source, pub, 0)
	p.poll(context.Background())

	assert.Empty(t, pub.published())
}
