package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
)

// QueueSource is the slice of the upstream client the poller reads.
// *upstream.Client satisfies it.
type QueueSource interface {
	ListQueue(ctx context.Context) ([]models.QueueItem, error)
	ListScrapeJobs(ctx context.Context, status string) ([]models.ScrapeJob, error)
}

// Poller periodically synthesizes a queue snapshot from the upstream REST
// surface and publishes it to the stats channel. It keeps the operator
// dashboards moving while the upstream push feed is down or silent.
type Poller struct {
	source   QueueSource
	pub      Publisher
	interval time.Duration
	cron     *cron.Cron
}

func NewPoller(source QueueSource, pub Publisher, interval time.Duration) *Poller {
	return &Poller{source: source, pub: pub, interval: interval}
}

// Start schedules the poll job. The first poll runs on schedule, not
// immediately; a fresh connection gets the hub's retained snapshot instead.
func (p *Poller) Start(ctx context.Context) error {
	p.cron = cron.New()
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := p.cron.AddFunc(spec, func() { p.poll(ctx) }); err != nil {
		return fmt.Errorf("schedule stats poll: %w", err)
	}
	p.cron.Start()
	middleware.Logger.Info("stats poller started", "interval", p.interval.String())
	return nil
}

// Stop halts the schedule and waits for a running poll to finish.
func (p *Poller) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *Poller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	items, err := p.source.ListQueue(ctx)
	if err != nil {
		middleware.Logger.Warn("stats poll: queue fetch failed", "error", err)
		return
	}
	jobs, err := p.source.ListScrapeJobs(ctx, "")
	if err != nil {
		middleware.Logger.Warn("stats poll: jobs fetch failed", "error", err)
		return
	}

	snapshot := models.StatsSnapshot{
		Type:  "queue_update",
		Queue: &models.QueueStats{Pending: len(items)},
	}
	for _, job := range jobs {
		switch job.Status {
		case "running":
			snapshot.Queue.Running++
		case "failed":
			snapshot.Queue.Failed++
		}
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		middleware.Logger.Error("stats poll: marshal failed", "error", err)
		return
	}
	if err := p.pub.PublishStats(ctx, string(payload)); err != nil {
		middleware.Logger.Warn("stats poll: publish failed", "error", err)
	}
}
