// Package pipeline orchestrates the publish cycle: discover the latest
// ready run per model, fetch and decode its 2m temperature field, render
// the sector image, and publish the site.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
	"github.com/couchcryptid/model-imagery-service/internal/observability"
)

// clock is swapped for a fake in tests.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// RunSource fetches model output from one upstream (S3 or NOMADS).
type RunSource interface {
	Name() string
	ProbeRun(ctx context.Context, m domain.Model, cycle time.Time) (bool, error)
	FetchInventory(ctx context.Context, m domain.Model, cycle time.Time, fxx int) (grib.Inventory, error)
	FetchRange(ctx context.Context, m domain.Model, cycle time.Time, fxx int, start, end int64) ([]byte, error)
}

// RunCatalog records published runs and answers idempotence checks.
type RunCatalog interface {
	WasPublished(run domain.Run) (bool, error)
	Record(run domain.Run, imagePath, imageSHA256 string, publishedAt time.Time) error
}

// SitePublisher writes rendered artifacts to the site.
type SitePublisher interface {
	PublishImage(m domain.Model, png []byte) (string, error)
	PublishIndex(doc domain.Document) error
}

// Notifier announces published runs downstream.
type Notifier interface {
	NotifyPublished(ctx context.Context, runs []domain.PublishedRun) error
}

// Pipeline runs publish cycles on a fixed interval.
type Pipeline struct {
	sources   []RunSource
	catalog   RunCatalog
	publisher SitePublisher
	notifier  Notifier // nil when notifications are disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	refreshInterval time.Duration
	lookbackHours   int
	renderWidth     int
}

// Options carries the tunables of the publish cycle.
type Options struct {
	RefreshInterval time.Duration
	LookbackHours   int
	RenderWidth     int
}

// New creates a Pipeline. Sources are tried in order; pass a nil notifier
// to disable publish notifications.
func New(sources []RunSource, catalog RunCatalog, publisher SitePublisher, notifier Notifier,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		sources:         sources,
		catalog:         catalog,
		publisher:       publisher,
		notifier:        notifier,
		logger:          logger,
		metrics:         metrics,
		refreshInterval: opts.RefreshInterval,
		lookbackHours:   opts.LookbackHours,
		renderWidth:     opts.RenderWidth,
	}
}

// CheckReadiness returns nil once the pipeline has completed a publish
// cycle, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a publish cycle yet")
	}
	return nil
}

// Run executes publish cycles until the context is cancelled. The first
// cycle starts immediately; later cycles follow the refresh interval. A
// failed cycle is retried with exponential backoff instead of waiting a
// full interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("publisher started",
		"refresh_interval", p.refreshInterval,
		"lookback_hours", p.lookbackHours,
	)
	p.metrics.PublisherRunning.Set(1)
	defer p.metrics.PublisherRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		if err := p.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("publisher stopping", "reason", ctx.Err())
				return nil
			}
			p.metrics.CyclesFailed.Inc()
			p.logger.Error("publish cycle failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		select {
		case <-ctx.Done():
			p.logger.Info("publisher stopping", "reason", ctx.Err())
			return nil
		case <-clock.After(p.refreshInterval):
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
