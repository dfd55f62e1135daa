package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
	"github.com/couchcryptid/model-imagery-service/internal/render"
)

// tmpParameter and tmpLevel select the 2m temperature record from the
// wgrib2 inventory.
const (
	tmpParameter = "TMP"
	tmpLevel     = "2 m above ground"
)

// runCycle publishes the latest ready run of every model, then regenerates
// the index when anything changed. A model that is already current or whose
// run cannot be found is skipped, keeping its previous image in place. The
// cycle as a whole fails only when every model fails.
func (p *Pipeline) runCycle(ctx context.Context) error {
	p.metrics.CyclesTotal.Inc()

	models := domain.Models()
	var published []domain.PublishedRun
	failures := 0

	for _, m := range models {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run, err := p.publishModel(ctx, m)
		if err != nil {
			p.logger.Error("model publish failed", "model", m.Slug, "error", err)
			failures++
			continue
		}
		if run != nil {
			published = append(published, *run)
		}
	}

	if failures == len(models) {
		return fmt.Errorf("all %d models failed", failures)
	}

	if len(published) > 0 {
		if err := p.publishIndex(); err != nil {
			return err
		}
		p.notify(ctx, published)
	}

	p.ready.Store(true)
	p.logger.Info("publish cycle complete",
		"published", len(published),
		"failed", failures,
		"models", len(models),
	)
	return nil
}

// publishModel discovers, fetches, renders, and publishes one model's
// latest run. It returns nil without error when the model is already
// current or no ready run exists in the lookback window.
func (p *Pipeline) publishModel(ctx context.Context, m domain.Model) (*domain.PublishedRun, error) {
	run, source, found, err := p.discover(ctx, m)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "discover").Inc()
		return nil, err
	}
	if !found {
		p.logger.Warn("no ready run found", "model", m.Slug, "lookback_hours", p.lookbackHours)
		p.metrics.RunsSkipped.WithLabelValues(m.Slug, "not_found").Inc()
		return nil, nil
	}

	current, err := p.catalog.WasPublished(run)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "discover").Inc()
		return nil, err
	}
	if current {
		p.logger.Debug("run already published", "model", m.Slug, "cycle", run.CycleLabel())
		p.metrics.RunsSkipped.WithLabelValues(m.Slug, "current").Inc()
		p.metrics.LastRunAge.WithLabelValues(m.Slug).Set(run.Age().Seconds())
		return nil, nil
	}

	field, err := p.fetchTemperature(ctx, source, run)
	if err != nil {
		return nil, err
	}

	renderStart := clock.Now()
	png, err := render.PNG(field, render.Options{
		Width: p.renderWidth,
		Label: fmt.Sprintf("%s 2m Temperature | %s", m.Label, run.CycleLabel()),
	})
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "render").Inc()
		return nil, fmt.Errorf("render %s: %w", run.ID(), err)
	}
	p.metrics.RenderDuration.Observe(clock.Since(renderStart).Seconds())

	publishStart := clock.Now()
	sha, err := p.publisher.PublishImage(m, png)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "publish").Inc()
		return nil, fmt.Errorf("publish %s: %w", run.ID(), err)
	}
	publishedAt := clock.Now()
	if err := p.catalog.Record(run, m.ImagePath(), sha, publishedAt); err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "publish").Inc()
		return nil, fmt.Errorf("record %s: %w", run.ID(), err)
	}
	p.metrics.PublishDuration.Observe(clock.Since(publishStart).Seconds())

	p.metrics.RunsPublished.WithLabelValues(m.Slug).Inc()
	p.metrics.LastRunAge.WithLabelValues(m.Slug).Set(run.Age().Seconds())
	p.logger.Info("run published",
		"model", m.Slug,
		"cycle", run.CycleLabel(),
		"source", source.Name(),
		"sha256", sha,
	)

	return &domain.PublishedRun{Run: run, ImageSHA256: sha, PublishedAt: publishedAt}, nil
}

// discover walks candidate cycles newest first, probing each source in
// order, and returns the first run whose F01 file is present upstream. The
// F01 probe guards against runs whose analysis exists but whose upload is
// still in progress.
func (p *Pipeline) discover(ctx context.Context, m domain.Model) (domain.Run, RunSource, bool, error) {
	var lastErr error
	for _, cycle := range m.CandidateCycles(p.lookbackHours) {
		for i, source := range p.sources {
			ok, err := source.ProbeRun(ctx, m, cycle)
			if err != nil {
				if ctx.Err() != nil {
					return domain.Run{}, nil, false, err
				}
				p.logger.Warn("probe failed", "model", m.Slug, "source", source.Name(), "error", err)
				lastErr = err
				continue
			}
			if !ok {
				continue
			}
			if i > 0 {
				p.metrics.SourceFallback.WithLabelValues(m.Slug).Inc()
			}
			return domain.Run{Model: m, Cycle: cycle}, source, true, nil
		}
	}
	// Probes that all answered "not there" are a skip, not an error; an
	// error surfaces only when a source was unreachable.
	if lastErr != nil {
		return domain.Run{}, nil, false, fmt.Errorf("discover %s: %w", m.Slug, lastErr)
	}
	return domain.Run{}, nil, false, nil
}

// fetchTemperature pulls the run's 2m temperature record via a ranged read
// of its F00 analysis file and converts it to Fahrenheit.
func (p *Pipeline) fetchTemperature(ctx context.Context, source RunSource, run domain.Run) (domain.TemperatureField, error) {
	m := run.Model

	fetchStart := clock.Now()
	inv, err := source.FetchInventory(ctx, m, run.Cycle, 0)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "fetch").Inc()
		return domain.TemperatureField{}, fmt.Errorf("inventory %s: %w", run.ID(), err)
	}
	start, end, err := inv.FindRange(tmpParameter, tmpLevel)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "fetch").Inc()
		return domain.TemperatureField{}, fmt.Errorf("inventory %s: %w", run.ID(), err)
	}
	data, err := source.FetchRange(ctx, m, run.Cycle, 0, start, end)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "fetch").Inc()
		return domain.TemperatureField{}, fmt.Errorf("fetch %s: %w", run.ID(), err)
	}
	p.metrics.FetchDuration.Observe(clock.Since(fetchStart).Seconds())
	p.metrics.FetchBytes.WithLabelValues(m.Slug, source.Name()).Add(float64(len(data)))

	decodeStart := clock.Now()
	field, err := grib.Decode(data)
	if err != nil {
		p.metrics.ModelFailures.WithLabelValues(m.Slug, "decode").Inc()
		return domain.TemperatureField{}, fmt.Errorf("decode %s: %w", run.ID(), err)
	}
	p.metrics.DecodeDuration.Observe(clock.Since(decodeStart).Seconds())

	values := make([]float64, len(field.Values))
	for i, k := range field.Values {
		values[i] = domain.KelvinToFahrenheit(k)
	}
	return domain.TemperatureField{Locator: field.Grid, Values: values}, nil
}

func (p *Pipeline) publishIndex() error {
	if err := p.publisher.PublishIndex(domain.DefaultDocument()); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

// notify announces published runs. Notification failures are logged, not
// fatal; the site is already up to date.
func (p *Pipeline) notify(ctx context.Context, published []domain.PublishedRun) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyPublished(ctx, published); err != nil {
		p.logger.Error("publish notification failed", "error", err, "runs", len(published))
		p.metrics.KafkaErrors.Inc()
		return
	}
	p.metrics.KafkaNotifications.Add(float64(len(published)))
}
