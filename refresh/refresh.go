// Package refresh drives an ingestion run: it resolves the time window,
// pulls every provider sequentially, batches the item stream, and upserts
// each chunk, folding every failure into a structured report.
package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// Upserter is the slice of the store the runner needs.
type Upserter interface {
	UpsertSources(ctx context.Context, items []models.NormalizedItem, policy models.ConflictPolicy) ([]int64, error)
}

// Options are the caller-supplied run parameters.
type Options struct {
	Overwrite bool
	StartTime *time.Time
	EndTime   *time.Time
}

// Runner executes refresh runs over a fixed provider set.
type Runner struct {
	store     Upserter
	providers []providers.Provider
	cfg       config.RefreshConfig
	now       func() time.Time
}

func NewRunner(store Upserter, provs []providers.Provider, cfg config.RefreshConfig) *Runner {
	return &Runner{
		store:     store,
		providers: provs,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one refresh. It never returns an error: every failure is
// captured inside the report under the provider it belongs to.
func (r *Runner) Run(ctx context.Context, opts Options) Report {
	runID := uuid.NewString()
	win := r.resolveWindow(opts)

	policy := models.ConflictIgnore
	if opts.Overwrite {
		policy = models.ConflictUpdate
	}

	log.Info().
		Str("run_id", runID).
		Bool("overwrite", opts.Overwrite).
		Interface("start_time", win.Start).
		Interface("end_time", win.End).
		Msg("Starting refresh run")

	report := Report{
		Meta:  Meta{Overwrite: opts.Overwrite, StartTime: win.Start, EndTime: win.End},
		Sites: map[string]SiteReport{},
	}
	for _, p := range r.providers {
		report.Sites[p.Key()] = r.runProvider(ctx, p, win, policy)
	}

	log.Info().Str("run_id", runID).Int("providers", len(r.providers)).Msg("Refresh run finished")
	return report
}

// resolveWindow applies the default lookback when no start is given and
// drops a given start that is older than the oldest allowed bound,
// leaving the provider's own default in force instead of erroring.
func (r *Runner) resolveWindow(opts Options) providers.TimeWindow {
	now := r.now()
	win := providers.TimeWindow{End: opts.EndTime}

	switch {
	case opts.StartTime == nil:
		start := now.Add(-r.cfg.Lookback())
		win.Start = &start
	case opts.StartTime.Before(now.Add(-r.cfg.OldestBound())):
		log.Warn().Time("start_time", *opts.StartTime).Msg("Requested start time too old, ignoring")
	default:
		win.Start = opts.StartTime
	}
	return win
}

// runProvider pulls one provider through fetch, batch, and upsert. A
// chunk failure skips that chunk and keeps going; a fetch failure ends
// the provider without flushing the partial buffer, since the fetch may
// resume from where it stopped on the next run.
func (r *Runner) runProvider(ctx context.Context, p providers.Provider, win providers.TimeWindow, policy models.ConflictPolicy) SiteReport {
	report := SiteReport{
		Detail: DetailCompleted,
		Errors: NewErrorList(),
	}

	batcher := NewBatcher(r.cfg.BatchSize, func(chunk []models.NormalizedItem) {
		if _, err := r.store.UpsertSources(ctx, chunk, policy); err != nil {
			log.Error().Err(err).Str("provider", p.Key()).Int("chunk_size", len(chunk)).Msg("Chunk upsert failed")
			report.Errors.Append(ClassUpsertError, err)
			return
		}
		report.Processed += len(chunk)
	})

	dropped, err := p.Fetch(ctx, win, func(item models.NormalizedItem) error {
		batcher.Add(item)
		return nil
	})
	report.Dropped = dropped
	if err != nil {
		log.Error().Err(err).Str("provider", p.Key()).Msg("Provider fetch failed")
		report.Errors.Append(ClassProviderError, err)
		return report
	}

	batcher.Flush()
	return report
}
