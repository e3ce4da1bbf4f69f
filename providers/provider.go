// Package providers defines the contract every ingestion source implements
// and the shared sources.yaml configuration that selects what to ingest.
package providers

import (
	"context"
	"time"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

// TimeWindow bounds a refresh run. Start is always set by the
// orchestrator; End is nil for an open-ended run.
type TimeWindow struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// EmitFunc receives normalized items one at a time as a provider produces
// them. A non-nil return aborts the fetch.
type EmitFunc func(models.NormalizedItem) error

// Provider fetches raw payloads from one upstream and emits them in
// normalized form. Fetch returns how many payloads were dropped during
// normalization; a provider error never takes down the whole run, the
// orchestrator records it against the provider key instead.
type Provider interface {
	Key() string
	Fetch(ctx context.Context, win TimeWindow, emit EmitFunc) (dropped int, err error)
}
