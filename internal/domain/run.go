package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Run identifies one initialization of one model.
type Run struct {
	Model Model
	Cycle time.Time // UTC initialization time, truncated to the hour
}

// ID produces a deterministic ID from the run's key fields. Rediscovering
// the same run yields the same ID, so a replayed publish is a no-op.
func (r Run) ID() string {
	input := fmt.Sprintf("%s|%s", r.Model.Slug, r.Cycle.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if r.Model.Slug == "" {
		return short
	}
	return r.Model.Slug + "-" + short
}

// CycleLabel formats the cycle for display, e.g. "2024-04-26 12Z".
func (r Run) CycleLabel() string {
	return r.Cycle.UTC().Format("2006-01-02 15") + "Z"
}

// Age reports how far in the past the run's initialization is.
func (r Run) Age() time.Duration {
	return clock.Now().UTC().Sub(r.Cycle.UTC())
}

// PublishedRun is a run whose image has been written to the site.
type PublishedRun struct {
	Run
	ImageSHA256 string
	PublishedAt time.Time
}
