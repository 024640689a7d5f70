// Package resolution maps symbolic time-range labels to chart sampling
// parameters. Each range targets a similar rendered point density
// (roughly 70-100 points) instead of a fixed interval, so redraw cost
// stays bounded no matter how long the range is.
package resolution

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRangeLabel is returned for any label outside the fixed set.
var ErrInvalidRangeLabel = errors.New("invalid range label")

// Spec is the sampling resolution for a time range
type Spec struct {
	PointCount int           `json:"point_count"`
	Interval   time.Duration `json:"-"`
	IntervalMS int64         `json:"interval_ms"`
}

var specs = map[string]Spec{
	"1h":  {PointCount: 60, Interval: time.Minute},
	"6h":  {PointCount: 72, Interval: 5 * time.Minute},
	"12h": {PointCount: 72, Interval: 10 * time.Minute},
	"24h": {PointCount: 96, Interval: 15 * time.Minute},
	"7d":  {PointCount: 84, Interval: 2 * time.Hour},
	"30d": {PointCount: 90, Interval: 8 * time.Hour},
}

// order for Labels; map iteration is not stable
var labelOrder = []string{"1h", "6h", "12h", "24h", "7d", "30d"}

// Resolve returns the sampling spec for a range label. It is pure and
// total over the valid label set; anything else fails with
// ErrInvalidRangeLabel.
func Resolve(label string) (Spec, error) {
	spec, ok := specs[label]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidRangeLabel, label)
	}
	spec.IntervalMS = spec.Interval.Milliseconds()
	return spec, nil
}

// Valid reports whether label is a known range label
func Valid(label string) bool {
	_, ok := specs[label]
	return ok
}

// Labels returns the valid range labels, shortest range first
func Labels() []string {
	out := make([]string, len(labelOrder))
	copy(out, labelOrder)
	return out
}
