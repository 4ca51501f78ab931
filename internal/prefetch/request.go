// Package prefetch implements the adaptive prefetch engine: given a
// declarative request naming routes, data fetchers, and images, it decides
// from live device and network conditions whether speculative loading is
// justified, and executes it at a throttled pace without blocking the caller.
package prefetch

import (
	"context"
	"time"
)

// Priority controls how long the engine waits before starting speculative
// work, so it never competes with a fresh page's critical loading.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) startDelay() time.Duration {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 3 * time.Second
	default:
		return time.Second
	}
}

// DataUsage is the caller's data-budget profile.
type DataUsage string

const (
	DataUsageConservative DataUsage = "conservative"
	DataUsageNormal       DataUsage = "normal"
	DataUsageAggressive   DataUsage = "aggressive"
)

// Fetcher produces one prefetchable data value.
type Fetcher func(ctx context.Context) (any, error)

// Conditions are the environmental requirements a request opts into.
// The zero value imposes no requirements.
type Conditions struct {
	// RequireIdle gates the request on the user having gone quiet.
	RequireIdle bool
	// NetworkSpeed set to "fast" gates the request on the connection not
	// classifying as slow.
	NetworkSpeed string
	// BatteryAbove gates the request on battery level (0..1). Zero means
	// no requirement. A threshold above the low-battery bound (0.2) blocks
	// when the device is discharging and low.
	BatteryAbove float64
	// DataUsage "conservative" additionally blocks on a slow connection.
	DataUsage DataUsage
}

// Request declares what to prefetch. Any category may be empty. The request
// is read-only to the engine; callers keep ownership.
type Request struct {
	Routes     []string
	Data       map[string]Fetcher
	Images     []string
	Priority   Priority
	Conditions Conditions
}

// Pacing between items within one evaluate pass. These cap the burst rate
// of speculative network activity regardless of list size.
const (
	routePause = 100 * time.Millisecond
	dataPause  = 200 * time.Millisecond
	imagePause = 50 * time.Millisecond
)
