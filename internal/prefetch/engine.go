package prefetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillbridge/pulse/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RoutePrefetcher warms a route ahead of navigation.
type RoutePrefetcher interface {
	PrefetchRoute(ctx context.Context, route string) error
}

// ImageLoader fetches an image into whatever cache the platform provides.
type ImageLoader interface {
	LoadImage(ctx context.Context, src string) error
}

// IdleSource reports whether the user is currently idle.
// *telemetry.ActivityMonitor satisfies it.
type IdleSource interface {
	Idle() bool
}

// Options wires the engine's collaborators. Nil probes fail open, a nil
// router/loader turns the corresponding category into a no-op, and a nil
// logger stays silent.
type Options struct {
	Router  RoutePrefetcher
	Images  ImageLoader
	Network telemetry.NetworkProbe
	Battery telemetry.BatteryProbe
	Idle    IdleSource
	Logger  *zap.Logger

	// Sleep overrides the pacing sleeps in tests. The default honors ctx.
	Sleep func(ctx context.Context, d time.Duration)
}

// Engine evaluates prefetch requests against live conditions and remembers
// what has already been fetched. Prefetched entries are never evicted; the
// engine is a bounded-session cache, not a long-running one.
type Engine struct {
	opts  Options
	group singleflight.Group

	mu     sync.Mutex
	routes map[string]struct{}
	data   map[string]any
	images map[string]struct{}

	networkSlow bool
	batteryLow  bool
}

func NewEngine(opts Options) *Engine {
	if opts.Network == nil {
		opts.Network = telemetry.UnsupportedNetwork{}
	}
	if opts.Battery == nil {
		opts.Battery = telemetry.UnsupportedBattery{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Engine{
		opts:   opts,
		routes: make(map[string]struct{}),
		data:   make(map[string]any),
		images: make(map[string]struct{}),
	}
}

// Evaluate checks the request's conditions and, if they hold, prefetches its
// routes, data, and images in the background. Fire-and-forget: the call
// returns immediately and individual item failures are logged, never raised.
func (e *Engine) Evaluate(ctx context.Context, req Request) {
	if !e.conditionsMet(req.Conditions) {
		e.opts.Logger.Debug("prefetch skipped, conditions not met",
			zap.Bool("networkSlow", e.NetworkSlow()),
			zap.Bool("batteryLow", e.BatteryLow()))
		return
	}
	go e.run(ctx, req)
}

// conditionsMet applies the gates in order: network speed, battery, idle,
// data-usage profile. A probe that reports no signal satisfies its gate.
func (e *Engine) conditionsMet(c Conditions) bool {
	net, netOK := e.opts.Network.Network()
	slow := netOK && net.Slow()

	bat, batOK := e.opts.Battery.Battery()
	low := batOK && bat.Low()

	e.mu.Lock()
	e.networkSlow = slow
	e.batteryLow = low
	e.mu.Unlock()

	if c.NetworkSpeed == "fast" && slow {
		return false
	}
	if c.BatteryAbove > 0.2 && low {
		return false
	}
	if c.RequireIdle && (e.opts.Idle == nil || !e.opts.Idle.Idle()) {
		return false
	}
	if c.DataUsage == DataUsageConservative && slow {
		return false
	}
	return true
}

// run walks the request one category at a time: routes, then data, then
// images, each strictly sequential with a pause between items.
func (e *Engine) run(ctx context.Context, req Request) {
	e.opts.Sleep(ctx, req.Priority.startDelay())

	for _, route := range req.Routes {
		if ctx.Err() != nil {
			return
		}
		if !e.IsRoutePrefetched(route) {
			if err := e.PrefetchRoute(ctx, route); err != nil {
				e.opts.Logger.Warn("route prefetch failed",
					zap.String("route", route), zap.Error(err))
			}
		}
		e.opts.Sleep(ctx, routePause)
	}

	for _, key := range sortedKeys(req.Data) {
		if ctx.Err() != nil {
			return
		}
		if !e.IsDataPrefetched(key) {
			if err := e.PrefetchData(ctx, key, req.Data[key]); err != nil {
				e.opts.Logger.Warn("data prefetch failed",
					zap.String("key", key), zap.Error(err))
			}
		}
		e.opts.Sleep(ctx, dataPause)
	}

	for _, src := range req.Images {
		if ctx.Err() != nil {
			return
		}
		if !e.IsImagePrefetched(src) {
			if err := e.PrefetchImage(ctx, src); err != nil {
				e.opts.Logger.Warn("image prefetch failed",
					zap.String("src", src), zap.Error(err))
			}
		}
		e.opts.Sleep(ctx, imagePause)
	}
}

// PrefetchRoute warms a single route immediately, bypassing condition gating.
func (e *Engine) PrefetchRoute(ctx context.Context, route string) error {
	if e.opts.Router != nil {
		if err := e.opts.Router.PrefetchRoute(ctx, route); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.routes[route] = struct{}{}
	e.mu.Unlock()
	return nil
}

// PrefetchData runs a single fetcher immediately, bypassing condition gating.
// Concurrent calls for the same key share one in-flight fetch.
func (e *Engine) PrefetchData(ctx context.Context, key string, fetch Fetcher) error {
	if fetch == nil {
		return nil
	}
	value, err, _ := e.group.Do(key, func() (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.data[key] = value
	e.mu.Unlock()
	return nil
}

// PrefetchImage loads a single image immediately, bypassing condition gating.
func (e *Engine) PrefetchImage(ctx context.Context, src string) error {
	if e.opts.Images != nil {
		if err := e.opts.Images.LoadImage(ctx, src); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.images[src] = struct{}{}
	e.mu.Unlock()
	return nil
}

func (e *Engine) IsRoutePrefetched(route string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.routes[route]
	return ok
}

func (e *Engine) IsDataPrefetched(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.data[key]
	return ok
}

func (e *Engine) IsImagePrefetched(src string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.images[src]
	return ok
}

// Data returns the stored result of a completed data prefetch.
func (e *Engine) Data(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	return v, ok
}

// NetworkSlow reports the slow-network flag from the last condition check.
func (e *Engine) NetworkSlow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.networkSlow
}

// BatteryLow reports the low-battery flag from the last condition check.
func (e *Engine) BatteryLow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batteryLow
}

func sortedKeys(m map[string]Fetcher) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
