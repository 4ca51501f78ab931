package prefetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skillbridge/pulse/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder counts collaborator calls and can fail selected items.
type recorder struct {
	mu     sync.Mutex
	routes map[string]int
	images map[string]int
	fail   map[string]bool
}

func newRecorder() *recorder {
	return &recorder{routes: map[string]int{}, images: map[string]int{}, fail: map[string]bool{}}
}

func (r *recorder) PrefetchRoute(_ context.Context, route string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[route]++
	if r.fail[route] {
		return errors.New("route unavailable")
	}
	return nil
}

func (r *recorder) LoadImage(_ context.Context, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[src]++
	if r.fail[src] {
		return errors.New("image unavailable")
	}
	return nil
}

func (r *recorder) routeCalls(route string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routes[route]
}

type stubIdle bool

func (s stubIdle) Idle() bool { return bool(s) }

func noSleep(context.Context, time.Duration) {}

func testEngine(rec *recorder, opts Options) *Engine {
	opts.Router = rec
	opts.Images = rec
	opts.Sleep = noSleep
	return NewEngine(opts)
}

func TestEvaluate_PrefetchesAllCategories(t *testing.T) {
	rec := newRecorder()
	e := testEngine(rec, Options{})

	fetched := false
	e.Evaluate(context.Background(), Request{
		Routes: []string{"/jobs", "/profile"},
		Data: map[string]Fetcher{
			"jobs": func(context.Context) (any, error) { fetched = true; return []string{"j1"}, nil },
		},
		Images:   []string{"/img/logo.png"},
		Priority: PriorityHigh,
	})

	require.Eventually(t, func() bool {
		return e.IsRoutePrefetched("/jobs") && e.IsRoutePrefetched("/profile") &&
			e.IsDataPrefetched("jobs") && e.IsImagePrefetched("/img/logo.png")
	}, time.Second, 5*time.Millisecond)

	assert.True(t, fetched)
	v, ok := e.Data("jobs")
	require.True(t, ok)
	assert.Equal(t, []string{"j1"}, v)
}

func TestEvaluate_Idempotent(t *testing.T) {
	rec := newRecorder()
	e := testEngine(rec, Options{})

	req := Request{Routes: []string{"/jobs"}, Priority: PriorityHigh}
	e.Evaluate(context.Background(), req)
	require.Eventually(t, func() bool { return e.IsRoutePrefetched("/jobs") },
		time.Second, 5*time.Millisecond)

	e.Evaluate(context.Background(), req)
	// Give the second pass time to (wrongly) refetch.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.routeCalls("/jobs"), "already-prefetched route must not be refetched")
}

func TestEvaluate_GatingBlocksSlowNetwork(t *testing.T) {
	rec := newRecorder()
	e := testEngine(rec, Options{
		Network: telemetry.StaticNetwork{Info: telemetry.NetworkInfo{EffectiveType: "2g", DownlinkMbps: 10}},
	})

	e.Evaluate(context.Background(), Request{
		Routes:     []string{"/jobs"},
		Priority:   PriorityHigh,
		Conditions: Conditions{NetworkSpeed: "fast"},
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.routeCalls("/jobs"), "no network activity under a slow connection")
	assert.True(t, e.NetworkSlow())
}

func TestEvaluate_GatingRules(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		cond Conditions
		runs bool
	}{
		{
			name: "no probes fail open",
			opts: Options{},
			cond: Conditions{NetworkSpeed: "fast", BatteryAbove: 0.5},
			runs: true,
		},
		{
			name: "low battery blocks high threshold",
			opts: Options{Battery: telemetry.StaticBattery{Info: telemetry.BatteryInfo{Charging: false, Level: 0.1}}},
			cond: Conditions{BatteryAbove: 0.5},
			runs: false,
		},
		{
			name: "low battery allows low threshold",
			opts: Options{Battery: telemetry.StaticBattery{Info: telemetry.BatteryInfo{Charging: false, Level: 0.1}}},
			cond: Conditions{BatteryAbove: 0.1},
			runs: true,
		},
		{
			name: "idle required but user active",
			opts: Options{Idle: stubIdle(false)},
			cond: Conditions{RequireIdle: true},
			runs: false,
		},
		{
			name: "idle required and user idle",
			opts: Options{Idle: stubIdle(true)},
			cond: Conditions{RequireIdle: true},
			runs: true,
		},
		{
			name: "conservative data usage on slow network",
			opts: Options{Network: telemetry.StaticNetwork{Info: telemetry.NetworkInfo{DownlinkMbps: 0.5}}},
			cond: Conditions{DataUsage: DataUsageConservative},
			runs: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newRecorder()
			e := testEngine(rec, tc.opts)
			e.Evaluate(context.Background(), Request{
				Routes:     []string{"/dashboard"},
				Priority:   PriorityHigh,
				Conditions: tc.cond,
			})
			if tc.runs {
				require.Eventually(t, func() bool { return e.IsRoutePrefetched("/dashboard") },
					time.Second, 5*time.Millisecond)
			} else {
				time.Sleep(50 * time.Millisecond)
				assert.Equal(t, 0, rec.routeCalls("/dashboard"))
			}
		})
	}
}

func TestEvaluate_PartialFailureIsolation(t *testing.T) {
	rec := newRecorder()
	e := testEngine(rec, Options{})

	ok := func(v string) Fetcher {
		return func(context.Context) (any, error) { return v, nil }
	}
	e.Evaluate(context.Background(), Request{
		Data: map[string]Fetcher{
			"a": ok("first"),
			"b": func(context.Context) (any, error) { return nil, errors.New("boom") },
			"c": ok("third"),
		},
		Priority: PriorityHigh,
	})

	require.Eventually(t, func() bool {
		return e.IsDataPrefetched("a") && e.IsDataPrefetched("c")
	}, time.Second, 5*time.Millisecond)
	assert.False(t, e.IsDataPrefetched("b"), "failed fetch must stay absent")
}

func TestEvaluate_FailedRouteDoesNotBlockSiblings(t *testing.T) {
	rec := newRecorder()
	rec.fail["/broken"] = true
	e := testEngine(rec, Options{})

	e.Evaluate(context.Background(), Request{
		Routes:   []string{"/broken", "/jobs"},
		Priority: PriorityHigh,
	})

	require.Eventually(t, func() bool { return e.IsRoutePrefetched("/jobs") },
		time.Second, 5*time.Millisecond)
	assert.False(t, e.IsRoutePrefetched("/broken"))
}

func TestManualPrefetch_BypassesGating(t *testing.T) {
	rec := newRecorder()
	// A probe that would block any gated evaluate.
	e := testEngine(rec, Options{
		Network: telemetry.StaticNetwork{Info: telemetry.NetworkInfo{EffectiveType: "2g"}},
	})

	require.NoError(t, e.PrefetchRoute(context.Background(), "/jobs"))
	require.NoError(t, e.PrefetchImage(context.Background(), "/img/a.png"))
	require.NoError(t, e.PrefetchData(context.Background(), "profile",
		func(context.Context) (any, error) { return "me", nil }))

	assert.True(t, e.IsRoutePrefetched("/jobs"))
	assert.True(t, e.IsImagePrefetched("/img/a.png"))
	assert.True(t, e.IsDataPrefetched("profile"))
}

func TestPriorityDelays(t *testing.T) {
	assert.Equal(t, time.Duration(0), PriorityHigh.startDelay())
	assert.Equal(t, time.Second, PriorityMedium.startDelay())
	assert.Equal(t, 3*time.Second, PriorityLow.startDelay())
}
