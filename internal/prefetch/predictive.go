package prefetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/skillbridge/pulse/internal/store"
	"go.uber.org/zap"
)

// DefaultPatternKey is where navigation patterns live in the KV store.
const DefaultPatternKey = "pulse:navigation-patterns"

// Caps on the pattern lists. The lists otherwise only grow; when a cap is
// hit the oldest entry is dropped.
const (
	maxMostVisited   = 30
	maxPerHour       = 20
	maxPerTransition = 15
)

// NavigationPatterns is the persisted model of where the user tends to go:
// overall, by hour of day, and from each route.
type NavigationPatterns struct {
	MostVisited []string            `json:"mostVisited"`
	TimeOfDay   map[int][]string    `json:"timeOfDay"`
	Sequential  map[string][]string `json:"sequentialPatterns"`
}

func newNavigationPatterns() NavigationPatterns {
	return NavigationPatterns{
		TimeOfDay:  make(map[int][]string),
		Sequential: make(map[string][]string),
	}
}

// Predictor learns navigation sequences and prefetches the routes the user
// is likely to visit next. Patterns persist through an injected KV store so
// they survive restarts; concurrent clients sharing a key race on writes and
// the last writer wins.
type Predictor struct {
	engine *Engine
	kv     store.KV
	key    string
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	patterns NavigationPatterns
}

// PredictorOptions tunes a Predictor. Zero values get defaults.
type PredictorOptions struct {
	Key    string
	Logger *zap.Logger
	Now    func() time.Time
}

// NewPredictor loads any previously stored patterns and returns a predictor
// bound to the engine. A load failure starts fresh rather than erroring:
// pattern data is advisory.
func NewPredictor(ctx context.Context, engine *Engine, kv store.KV, opts PredictorOptions) *Predictor {
	if opts.Key == "" {
		opts.Key = DefaultPatternKey
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Predictor{
		engine:   engine,
		kv:       kv,
		key:      opts.Key,
		log:      opts.Logger,
		now:      opts.Now,
		patterns: newNavigationPatterns(),
	}
	p.load(ctx)
	return p
}

func (p *Predictor) load(ctx context.Context) {
	raw, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		p.log.Warn("loading navigation patterns failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var patterns NavigationPatterns
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		p.log.Warn("stored navigation patterns are corrupt, starting fresh", zap.Error(err))
		return
	}
	if patterns.TimeOfDay == nil {
		patterns.TimeOfDay = make(map[int][]string)
	}
	if patterns.Sequential == nil {
		patterns.Sequential = make(map[string][]string)
	}
	p.patterns = patterns
}

// TrackNavigation records a route transition into all three pattern lists
// and persists the model. Appends are set-like: a route already present in
// a list is not added again.
func (p *Predictor) TrackNavigation(ctx context.Context, from, to string) {
	p.mu.Lock()
	hour := p.now().Hour()
	p.patterns.MostVisited = appendCapped(p.patterns.MostVisited, to, maxMostVisited)
	p.patterns.TimeOfDay[hour] = appendCapped(p.patterns.TimeOfDay[hour], to, maxPerHour)
	p.patterns.Sequential[from] = appendCapped(p.patterns.Sequential[from], to, maxPerTransition)
	raw, err := json.Marshal(p.patterns)
	p.mu.Unlock()

	if err != nil {
		p.log.Warn("encoding navigation patterns failed", zap.Error(err))
		return
	}
	if err := p.kv.Set(ctx, p.key, string(raw)); err != nil {
		p.log.Warn("persisting navigation patterns failed", zap.Error(err))
	}
}

// Predict ranks the routes most likely to follow current: sequential
// transitions first, then this hour's routes, then the top of the overall
// most-visited list. Deduplicated, the current route excluded, at most five.
func (p *Predictor) Predict(current string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := make([]string, 0, 8)
	candidates = append(candidates, p.patterns.Sequential[current]...)
	candidates = append(candidates, p.patterns.TimeOfDay[p.now().Hour()]...)
	top := p.patterns.MostVisited
	if len(top) > 3 {
		top = top[:3]
	}
	candidates = append(candidates, top...)

	seen := make(map[string]struct{}, len(candidates))
	ranked := make([]string, 0, 5)
	for _, route := range candidates {
		if route == current {
			continue
		}
		if _, dup := seen[route]; dup {
			continue
		}
		seen[route] = struct{}{}
		ranked = append(ranked, route)
		if len(ranked) == 5 {
			break
		}
	}
	return ranked
}

// PrefetchLikely issues a low-priority, heavily gated prefetch for the
// predicted routes: only when the user is idle, on a fast connection, under
// the normal data budget.
func (p *Predictor) PrefetchLikely(ctx context.Context, current string) {
	routes := p.Predict(current)
	if len(routes) == 0 {
		return
	}
	p.engine.Evaluate(ctx, Request{
		Routes:   routes,
		Priority: PriorityLow,
		Conditions: Conditions{
			RequireIdle:  true,
			NetworkSpeed: "fast",
			DataUsage:    DataUsageNormal,
		},
	})
}

// Patterns returns a copy of the current model, for diagnostics.
func (p *Predictor) Patterns() NavigationPatterns {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := NavigationPatterns{
		MostVisited: append([]string(nil), p.patterns.MostVisited...),
		TimeOfDay:   make(map[int][]string, len(p.patterns.TimeOfDay)),
		Sequential:  make(map[string][]string, len(p.patterns.Sequential)),
	}
	for h, routes := range p.patterns.TimeOfDay {
		out.TimeOfDay[h] = append([]string(nil), routes...)
	}
	for from, routes := range p.patterns.Sequential {
		out.Sequential[from] = append([]string(nil), routes...)
	}
	return out
}

// appendCapped adds v unless present, evicting the oldest entry at the cap.
func appendCapped(list []string, v string, limit int) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	if len(list) >= limit {
		list = list[1:]
	}
	return append(list, v)
}
