package telemetry

import (
	"sync"
	"time"

	"github.com/skillbridge/pulse/internal/timers"
)

// DefaultIdleWindow is how long without activity before the user counts as idle.
const DefaultIdleWindow = 30 * time.Second

// ActivityMonitor tracks whether the user has been quiet long enough to run
// speculative work. The UI calls Touch on every qualifying event (pointer
// move, key press, scroll, click); the idle flag flips after the window
// expires and clears on the next Touch.
type ActivityMonitor struct {
	mu     sync.Mutex
	idle   bool
	window time.Duration
	set    *timers.Set
}

// NewActivityMonitor starts a monitor with the given idle window
// (DefaultIdleWindow if zero). The user starts out active.
func NewActivityMonitor(window time.Duration) *ActivityMonitor {
	if window <= 0 {
		window = DefaultIdleWindow
	}
	m := &ActivityMonitor{window: window, set: timers.NewSet()}
	m.arm()
	return m
}

// Touch records user activity: clears the idle flag and restarts the window.
func (m *ActivityMonitor) Touch() {
	m.mu.Lock()
	m.idle = false
	m.mu.Unlock()
	m.arm()
}

// Idle reports whether the idle window has elapsed without activity.
func (m *ActivityMonitor) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle
}

// Stop cancels the pending window timer. The monitor keeps its last state.
func (m *ActivityMonitor) Stop() {
	m.set.StopAll()
}

func (m *ActivityMonitor) arm() {
	m.set.Schedule("idle", m.window, func() {
		m.mu.Lock()
		m.idle = true
		m.mu.Unlock()
	})
}
