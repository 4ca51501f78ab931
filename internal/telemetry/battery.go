package telemetry

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BatteryInfo is a snapshot of the device power state.
type BatteryInfo struct {
	Charging bool
	Level    float64 // 0.0 .. 1.0
}

// Low classifies the battery for prefetch gating: discharging under 20%.
func (b BatteryInfo) Low() bool {
	return !b.Charging && b.Level < 0.2
}

// BatteryProbe reports battery state. ok=false means no battery telemetry
// exists (desktops, servers); callers must fail open.
type BatteryProbe interface {
	Battery() (info BatteryInfo, ok bool)
}

// UnsupportedBattery is the probe for platforms without a battery.
type UnsupportedBattery struct{}

func (UnsupportedBattery) Battery() (BatteryInfo, bool) { return BatteryInfo{}, false }

// StaticBattery returns a fixed snapshot; used in tests and the dev CLI.
type StaticBattery struct {
	Info BatteryInfo
}

func (p StaticBattery) Battery() (BatteryInfo, bool) { return p.Info, true }

// SysfsBattery reads the first battery under /sys/class/power_supply.
// Reports ok=false when no battery entry exists, so desktops fail open.
type SysfsBattery struct {
	// Root overrides the sysfs location in tests. Empty means the real path.
	Root string
}

func (p SysfsBattery) Battery() (BatteryInfo, bool) {
	root := p.Root
	if root == "" {
		root = "/sys/class/power_supply"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return BatteryInfo{}, false
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		capRaw, err := os.ReadFile(filepath.Join(dir, "capacity"))
		if err != nil {
			continue // not a battery entry (AC adapters have no capacity)
		}
		pct, err := strconv.Atoi(strings.TrimSpace(string(capRaw)))
		if err != nil {
			continue
		}
		status, _ := os.ReadFile(filepath.Join(dir, "status"))
		charging := strings.TrimSpace(string(status)) == "Charging"
		return BatteryInfo{Charging: charging, Level: float64(pct) / 100}, true
	}
	return BatteryInfo{}, false
}
