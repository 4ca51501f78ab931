// Package telemetry reads the environmental signals that gate speculative
// work: network quality, battery state, and user activity. Every probe is
// an interface with an explicit Unsupported variant, so platforms without
// the underlying signal fail open instead of silently disabling prefetch.
package telemetry

import "time"

// NetworkInfo is a snapshot of the current network conditions.
type NetworkInfo struct {
	EffectiveType string        // "slow-2g", "2g", "3g", "4g"
	DownlinkMbps  float64       // estimated downstream bandwidth
	RTT           time.Duration // estimated round-trip time
	SaveData      bool          // user asked to reduce data usage
}

// Slow classifies the connection for prefetch gating: constrained effective
// type, under 1.5 Mbps downstream, or an explicit save-data preference.
func (n NetworkInfo) Slow() bool {
	if n.EffectiveType == "slow-2g" || n.EffectiveType == "2g" {
		return true
	}
	if n.DownlinkMbps > 0 && n.DownlinkMbps < 1.5 {
		return true
	}
	return n.SaveData
}

// NetworkProbe reports network conditions. ok=false means the platform
// exposes no such signal; callers must treat that as "conditions fine".
type NetworkProbe interface {
	Network() (info NetworkInfo, ok bool)
}

// UnsupportedNetwork is the probe for platforms without connection telemetry.
type UnsupportedNetwork struct{}

func (UnsupportedNetwork) Network() (NetworkInfo, bool) { return NetworkInfo{}, false }

// StaticNetwork returns a fixed snapshot; used in tests and the dev CLI.
type StaticNetwork struct {
	Info NetworkInfo
}

func (p StaticNetwork) Network() (NetworkInfo, bool) { return p.Info, true }
