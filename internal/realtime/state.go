package realtime

import "time"

// State is the connection lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Quality classifies the connection from the most recent round-trip latency.
type Quality string

const (
	QualityExcellent    Quality = "excellent"
	QualityGood         Quality = "good"
	QualityPoor         Quality = "poor"
	QualityDisconnected Quality = "disconnected"
)

// QualityFor maps a measured round-trip to a quality tier.
func QualityFor(latency time.Duration) Quality {
	switch {
	case latency < 100*time.Millisecond:
		return QualityExcellent
	case latency < 300*time.Millisecond:
		return QualityGood
	case latency < time.Second:
		return QualityPoor
	default:
		return QualityDisconnected
	}
}
