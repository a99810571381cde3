package forward

import "sync/atomic"

// Stats counts ingestion outcomes for operators.
type Stats struct {
	events      atomic.Uint64
	malformed   atomic.Uint64
	matched     atomic.Uint64
	sent        atomic.Uint64
	failed      atomic.Uint64
	unsupported atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Events      uint64 `json:"events"`
	Malformed   uint64 `json:"malformed"`
	Matched     uint64 `json:"matched"`
	Sent        uint64 `json:"sent"`
	Failed      uint64 `json:"failed"`
	Unsupported uint64 `json:"unsupported"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Events:      s.events.Load(),
		Malformed:   s.malformed.Load(),
		Matched:     s.matched.Load(),
		Sent:        s.sent.Load(),
		Failed:      s.failed.Load(),
		Unsupported: s.unsupported.Load(),
	}
}
