package bridge

import "sync/atomic"

var counters struct {
	Calls      atomic.Int64
	Timeouts   atomic.Int64
	Untrusted  atomic.Int64
	Unroutable atomic.Int64
	Handled    atomic.Int64
}

// Counters returns a snapshot of the bridge counters.
func Counters() map[string]int64 {
	return map[string]int64{
		"bridge_calls":      counters.Calls.Load(),
		"bridge_timeouts":   counters.Timeouts.Load(),
		"bridge_untrusted":  counters.Untrusted.Load(),
		"bridge_unroutable": counters.Unroutable.Load(),
		"bridge_handled":    counters.Handled.Load(),
	}
}
