package follower

import "sync/atomic"

// LifecycleState is one of CREATED/RUNNING/STOPPING/STOPPED (spec.md §3/§4.4).
type LifecycleState int32

const (
	Created LifecycleState = iota
	Running
	Stopping
	Stopped
)

func (s LifecycleState) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type lifecycle struct {
	state atomic.Int32
}

func (l *lifecycle) get() LifecycleState {
	return LifecycleState(l.state.Load())
}

func (l *lifecycle) set(s LifecycleState) {
	l.state.Store(int32(s))
}
