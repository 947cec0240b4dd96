// Package metrics wires up github.com/armon/go-metrics the way
// other_examples/nopnoping-raft__replication.go instruments its
// replication path: per-step latency measurements and per-peer
// counters, sunk to an in-memory sink by default.
package metrics

import (
	"time"

	gometrics "github.com/armon/go-metrics"
)

// Sink wraps a *gometrics.Metrics so callers don't need to import
// armon/go-metrics directly just to call Measure/Incr.
type Sink struct {
	m *gometrics.Metrics
}

// NewInmem builds a Sink backed by an in-memory aggregation window,
// suitable for a demo process or test that never ships metrics
// off-box.
func NewInmem(serviceName string) *Sink {
	inm := gometrics.NewInmemSink(10*time.Second, time.Minute)
	cfg := gometrics.DefaultConfig(serviceName)
	cfg.EnableHostname = false
	m, _ := gometrics.New(cfg, inm)
	return &Sink{m: m}
}

func (s *Sink) MeasureSince(key []string, start time.Time) {
	if s == nil || s.m == nil {
		return
	}
	s.m.MeasureSince(key, start)
}

func (s *Sink) IncrCounter(key []string, val float32) {
	if s == nil || s.m == nil {
		return
	}
	s.m.IncrCounter(key, val)
}

func (s *Sink) SetGauge(key []string, val float32) {
	if s == nil || s.m == nil {
		return
	}
	s.m.SetGauge(key, val)
}
