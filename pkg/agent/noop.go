package agent

import (
	"context"
	"time"
)

// NoopChannel is a Channel that always succeeds immediately, used as the
// channel for a schedulable with no real agent attached (e.g. in tests, or
// a Process which has no workload-agent pairing at all).
type NoopChannel struct{ Latency time.Duration }

func (c NoopChannel) PreChangeLatency(context.Context, string) (time.Duration, error) {
	return c.Latency, nil
}
func (c NoopChannel) SyncChange(context.Context, string) error { return nil }
func (c NoopChannel) DoChange(context.Context, string) error   { return nil }
func (c NoopChannel) Close() error                             { return nil }
