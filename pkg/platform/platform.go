// Package platform defines the platform adapter port (spec.md §6.3): the
// core's only contract with hardware probing and device mapping. No
// specific sensor hardware is mandated (spec.md §1 Non-goals); adapters
// may answer any query with ErrNotSupported.
package platform

import (
	"context"

	"github.com/edgefabric/rtrm/pkg/types"
)

// PerfState is an opaque platform-defined performance state identifier
// (e.g. a P-state or DVFS operating point).
type PerfState int

// Adapter is the platform port every sampling worker and the
// synchronisation manager's SyncPlatform phase drive (spec.md §6.3).
type Adapter interface {
	LoadPlatformData(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	MapResources(ctx context.Context, ownerUID string, binding types.Binding) error
	ReclaimResources(ctx context.Context, ownerUID string) error
	SetPowerState(ctx context.Context, path types.Path, state int) error

	GetLoad(ctx context.Context, path types.Path) (float64, error)
	GetTemperature(ctx context.Context, path types.Path) (float64, error)
	GetClockFreq(ctx context.Context, path types.Path) (uint64, error)
	GetAvailableFreqs(ctx context.Context, path types.Path) ([]uint64, error)
	SetClockFreq(ctx context.Context, path types.Path, hz uint64) error
	GetVoltage(ctx context.Context, path types.Path) (float64, error)
	GetFanSpeed(ctx context.Context, path types.Path) (int, error)
	SetFanSpeed(ctx context.Context, path types.Path, percent int) error
	GetPowerUsage(ctx context.Context, path types.Path) (uint64, error)
	GetPerfState(ctx context.Context, path types.Path) (PerfState, error)
	SetPerfState(ctx context.Context, path types.Path, state PerfState) error
}
