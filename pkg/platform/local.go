package platform

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
)

// Local is a thin adapter reading what the host's /proc and /sys actually
// expose (load average, thermal zones) and returning ErrNotSupported for
// every query and mutation it cannot honestly answer. No specific sensor
// hardware is mandated by the core (spec.md §1 Non-goals); this adapter
// exists to exercise the port end to end on a plain Linux host.
type Local struct {
	ProcPath string // defaults to "/proc" when empty
	SysPath  string // defaults to "/sys" when empty
}

// NewLocal creates a Local adapter reading from the host's real /proc and
// /sys trees.
func NewLocal() *Local { return &Local{} }

func (l *Local) procPath() string {
	if l.ProcPath != "" {
		return l.ProcPath
	}
	return "/proc"
}

func (l *Local) sysPath() string {
	if l.SysPath != "" {
		return l.SysPath
	}
	return "/sys"
}

func (l *Local) LoadPlatformData(context.Context) error { return nil }
func (l *Local) Start(context.Context) error             { return nil }
func (l *Local) Stop(context.Context) error              { return nil }

func (l *Local) MapResources(context.Context, string, types.Binding) error {
	return fmt.Errorf("map_resources: %w", rtrmerr.ErrNotSupported)
}

func (l *Local) ReclaimResources(context.Context, string) error {
	return fmt.Errorf("reclaim_resources: %w", rtrmerr.ErrNotSupported)
}

func (l *Local) SetPowerState(context.Context, types.Path, int) error {
	return fmt.Errorf("set_power_state: %w", rtrmerr.ErrNotSupported)
}

// GetLoad returns the host 1-minute load average from /proc/loadavg,
// regardless of which node path was asked about: a plain-Linux adapter has
// no per-core load breakdown without a much heavier sampler.
func (l *Local) GetLoad(_ context.Context, _ types.Path) (float64, error) {
	f, err := os.Open(l.procPath() + "/loadavg")
	if err != nil {
		return 0, fmt.Errorf("get_load: %w", rtrmerr.ErrNotSupported)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("get_load: %w", rtrmerr.ErrNotSupported)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return 0, fmt.Errorf("get_load: %w", rtrmerr.ErrNotSupported)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("get_load: %w", rtrmerr.ErrNotSupported)
	}
	return v, nil
}

// GetTemperature reads the first thermal zone under /sys/class/thermal, in
// degrees Celsius (the kernel reports milli-degrees).
func (l *Local) GetTemperature(_ context.Context, _ types.Path) (float64, error) {
	raw, err := os.ReadFile(l.sysPath() + "/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, fmt.Errorf("get_temperature: %w", rtrmerr.ErrNotSupported)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("get_temperature: %w", rtrmerr.ErrNotSupported)
	}
	return float64(milli) / 1000.0, nil
}

func (l *Local) GetClockFreq(context.Context, types.Path) (uint64, error) {
	return 0, fmt.Errorf("get_clock_freq: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) GetAvailableFreqs(context.Context, types.Path) ([]uint64, error) {
	return nil, fmt.Errorf("get_available_freqs: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) SetClockFreq(context.Context, types.Path, uint64) error {
	return fmt.Errorf("set_clock_freq: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) GetVoltage(context.Context, types.Path) (float64, error) {
	return 0, fmt.Errorf("get_voltage: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) GetFanSpeed(context.Context, types.Path) (int, error) {
	return 0, fmt.Errorf("get_fan_speed: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) SetFanSpeed(context.Context, types.Path, int) error {
	return fmt.Errorf("set_fan_speed: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) GetPowerUsage(context.Context, types.Path) (uint64, error) {
	return 0, fmt.Errorf("get_power_usage: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) GetPerfState(context.Context, types.Path) (PerfState, error) {
	return 0, fmt.Errorf("get_perf_state: %w", rtrmerr.ErrNotSupported)
}
func (l *Local) SetPerfState(context.Context, types.Path, PerfState) error {
	return fmt.Errorf("set_perf_state: %w", rtrmerr.ErrNotSupported)
}
