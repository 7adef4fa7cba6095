package schedulable

// Process is a plain OS process tracked by pid, with a single fluid
// resource request rather than an AWM catalogue (spec.md §3, §4.4).
type Process struct {
	Base

	PID int

	CPUCores   uint64
	AccelCores uint64
	MemoryMB   uint64
}

// NewProcess creates a Process in state New, not yet bound to a pid.
func NewProcess(name string, priority int) *Process {
	return &Process{Base: newBase(name, name, priority)}
}

// NotifyStart binds the process to an observed pid and moves it to Ready.
func (p *Process) NotifyStart(pid int) error {
	p.mu.Lock()
	p.PID = pid
	p.mu.Unlock()
	return p.SetState(Ready, None)
}

// SetRequest records the fluid resource request applied by bq.prm.setsched.
func (p *Process) SetRequest(cpuCores, accelCores, memoryMB uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CPUCores, p.AccelCores, p.MemoryMB = cpuCores, accelCores, memoryMB
}
