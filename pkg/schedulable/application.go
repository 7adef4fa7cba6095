package schedulable

import "github.com/edgefabric/rtrm/pkg/types"

// Application is an AEM-integrated schedulable: it carries a catalogue of
// AWMs and is paired to a workload-agent channel identified by pid
// (spec.md §3, §6.2).
type Application struct {
	Base

	PID   int
	Major uint32
	Minor uint32

	recipe string
	awms   map[int]*types.AWM
}

// NewApplication creates an Application in state New, paired from an
// AppPair/ExcRegister message (spec.md §6.2).
func NewApplication(uid, name string, pid, priority int, recipe string) *Application {
	return &Application{
		Base:   newBase(uid, name, priority),
		PID:    pid,
		recipe: recipe,
		awms:   make(map[int]*types.AWM),
	}
}

// Recipe returns the recipe name supplied at ExcRegister time.
func (a *Application) Recipe() string { return a.recipe }

// AddAWM registers a working mode in this application's catalogue.
func (a *Application) AddAWM(awm *types.AWM) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.awms[awm.ID] = awm
}

// AWM looks up a working mode by id.
func (a *Application) AWM(id int) (*types.AWM, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	awm, ok := a.awms[id]
	return awm, ok
}

// AWMs returns every registered working mode, unordered.
func (a *Application) AWMs() []*types.AWM {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*types.AWM, 0, len(a.awms))
	for _, awm := range a.awms {
		out = append(out, awm)
	}
	return out
}
