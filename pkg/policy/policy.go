// Package policy defines the scheduling policy port (spec.md §4.5) and a
// name-keyed registry the core discovers implementations from, replacing
// the dynamic factory/virtual-dispatch approach the design notes (spec.md
// §9 "Plugin dispatch") call out for a rewrite.
package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/rtrmerr"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
)

// SystemView is a read-only facade over the accounter and workload
// managers a Policy is handed to produce a candidate allocation. It is
// also allowed to call BookResources on the view it owns.
type SystemView struct {
	Accounter *accounter.Accounter
	Apps      *workload.ApplicationManager
	Procs     *workload.ProcessManager
	View      types.ViewToken
}

// Policy implements spec.md §4.5: given a read-only system view, it must
// call schedule_request (or schedule_request_as_prev) on every schedulable
// it intends to reconfigure before returning, and return the token
// describing the complete candidate assignment.
type Policy interface {
	Name() string
	Schedule(sv SystemView) (types.ViewToken, error)
}

// Registry is a name-keyed table of Policy instances, replacing the source's dynamic
// module loading (spec.md §9).
type Registry struct {
	mu         sync.Mutex
	policies   map[string]Policy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds p under its own Name(), failing if the name is taken.
func (r *Registry) Register(p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[p.Name()]; exists {
		return fmt.Errorf("register policy %s: %w", p.Name(), rtrmerr.ErrAlreadyExists)
	}
	r.policies[p.Name()] = p
	return nil
}

// Get looks up a policy by name, failing with PolicyMissing if absent
// (spec.md §7).
func (r *Registry) Get(name string) (Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", name, rtrmerr.ErrPolicyMissing)
	}
	return p, nil
}

// Names returns every registered policy name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
