package types

// ViewToken identifies an accounting view (spec.md §3 "View"). The two
// reserved tokens are distinguished; every other token is opaque and
// hashable, minted by the accounter.
type ViewToken string

const (
	// SystemView is the committed truth.
	SystemView ViewToken = "SYSTEM_VIEW"
	// SyncView is the speculative view used during a sync session.
	SyncView ViewToken = "SYNC_VIEW"
)

// RequestPolicy instructs the binder how to spread a request's amount
// across the nodes matching its path template (spec.md §3).
type RequestPolicy int

const (
	// Sequential fills one matching node to saturation before moving on.
	Sequential RequestPolicy = iota
	// Balanced spreads the amount in proportion to per-node availability.
	Balanced
)

func (p RequestPolicy) String() string {
	if p == Balanced {
		return "balanced"
	}
	return "sequential"
}

// ResourceRequest asks for amount units of whatever matches PathTemplate,
// spread per Policy (spec.md §3).
type ResourceRequest struct {
	PathTemplate Path
	Amount       uint64
	Policy       RequestPolicy
}

// Slot identifies an abstract (type, id) placeholder inside a request's
// template path that a Binding resolves to a concrete resource id.
type Slot struct {
	Type       ResourceType
	AbstractID int
}

// Binding maps the abstract slots referenced by an AWM's requests to
// concrete resource ids, attached under a numeric reference so a policy
// can try several bindings cheaply and commit one (spec.md §3 "Binding").
type Binding struct {
	Ref  int
	Bind map[Slot]int
}

// CPUIDs returns the set of concrete CPU ids this binding resolves to, used
// by next_sync_for (spec.md §4.3) to detect a changed CPU binding set.
func (b Binding) CPUIDs() map[int]struct{} {
	ids := make(map[int]struct{})
	for slot, id := range b.Bind {
		if slot.Type == CPU {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// SameCPUSet reports whether two bindings resolve to the same set of
// concrete CPU ids.
func SameCPUSet(a, b Binding) bool {
	as, bs := a.CPUIDs(), b.CPUIDs()
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}

// AWM is a named alternative configuration attached to a schedulable
// (spec.md §3 "Working Mode"). AWMs are immutable after creation except
// for their current binding.
type AWM struct {
	ID       int
	OwnerUID string
	Value    float64
	Requests []ResourceRequest

	bindings        map[int]Binding
	currentBindRef  int
	schedulingCount uint64
}

// NewAWM creates an AWM with the given id, owner, value and request list.
func NewAWM(id int, ownerUID string, value float64, requests []ResourceRequest) *AWM {
	return &AWM{
		ID:             id,
		OwnerUID:       ownerUID,
		Value:          value,
		Requests:       requests,
		bindings:       make(map[int]Binding),
		currentBindRef: -1,
	}
}

// AddBinding attaches a candidate binding under ref, so a policy can try
// several bindings before committing one via SetCurrentBinding.
func (a *AWM) AddBinding(ref int, b Binding) {
	b.Ref = ref
	a.bindings[ref] = b
}

// SetCurrentBinding marks ref as the binding the AWM is actually using.
func (a *AWM) SetCurrentBinding(ref int) bool {
	if _, ok := a.bindings[ref]; !ok {
		return false
	}
	a.currentBindRef = ref
	return true
}

// CurrentBinding returns the AWM's active binding, if any.
func (a *AWM) CurrentBinding() (Binding, bool) {
	if a.currentBindRef < 0 {
		return Binding{}, false
	}
	b, ok := a.bindings[a.currentBindRef]
	return b, ok
}

// Binding looks up a candidate binding by reference.
func (a *AWM) Binding(ref int) (Binding, bool) {
	b, ok := a.bindings[ref]
	return b, ok
}

// IncSchedulingCount bumps the AWM's own scheduling counter, called when a
// schedulable transitions into Running with this AWM promoted to current
// (spec.md §3 state-machine invariants).
func (a *AWM) IncSchedulingCount() {
	a.schedulingCount++
}

// SchedulingCount returns how many times this AWM has been promoted to
// current.
func (a *AWM) SchedulingCount() uint64 {
	return a.schedulingCount
}
