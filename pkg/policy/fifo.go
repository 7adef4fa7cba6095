package policy

import (
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
)

// FIFO is the reference policy: it offers every Ready, then every New,
// application its lowest-id AWM, and then every Ready, then every New,
// process its fluid request, walking each state in uid order (priority
// plays no part), binding each request's first matching candidate node. No heuristic is mandated by the core (spec.md §1
// Non-goals); FIFO exists to exercise the port end to end.
type FIFO struct{}

// NewFIFO constructs the reference policy.
func NewFIFO() *FIFO { return &FIFO{} }

func (FIFO) Name() string { return "fifo" }

func (f FIFO) Schedule(sv SystemView) (types.ViewToken, error) {
	it := sv.Apps.IterateByState(schedulable.Ready)
	for {
		app, ok := it.Next()
		if !ok {
			break
		}
		f.scheduleApp(sv, app)
	}
	it = sv.Apps.IterateByState(schedulable.New)
	for {
		app, ok := it.Next()
		if !ok {
			break
		}
		f.scheduleApp(sv, app)
	}

	for _, state := range []schedulable.State{schedulable.Ready, schedulable.New} {
		pit := sv.Procs.IterateByState(state)
		for {
			p, ok := pit.Next()
			if !ok {
				break
			}
			_ = sv.Procs.ScheduleRequest(p, sv.View)
		}
	}

	return sv.View, nil
}

func (f FIFO) scheduleApp(sv SystemView, app *schedulable.Application) {
	awms := app.AWMs()
	if len(awms) == 0 {
		return
	}
	best := awms[0]
	for _, awm := range awms[1:] {
		if awm.ID < best.ID {
			best = awm
		}
	}

	binding := types.Binding{Bind: make(map[types.Slot]int)}
	for i, req := range best.Requests {
		candidates := sv.Accounter.Tree().Get(req.PathTemplate)
		if len(candidates) == 0 {
			continue
		}
		n := candidates[0]
		if len(n.Path) == 0 {
			continue
		}
		last := n.Path[len(n.Path)-1]
		binding.Bind[types.Slot{Type: last.Type, AbstractID: i}] = last.ID
	}
	best.AddBinding(best.ID, binding)

	// ScheduleRequest's own accounting failure path already transitions app
	// to Sync(Blocked); FIFO has nothing further to do on error.
	_ = sv.Apps.ScheduleRequest(app, best, sv.View, best.ID)
}
