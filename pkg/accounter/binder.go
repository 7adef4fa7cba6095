package accounter

import (
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/types"
)

// credit is one planned (or applied) node->owner->amount booking,
// produced by the binder before BookResources commits it (spec.md §4.2
// step 1-2: bind, then check, then apply).
type credit struct {
	node   *rtree.Node
	path   types.Path
	amount uint64
}

// bindRequest walks candidates in the order determined by req.Policy and
// returns the per-node credits that satisfy req.Amount. planned tracks
// amounts already committed to each node earlier in the same
// BookResources call, so a request can't double-spend a node's
// availability against itself.
//
// When check is true and the candidates can't cover req.Amount, bindRequest
// returns ok=false and no credits. When check is false (already-validated
// re-booking, spec.md §4.2 sync_start/sync_acquire), any shortfall is piled
// onto the last candidate rather than silently dropped.
func bindRequest(ops rtree.Ops, view types.ViewToken, candidates []*rtree.Node, req types.ResourceRequest, planned map[*rtree.Node]uint64, check bool) ([]credit, bool) {
	if len(candidates) == 0 {
		return nil, req.Amount == 0
	}

	availOf := func(n *rtree.Node) uint64 {
		avail := ops.Available(n, view)
		p := planned[n]
		if p >= avail {
			return 0
		}
		return avail - p
	}

	switch req.Policy {
	case types.Balanced:
		return bindBalanced(candidates, req.Amount, availOf, check)
	default:
		return bindSequential(candidates, req.Amount, availOf, check)
	}
}

func bindSequential(candidates []*rtree.Node, amount uint64, availOf func(*rtree.Node) uint64, check bool) ([]credit, bool) {
	remaining := amount
	var credits []credit
	for _, n := range candidates {
		if remaining == 0 {
			break
		}
		avail := availOf(n)
		take := avail
		if take > remaining {
			take = remaining
		}
		if take > 0 {
			credits = append(credits, credit{node: n, path: n.Path, amount: take})
			remaining -= take
		}
	}
	if remaining > 0 {
		if check {
			return nil, false
		}
		last := candidates[len(candidates)-1]
		credits = append(credits, credit{node: last, path: last.Path, amount: remaining})
	}
	return credits, true
}

func bindBalanced(candidates []*rtree.Node, amount uint64, availOf func(*rtree.Node) uint64, check bool) ([]credit, bool) {
	var totalAvail uint64
	avails := make([]uint64, len(candidates))
	for i, n := range candidates {
		a := availOf(n)
		avails[i] = a
		totalAvail += a
	}

	if totalAvail == 0 {
		if check && amount > 0 {
			return nil, false
		}
		if amount == 0 {
			return nil, true
		}
		// Everything is already equally unavailable (check is false
		// here) — spread evenly across candidates.
		share := amount / uint64(len(candidates))
		rem := amount % uint64(len(candidates))
		var credits []credit
		for i, n := range candidates {
			take := share
			if uint64(i) < rem {
				take++
			}
			if take > 0 {
				credits = append(credits, credit{node: n, path: n.Path, amount: take})
			}
		}
		return credits, true
	}

	if totalAvail < amount && check {
		return nil, false
	}

	var credits []credit
	var distributed uint64
	for i, n := range candidates {
		if avails[i] == 0 {
			continue
		}
		take := amount * avails[i] / totalAvail
		if take > 0 {
			credits = append(credits, credit{node: n, path: n.Path, amount: take})
			distributed += take
		}
	}
	// Remainder from integer division, or the overbooked shortfall when
	// check is false, goes on the most available candidate.
	if distributed < amount {
		shortfall := amount - distributed
		bestIdx := 0
		for i := range candidates {
			if avails[i] > avails[bestIdx] {
				bestIdx = i
			}
		}
		credits = append(credits, credit{node: candidates[bestIdx], path: candidates[bestIdx].Path, amount: shortfall})
	}
	return credits, true
}
