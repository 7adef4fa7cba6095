package platform

import (
	"context"
	"time"

	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/types"
)

// Sampler is the one long-running worker the core owns per sampled
// resource: it periodically refreshes the load sample of the Nodes
// matching its path from an Adapter. It implements the common Worker contract (spec.md §5:
// Setup, Start, Task, Terminate) with cooperative shutdown via a done
// flag checked on every loop iteration and at every wake.
type Sampler struct {
	adapter  Adapter
	tree     *rtree.Tree
	path     types.Path
	interval time.Duration

	done chan struct{}
}

// NewSampler constructs a Sampler for path, sampled every interval.
func NewSampler(adapter Adapter, tree *rtree.Tree, path types.Path, interval time.Duration) *Sampler {
	return &Sampler{adapter: adapter, tree: tree, path: path, interval: interval, done: make(chan struct{})}
}

// Setup prepares the worker before Start by loading the adapter's
// platform data.
func (s *Sampler) Setup(ctx context.Context) error {
	return s.adapter.LoadPlatformData(ctx)
}

// Start runs the sampling loop until Terminate is called or ctx is
// cancelled.
func (s *Sampler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Task(ctx)
		}
	}
}

// Task runs exactly one sampling pass, logging (not failing) on
// ErrNotSupported so a thin adapter doesn't spam shutdown-worthy errors.
func (s *Sampler) Task(ctx context.Context) {
	for _, n := range s.tree.Get(s.path) {
		nodePath := n.Path
		load, err := s.adapter.GetLoad(ctx, nodePath)
		if err != nil {
			log.WithComponent("sampler").Debug().Str("path", nodePath.String()).Msg("get_load not supported")
			continue
		}
		s.tree.UpdateSample(nodePath, func(n *rtree.Node) { n.LoadPercent = load })
	}
}

// Terminate signals the loop to stop; safe to call more than once.
func (s *Sampler) Terminate() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
