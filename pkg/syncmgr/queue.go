package syncmgr

import (
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/workload"
)

// syncStateOrder is the default queue order (spec.md §4.7 step 2 example:
// "Starting, then Reconf, ...").
var syncStateOrder = []schedulable.SyncState{
	schedulable.Starting,
	schedulable.Reconf,
	schedulable.MigRec,
	schedulable.Migrate,
	schedulable.Blocked,
}

// OrderedQueuePolicy buckets every application currently in Sync by its
// sync flavour and returns one Queue per flavour in syncStateOrder,
// skipping empty buckets.
type OrderedQueuePolicy struct{}

func (OrderedQueuePolicy) NextQueues(apps *workload.ApplicationManager, _ *workload.ProcessManager) []Queue {
	buckets := make(map[schedulable.SyncState][]string)
	it := apps.IterateByState(schedulable.Sync)
	for {
		app, ok := it.Next()
		if !ok {
			break
		}
		buckets[app.SyncState()] = append(buckets[app.SyncState()], app.UID())
	}

	var queues []Queue
	for _, s := range syncStateOrder {
		uids := buckets[s]
		if len(uids) == 0 {
			continue
		}
		queues = append(queues, Queue{SyncState: s, AppUIDs: uids})
	}
	return queues
}
