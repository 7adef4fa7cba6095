package cmdfifo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edgefabric/rtrm/pkg/eventloop"
	"github.com/edgefabric/rtrm/pkg/platform"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/schedulable"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
	"github.com/spf13/cobra"
)

// Handlers bundles the core components the predefined bq.* commands act
// on (spec.md §6.1).
type Handlers struct {
	Apps  *workload.ApplicationManager
	Procs *workload.ProcessManager
	Tree  *rtree.Tree
	Loop  *eventloop.Loop
	Platform platform.Adapter
}

// BuildCommands returns the predefined command set from spec.md §6.1,
// each a thin handler over h's public API, ready to pass to
// Dispatcher.Register.
func BuildCommands(h Handlers) []*cobra.Command {
	return []*cobra.Command{
		excStatusCmd(h),
		queStatusCmd(h),
		resStatusCmd(h),
		synStatusCmd(h),
		optForceCmd(h),
		prmAddCmd(h),
		prmRemoveCmd(h),
		prmSetSchedCmd(h),
		pmFanSpeedSetCmd(h),
	}
}

func excStatusCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use: "bq.rm.exc_status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var lines []string
			it := h.Apps.IterateByState(schedulable.Ready)
			for {
				app, ok := it.Next()
				if !ok {
					break
				}
				lines = append(lines, fmt.Sprintf("%s ready", app.UID()))
			}
			for _, s := range []schedulable.State{schedulable.Sync, schedulable.Running} {
				jt := h.Apps.IterateByState(s)
				for {
					app, ok := jt.Next()
					if !ok {
						break
					}
					lines = append(lines, fmt.Sprintf("%s %s/%s", app.UID(), s, app.SyncState()))
				}
			}
			cmd.Println(strings.Join(lines, "\n"))
			return nil
		},
	}
}

func queStatusCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use: "bq.rm.que_status",
		RunE: func(cmd *cobra.Command, args []string) error {
			it := h.Apps.IterateByState(schedulable.Sync)
			var lines []string
			for {
				app, ok := it.Next()
				if !ok {
					break
				}
				lines = append(lines, fmt.Sprintf("%s %s", app.SyncState(), app.UID()))
			}
			cmd.Println(strings.Join(lines, "\n"))
			return nil
		},
	}
}

func resStatusCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use: "bq.rm.res_status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var lines []string
			for _, n := range h.Tree.All() {
				used := h.Tree.Used(n.Path, types.SystemView)
				lines = append(lines, fmt.Sprintf("%s %d/%d", n.Path, used, n.Total-n.Reserved))
			}
			cmd.Println(strings.Join(lines, "\n"))
			return nil
		},
	}
}

func synStatusCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use: "bq.rm.syn_status",
		RunE: func(cmd *cobra.Command, args []string) error {
			it := h.Apps.IterateByState(schedulable.Sync)
			count := 0
			for {
				if _, ok := it.Next(); !ok {
					break
				}
				count++
			}
			cmd.Printf("sync_pending=%d\n", count)
			return nil
		},
	}
}

func optForceCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use: "bq.rm.opt_force",
		RunE: func(cmd *cobra.Command, args []string) error {
			if h.Loop == nil {
				return fmt.Errorf("cmdfifo: opt_force: no event loop configured")
			}
			h.Loop.NotifyEvent(eventloop.OptRequest)
			return nil
		},
	}
}

func prmAddCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use:  "bq.prm.add",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return h.Procs.Add(args[0], 0)
		},
	}
}

func prmRemoveCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use:  "bq.prm.remove",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return h.Procs.Remove(args[0])
		},
	}
}

// prmSetSchedCmd implements `bq.prm.setsched -n<name> [-p<pid>]
// -c<cpu_cores> [-a<acc_cores>] [-m<memory_mb>]` (spec.md §6.1).
func prmSetSchedCmd(h Handlers) *cobra.Command {
	var name string
	var pid int
	var cpuCores, accelCores, memoryMB uint64

	cmd := &cobra.Command{
		Use: "bq.prm.setsched",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := h.Procs.Get(name)
			if !ok {
				return fmt.Errorf("cmdfifo: setsched %s: not managed", name)
			}
			p.SetRequest(cpuCores, accelCores, memoryMB)
			if cmd.Flags().Changed("pid") {
				if err := h.Procs.NotifyStart(name, pid); err != nil {
					return err
				}
			}
			if h.Loop != nil {
				h.Loop.NotifyEvent(eventloop.OptRequest)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "process name")
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "observed pid")
	cmd.Flags().Uint64VarP(&cpuCores, "cpu", "c", 0, "cpu cores requested")
	cmd.Flags().Uint64VarP(&accelCores, "accel", "a", 0, "accelerator cores requested")
	cmd.Flags().Uint64VarP(&memoryMB, "memory", "m", 0, "memory in MB requested")
	return cmd
}

func pmFanSpeedSetCmd(h Handlers) *cobra.Command {
	return &cobra.Command{
		Use:  "bq.pm.fanspeed_set",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := types.ParsePath(args[0])
			if err != nil {
				return err
			}
			percent, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("cmdfifo: fanspeed_set: %w", err)
			}
			return h.Platform.SetFanSpeed(cmd.Context(), path, percent)
		},
	}
}
