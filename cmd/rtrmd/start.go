package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/edgefabric/rtrm/pkg/accounter"
	"github.com/edgefabric/rtrm/pkg/agent"
	"github.com/edgefabric/rtrm/pkg/cmdfifo"
	"github.com/edgefabric/rtrm/pkg/config"
	"github.com/edgefabric/rtrm/pkg/eventloop"
	"github.com/edgefabric/rtrm/pkg/log"
	"github.com/edgefabric/rtrm/pkg/metrics"
	"github.com/edgefabric/rtrm/pkg/platform"
	"github.com/edgefabric/rtrm/pkg/policy"
	"github.com/edgefabric/rtrm/pkg/rtree"
	"github.com/edgefabric/rtrm/pkg/scheduler"
	"github.com/edgefabric/rtrm/pkg/syncmgr"
	"github.com/edgefabric/rtrm/pkg/types"
	"github.com/edgefabric/rtrm/pkg/workload"
	"github.com/spf13/cobra"
)

var (
	metricsAddr  string
	livenessAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the RTRM core daemon",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9100", "address to serve Prometheus metrics on")
	startCmd.Flags().StringVar(&livenessAddr, "liveness-addr", ":9101", "address to serve gRPC health checks on")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := os.MkdirAll(cfg.VarDir, 0o755); err != nil {
		return fmt.Errorf("start: var dir %s: %w", cfg.VarDir, err)
	}

	tree := rtree.New()
	registerHostResources(tree)
	acc := accounter.New(tree)
	apps := workload.NewApplicationManager(acc)
	procs := workload.NewProcessManager(acc)

	policies := policy.NewRegistry()
	if err := policies.Register(policy.NewFIFO()); err != nil {
		return err
	}

	schedMgr := scheduler.New(acc, apps, procs, policies, cfg.Policy)
	local := platform.NewLocal()

	syncMgr := syncmgr.New(syncmgr.Config{
		Accounter: acc,
		Apps:      apps,
		Procs:     procs,
		Platform:  local,
		Deadline:  func(string) time.Duration { return cfg.AgentDeadline },
		ForceSync: cfg.ForceSync,
	})

	liveness := agent.NewLivenessServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := eventloop.New(ctx, eventloop.Config{
		Apps:   apps,
		Procs:  procs,
		Period: cfg.EventPeriod,
		Run: func(ctx context.Context) {
			result, err := schedMgr.Schedule()
			if err != nil {
				log.WithComponent("rtrmd").Warn().Err(err).Msg("scheduling cycle failed")
				return
			}
			if result.Outcome != scheduler.Done {
				return
			}
			// The candidate view only ever served the policy's own feasibility
			// check; the sync manager re-derives every booking it commits from
			// each schedulable's own next_awm, so the view is done once the
			// session below has consumed those decisions.
			defer func() {
				if err := acc.PutView(result.View); err != nil {
					log.WithComponent("rtrmd").Warn().Err(err).Str("view", string(result.View)).Msg("failed to release candidate view")
				}
			}()
			if _, err := syncMgr.SyncSchedule(ctx); err != nil {
				log.WithComponent("rtrmd").Warn().Err(err).Msg("synchronisation session aborted")
			}
		},
	})
	liveness.SetServing("eventloop", true)

	dispatcher := cmdfifo.New(cfg.FIFOPath())
	for _, c := range cmdfifo.BuildCommands(cmdfifo.Handlers{
		Apps: apps, Procs: procs, Tree: tree, Loop: loop, Platform: local,
	}) {
		dispatcher.Register(c)
	}
	if err := dispatcher.Setup(ctx); err != nil {
		return err
	}
	go func() {
		if err := dispatcher.Start(ctx); err != nil {
			log.WithComponent("rtrmd").Warn().Err(err).Msg("command fifo stopped")
		}
	}()
	liveness.SetServing("cmdfifo", true)

	lis, err := net.Listen("tcp", livenessAddr)
	if err != nil {
		return fmt.Errorf("start: liveness listen: %w", err)
	}
	go func() {
		if err := liveness.Serve(lis); err != nil {
			log.WithComponent("rtrmd").Warn().Err(err).Msg("liveness server stopped")
		}
	}()

	metricsLis, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("start: metrics listen: %w", err)
	}
	go func() {
		_ = (&http.Server{Handler: metrics.Handler()}).Serve(metricsLis)
	}()

	log.WithComponent("rtrmd").Info().Msg("rtrm core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.WithComponent("rtrmd").Info().Msg("shutting down")
	loop.NotifyEvent(eventloop.Exit)
	dispatcher.Terminate()
	liveness.Stop()
	cancel()
	return nil
}

// registerHostResources discovers the minimal resource set available
// without any specific platform driver (spec.md §1 Non-goal: no sensor
// hardware is mandated): one processing element per logical CPU.
func registerHostResources(tree *rtree.Tree) {
	for i := 0; i < runtime.NumCPU(); i++ {
		path := types.MustParsePath(fmt.Sprintf("sys0.cpu0.pe%d", i))
		_ = tree.Register(path, "", 100)
	}
}
