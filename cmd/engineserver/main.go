// Command engineserver runs one worker-loop process: it takes broker
// configuration from the environment, picks a random 32-bit worker id,
// and drives walk batches for whatever gamestate the commands channel
// currently points it at.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/distmcts/distmcts/internal/broker"
	"github.com/distmcts/distmcts/internal/broker/inproc"
	"github.com/distmcts/distmcts/internal/broker/natsbroker"
	"github.com/distmcts/distmcts/internal/games/nim"
	"github.com/distmcts/distmcts/internal/games/tictactoe"
	"github.com/distmcts/distmcts/internal/worker"
	"github.com/distmcts/distmcts/pkg/game"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var registry = mergedRegistry()

// sourceRegistries lists every package-level game registry this binary
// knows about. Each fixture package owns exactly one game type today, so
// this is a small fixed list rather than a plugin-discovery mechanism.
func sourceRegistries() []*game.Registry {
	return []*game.Registry{tictactoe.Registry, nim.Registry}
}

func mergedRegistry() *game.Registry {
	r := game.NewRegistry()
	for _, src := range sourceRegistries() {
		src := src
		for _, name := range src.GameTypes() {
			name := name
			r.Register(name, func() game.Adapter {
				a, err := src.New(name)
				if err != nil {
					panic(err)
				}
				return a
			})
		}
	}
	return r
}

func main() {
	klog.InitFlags(nil)

	var natsURL string
	var walkBatch int

	root := &cobra.Command{
		Use:   "engineserver",
		Short: "runs a distributed MCTS worker loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(natsURL, walkBatch)
		},
	}
	root.Flags().StringVar(&natsURL, "nats-url", os.Getenv("DISTMCTS_NATS_URL"), "NATS broker URL (empty uses an in-process broker, for local testing only)")
	root.Flags().IntVar(&walkBatch, "walk-batch", worker.DefaultWalkBatch, "walks executed per loop iteration")

	if err := root.Execute(); err != nil {
		klog.Exit(err)
	}
}

func run(natsURL string, walkBatch int) error {
	br, closeBroker, err := dialBroker(natsURL)
	if err != nil {
		return err
	}
	defer closeBroker()

	id := rand.Uint32()
	klog.Infof("engineserver: worker id %d starting", id)

	w := worker.New(id, registry, br)
	w.WalkBatch = walkBatch

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx)
}

func dialBroker(natsURL string) (broker.Broker, func(), error) {
	if natsURL == "" {
		klog.Warning("engineserver: no --nats-url/DISTMCTS_NATS_URL set, using an in-process broker (single-process testing only)")
		b := inproc.New()
		return b, func() { _ = b.Close() }, nil
	}
	b, err := natsbroker.Connect(natsURL)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}
