// Command tollywood-demo spins up a Scheduler and a registry facade,
// spawns a configurable number of counter actors, drives them with
// synthetic load, and prints an elapsed-time summary line. It exercises the demo-app
// config story (cobra + viper, mirroring webitel-im-delivery-service)
// distinct from the library's own env-var SchedulerConfig.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lguibr/tollywood"
	"github.com/lguibr/tollywood/registry"
)

var (
	numActors   int
	numMessages int
	numWorkers  int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tollywood-demo",
		Short: "Run a synthetic load demo against the tollywood scheduler",
		RunE:  runDemo,
	}

	root.Flags().IntVar(&numActors, "actors", 100, "number of actors to spawn")
	root.Flags().IntVar(&numMessages, "messages", 50, "messages to post per actor")
	root.Flags().IntVar(&numWorkers, "workers", 0, "worker count (0 = CPU count)")

	viper.SetEnvPrefix("TOLLYWOOD_DEMO")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("actors", root.Flags().Lookup("actors"))
	_ = viper.BindPFlag("messages", root.Flags().Lookup("messages"))
	_ = viper.BindPFlag("workers", root.Flags().Lookup("workers"))

	return root
}

type counterState struct {
	total int
}

func counterActor(msg interface{}, state interface{}) (interface{}, interface{}) {
	delta := msg.(int)
	s := state.(counterState)
	s.total += delta
	return s, s.total
}

func runDemo(cmd *cobra.Command, args []string) error {
	actors := viper.GetInt("actors")
	messages := viper.GetInt("messages")
	workers := viper.GetInt("workers")

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	reg := prometheus.NewRegistry()
	metrics := tollywood.NewMetrics(reg)

	opts := []tollywood.SchedulerOption{
		tollywood.WithLogger(sugar),
		tollywood.WithMetrics(metrics),
	}
	if workers > 0 {
		opts = append(opts, tollywood.WithNumWorkers(workers))
	}
	scheduler := tollywood.NewScheduler(2000, opts...)
	defer scheduler.Shutdown()

	system := registry.New(scheduler, registry.WithLogger(sugar))

	// Spawn with an empty id so the registry mints a UUID per actor,
	// the same path a caller with no natural actor key would take.
	ids := make([]string, actors)
	for i := 0; i < actors; i++ {
		ids[i] = system.Spawn("", tollywood.ActorFunc(counterActor), counterState{})
	}

	start := time.Now()
	for _, id := range ids {
		for m := 0; m < messages; m++ {
			system.Post(id, rand.IntN(10))
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		done := 0
		for _, id := range ids {
			if v, ok := system.State(id); ok {
				if s, ok := v.(counterState); ok && s.total > 0 {
					done++
				}
			}
		}
		if done == actors {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	fmt.Printf("spawned %d actors, %d messages each, elapsed %s\n",
		actors, messages, time.Since(start))

	return nil
}
