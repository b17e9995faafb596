package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodeflow/portstate/config"
	"github.com/nodeflow/portstate/engine"
)

// newServeCmd builds the engine from resolved configuration and blocks,
// periodically logging its stats counters, until interrupted. It has no
// network surface of its own (spec section 1's non-goals exclude transport
// and persistence) and feeds no events into the engine it builds; a host
// process that wires its own transport constructs an engine with engine.New
// and calls its ingress methods directly.
func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the port-state engine and report its stats until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if !cfg.MigrationMode.Enabled() {
				log.Warningf("portstated: migration_mode=%s, granular writes are bypassed", cfg.MigrationMode)
			}

			e := engine.New(cfg)
			defer e.Close()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					log.Infof("portstated: shutting down")
					return nil
				case <-ticker.C:
					s := e.Stats()
					log.Infof("portstated: batches=%d echoesDropped=%d mutationsExpired=%d staleRemovals=%d cyclesPruned=%d",
						s.BatchesProcessed, s.EchoesDropped, s.MutationsExpired, s.StaleRemovals, s.CyclesPruned)
				}
			}
		},
	}
}
