package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodeflow/portstate/config"
)

func newConfigDumpCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved engine configuration and exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			fmt.Printf("migration_mode: %s\n", cfg.MigrationMode)
			fmt.Printf("pending_mutation_timeout: %s\n", cfg.PendingMutationTimeout)
			fmt.Printf("pending_mutation_sweep_interval: %s\n", cfg.PendingMutationSweepInterval)
			fmt.Printf("descendants_bfs_cap: %d\n", cfg.DescendantsBFSCap)
			fmt.Printf("buffered_queue_max: %d\n", cfg.BufferedQueueMax)
			return nil
		},
	}
}
