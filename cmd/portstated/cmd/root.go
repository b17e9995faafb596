// Package cmd is the cobra/viper CLI entry point for the port-state engine,
// binding a --config_file flag through viper ahead of every subcommand.
package cmd

import (
	"fmt"
	"os"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodeflow/portstate/config"
)

// Execute runs the portstated root command.
func Execute() {
	v := viper.New()
	config.BindFlags(v)

	rootCmd := &cobra.Command{
		Use:   "portstated",
		Short: "portstated hosts the granular reactive port-state engine",
	}

	cfgFile := rootCmd.PersistentFlags().String("config_file", "", "Path to a config file (yaml/json/toml) overriding defaults.")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if *cfgFile != "" {
			v.SetConfigFile(*cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("error reading config: %w", err)
			}
		}
		v.BindPFlags(cmd.Flags())
		v.AutomaticEnv()
		return nil
	}

	rootCmd.AddCommand(newConfigDumpCmd(v))
	rootCmd.AddCommand(newServeCmd(v))

	if err := rootCmd.Execute(); err != nil {
		log.Errorf("portstated: %v", err)
		os.Exit(1)
	}
}
