// Command replica is a debug CLI that opens a replica storage backend
// and exercises the Storage/StorageTxn contract directly: creating and
// inspecting tasks, walking the operation log, and manipulating the
// working set. It is not a port of taskchampion's modification
// grammar — each subcommand maps onto one or two StorageTxn calls.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskchampion/taskchampion/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

// replicaConfig holds the settings shared by every subcommand. Values
// come from flags, optionally overlaid by a YAML file via --config for
// whichever fields were not explicitly set on the command line.
type replicaConfig struct {
	DataDir  string `yaml:"data_dir"`
	Engine   string `yaml:"engine"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

var cfg replicaConfig

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "replica",
	Short:   "Inspect and exercise a taskchampion replica storage backend",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("replica version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", ".", "replica data directory (ignored for --engine=memory)")
	rootCmd.PersistentFlags().StringVar(&cfg.Engine, "engine", "sqlite", "storage backend: memory, sqlite, or bolt")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&cfg.LogJSON, "log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "optional YAML config file overlaying unset flags")

	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(txnCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(workingSetCmd)
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}
