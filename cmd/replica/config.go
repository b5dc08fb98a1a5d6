package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// initConfig overlays cfg with values from --config for any flag the
// caller did not explicitly set, mirroring the teacher's apply
// command's use of yaml.v3 for declarative input.
func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replica: reading config %s: %v\n", path, err)
		os.Exit(1)
	}

	var fileCfg replicaConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "replica: parsing config %s: %v\n", path, err)
		os.Exit(1)
	}

	flags := rootCmd.PersistentFlags()
	if fileCfg.DataDir != "" && !flags.Changed("data-dir") {
		cfg.DataDir = fileCfg.DataDir
	}
	if fileCfg.Engine != "" && !flags.Changed("engine") {
		cfg.Engine = fileCfg.Engine
	}
	if fileCfg.LogLevel != "" && !flags.Changed("log-level") {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogJSON && !flags.Changed("log-json") {
		cfg.LogJSON = fileCfg.LogJSON
	}
}
