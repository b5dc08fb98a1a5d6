package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the replica's storage file and schema, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		txn, err := store.Txn()
		if err != nil {
			return err
		}
		txn.Discard()

		fmt.Printf("initialized %s replica in %s\n", cfg.Engine, cfg.DataDir)
		return nil
	},
}
