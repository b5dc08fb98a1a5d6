package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var workingSetCmd = &cobra.Command{
	Use:   "working-set",
	Short: "Inspect and manipulate the working set",
}

var workingSetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every occupied working-set slot",
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
		defer txn.Discard()

		ws, err := txn.GetWorkingSet()
		if err != nil {
			return err
		}
		for i, id := range ws {
			if id == nil {
				continue
			}
			fmt.Printf("%d: %s\n", i, *id)
		}
		return nil
	},
}

var workingSetAddCmd = &cobra.Command{
	Use:   "add <uuid>",
	Short: "Add a task to the lowest empty working-set slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", args[0], err)
		}

		store, err := openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		txn, err := store.Txn()
		if err != nil {
			return err
		}
		defer txn.Discard()

		idx, err := txn.AddToWorkingSet(id)
		if err != nil {
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		fmt.Printf("added %s at slot %d\n", id, idx)
		return nil
	},
}

var workingSetClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the working set",
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
		defer txn.Discard()

		if err := txn.ClearWorkingSet(); err != nil {
			return err
		}
		return txn.Commit()
	},
}

func init() {
	workingSetCmd.AddCommand(workingSetShowCmd, workingSetAddCmd, workingSetClearCmd)
}
