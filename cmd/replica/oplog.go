package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskchampion/taskchampion/pkg/types"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the operation log in order",
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

		ops, err := txn.Operations()
		if err != nil {
			return err
		}
		for i, op := range ops {
			fmt.Printf("%d: %s\n", i+1, describeOperation(op))
		}
		return nil
	},
}

func describeOperation(op types.Operation) string {
	switch op.Kind {
	case types.OpCreate:
		return fmt.Sprintf("create %s", op.Uuid)
	case types.OpDelete:
		return fmt.Sprintf("delete %s", op.Uuid)
	case types.OpUpdate:
		old, new := "<nil>", "<nil>"
		if op.OldValue != nil {
			old = *op.OldValue
		}
		if op.NewValue != nil {
			new = *op.NewValue
		}
		return fmt.Sprintf("update %s %s: %s -> %s", op.Uuid, op.Property, old, new)
	case types.OpUndoPoint:
		return "undo_point"
	default:
		return "unknown"
	}
}
