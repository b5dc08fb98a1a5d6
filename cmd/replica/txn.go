package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskchampion/taskchampion/pkg/types"
)

var txnCmd = &cobra.Command{
	Use:   "txn",
	Short: "Operate on individual tasks within a single transaction",
}

var txnCreateCmd = &cobra.Command{
	Use:   "create <uuid>",
	Short: "Create an empty task",
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

		created, err := txn.CreateTask(id)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("%s already exists\n", id)
			return nil
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		fmt.Printf("created %s\n", id)
		return nil
	},
}

var txnGetCmd = &cobra.Command{
	Use:   "get <uuid>",
	Short: "Print a task's property map",
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

		tm, ok, err := txn.GetTask(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no task %s", id)
		}
		for k, v := range tm {
			fmt.Printf("%s = %s\n", k, v)
		}
		return nil
	},
}

var txnSetCmd = &cobra.Command{
	Use:   "set <uuid> <property> <value>",
	Short: "Set a single property on a task",
	Args:  cobra.ExactArgs(3),
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

		tm, ok, err := txn.GetTask(id)
		if err != nil {
			return err
		}
		if !ok {
			tm = types.TaskMap{}
		}
		tm[args[1]] = args[2]
		if err := txn.SetTask(id, tm); err != nil {
			return err
		}
		return txn.Commit()
	},
}

var txnDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a task",
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

		deleted, err := txn.DeleteTask(id)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("%s does not exist\n", id)
			return nil
		}
		return txn.Commit()
	},
}

var txnListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every task uuid in the replica",
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

		uuids, err := txn.AllTaskUuids()
		if err != nil {
			return err
		}
		for _, id := range uuids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	txnCmd.AddCommand(txnCreateCmd, txnGetCmd, txnSetCmd, txnDeleteCmd, txnListCmd)
}
