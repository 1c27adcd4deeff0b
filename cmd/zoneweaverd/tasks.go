package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/zoneweaver-core/pkg/apiclient"
)

var apiAddr string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and control tasks via a running zoneweaverd's admin API",
}

func init() {
	tasksCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:8080", "Admin API address")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		zoneName, _ := cmd.Flags().GetString("zone")
		operation, _ := cmd.Flags().GetString("operation")
		limit, _ := cmd.Flags().GetInt("limit")

		c := apiclient.NewClient(apiAddr)
		tasks, err := c.ListTasks(context.Background(), apiclient.ListTasksOptions{
			Status:    status,
			ZoneName:  zoneName,
			Operation: operation,
			Limit:     limit,
		})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s\t%-20s\t%-10s\t%s\t%d%%\n", t.ID, t.Operation, t.Status, t.ZoneName, t.ProgressPercent)
		}
		return nil
	},
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiclient.NewClient(apiAddr)
		task, err := c.GetTask(context.Background(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiclient.NewClient(apiAddr)
		if err := c.CancelTask(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Task %s cancelled\n", args[0])
		return nil
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <operation>",
	Short: "Submit a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zoneName, _ := cmd.Flags().GetString("zone")
		priority, _ := cmd.Flags().GetInt("priority")
		metadataStr, _ := cmd.Flags().GetString("metadata")

		var metadata json.RawMessage
		if metadataStr != "" {
			metadata = json.RawMessage(metadataStr)
		}

		c := apiclient.NewClient(apiAddr)
		task, err := c.CreateTask(context.Background(), args[0], zoneName, priority, metadata)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %s\n", task.ID)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().String("status", "", "Filter by status")
	tasksListCmd.Flags().String("zone", "", "Filter by zone name")
	tasksListCmd.Flags().String("operation", "", "Filter by operation")
	tasksListCmd.Flags().Int("limit", 0, "Maximum tasks to return")

	tasksCreateCmd.Flags().String("zone", "", "Target zone name")
	tasksCreateCmd.Flags().Int("priority", 50, "Task priority (1-100)")
	tasksCreateCmd.Flags().String("metadata", "", "JSON-encoded operation metadata")
}
