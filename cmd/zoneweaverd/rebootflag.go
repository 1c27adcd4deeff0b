package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/zoneweaver-core/pkg/events"
	"github.com/cuemby/zoneweaver-core/pkg/reboot"
)

var rebootFlagCmd = &cobra.Command{
	Use:   "reboot-flag",
	Short: "Inspect or clear the host's reboot-required flag",
}

func init() {
	rebootFlagCmd.AddCommand(rebootFlagShowCmd)
	rebootFlagCmd.AddCommand(rebootFlagClearCmd)
}

func openRebootStore(cmd *cobra.Command) (*reboot.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	// The CLI reads the flag file directly rather than through the admin
	// API: it shares a filesystem with the daemon and there is no
	// /reboot-flag HTTP endpoint, since nothing outside this host needs it.
	return reboot.New(cfg.RebootFlag.Path, reboot.DefaultUptime, events.NewBroker()), nil
}

var rebootFlagShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print whether a reboot is required and why",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRebootStore(cmd)
		if err != nil {
			return err
		}
		status, err := store.Get()
		if err != nil {
			return err
		}
		if !status.Required {
			fmt.Println("reboot not required")
			return nil
		}
		fmt.Println("reboot required:")
		for _, reason := range status.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		fmt.Printf("set at: %s\n", status.SetAt.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	},
}

var rebootFlagClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the reboot-required flag after an operator has rebooted",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRebootStore(cmd)
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("reboot flag cleared")
		return nil
	},
}
