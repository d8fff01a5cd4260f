package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change permission settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active permission state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		return printJSON(a.gate.State())
	},
}

var settingsAutonomousCmd = &cobra.Command{
	Use:   "autonomous <on|off>",
	Short: "Switch between autonomous and ask mode",
	Long: `In autonomous mode invocations run without approval. In ask mode
(the default) every invocation waits for an explicit yes. The setting
persists across restarts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		switch args[0] {
		case "on":
			if err := a.gate.EnableAutonomous(); err != nil {
				return err
			}
			fmt.Println("autonomous mode enabled")
		case "off":
			if err := a.gate.DisableAutonomous(); err != nil {
				return err
			}
			fmt.Println("ask mode enabled")
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsAutonomousCmd)
}
