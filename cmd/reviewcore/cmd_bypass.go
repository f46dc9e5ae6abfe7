package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reviewcore/internal/bypass"
)

var (
	bypassAuditPath string
	bypassTaskID    string
	bypassReason    string
	bypassBy        string
)

var bypassCmd = &cobra.Command{
	Use:   "bypass",
	Short: "Record and inspect emergency bypasses of a failed review",
}

var bypassCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record an emergency bypass for a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveAuditPath(cmd)
		record, err := bypass.Create(path, bypassTaskID, bypassReason, bypassBy, nil)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(record)
	},
}

var bypassListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded bypass",
	RunE: func(cmd *cobra.Command, args []string) error {
		trail, err := bypass.LoadAuditTrail(resolveAuditPath(cmd))
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(trail)
	},
}

var bypassCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a task has already been bypassed",
	RunE: func(cmd *cobra.Command, args []string) error {
		bypassed, err := bypass.IsBypassed(resolveAuditPath(cmd), bypassTaskID)
		if err != nil {
			return err
		}
		fmt.Println(bypassed)
		return nil
	},
}

// resolveAuditPath prefers an explicitly passed --audit-path flag, then the
// loaded config's bypass.audit_log_path, then the flag's built-in default.
func resolveAuditPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("audit-path") {
		return bypassAuditPath
	}
	if appConfig != nil && appConfig.Bypass.AuditLogPath != "" {
		return appConfig.Bypass.AuditLogPath
	}
	return bypassAuditPath
}

func init() {
	for _, c := range []*cobra.Command{bypassCreateCmd, bypassListCmd, bypassCheckCmd} {
		c.Flags().StringVar(&bypassAuditPath, "audit-path", "bypass-audit.json", "Path to the bypass audit trail JSON file")
	}
	bypassCreateCmd.Flags().StringVar(&bypassTaskID, "task-id", "", "Review task identifier")
	bypassCreateCmd.Flags().StringVar(&bypassReason, "reason", "", "Reason for the bypass (required)")
	bypassCreateCmd.Flags().StringVar(&bypassBy, "by", "", "Who authorized the bypass")
	bypassCreateCmd.MarkFlagRequired("task-id")
	bypassCreateCmd.MarkFlagRequired("reason")

	bypassCheckCmd.Flags().StringVar(&bypassTaskID, "task-id", "", "Review task identifier")
	bypassCheckCmd.MarkFlagRequired("task-id")

	bypassCmd.AddCommand(bypassCreateCmd, bypassListCmd, bypassCheckCmd)
}
