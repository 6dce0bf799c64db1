package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and maintain the user-level filepick configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigMigrateCmd())
	cmd.AddCommand(newConfigBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default user config, backing up any existing one first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if config.UserConfigExists() {
				backupPath, err := config.BackupUserConfig()
				if err != nil {
					return fmt.Errorf("backup existing user config: %w", err)
				}
				fmt.Fprintf(out, "existing user config backed up to %s\n", backupPath)
			}
			if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			path := config.GetUserConfigPath()
			if err := config.NewConfig().WriteYAML(path); err != nil {
				return fmt.Errorf("write user config: %w", err)
			}
			fmt.Fprintf(out, "wrote default user config to %s\n", path)
			return nil
		},
	}
}

func newConfigMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Fill in config fields introduced by a newer filepick release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.LoadUserConfig()
			if err != nil {
				return fmt.Errorf("load user config: %w", err)
			}
			if cfg == nil {
				fmt.Fprintln(out, "no user config found; run `filepick config init` first")
				return nil
			}
			added := cfg.MergeNewDefaults()
			if len(added) == 0 {
				fmt.Fprintln(out, "user config already up to date")
				return nil
			}
			if _, err := config.BackupUserConfig(); err != nil {
				return fmt.Errorf("backup user config before migrate: %w", err)
			}
			if err := cfg.WriteYAML(config.GetUserConfigPath()); err != nil {
				return fmt.Errorf("write migrated config: %w", err)
			}
			fmt.Fprintf(out, "filled in %d field(s): %v\n", len(added), added)
			return nil
		},
	}
}

func newConfigBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List user config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return fmt.Errorf("list user config backups: %w", err)
			}
			if len(backups) == 0 {
				fmt.Fprintln(out, "no backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(out, b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup-path]",
		Short: "Restore the user config from a backup file (defaults to the most recent one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			backupPath := ""
			if len(args) > 0 {
				backupPath = args[0]
			} else {
				latest, err := config.LatestUserConfigBackup()
				if err != nil {
					return fmt.Errorf("find latest user config backup: %w", err)
				}
				if latest == "" {
					return fmt.Errorf("no user config backups found")
				}
				backupPath = latest
			}
			if err := config.RestoreUserConfig(backupPath); err != nil {
				return fmt.Errorf("restore user config: %w", err)
			}
			fmt.Fprintf(out, "user config restored from %s\n", backupPath)
			return nil
		},
	}
}
