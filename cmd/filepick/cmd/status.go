package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/coordinator"
	"github.com/fastfind/filepick/internal/logging"
)

func newStatusCmd() *cobra.Command {
	var path string
	var refreshGit bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report scan progress and git status for the indexed tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), path, refreshGit)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "project root (defaults to the nearest detected root)")
	cmd.Flags().BoolVar(&refreshGit, "refresh-git", false, "force an immediate git status pass before reporting")
	return cmd
}

func runStatus(ctx context.Context, path string, refreshGit bool) error {
	base, err := resolveBase(path)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}

	cfg, err := config.Load(base)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c := coordinator.Get(cfg, nil)
	if err := c.InitDB(dataDirFor(base), true); err != nil {
		return err
	}
	if err := c.InitFilePicker(ctx, base); err != nil {
		return err
	}

	progress, err := c.GetScanProgress()
	if err != nil {
		return err
	}
	fmt.Printf("scanning: %v\nfiles indexed: %d\n", progress.IsScanning, progress.ScannedFilesCount)

	if refreshGit {
		n, err := c.RefreshGitStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("git status refreshed for %d entries\n", n)
	}

	if usage, err := logging.DiskUsage(logging.DefaultLogPath()); err == nil && usage > 0 {
		fmt.Printf("log disk usage: %d bytes\n", usage)
	}
	return nil
}
