package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/coordinator"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Index a directory tree and report progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runScan(cmd.Context(), path)
		},
	}
	return cmd
}

func runScan(ctx context.Context, path string) error {
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

	done := make(chan error, 1)
	go func() { done <- c.InitFilePicker(ctx, base) }()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		renderTTYProgress(c, done)
	} else {
		renderPlainProgress(c, done)
	}
	return <-done
}

func renderTTYProgress(c *coordinator.Coordinator, done chan error) {
	styles := stylesFor(os.Stdout.Fd())
	bar := progress.New(progress.WithDefaultGradient())
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Print("\r" + bar.ViewAs(1) + "\n")
			if err != nil {
				fmt.Println(styles.Error.Render("scan failed:"), err)
			} else {
				p, _ := c.GetScanProgress()
				fmt.Println(styles.Success.Render(fmt.Sprintf("indexed %d files", p.ScannedFilesCount)))
			}
			done <- err
			return
		case <-ticker.C:
			p, progErr := c.GetScanProgress()
			if progErr != nil {
				continue
			}
			frac := 0.0
			if p.IsScanning {
				frac = 0.5
			} else {
				frac = 1.0
			}
			fmt.Print("\r" + bar.ViewAs(frac))
		}
	}
}

func renderPlainProgress(c *coordinator.Coordinator, done chan error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			p, _ := c.GetScanProgress()
			fmt.Printf("scan complete: %d files indexed\n", p.ScannedFilesCount)
			done <- err
			return
		case <-ticker.C:
			p, progErr := c.GetScanProgress()
			if progErr != nil {
				continue
			}
			fmt.Printf("scanning... %d files so far\n", p.ScannedFilesCount)
		}
	}
}
