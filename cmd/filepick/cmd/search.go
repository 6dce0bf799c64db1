package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/coordinator"
)

func newSearchCmd() *cobra.Command {
	var maxResults, maxThreads int
	var currentFile, path string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search the indexed tree and print ranked matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args[0], path, maxResults, maxThreads, currentFile)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "maximum results to return (0 uses the configured default)")
	cmd.Flags().IntVar(&maxThreads, "max-threads", 0, "worker threads for scoring (0 uses the configured default)")
	cmd.Flags().StringVar(&currentFile, "current-file", "", "absolute path of the caller's current buffer, for ranking penalty")
	cmd.Flags().StringVar(&path, "path", "", "project root (defaults to the nearest detected root)")
	return cmd
}

func runSearch(ctx context.Context, query, path string, maxResults, maxThreads int, currentFile string) error {
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

	if maxResults == 0 {
		maxResults = cfg.Search.DefaultMaxResults
	}
	res, err := c.FuzzySearchFiles(ctx, query, maxResults, maxThreads, currentFile)
	if err != nil {
		return err
	}

	styles := stylesFor(os.Stdout.Fd())
	for i, item := range res.Items {
		marker := " "
		if item.IsCurrentFile {
			marker = styles.Current.Render("*")
		}
		line := fmt.Sprintf("%-60s", item.RelativePath)
		if i == 0 {
			line = styles.Match.Render(line)
		}
		fmt.Printf("%s %s %s\n", marker, line, styles.Dim.Render(fmt.Sprintf("score=%d", res.Scores[i].Total)))
	}
	fmt.Println(styles.Dim.Render(fmt.Sprintf("%d/%d matched", res.TotalMatched, res.TotalFiles)))
	return nil
}
