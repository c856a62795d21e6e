package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"editortrace/internal/core/timeline"
	"editortrace/internal/data/store"
	"editortrace/internal/presentation/formatter"
)

var (
	timelineLogID  int64
	timelineOutput string
	timelineWidth  int

	timelineCmd = &cobra.Command{
		Use:   "timeline",
		Short: "Show the reconstructed timeline of a parsed log",
		Long: `timeline assembles the stored records of a parsed log into an
ordered sequence of import chunks, operations and cache-server blocks.
Without --log-id it uses the most recently parsed log.`,
		Args: cobra.NoArgs,
		RunE: runTimeline,
	}
)

func init() {
	timelineCmd.Flags().Int64Var(&timelineLogID, "log-id", 0,
		"Log id to render (0 = most recent)")
	timelineCmd.Flags().StringVarP(&timelineOutput, "output", "o", "table",
		"Output format (table, json, csv)")
	timelineCmd.Flags().IntVar(&timelineWidth, "width", 0,
		"Table width in columns (0 = terminal width)")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	logID := timelineLogID
	if logID == 0 {
		latest, found, err := st.LatestLogID(ctx)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no parsed logs in %s", cfg.DatabasePath)
		}
		logID = latest
	}

	tl, err := timeline.Build(st.View(ctx, logID), timeline.Config{
		ChunkGapLines:     cfg.ChunkGapLines,
		TimestampCoverage: cfg.TimestampCoverage,
	})
	if err != nil {
		return err
	}

	switch timelineOutput {
	case "json":
		return formatter.NewJSONFormatter(os.Stdout).Format(tl)
	case "csv":
		return formatter.NewCSVFormatter(os.Stdout).Format(tl)
	default:
		return formatter.NewTableFormatter(os.Stdout, timelineWidth).Format(tl)
	}
}
