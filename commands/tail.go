package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"editortrace/internal/core/parse"
	"editortrace/internal/data/ingest"
	"editortrace/internal/data/store"
	"editortrace/internal/data/supplier"
	"editortrace/internal/util"
)

var tailCmd = &cobra.Command{
	Use:   "tail <editor-log>",
	Short: "Follow a live editor log",
	Long: `tail watches an editor log as the editor writes it, parsing new
lines as they appear. A truncated file (the editor restarting) starts a
fresh log entry. Stop with Ctrl-C; everything parsed so far is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	logPath := expandPath(args[0])

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := supplier.NewTailSupplier(ctx, logPath)
	if err != nil {
		return err
	}
	defer src.Close()

	for {
		identity, err := fileIdentity(logPath)
		if err != nil {
			return err
		}
		logID, err := st.CreateLog(ctx, logPath, identity)
		if err != nil {
			return err
		}
		util.LogInfo(fmt.Sprintf("Following %s as log %d", logPath, logID))

		in := ingest.New(st, parse.New(parserConfig()), ingest.Config{
			BatchSize:  cfg.BatchSize,
			StoreLines: cfg.StoreRawLines,
		})
		stats, err := in.Run(ctx, logID, src)

		switch {
		case errors.Is(err, ingest.ErrCancelled):
			// Record what we have; the session simply stopped being
			// watched. The ctx is already cancelled, so the final write
			// gets its own.
			header := in.Parser().State().Header
			if ferr := st.FinishLog(context.WithoutCancel(ctx), logID, header, float64(stats.ParseTime.Milliseconds())); ferr != nil {
				return ferr
			}
			fmt.Fprintf(os.Stderr, "Stopped after %d lines.\n", stats.Lines)
			return nil
		case errors.Is(err, supplier.ErrTruncated):
			header := in.Parser().State().Header
			if ferr := st.FinishLog(ctx, logID, header, float64(stats.ParseTime.Milliseconds())); ferr != nil {
				return ferr
			}
			util.LogInfo("Log restarted; beginning a new entry")
		case err != nil:
			return err
		default:
			// A tailed file has no EOF; a nil return means the supplier was
			// closed underneath us.
			return nil
		}
	}
}
