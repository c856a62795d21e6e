package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"editortrace/internal/config"
	"editortrace/internal/core/parse"
	"editortrace/internal/data/ingest"
	"editortrace/internal/data/store"
	"editortrace/internal/data/supplier"
	"editortrace/internal/presentation/formatter"
	"editortrace/internal/util"
)

var (
	configPath   string
	databasePath string
	debug        bool
	outputFormat string
	forceReparse bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "editortrace <editor-log>",
		Short: "Unity editor log analyzer",
		Long: `editortrace parses Unity editor logs into a local database and
reconstructs what the editor spent its time on: asset imports, pipeline
refreshes, domain reloads, worker activity and build operations.

Examples:
  editortrace ~/.config/unity3d/Editor.log        # Parse and summarize
  editortrace Editor.log --output json            # Machine-readable summary
  editortrace timeline                            # Timeline of the last parsed log
  editortrace tail Editor.log                     # Follow a live editor session`,
		Args:              cobra.ExactArgs(1),
		RunE:              runIngest,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "",
		"Database file path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug logging to stderr")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "summary",
		"Output format (summary, json)")
	rootCmd.Flags().BoolVarP(&forceReparse, "force", "f", false,
		"Reparse even if this file was already ingested")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(expandPath(configPath))
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if databasePath != "" {
		cfg.DatabasePath = expandPath(databasePath)
	}

	logLevel := cfg.LogLevel
	if debug {
		logLevel = "debug"
	}
	logFile := cfg.LogFile
	if logFile != "" {
		logFile = expandPath(logFile)
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	util.InitLogger(logLevel, logFile, debug)

	return os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logPath := expandPath(args[0])

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logID, stats, err := ingestFile(ctx, st, logPath)
	if err != nil {
		if errors.Is(err, ingest.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Interrupted; partial results kept.")
			return nil
		}
		return err
	}

	view := st.View(ctx, logID)
	counts, err := view.Counts()
	if err != nil {
		return err
	}
	header, err := view.Header()
	if err != nil {
		return err
	}
	categories, err := view.CategoryTotals()
	if err != nil {
		return err
	}

	data := formatter.SummaryData{
		LogFile:     logPath,
		Header:      header,
		ParseTimeMs: float64(stats.ParseTime.Milliseconds()),
		Counts:      counts,
		Categories:  categories,
	}
	if outputFormat == "json" {
		return formatter.NewJSONFormatter(os.Stdout).Format(data)
	}
	return formatter.NewSummaryFormatter(os.Stdout).Format(data)
}

// ingestFile parses logPath into the store, reusing a previous ingestion
// of the identical file unless forced.
func ingestFile(ctx context.Context, st *store.Store, logPath string) (int64, ingest.Stats, error) {
	identity, err := fileIdentity(logPath)
	if err != nil {
		return 0, ingest.Stats{}, err
	}

	if !forceReparse {
		if logID, found, err := st.FindLog(ctx, logPath, identity); err != nil {
			return 0, ingest.Stats{}, err
		} else if found {
			util.LogInfo(fmt.Sprintf("Reusing previous parse of %s", logPath))
			return logID, ingest.Stats{}, nil
		}
	}

	logID, err := st.CreateLog(ctx, logPath, identity)
	if err != nil {
		return 0, ingest.Stats{}, err
	}

	src, err := supplier.NewFileSupplier(logPath, 0)
	if err != nil {
		return 0, ingest.Stats{}, err
	}
	defer src.Close()

	in := ingest.New(st, parse.New(parserConfig()), ingest.Config{
		BatchSize:  cfg.BatchSize,
		StoreLines: cfg.StoreRawLines,
	})
	stats, err := in.Run(ctx, logID, src)
	return logID, stats, err
}

func parserConfig() parse.Config {
	return parse.Config{
		RefreshContextLines: cfg.RefreshContextLines,
		HeaderScanLines:     100,
		WorkerIdleGap:       time.Duration(cfg.WorkerIdleGapSeconds) * time.Second,
		WorkerLineGap:       cfg.WorkerLineGap,
	}
}

func fileIdentity(logPath string) (store.Identity, error) {
	info, err := util.GetFileInfo(logPath)
	if err != nil {
		return store.Identity{}, fmt.Errorf("inspect %s: %w", logPath, err)
	}
	fingerprint, err := util.CalculateFileFingerprint(logPath)
	if err != nil {
		return store.Identity{}, fmt.Errorf("fingerprint %s: %w", logPath, err)
	}
	return store.Identity{
		Size:        info.Size,
		ModTime:     info.ModTime,
		Inode:       info.Inode,
		Fingerprint: fingerprint,
	}, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
