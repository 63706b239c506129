package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/bepetersn/rp-email-parsing/archive"
	"github.com/bepetersn/rp-email-parsing/config"
	"github.com/bepetersn/rp-email-parsing/output"
	"github.com/bepetersn/rp-email-parsing/progress"
	"github.com/bepetersn/rp-email-parsing/runner"
	"github.com/bepetersn/rp-email-parsing/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rp-email-parsing",
		Short: "Extract header fields from an email archive into a delimited file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting extraction", "archive", cfg.ArchivePath, "output", cfg.OutputPath)

			return run(cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(newArchiveStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	// Counting up front also validates the archive before the output
	// file is created.
	total, err := archive.CountEntries(cfg.ArchivePath)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	// Exactly one consumer drains the event stream: the progress
	// reporter at info level, the plain stats reporter otherwise.
	bar := progress.New(total, cfg.LogLevel)
	if bar.Enabled() {
		progress.NewProgressReporter(r, bar, logger)
	} else {
		stats.NewReporter(r, logger)
	}

	if _, err := archive.NewProducer(archive.Options{Path: cfg.ArchivePath}, r, logger); err != nil {
		return fmt.Errorf("archive.NewProducer: %w", err)
	}

	writerOpts := output.Options{
		Path:      cfg.OutputPath,
		Fields:    cfg.Fields,
		Delimiter: cfg.Delimiter,
		Escape:    cfg.Escape,
	}
	if _, err := output.NewConsumer(writerOpts, r, logger); err != nil {
		return fmt.Errorf("output.NewConsumer: %w", err)
	}

	err = r.Start()
	bar.Stop()
	if err != nil {
		return err
	}

	absPath, absErr := filepath.Abs(cfg.OutputPath)
	if absErr != nil {
		absPath = cfg.OutputPath
	}
	logger.Info("output written", "path", absPath)
	fmt.Println(absPath)

	if cfg.OpenResult {
		if err := openResult(absPath); err != nil {
			// Best effort only, never a pipeline failure.
			logger.Warn("could not open result", "path", absPath, "err", err)
		}
	}

	return nil
}

// openResult hands the output file to the platform's default viewer.
func openResult(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("rp-email-parsing-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
