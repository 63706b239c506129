package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Defaults for the extraction pipeline. They become part of the Config so
// that multiple pipelines (e.g. under test) can run with different settings
// without touching process-wide state.
const (
	DefaultOutputPath = "output.csv"
	DefaultCharset    = "utf-8"
	DefaultDelimiter  = '|'
	DefaultEscape     = '\\'
)

// DefaultFields is the fixed output column order: date, from, subject.
func DefaultFields() []string {
	return []string{"date", "from", "subject"}
}

// Config captures all command-line options required to run the extractor.
type Config struct {
	ArchivePath    string
	OutputPath     string
	OpenResult     bool
	Fields         []string
	Delimiter      rune
	Escape         rune
	DefaultCharset string
	LogLevel       string
	LogDir         string
	IncludeHeader  []string
	IncludeBody    []string
	ExcludeHeader  []string
	ExcludeBody    []string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("archive", "", "Path to the .tar.gz archive of raw email files")
	flags.String("output", DefaultOutputPath, "Path of the delimited output file")
	flags.Bool("open", false, "Open the output file with the system viewer after writing (best effort)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (logs to stdout only if empty)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return cmd.MarkFlagRequired("archive")
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	archivePath, err := flags.GetString("archive")
	if err != nil {
		return Config{}, err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	openResult, err := flags.GetBool("open")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	includeHeader, err := flags.GetStringArray("include-header")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return Config{}, err
	}
	excludeHeader, err := flags.GetStringArray("exclude-header")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return Config{}, err
	}

	if outputPath == "" {
		outputPath = DefaultOutputPath
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		ArchivePath:    archivePath,
		OutputPath:     outputPath,
		OpenResult:     openResult,
		Fields:         DefaultFields(),
		Delimiter:      DefaultDelimiter,
		Escape:         DefaultEscape,
		DefaultCharset: DefaultCharset,
		LogLevel:       logLevel,
		LogDir:         logDir,
		IncludeHeader:  includeHeader,
		IncludeBody:    includeBody,
		ExcludeHeader:  excludeHeader,
		ExcludeBody:    excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.ArchivePath == "" {
		return fmt.Errorf("--archive is required")
	}
	if len(cfg.Fields) == 0 {
		return fmt.Errorf("output field list is empty")
	}
	if cfg.Delimiter == cfg.Escape {
		return fmt.Errorf("delimiter and escape character must differ")
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
