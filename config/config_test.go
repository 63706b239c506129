package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	if err := RegisterFlags(cmd); err != nil {
		t.Fatalf("RegisterFlags() error = %v", err)
	}
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newTestCmd(t)
	if err := cmd.Flags().Set("archive", "mail.tar.gz"); err != nil {
		t.Fatalf("set archive: %v", err)
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ArchivePath != "mail.tar.gz" {
		t.Errorf("ArchivePath = %q", cfg.ArchivePath)
	}
	if cfg.OutputPath != DefaultOutputPath {
		t.Errorf("OutputPath = %q, want %q", cfg.OutputPath, DefaultOutputPath)
	}
	if cfg.Delimiter != '|' || cfg.Escape != '\\' {
		t.Errorf("dialect = %q/%q, want |/\\", cfg.Delimiter, cfg.Escape)
	}
	if cfg.DefaultCharset != "utf-8" {
		t.Errorf("DefaultCharset = %q", cfg.DefaultCharset)
	}
	want := []string{"date", "from", "subject"}
	if len(cfg.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", cfg.Fields, want)
	}
	for i, name := range want {
		if cfg.Fields[i] != name {
			t.Errorf("Fields[%d] = %q, want %q", i, cfg.Fields[i], name)
		}
	}
}

func TestLoadConfigNormalizesLogLevel(t *testing.T) {
	cmd := newTestCmd(t)
	if err := cmd.Flags().Set("archive", "mail.tar.gz"); err != nil {
		t.Fatalf("set archive: %v", err)
	}
	if err := cmd.Flags().Set("log-level", "WARNING"); err != nil {
		t.Fatalf("set log-level: %v", err)
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	cmd := newTestCmd(t)
	if err := cmd.Flags().Set("archive", "mail.tar.gz"); err != nil {
		t.Fatalf("set archive: %v", err)
	}
	if err := cmd.Flags().Set("log-level", "loud"); err != nil {
		t.Fatalf("set log-level: %v", err)
	}

	if _, err := LoadConfig(cmd); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestLoadConfigRejectsMixedFilters(t *testing.T) {
	cmd := newTestCmd(t)
	if err := cmd.Flags().Set("archive", "mail.tar.gz"); err != nil {
		t.Fatalf("set archive: %v", err)
	}
	if err := cmd.Flags().Set("include-header", "a"); err != nil {
		t.Fatalf("set include-header: %v", err)
	}
	if err := cmd.Flags().Set("exclude-header", "b"); err != nil {
		t.Fatalf("set exclude-header: %v", err)
	}

	if _, err := LoadConfig(cmd); err == nil {
		t.Error("expected error for mixed include/exclude filters")
	}
}

func TestValidateConfigDialect(t *testing.T) {
	cfg := Config{
		ArchivePath:    "a.tar.gz",
		OutputPath:     "out.csv",
		Fields:         DefaultFields(),
		Delimiter:      '|',
		Escape:         '|',
		DefaultCharset: DefaultCharset,
		LogLevel:       "info",
	}
	if err := validateConfig(cfg); err == nil {
		t.Error("expected error when delimiter equals escape")
	}
}
