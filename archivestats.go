package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/bepetersn/rp-email-parsing/archive"
	"github.com/bepetersn/rp-email-parsing/config"
	"github.com/bepetersn/rp-email-parsing/model"
	"github.com/bepetersn/rp-email-parsing/rfc2047"
	"github.com/bepetersn/rp-email-parsing/scan"
	"github.com/bepetersn/rp-email-parsing/stats"
)

func newArchiveStatsCmd() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "archive-stats [archive file]",
		Short: "Analyse the archive and show sender/subject statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveStats(args[0], topN)
		},
	}

	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	return cmd
}

func runArchiveStats(archivePath string, topN int) error {
	fmt.Println("Analyzing archive:", archivePath)

	fieldsToTrack := []string{"from", "subject", "date"}
	scanner := scan.New(scan.Options{Fields: fieldsToTrack})
	decoder := &rfc2047.Decoder{DefaultCharset: config.DefaultCharset}

	counter := map[string]map[string]int{
		"from":    make(map[string]int),
		"subject": make(map[string]int),
	}

	var (
		messageCount int
		undated      int
		earliest     time.Time
		latest       time.Time
	)

	err := archive.Read(archivePath, func(m *model.Message) error {
		messageCount++
		record := scanner.Scan(m.Raw)

		for _, name := range []string{"from", "subject"} {
			raw, ok := record[name]
			if !ok {
				continue
			}
			value, err := decoder.Decode(raw)
			if err != nil {
				// Stats are informational; count the raw value instead
				// of aborting the whole analysis.
				value = raw
			}
			counter[name][value]++
		}

		date, ok := record["date"]
		if !ok {
			undated++
			return nil
		}
		t, err := dateparse.ParseAny(strings.TrimSpace(date))
		if err != nil {
			undated++
			return nil
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
		if latest.IsZero() || t.After(latest) {
			latest = t
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error reading archive: %w", err)
	}

	fmt.Printf("\nProcessed %d messages\n\n", messageCount)

	fmt.Printf("Top %d from:\n", topN)
	stats.PrettyPrintTop(counter["from"], topN)
	fmt.Println()

	fmt.Printf("Top %d subject:\n", topN)
	stats.PrettyPrintTop(counter["subject"], topN)
	fmt.Println()

	if !earliest.IsZero() {
		fmt.Printf("Date range: %s to %s\n", earliest.Format(time.RFC1123Z), latest.Format(time.RFC1123Z))
	}
	if undated > 0 {
		fmt.Printf("Messages without a parseable date: %d\n", undated)
	}

	return nil
}
