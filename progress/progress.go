package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/bepetersn/rp-email-parsing/stats"
)

// Bar manages a progress bar for tracking entry processing.
type Bar struct {
	pb             *pterm.ProgressbarPrinter
	total          int
	currentScanned int
	mu             sync.Mutex
	enabled        bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info"

	bar := &Bar{
		total:   total,
		enabled: enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Extracting headers").
			Start()

		bar.pb = pb

		pterm.Info.Printf("Messages in archive: %d\n", total)
		pterm.Println()
	}

	return bar
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool {
	return b.enabled
}

// Update increments the progress bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.currentScanned++
		b.pb.Increment()

		if evt.Name != "" {
			displayName := evt.Name
			if len(displayName) > 40 {
				displayName = displayName[:37] + "..."
			}
			b.pb.UpdateTitle("Extracting: " + displayName)
		}
	case stats.EventTypeWritten, stats.EventTypeExtracted, stats.EventTypeFiltered:
		// Counted in the final summary, no per-entry output.
	case stats.EventTypeError:
		// Show error messages above the progress bar.
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Extraction complete!")
}

// ProgressReporter wraps the stats Collector with progress bar functionality.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewProgressReporter creates a new progress reporter. It subscribes a
// single consumer that feeds both the bar and the collector, so event
// counts stay exact.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress", reporter.consume)
	}

	return reporter
}

// consume drives the bar from the event stream and prints the final
// summary once it closes.
func (pr *ProgressReporter) consume(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				pr.printSummary()
				return nil
			}
			pr.bar.Update(evt)
			pr.collector.Apply(evt)
		}
	}
}

// printSummary prints final statistics after the progress bar stops.
func (pr *ProgressReporter) printSummary() {
	summary := pr.collector.Snapshot()
	duration := time.Since(pr.started)

	if pr.logger != nil {
		pterm.Println()
		pterm.DefaultSection.Println("Summary Statistics")
		pterm.Info.Printf("Duration: %v\n", duration)
		pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
		pterm.Info.Printf("Extracted: %d\n", summary.Extracted)
		pterm.Info.Printf("Written: %d\n", summary.Written)
		pterm.Info.Printf("Filtered (skipped): %d\n", summary.Filtered)
		pterm.Info.Printf("Errors: %d\n", summary.Errors)
		if summary.LastError != nil {
			pterm.Error.Printf("Last error: %v\n", summary.LastError)
		}
	}
}
