// Package output serializes field records into escaped, delimited text.
//
// The dialect is fixed: a header row, one row per record, a single-rune
// delimiter, backslash-style escaping and no quoting. Delimiter and
// escape occurrences inside a value are prefixed with the escape rune;
// nothing else is rewritten.
package output

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bepetersn/rp-email-parsing/model"
	"github.com/bepetersn/rp-email-parsing/runner"
	"github.com/bepetersn/rp-email-parsing/stats"
)

type Options struct {
	// Path of the destination file, created or truncated on open.
	Path string
	// Fields is the output column order. Record keys outside this list
	// are ignored; fields absent from a record are written empty.
	Fields    []string
	Delimiter rune
	Escape    rune
}

// Writer writes records to a delimited text file.
type Writer struct {
	opts Options
	file *os.File
	buf  *bufio.Writer
}

func NewWriter(opts Options) (*Writer, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	if len(opts.Fields) == 0 {
		return nil, fmt.Errorf("output field list is empty")
	}
	if opts.Delimiter == opts.Escape {
		return nil, fmt.Errorf("delimiter and escape must differ")
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &Writer{
		opts: opts,
		file: file,
		buf:  bufio.NewWriter(file),
	}, nil
}

// WriteHeader writes the column-name row.
func (w *Writer) WriteHeader() error {
	rec := make(model.Record, len(w.opts.Fields))
	for _, name := range w.opts.Fields {
		rec[name] = name
	}
	return w.WriteRecord(rec)
}

// WriteRecord writes one row, fields in configured order.
func (w *Writer) WriteRecord(rec model.Record) error {
	for i, name := range w.opts.Fields {
		if i > 0 {
			if _, err := w.buf.WriteRune(w.opts.Delimiter); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
		if _, err := w.buf.WriteString(w.escape(rec[name])); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (w *Writer) escape(value string) string {
	if !strings.ContainsRune(value, w.opts.Delimiter) && !strings.ContainsRune(value, w.opts.Escape) {
		return value
	}

	var sb strings.Builder
	for _, r := range value {
		if r == w.opts.Delimiter || r == w.opts.Escape {
			sb.WriteRune(w.opts.Escape)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Close flushes and closes the destination. Safe to call after a failed
// row write; the file is finalized either way.
func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	return nil
}

// Flush flushes buffered rows without closing the underlying file.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// Consumer drains the runner's row channel into a Writer, preserving
// the order rows were produced in.
type Consumer struct {
	opts   Options
	runner *runner.Runner
	rows   <-chan model.Row
	logger *slog.Logger
}

func NewConsumer(opts Options, r *runner.Runner, logger *slog.Logger) (*Consumer, error) {
	consumer := &Consumer{
		opts:   opts,
		runner: r,
		rows:   r.Rows(),
		logger: logger,
	}
	r.AddStage("output", consumer.run)
	return consumer, nil
}

func (c *Consumer) run(ctx context.Context) error {
	writer, err := NewWriter(c.opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && c.logger != nil {
			c.logger.Error("finalize output", "path", c.opts.Path, "err", closeErr)
		}
	}()

	if err := writer.WriteHeader(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-c.rows:
			if !ok {
				return writer.Flush()
			}
			if err := writer.WriteRecord(row.Record); err != nil {
				err = fmt.Errorf("row %d (%s): %w", row.Index, row.Name, err)
				c.runner.EmitEvent(stats.Event{Stage: stats.StageOutput, Type: stats.EventTypeError, Name: row.Name, Err: err})
				return err
			}
			c.runner.EmitEvent(stats.Event{Stage: stats.StageOutput, Type: stats.EventTypeWritten, Name: row.Name})
		}
	}
}
