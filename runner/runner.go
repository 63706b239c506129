package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bepetersn/rp-email-parsing/config"
	"github.com/bepetersn/rp-email-parsing/filter"
	"github.com/bepetersn/rp-email-parsing/model"
	"github.com/bepetersn/rp-email-parsing/rfc2047"
	"github.com/bepetersn/rp-email-parsing/scan"
	"github.com/bepetersn/rp-email-parsing/stats"
)

type StageFunc func(context.Context) error

// Runner wires the pipeline stages together: archive entries flow in on
// the entries channel, the extract stage scans and decodes them, and
// finished rows flow out to the output stage. Every stage is a single
// goroutine over FIFO channels, so rows keep archive enumeration order.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	entries chan model.Envelope
	rows    chan model.Row
	events  chan stats.Event

	filter  *filter.Filter
	scanner *scan.Scanner
	decoder *rfc2047.Decoder

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeEntriesOnce sync.Once
	closeRowsOnce    sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	entryFilter, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("entry filter: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(chan model.Envelope, 32),
		rows:    make(chan model.Row, 32),
		events:  make(chan stats.Event, 128),
		filter:  entryFilter,
		scanner: scan.New(scan.Options{Fields: cfg.Fields}),
		decoder: &rfc2047.Decoder{DefaultCharset: cfg.DefaultCharset},
	}

	r.AddStage("extract", r.extract)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) EntriesWriter() chan<- model.Envelope {
	return r.entries
}

func (r *Runner) CloseEntries() {
	r.closeEntriesOnce.Do(func() {
		close(r.entries)
	})
}

func (r *Runner) Rows() <-chan model.Row {
	return r.rows
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.err
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

// extract is the middle stage: filter, scan the header section, decode
// every captured field, and hand the row on. A decode failure is fatal
// for the run; the offending entry name and raw body travel with the
// error so the failure is diagnosable.
func (r *Runner) extract(ctx context.Context) error {
	defer r.closeRows()
	for idx := 0; ; idx++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.entries:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageArchive, Type: stats.EventTypeError, Err: envelope.Err})
				r.fail(fmt.Errorf("archive envelope: %w", envelope.Err))
				continue
			}

			msg := envelope.Message
			r.EmitEvent(stats.Event{Stage: stats.StageArchive, Type: stats.EventTypeScanned, Name: msg.Name})

			if r.filter.Active() {
				header, body := filter.SplitRawMessage(msg.Raw)
				if !r.filter.Allows(header, body) {
					r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeFiltered, Name: msg.Name})
					continue
				}
			}

			record := r.scanner.Scan(msg.Raw)
			for name, rawBody := range record {
				decoded, err := r.decoder.Decode(rawBody)
				if err != nil {
					err = fmt.Errorf("entry %s field %s: %w", msg.Name, name, err)
					r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeError, Name: msg.Name, Err: err})
					r.fail(err)
					return err
				}
				record[name] = decoded
			}
			r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeExtracted, Name: msg.Name})

			row := model.Row{Index: idx, Name: msg.Name, Record: record}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.rows <- row:
			}
		}
	}
}

func (r *Runner) closeRows() {
	r.closeRowsOnce.Do(func() {
		close(r.rows)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
