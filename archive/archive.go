package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bepetersn/rp-email-parsing/model"
	"github.com/bepetersn/rp-email-parsing/runner"
)

var ErrEmptyPath = errors.New("archive path is empty")

type Options struct {
	Path string
}

// Reader streams the regular-file entries of a gzip-compressed tar
// archive, in storage order. Directories and link entries are skipped.
type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func NewReader(opts Options, logger *slog.Logger) (Reader, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &fileReader{path: path, logger: logger}, nil
}

type fileReader struct {
	path   string
	logger *slog.Logger
}

func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	tr, closeArchive, err := open(f.path)
	if err != nil {
		return err
	}
	defer closeArchive()

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("archive %s entry %d: %w", f.path, idx, err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("archive %s read %s: %w", f.path, hdr.Name, err)
		}

		env := model.Envelope{Message: model.Message{
			Name: hdr.Name,
			Size: int64(len(raw)),
			Raw:  raw,
		}}
		if f.logger != nil {
			f.logger.Debug("archive entry", "name", hdr.Name, "size", env.Message.Size)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- env:
		}
	}
}

// Read opens an archive and iterates through its regular-file entries,
// calling the provided callback for each message.
func Read(path string, callback func(m *model.Message) error) error {
	tr, closeArchive, err := open(path)
	if err != nil {
		return err
	}
	defer closeArchive()

	for {
		hdr, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("archive %s: %w", path, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("archive %s read %s: %w", path, hdr.Name, err)
		}

		msg := &model.Message{Name: hdr.Name, Size: int64(len(raw)), Raw: raw}
		if err := callback(msg); err != nil {
			return err
		}
	}
}

// CountEntries counts the regular-file entries in an archive. Used to
// size the progress bar before the real pass starts.
func CountEntries(path string) (int, error) {
	tr, closeArchive, err := open(path)
	if err != nil {
		return 0, err
	}
	defer closeArchive()

	count := 0
	for {
		hdr, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, fmt.Errorf("archive %s: %w", path, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			count++
		}
	}
}

func open(path string) (*tar.Reader, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("archive %s: not a gzip stream: %w", path, err)
	}

	closeAll := func() {
		gz.Close()
		file.Close()
	}
	return tar.NewReader(gz), closeAll, nil
}

// Producer feeds archive entries into the runner's pipeline.
type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(opts Options, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	reader, err := NewReader(opts, logger)
	if err != nil {
		return nil, err
	}
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("archive", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseEntries()
	return p.reader.Stream(ctx, p.runner.EntriesWriter())
}
