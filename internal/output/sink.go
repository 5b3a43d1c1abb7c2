// Package output writes and reads the compressed record streams produced by
// simulation runs.
//
// A stream is a gzip-compressed text file: a few '#' comment lines naming the
// columns, followed by one whitespace-separated record per line.
package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// DefaultBufferSize is the write buffer in front of the compressor.
const DefaultBufferSize = 64 * 1024

// Options configures a GzipSink.
type Options struct {
	// Level is the gzip compression level (-1 = default, 1..9).
	Level int
	// BufferSize is the size of the write buffer in bytes.
	BufferSize int
}

// DefaultOptions returns the default sink options.
func DefaultOptions() Options {
	return Options{
		Level:      gzip.DefaultCompression,
		BufferSize: DefaultBufferSize,
	}
}

// GzipSink is an append-only line writer backed by a gzip file. Lines reach
// the file in call order; Close flushes everything buffered.
type GzipSink struct {
	path  string
	file  *os.File
	gz    *gzip.Writer
	buf   *bufio.Writer
	lines int
	size  int64
}

// Create opens a new stream at path, truncating any existing file. The
// parent directory is created if needed.
func Create(path string, opts Options) (*GzipSink, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}

	gz, err := gzip.NewWriterLevel(f, opts.Level)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}

	return &GzipSink{
		path: path,
		file: f,
		gz:   gz,
		buf:  bufio.NewWriterSize(gz, opts.BufferSize),
	}, nil
}

// WriteLine appends line and a newline to the stream.
func (s *GzipSink) WriteLine(line string) error {
	if s.buf == nil {
		return fmt.Errorf("write to closed sink %s", s.path)
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	s.lines++
	return nil
}

// Close flushes buffered lines, finishes the gzip stream and closes the
// file. It is safe to call more than once.
func (s *GzipSink) Close() error {
	if s.buf == nil {
		return nil
	}
	defer func() { s.buf = nil }()

	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flushing output: %w", err)
	}
	if err := s.gz.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("syncing output: %w", err)
	}
	if info, err := s.file.Stat(); err == nil {
		s.size = info.Size()
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// Path returns the file the sink writes to.
func (s *GzipSink) Path() string { return s.path }

// Lines returns the number of lines written, header included.
func (s *GzipSink) Lines() int { return s.lines }

// Size returns the compressed file size. It is only known after Close.
func (s *GzipSink) Size() int64 { return s.size }
