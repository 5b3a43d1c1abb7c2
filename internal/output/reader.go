package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformedRecord is returned for a body line that is not two numbers.
var ErrMalformedRecord = errors.New("malformed record")

// Record is one two-column body line of a stream.
type Record struct {
	A float64
	B float64
}

// Reader reads a stream written by GzipSink. Comment lines are collected
// as the header; every other non-empty line is parsed as a Record.
type Reader struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	header  []string
	line    int
}

// Open opens the stream at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	return &Reader{
		file:    f,
		gz:      gz,
		scanner: bufio.NewScanner(gz),
	}, nil
}

// Header returns the comment lines seen so far.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			r.header = append(r.header, text)
			continue
		}
		return parseRecord(text, r.line)
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("reading line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	r.gz.Close()
	return r.file.Close()
}

// ReadAll reads every record of the stream at path.
func ReadAll(path string) ([]Record, []string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	return records, r.Header(), nil
}

func parseRecord(text string, line int) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Record{}, fmt.Errorf("line %d: %w: want 2 columns, got %d", line, ErrMalformedRecord, len(fields))
	}
	a, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Record{}, fmt.Errorf("line %d: %w: %v", line, ErrMalformedRecord, err)
	}
	b, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Record{}, fmt.Errorf("line %d: %w: %v", line, ErrMalformedRecord, err)
	}
	return Record{A: a, B: b}, nil
}
