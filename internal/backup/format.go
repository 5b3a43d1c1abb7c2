package backup

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

// FormatVersion is the version written in every backup header.
const FormatVersion = 1

// MaxDecompressedSize bounds the payload read back from a backup (64MB).
const MaxDecompressedSize = 64 << 20

// ErrChecksum is returned when a payload does not match its header.
var ErrChecksum = errors.New("backup checksum mismatch")

// Header is the plain-text first line of a backup file. The gzip payload
// follows it directly.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	RunCount  int       `json:"run_count"`
}

// Write stores runs at path as a header line and a gzip-compressed JSON
// array.
func Write(path string, runs []registry.Run, createdAt time.Time) (*Header, error) {
	if runs == nil {
		runs = []registry.Run{}
	}
	payload, err := json.Marshal(runs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}
	sum := sha256.Sum256(payload)

	h := &Header{
		Version:   FormatVersion,
		CreatedAt: createdAt.UTC(),
		Checksum:  "sha256:" + hex.EncodeToString(sum[:]),
		RunCount:  len(runs),
	}
	line, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to write payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish payload: %w", err)
	}
	return h, f.Close()
}

// ReadHeader returns the header of the backup at path without reading the
// payload.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	h, _, err := readHeader(bufio.NewReader(f))
	return h, err
}

// Read returns the header and runs of the backup at path, verifying the
// payload checksum.
func Read(path string) (*Header, []registry.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	h, br, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, err
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open payload: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(io.LimitReader(zr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if len(payload) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("backup payload exceeds %d bytes", MaxDecompressedSize)
	}

	sum := sha256.Sum256(payload)
	if got := "sha256:" + hex.EncodeToString(sum[:]); got != h.Checksum {
		return nil, nil, fmt.Errorf("%w: header %s, payload %s", ErrChecksum, h.Checksum, got)
	}

	var runs []registry.Run
	if err := json.Unmarshal(payload, &runs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	if len(runs) != h.RunCount {
		return nil, nil, fmt.Errorf("backup holds %d runs, header says %d", len(runs), h.RunCount)
	}
	return h, runs, nil
}

func readHeader(br *bufio.Reader) (*Header, *bufio.Reader, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return nil, nil, fmt.Errorf("not a bnsim backup: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported backup version: %d", h.Version)
	}
	return &h, br, nil
}
