package crawl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Sink appends crawl results to an NDJSON file. Writes go straight to the
// file descriptor, so every line written before a crash survives it.
// Not safe for concurrent use; the scheduler serialises writes through a
// single goroutine.
type Sink struct {
	file *os.File
	enc  *json.Encoder
}

// NewSink creates (or truncates) the output file at path, creating parent
// directories as needed.
func NewSink(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &Sink{file: f, enc: enc}, nil
}

// Write appends one result as a single JSON line.
func (s *Sink) Write(r Result) error {
	return s.enc.Encode(r)
}

func (s *Sink) Close() error {
	return s.file.Close()
}
