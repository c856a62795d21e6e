// Package supplier feeds log lines to the ingestion loop. A supplier
// yields one line at a time with its 1-based line number; io.EOF marks a
// clean end of input.
package supplier

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// LineSupplier is the ingestion input. Next returns io.EOF once the
// input is exhausted; any other error is fatal to the caller.
type LineSupplier interface {
	Next() (lineNumber int, text string, err error)
	Close() error
}

// FileSupplier reads a log file front to back.
type FileSupplier struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// NewFileSupplier opens path for sequential reading. startLine skips the
// first startLine lines so a resumed ingestion continues where it left
// off; pass 0 to read from the beginning.
func NewFileSupplier(path string, startLine int) (*FileSupplier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	sc := bufio.NewScanner(f)
	// Editor logs carry very long single lines (serialized telemetry
	// payloads), far past the default 64KB token limit.
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	s := &FileSupplier{file: f, scanner: sc}
	for s.line < startLine {
		if !sc.Scan() {
			break
		}
		s.line++
	}
	return s, nil
}

// Next returns the next line of the file.
func (s *FileSupplier) Next() (int, string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return 0, "", fmt.Errorf("read log file: %w", err)
		}
		return 0, "", io.EOF
	}
	s.line++
	return s.line, s.scanner.Text(), nil
}

// Close releases the underlying file.
func (s *FileSupplier) Close() error {
	return s.file.Close()
}
