package supplier

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"editortrace/internal/util"
)

// ErrTruncated reports that the followed file shrank below the read
// offset, meaning the editor started a fresh log in place.
var ErrTruncated = errors.New("log file truncated")

// TailSupplier follows a live log file, blocking in Next until a full
// line arrives. It watches the parent directory so rotation (recreate
// after delete) is picked up as well.
type TailSupplier struct {
	ctx     context.Context
	path    string
	watcher *fsnotify.Watcher

	file    *os.File
	reader  *bufio.Reader
	offset  int64
	line    int
	partial []byte
}

// NewTailSupplier opens path for following starting at the current end
// of file, so only lines written after the call are delivered. Next
// returns ctx.Err() once ctx is cancelled.
func NewTailSupplier(ctx context.Context, path string) (*TailSupplier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	s := &TailSupplier{ctx: ctx, path: path, watcher: watcher}
	if err := s.open(io.SeekEnd); err != nil {
		watcher.Close()
		return nil, err
	}
	return s, nil
}

func (s *TailSupplier) open(whence int) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	offset, err := f.Seek(0, whence)
	if err != nil {
		f.Close()
		return fmt.Errorf("seek log file: %w", err)
	}
	s.file = f
	s.reader = bufio.NewReaderSize(f, 64*1024)
	s.offset = offset
	s.partial = s.partial[:0]
	return nil
}

// Next blocks until a complete line is appended to the file. It returns
// ErrTruncated when the file shrinks, after which the supplier is
// repositioned at the new start of file and can keep being read.
func (s *TailSupplier) Next() (int, string, error) {
	for {
		chunk, err := s.reader.ReadBytes('\n')
		s.offset += int64(len(chunk))
		if err == nil {
			text := string(bytes.TrimRight(append(s.partial, chunk...), "\r\n"))
			s.partial = s.partial[:0]
			s.line++
			return s.line, text, nil
		}
		if err != io.EOF {
			return 0, "", fmt.Errorf("read log file: %w", err)
		}
		// Incomplete line: stash it and wait for the writer to finish it.
		s.partial = append(s.partial, chunk...)

		if truncated, werr := s.waitForData(); werr != nil {
			return 0, "", werr
		} else if truncated {
			return 0, "", ErrTruncated
		}
	}
}

// waitForData blocks until the file grows, is recreated, or ctx ends.
// It reports whether the file was truncated or replaced.
func (s *TailSupplier) waitForData() (bool, error) {
	// Poll as a fallback: editors on some filesystems buffer writes in a
	// way fsnotify misses.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		grew, truncated, err := s.checkFile()
		if err != nil {
			return false, err
		}
		if truncated {
			return true, nil
		}
		if grew {
			return false, nil
		}

		select {
		case <-s.ctx.Done():
			return false, s.ctx.Err()
		case event, ok := <-s.watcher.Events:
			if !ok {
				return false, errors.New("watcher closed")
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Create) != 0 {
				util.LogDebug(fmt.Sprintf("Log file rotated: %s", s.path))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return false, errors.New("watcher closed")
			}
			util.LogWarn(fmt.Sprintf("Watcher error: %v", err))
		case <-ticker.C:
		}
	}
}

// checkFile compares the on-disk size with the read offset. A smaller
// file means truncation: the supplier reopens at the start and resets
// its line counter.
func (s *TailSupplier) checkFile() (grew, truncated bool, err error) {
	info, serr := os.Stat(s.path)
	if serr != nil {
		if os.IsNotExist(serr) {
			// Mid-rotation; wait for the new file to appear.
			return false, false, nil
		}
		return false, false, fmt.Errorf("stat log file: %w", serr)
	}
	if info.Size() < s.offset {
		s.file.Close()
		if err := s.open(io.SeekStart); err != nil {
			return false, false, err
		}
		s.line = 0
		return false, true, nil
	}
	return info.Size() > s.offset, false, nil
}

// Close releases the file and the directory watcher.
func (s *TailSupplier) Close() error {
	werr := s.watcher.Close()
	ferr := s.file.Close()
	if werr != nil {
		return werr
	}
	return ferr
}
