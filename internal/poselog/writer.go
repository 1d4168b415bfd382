package poselog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gymsight/repcount/internal/pose"
)

// Writer appends pose frames to a log file. It is safe for use from a
// single goroutine at a time; the mutex guards against a concurrent Close.
type Writer struct {
	path   string
	header Header

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	count  uint64
	closed bool
}

// NewWriter creates the log file and writes the header line. Missing header
// fields are filled in: Version defaults to FormatVersion, CreatedNanos to
// the current time. Parent directories are created as needed.
func NewWriter(path string, hdr Header) (*Writer, error) {
	if hdr.Version == "" {
		hdr.Version = FormatVersion
	}
	if hdr.CreatedNanos == 0 {
		hdr.CreatedNanos = time.Now().UnixNano()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create poselog directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create poselog: %w", err)
	}

	w := &Writer{
		path:   path,
		header: hdr,
		file:   f,
		buf:    bufio.NewWriter(f),
	}

	if err := w.writeLine(hdr); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write poselog header: %w", err)
	}

	return w, nil
}

// WriteFrame appends one frame line to the log.
func (w *Writer) WriteFrame(f pose.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("poselog writer is closed")
	}

	if err := w.writeLine(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	w.count++
	return nil
}

func (w *Writer) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// Count returns the number of frames written so far.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the path of the log file.
func (w *Writer) Path() string {
	return w.path
}

// Header returns the header written at creation.
func (w *Writer) Header() Header {
	return w.header
}

// Close flushes buffered frames and closes the file. Safe to call twice.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush poselog: %w", flushErr)
	}
	return closeErr
}
