package poselog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gymsight/repcount/internal/pose"
)

// maxLineBytes bounds a single log line. A frame with a dozen people is a
// few kilobytes; anything near this limit is a corrupt file.
const maxLineBytes = 1 << 20

// Reader iterates the frames of a poselog file.
type Reader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	header  Header
	line    int
}

// OpenReader opens a poselog and validates its header line.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open poselog: %w", err)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	r := &Reader{path: path, file: f, scanner: sc, line: 1}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return fmt.Errorf("failed to read poselog header: %w", err)
		}
		return fmt.Errorf("poselog %s is empty", r.path)
	}
	if err := json.Unmarshal(r.scanner.Bytes(), &r.header); err != nil {
		return fmt.Errorf("failed to parse poselog header: %w", err)
	}
	if r.header.Version == "" {
		return fmt.Errorf("poselog %s has no format version", r.path)
	}
	return nil
}

// Header returns the log header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF after the last line.
func (r *Reader) Next() (pose.Frame, error) {
	var f pose.Frame

	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return f, fmt.Errorf("failed to read poselog line %d: %w", r.line+1, err)
			}
			return f, io.EOF
		}
		r.line++

		// Tolerate blank trailing lines from interrupted writers.
		if len(r.scanner.Bytes()) == 0 {
			continue
		}

		if err := json.Unmarshal(r.scanner.Bytes(), &f); err != nil {
			return f, fmt.Errorf("malformed frame at poselog line %d: %w", r.line, err)
		}
		return f, nil
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
