package nativemsg

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	json "github.com/goccy/go-json"
)

// LineReader reads one inbound message per line. Blank lines and lines
// starting with # are skipped.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader constructs a LineReader. maxBytes <= 0 selects
// DefaultMaxInboundBytes.
func NewLineReader(r io.Reader, maxBytes int) *LineReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInboundBytes
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBytes)
	return &LineReader{scanner: scanner}
}

// Read decodes the next message.
func (r *LineReader) Read() (Inbound, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var msg Inbound
		if err := json.Unmarshal(line, &msg); err != nil {
			return Inbound{}, &decodeError{err: err}
		}
		return msg, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Inbound{}, err
	}
	return Inbound{}, io.EOF
}

// LineWriter writes one JSON document per line. It is safe for concurrent use.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter constructs a LineWriter.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write encodes v followed by a newline.
func (w *LineWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(data)
	return err
}
