// Package nativemsg implements the browser native messaging transport: a
// 32-bit little-endian length prefix followed by a UTF-8 JSON body.
package nativemsg

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/schema"
)

const (
	// MaxOutboundBytes is the browser limit for host-to-extension messages.
	MaxOutboundBytes = 1 << 20
	// DefaultMaxInboundBytes bounds extension-to-host messages.
	DefaultMaxInboundBytes = 64 << 20
)

// Message types exchanged with the extension.
const (
	TypeHello         = "hello"
	TypeLifecycle     = "lifecycle"
	TypeTab           = "tab"
	TypeTabRemoved    = "tab_removed"
	TypeAutoSave      = "auto_save"
	TypeAutoSaveQuery = "auto_save_query"

	TypeCall          = "call"
	TypeEnable        = "enable"
	TypeDisable       = "disable"
	TypeAutoSaveState = "auto_save_state"
	TypeError         = "error"
)

// Inbound is a message sent by the extension.
type Inbound struct {
	Type string `json:"type"`
	// ID correlates queries with their replies.
	ID      string                 `json:"id,omitempty"`
	Methods []schema.Method        `json:"methods,omitempty"`
	Event   *schema.LifecycleEvent `json:"event,omitempty"`
	Tab     *schema.TabUpdate      `json:"tab,omitempty"`
	TabID   *schema.TabID          `json:"tabId,omitempty"`
	Enabled bool                   `json:"enabled,omitempty"`
}

// Outbound is a message sent to the extension.
type Outbound struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Method  schema.Method  `json:"method,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	TabID   *schema.TabID  `json:"tabId,omitempty"`
	Enabled *bool          `json:"enabled,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Reader reads length-prefixed frames.
type Reader struct {
	r   io.Reader
	max int64
}

// NewReader constructs a Reader. maxBytes <= 0 selects DefaultMaxInboundBytes.
func NewReader(r io.Reader, maxBytes int) *Reader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInboundBytes
	}
	return &Reader{r: r, max: int64(maxBytes)}
}

// ReadFrame returns the next frame body. An oversized frame is skipped and
// reported as schema.ErrMessageTooLarge; the stream stays usable.
func (r *Reader) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return nil, err
	}
	size := int64(binary.LittleEndian.Uint32(header[:]))
	if size > r.max {
		if _, err := io.CopyN(io.Discard, r.r, size); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d bytes", schema.ErrMessageTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// Read decodes the next inbound message.
func (r *Reader) Read() (Inbound, error) {
	body, err := r.ReadFrame()
	if err != nil {
		return Inbound{}, err
	}
	var msg Inbound
	if err := json.Unmarshal(body, &msg); err != nil {
		return Inbound{}, &decodeError{err: err}
	}
	return msg, nil
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "decode native message: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

// Writer writes length-prefixed frames. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter constructs a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes v as one frame.
func (w *Writer) Write(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteFrame(body)
}

// WriteFrame writes body as one frame.
func (w *Writer) WriteFrame(body []byte) error {
	if len(body) > MaxOutboundBytes {
		return fmt.Errorf("%w: %d bytes", schema.ErrMessageTooLarge, len(body))
	}
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(frame)
	return err
}
