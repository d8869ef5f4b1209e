// Package trace implements the append-only JSONL transcript of a wire session.
//
// Each line is one Event. Events are hash-chained: prev_hash holds the
// SHA-256 of the previous line, so a transcript can be checked for
// truncation or tampering with Verify.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/cukewire/pkg/wire"
)

// EventType enumerates transcript event types.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventRequest      EventType = "request"
	EventResponse     EventType = "response"
	EventSessionEnd   EventType = "session_end"
)

// genesisHash is the prev_hash of the first event in a transcript.
var genesisHash = strings.Repeat("0", 64)

// Event is a single transcript line.
type Event struct {
	Seq       int            `json:"seq"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer appends transcript events to a stream. It implements wire.Recorder.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	sessionID string
	seq       int
	prevHash  string
	now       func() time.Time
}

var _ wire.Recorder = (*Writer)(nil)

// NewWriter creates a transcript writer. An empty sessionID gets a random UUID.
func NewWriter(w io.Writer, sessionID string) *Writer {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Writer{
		w:         w,
		sessionID: sessionID,
		prevHash:  genesisHash,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewFileWriter creates a transcript writer appending to a JSONL file.
// Each session starts its own hash chain.
func NewFileWriter(path, sessionID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript file: %w", err)
	}
	tw := NewWriter(f, sessionID)
	tw.closer = f
	return tw, nil
}

// SessionID returns the id stamped on every event.
func (tw *Writer) SessionID() string { return tw.sessionID }

// Emit writes a single event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.seq++
	evt := Event{
		Seq:       tw.seq,
		Type:      eventType,
		Timestamp: tw.now(),
		SessionID: tw.sessionID,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	h := sha256.Sum256(line)
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitSessionStart emits a session_start event.
func (tw *Writer) EmitSessionStart(info map[string]any) error {
	return tw.Emit(EventSessionStart, info)
}

// EmitSessionEnd emits a session_end event with the loop's exit error, if any.
func (tw *Writer) EmitSessionEnd(serveErr error) error {
	data := map[string]any{"status": "closed"}
	if serveErr != nil {
		data["status"] = "error"
		data["error"] = serveErr.Error()
	}
	return tw.Emit(EventSessionEnd, data)
}

// RecordRequest emits a request event.
func (tw *Writer) RecordRequest(request json.RawMessage) error {
	return tw.Emit(EventRequest, map[string]any{"request": request})
}

// RecordResponse emits a response event.
func (tw *Writer) RecordResponse(response wire.Response) error {
	return tw.Emit(EventResponse, map[string]any{
		"status":   response.Status(),
		"response": response,
	})
}

// Close closes the underlying file when the writer owns one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}
