// Package sse implements an incremental parser for text/event-stream
// bodies. It turns arbitrarily chunked bytes into discrete events and never
// fails on malformed frames: a data line that is not valid JSON is kept as
// raw text.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// doneToken is the literal data value that marks the end of a stream.
const doneToken = "[DONE]"

// readBufferSize is the chunk size used by Parse.
const readBufferSize = 32 * 1024

var (
	eventPrefix = []byte("event:")
	dataPrefix  = []byte("data:")
)

// PayloadKind discriminates the content of Event.
type PayloadKind int

// Payload kinds.
const (
	PayloadNone PayloadKind = iota // no data line seen
	PayloadJSON                    // Data holds a valid JSON value
	PayloadRaw                     // Raw holds text that is not valid JSON
	PayloadDone                    // the [DONE] sentinel
)

// String returns a human-readable label for the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadJSON:
		return "json"
	case PayloadRaw:
		return "raw"
	case PayloadDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one frame of the stream.
type Event struct {
	// Name is the trimmed value of the event: line.
	Name string

	Kind PayloadKind

	// Data is the JSON payload when Kind is PayloadJSON.
	Data json.RawMessage

	// Raw is the trimmed data text for PayloadRaw and PayloadDone.
	Raw string
}

// errNotJSON is returned by Decode for events without a JSON payload.
var errNotJSON = errors.New("sse: event has no JSON payload")

// Decode unmarshals the JSON payload into v.
func (e Event) Decode(v any) error {
	if e.Kind != PayloadJSON {
		return errNotJSON
	}
	return json.Unmarshal(e.Data, v)
}

// Type returns the "type" field of a JSON object payload, or "".
func (e Event) Type() string {
	var typed struct {
		Type string `json:"type"`
	}
	if e.Kind != PayloadJSON || e.Data[0] != '{' {
		return ""
	}
	if err := json.Unmarshal(e.Data, &typed); err != nil {
		return ""
	}
	return typed.Type
}

// Parser accumulates stream bytes and emits completed events in receipt
// order. It is not safe for concurrent use; each stream owns its parser.
type Parser struct {
	emit    func(Event)
	pending []byte
	current *Event
}

// NewParser returns a parser that calls emit for every completed event.
func NewParser(emit func(Event)) *Parser {
	return &Parser{emit: emit}
}

// Feed appends chunk to the internal buffer and processes every complete
// line. The trailing fragment without a newline is held for the next call.
func (p *Parser) Feed(chunk []byte) {
	p.pending = append(p.pending, chunk...)
	for {
		idx := bytes.IndexByte(p.pending, '\n')
		if idx < 0 {
			break
		}
		p.line(p.pending[:idx])
		p.pending = p.pending[idx+1:]
	}
	// Reclaim the consumed prefix so long streams don't pin old buffers.
	if len(p.pending) == 0 {
		p.pending = nil
	}
}

// Flush emits the event under construction, if any. Bytes of an
// unterminated final line are processed first.
func (p *Parser) Flush() {
	if len(p.pending) > 0 {
		p.line(p.pending)
		p.pending = nil
	}
	p.finish()
}

// buffered reports the number of buffered bytes not yet forming a line.
func (p *Parser) buffered() int {
	return len(p.pending)
}

func (p *Parser) line(raw []byte) {
	line := bytes.TrimSpace(raw)

	switch {
	case bytes.HasPrefix(line, eventPrefix):
		p.finish()
		p.current = &Event{Name: string(bytes.TrimSpace(line[len(eventPrefix):]))}

	case bytes.HasPrefix(line, dataPrefix):
		if p.current == nil {
			return
		}
		setPayload(p.current, bytes.TrimSpace(line[len(dataPrefix):]))

	case len(line) == 0:
		p.finish()
	}
}

func (p *Parser) finish() {
	if p.current == nil {
		return
	}
	ev := *p.current
	p.current = nil
	if p.emit != nil {
		p.emit(ev)
	}
}

func setPayload(ev *Event, data []byte) {
	ev.Data = nil
	ev.Raw = ""

	switch {
	case string(data) == doneToken:
		ev.Kind = PayloadDone
		ev.Raw = doneToken
	case len(data) > 0 && json.Valid(data):
		ev.Kind = PayloadJSON
		ev.Data = json.RawMessage(bytes.Clone(data))
	default:
		ev.Kind = PayloadRaw
		ev.Raw = string(data)
	}
}

// Parse reads r to EOF, feeding every chunk through a new Parser, and
// flushes the final event. Only read errors are returned.
func Parse(r io.Reader, emit func(Event)) error {
	p := NewParser(emit)
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			p.Flush()
			return nil
		}
		if err != nil {
			return err
		}
	}
}
