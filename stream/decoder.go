// Package stream decodes the dashboard's incrementally-delivered chat
// responses into discrete typed events.
//
// The server has shipped two response shapes for the same endpoint: a
// newline-delimited event stream ("data: {...}" records) and a single JSON
// envelope holding the complete exchange. Both are permanently supported; the
// decoder resolves the format once, up front, and emits the same event union
// either way.
package stream

import (
	"bytes"
	"encoding/json"
)

type Kind int

const (
	// KindDelta carries an incremental piece of assistant text.
	KindDelta Kind = iota
	// KindMetadata carries model/timing info for the eventual message.
	KindMetadata
	// KindUserMessage echoes the stored user message (server-assigned id).
	KindUserMessage
	// KindDone marks the end of the logical response. Message may be nil
	// when the end was signaled by the bare "[DONE]" sentinel.
	KindDone
	// KindError is a server-reported failure delivered in-stream.
	KindError
)

// Message mirrors the server's stored-message record.
type Message struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	TokenCount *int64 `json:"token_count,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Metadata describes the assistant turn being streamed.
type Metadata struct {
	Model           string `json:"model"`
	MessageID       string `json:"message_id"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// Event is one decoded protocol event.
type Event struct {
	Kind       Kind
	Text       string   // KindDelta
	Metadata   Metadata // KindMetadata
	Message    *Message // KindUserMessage, KindDone
	ErrMessage string   // KindError
}

type mode int

const (
	modeDetect mode = iota
	modeLines
	modeEnvelope
)

// Decoder turns raw transport chunks into events. Chunk boundaries carry no
// meaning: a record is only emitted once its full line has arrived, and a
// partial line at the end of a chunk is buffered and prefixed to the next.
type Decoder struct {
	mode  mode
	carry []byte
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one transport chunk and returns the events completed by it.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.carry = append(d.carry, chunk...)

	if d.mode == modeDetect {
		d.detect()
	}

	if d.mode == modeLines {
		return d.drainLines()
	}

	// modeDetect (still ambiguous) or modeEnvelope: hold until Close.
	return nil
}

// Close flushes the decoder at transport end-of-stream and returns any final
// events (the envelope decode, or a trailing unterminated line).
func (d *Decoder) Close() []Event {
	switch d.mode {
	case modeLines:
		events := d.drainLines()
		if len(d.carry) > 0 {
			if ev, ok := parseLine(d.carry); ok {
				events = append(events, ev)
			}
			d.carry = nil
		}
		return events
	default:
		// Everything buffered: envelope first, line split as fallback.
		body := bytes.TrimSpace(d.carry)
		d.carry = nil
		if len(body) == 0 {
			return nil
		}
		if events, ok := parseEnvelope(body); ok {
			return events
		}
		var events []Event
		for _, line := range bytes.Split(body, []byte("\n")) {
			if ev, ok := parseLine(line); ok {
				events = append(events, ev)
			}
		}
		return events
	}
}

// detect resolves the response format from the buffered prefix. A body whose
// first record is a line event switches to incremental line decoding; a body
// that opens like a JSON document with no parseable first line is held whole
// as a candidate envelope.
func (d *Decoder) detect() {
	trimmed := bytes.TrimLeft(d.carry, " \t\r\n")
	if len(trimmed) == 0 {
		return
	}

	if trimmed[0] != '{' {
		// "data:" prefix, "[DONE]", or anything non-JSON: line framing.
		d.mode = modeLines
		return
	}

	idx := bytes.IndexByte(trimmed, '\n')
	if idx < 0 {
		// Could still be a compact envelope; wait for more input.
		return
	}

	if _, ok := parseLine(trimmed[:idx]); ok {
		d.mode = modeLines
		return
	}
	d.mode = modeEnvelope
}

func (d *Decoder) drainLines() []Event {
	var events []Event
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			return events
		}
		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]
		if ev, ok := parseLine(line); ok {
			events = append(events, ev)
		}
	}
}

// doneSentinel ends the logical stream independent of transport EOF.
const doneSentinel = "[DONE]"

// lineRecord covers every event shape the server has ever emitted on a line.
// Message is raw because "done"/"user_message" carry an object there while
// "error" carries a string.
type lineRecord struct {
	Type            string          `json:"type"`
	Delta           *string         `json:"delta"`
	IsFinal         bool            `json:"is_final"`
	Message         json.RawMessage `json:"message"`
	Model           string          `json:"model"`
	MessageID       string          `json:"message_id"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
}

// parseLine decodes one framed record. Blank lines are skipped and records
// that fail to parse, or carry an unknown type, are dropped rather than
// treated as fatal so newer servers can add event types freely.
func parseLine(line []byte) (Event, bool) {
	payload := bytes.TrimSpace(line)
	if len(payload) == 0 {
		return Event{}, false
	}

	if rest, ok := bytes.CutPrefix(payload, []byte("data:")); ok {
		payload = bytes.TrimSpace(rest)
		if len(payload) == 0 {
			return Event{}, false
		}
	}

	if string(payload) == doneSentinel {
		return Event{Kind: KindDone}, true
	}

	var rec lineRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Event{}, false
	}

	switch rec.Type {
	case "chunk":
		if rec.Delta == nil {
			return Event{}, false
		}
		return Event{Kind: KindDelta, Text: *rec.Delta}, true
	case "":
		// Early servers emitted bare {"delta": ...} records.
		if rec.Delta == nil {
			return Event{}, false
		}
		return Event{Kind: KindDelta, Text: *rec.Delta}, true
	case "metadata":
		return Event{Kind: KindMetadata, Metadata: Metadata{
			Model:           rec.Model,
			MessageID:       rec.MessageID,
			ExecutionTimeMS: rec.ExecutionTimeMS,
		}}, true
	case "user_message":
		msg := decodeMessage(rec.Message)
		if msg == nil {
			return Event{}, false
		}
		return Event{Kind: KindUserMessage, Message: msg}, true
	case "done":
		return Event{Kind: KindDone, Message: decodeMessage(rec.Message)}, true
	case "error":
		var errMsg string
		if err := json.Unmarshal(rec.Message, &errMsg); err != nil {
			return Event{}, false
		}
		return Event{Kind: KindError, ErrMessage: errMsg}, true
	default:
		return Event{}, false
	}
}

func decodeMessage(raw json.RawMessage) *Message {
	if len(raw) == 0 {
		return nil
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	return &msg
}

// envelope is the non-streaming completion shape: the whole exchange in one
// JSON object with the assistant turn nested inside.
type envelope struct {
	UserMessage           *Message `json:"user_message"`
	AssistantMessage      *Message `json:"assistant_message"`
	ConversationUpdatedAt string   `json:"conversation_updated_at"`
}

// parseEnvelope converts a complete envelope body into the event sequence an
// equivalent line stream would have produced.
func parseEnvelope(body []byte) ([]Event, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.AssistantMessage == nil {
		return nil, false
	}

	var events []Event
	if env.UserMessage != nil {
		events = append(events, Event{Kind: KindUserMessage, Message: env.UserMessage})
	}
	if env.AssistantMessage.Content != "" {
		events = append(events, Event{Kind: KindDelta, Text: env.AssistantMessage.Content})
	}
	events = append(events, Event{Kind: KindDone, Message: env.AssistantMessage})
	return events, true
}
