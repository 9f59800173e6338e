package stream

import (
	"reflect"
	"testing"
)

// run feeds the chunks through a fresh decoder and collects every event
// including the Close flush.
func run(chunks ...string) []Event {
	d := NewDecoder()
	var events []Event
	for _, chunk := range chunks {
		events = append(events, d.Feed([]byte(chunk))...)
	}
	return append(events, d.Close()...)
}

func TestDeltaSplitAcrossChunks(t *testing.T) {
	events := run("data: {\"delta\":\"Hel", "lo\"}\n\ndata: [DONE]\n")

	want := []Event{
		{Kind: KindDelta, Text: "Hello"},
		{Kind: KindDone},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

// TestChunkBoundaryInvariance splits the same byte stream at every position
// and requires identical events each time.
func TestChunkBoundaryInvariance(t *testing.T) {
	body := "data: {\"type\":\"chunk\",\"delta\":\"Your \"}\n" +
		"data: {\"type\":\"chunk\",\"delta\":\"weekly plan\"}\n" +
		"data: {\"type\":\"metadata\",\"model\":\"gemini-2.5-flash\",\"message_id\":\"m1\",\"execution_time_ms\":42}\n" +
		"data: {\"type\":\"done\",\"message\":{\"id\":\"m1\",\"role\":\"assistant\",\"content\":\"Your weekly plan\"}}\n"

	want := run(body)
	if len(want) != 4 {
		t.Fatalf("baseline decoded %d events, want 4", len(want))
	}

	for split := 1; split < len(body); split++ {
		got := run(body[:split], body[split:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: events = %+v, want %+v", split, got, want)
		}
	}
}

func TestLineEvents(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "typed chunk",
			line: "data: {\"type\":\"chunk\",\"delta\":\"hi\",\"is_final\":false}\n",
			want: Event{Kind: KindDelta, Text: "hi"},
		},
		{
			name: "bare delta",
			line: "data: {\"delta\":\"hi\"}\n",
			want: Event{Kind: KindDelta, Text: "hi"},
		},
		{
			name: "no prefix",
			line: "{\"type\":\"chunk\",\"delta\":\"hi\"}\n",
			want: Event{Kind: KindDelta, Text: "hi"},
		},
		{
			name: "metadata",
			line: "data: {\"type\":\"metadata\",\"model\":\"gpt-4o\",\"message_id\":\"abc\",\"execution_time_ms\":120}\n",
			want: Event{Kind: KindMetadata, Metadata: Metadata{Model: "gpt-4o", MessageID: "abc", ExecutionTimeMS: 120}},
		},
		{
			name: "user message",
			line: "data: {\"type\":\"user_message\",\"message\":{\"id\":\"u1\",\"role\":\"user\",\"content\":\"hi\"}}\n",
			want: Event{Kind: KindUserMessage, Message: &Message{ID: "u1", Role: "user", Content: "hi"}},
		},
		{
			name: "error",
			line: "data: {\"type\":\"error\",\"message\":\"provider timeout\"}\n",
			want: Event{Kind: KindError, ErrMessage: "provider timeout"},
		},
		{
			name: "sentinel",
			line: "data: [DONE]\n",
			want: Event{Kind: KindDone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := run(tt.line)
			if len(events) != 1 {
				t.Fatalf("decoded %d events, want 1", len(events))
			}
			if !reflect.DeepEqual(events[0], tt.want) {
				t.Errorf("event = %+v, want %+v", events[0], tt.want)
			}
		})
	}
}

func TestMalformedLinesDropped(t *testing.T) {
	events := run(
		"data: {\"type\":\"chunk\",\"delta\":\"a\"}\n" +
			"data: {not json at all\n" +
			"data: {\"type\":\"mystery_event\",\"payload\":1}\n" +
			"\n" +
			"data: {\"type\":\"chunk\",\"delta\":\"b\"}\n" +
			"data: [DONE]\n")

	want := []Event{
		{Kind: KindDelta, Text: "a"},
		{Kind: KindDelta, Text: "b"},
		{Kind: KindDone},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestTrailingLineWithoutNewline(t *testing.T) {
	events := run("data: {\"type\":\"chunk\",\"delta\":\"a\"}\ndata: [DONE]")

	want := []Event{
		{Kind: KindDelta, Text: "a"},
		{Kind: KindDone},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestEnvelopeResponse(t *testing.T) {
	body := `{
	"user_message": {"id": "u1", "role": "user", "content": "plan my week"},
	"assistant_message": {"id": "a1", "role": "assistant", "content": "Here is your plan."},
	"conversation_updated_at": "2025-06-01T12:00:00Z"
}`

	events := run(body)

	want := []Event{
		{Kind: KindUserMessage, Message: &Message{ID: "u1", Role: "user", Content: "plan my week"}},
		{Kind: KindDelta, Text: "Here is your plan."},
		{Kind: KindDone, Message: &Message{ID: "a1", Role: "assistant", Content: "Here is your plan."}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

// TestEnvelopeSplitAcrossChunks checks that an envelope arriving in several
// transport chunks still decodes whole.
func TestEnvelopeSplitAcrossChunks(t *testing.T) {
	part1 := `{
	"user_message": {"id": "u1", "role": "user", "content": "hi"},
	"assistant_mes`
	part2 := `sage": {"id": "a1", "role": "assistant", "content": "hello"},
	"conversation_updated_at": "2025-06-01T12:00:00Z"
}`

	events := run(part1, part2)

	want := []Event{
		{Kind: KindUserMessage, Message: &Message{ID: "u1", Role: "user", Content: "hi"}},
		{Kind: KindDelta, Text: "hello"},
		{Kind: KindDone, Message: &Message{ID: "a1", Role: "assistant", Content: "hello"}},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestCompactEnvelope(t *testing.T) {
	body := `{"user_message":{"id":"u1","role":"user","content":"hi"},"assistant_message":{"id":"a1","role":"assistant","content":"hello"},"conversation_updated_at":"2025-06-01T12:00:00Z"}`

	events := run(body)
	if len(events) != 3 {
		t.Fatalf("decoded %d events, want 3", len(events))
	}
	if events[len(events)-1].Kind != KindDone {
		t.Errorf("last event kind = %v, want KindDone", events[len(events)-1].Kind)
	}
}

func TestDoneCarriesFinalMessage(t *testing.T) {
	events := run("data: {\"type\":\"done\",\"message\":{\"id\":\"a1\",\"role\":\"assistant\",\"content\":\"full text\"}}\n")

	if len(events) != 1 {
		t.Fatalf("decoded %d events, want 1", len(events))
	}
	if events[0].Kind != KindDone {
		t.Fatalf("kind = %v, want KindDone", events[0].Kind)
	}
	if events[0].Message == nil || events[0].Message.Content != "full text" {
		t.Errorf("done message = %+v, want content \"full text\"", events[0].Message)
	}
}

func TestEmptyStream(t *testing.T) {
	if events := run(""); len(events) != 0 {
		t.Errorf("empty stream produced %d events", len(events))
	}
}
