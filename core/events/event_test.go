package events

import (
	"testing"

	"devquestvault/core/types"
)

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func (s stubEvent) Event() *types.Event {
	return &types.Event{Type: string(s), Attributes: map[string]string{"k": string(s)}}
}

type recorder struct {
	seen []string
}

func (r *recorder) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

func TestBufferFlushForwardsInOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(stubEvent("a"))
	buf.Emit(nil)
	buf.Emit(stubEvent("b"))
	if got := len(buf.Events()); got != 2 {
		t.Fatalf("staged %d events, want 2", got)
	}
	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.seen) != 2 || rec.seen[0] != "a" || rec.seen[1] != "b" {
		t.Fatalf("unexpected flush order: %v", rec.seen)
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer not cleared after flush")
	}
}

func TestBufferReset(t *testing.T) {
	var buf Buffer
	buf.Emit(stubEvent("a"))
	buf.Reset()
	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.seen) != 0 {
		t.Fatalf("reset events were flushed: %v", rec.seen)
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	MultiEmitter{first, nil, second}.Emit(stubEvent("x"))
	if len(first.seen) != 1 || len(second.seen) != 1 {
		t.Fatalf("fan-out failed: %v %v", first.seen, second.seen)
	}
	NoopEmitter{}.Emit(stubEvent("ignored"))
}
