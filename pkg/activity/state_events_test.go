package activity

import (
	"context"
	"testing"
)

func TestStateChangedMetadata(t *testing.T) {
	event := StateChanged("state", "state.count", "count.high", 1, 2)

	if event.Verb != VerbStateChanged {
		t.Fatalf("expected verb %s got %s", VerbStateChanged, event.Verb)
	}
	if event.ObjectType != ObjectTypeState || event.ObjectID != "state.count" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.Metadata["root_key"] != "state" || event.Metadata["event_id"] != "count.high" || event.Metadata["path"] != "state.count" {
		t.Fatalf("unexpected metadata %+v", event.Metadata)
	}
	if event.Metadata["old_value"] != 1 || event.Metadata["new_value"] != 2 {
		t.Fatalf("expected old/new values, got %+v", event.Metadata)
	}

	bare := StateChanged("state", "state.count", "", nil, 3)
	if _, ok := bare.Metadata["event_id"]; ok {
		t.Fatalf("expected no event_id, got %+v", bare.Metadata)
	}
	if _, ok := bare.Metadata["old_value"]; ok {
		t.Fatalf("expected no old_value, got %+v", bare.Metadata)
	}
}

func TestHistoryEvents(t *testing.T) {
	cut := []string{"state0"}
	flushed := StateFlushed("state", cut)
	if flushed.Verb != VerbStateFlushed || flushed.ObjectType != ObjectTypeHistory || flushed.ObjectID != "state" {
		t.Fatalf("unexpected flushed event %+v", flushed)
	}
	cut[0] = "changed"
	if keys := flushed.Metadata["snapshots"].([]string); keys[0] != "state0" {
		t.Fatalf("expected snapshot keys copied, got %v", keys)
	}

	evicted := HistoryEvicted("state", 21, []string{"state0", "state1"})
	if evicted.Verb != VerbHistoryEvicted || evicted.ObjectID != "state" {
		t.Fatalf("unexpected evicted event %+v", evicted)
	}
	keys, ok := evicted.Metadata["snapshots"].([]string)
	if !ok || len(keys) != 2 || evicted.Metadata["time_index"] != 21 || evicted.Metadata["root_key"] != "state" {
		t.Fatalf("unexpected evicted metadata %+v", evicted.Metadata)
	}
}

func TestStateEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	for _, event := range []Event{
		StateChanged("state", "state.a", "", nil, 1),
		StateFlushed("state", nil),
		HistoryEvicted("state", 1, nil),
	} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	got := capture.Verbs()
	if len(got) != 3 || got[0] != VerbStateChanged || got[1] != VerbStateFlushed || got[2] != VerbHistoryEvicted {
		t.Fatalf("unexpected verbs %v", got)
	}
}
