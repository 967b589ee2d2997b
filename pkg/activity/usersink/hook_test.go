package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookRecordsStateChange(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()

	event := activity.StateChanged("state", "state.count", "count.high", 1, 2)
	event.Channel = "state"
	event.OccurredAt = now
	event.Actor = activity.Actor{
		ID:       actorID.String(),
		UserID:   userID.String(),
		TenantID: tenantID.String(),
	}

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ID == uuid.Nil {
		t.Fatalf("expected record id to be generated")
	}
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected actor mapping: %+v", record)
	}
	if record.Verb != activity.VerbStateChanged || record.ObjectType != activity.ObjectTypeState || record.ObjectID != "state.count" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "state" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	if record.Data["event_id"] != "count.high" || record.Data["old_value"] != 1 || record.Data["new_value"] != 2 {
		t.Fatalf("expected metadata passthrough, got %+v", record.Data)
	}
	if _, ok := record.Data["actor"]; ok {
		t.Fatalf("parsed actor must not be copied into data: %+v", record.Data)
	}
}

func TestHookKeepsOpaqueActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	event := activity.StateFlushed("state", []string{"state0"})
	event.Actor = activity.Actor{ID: "worker-7"}
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ActorID != uuid.Nil {
		t.Fatalf("expected nil actor id, got %s", record.ActorID)
	}
	actor, ok := record.Data["actor"].(map[string]string)
	if !ok || actor["id"] != "worker-7" {
		t.Fatalf("expected raw actor in data, got %v", record.Data["actor"])
	}
}

func TestHookFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbHistoryEvicted}}

	events := []activity.Event{
		activity.StateChanged("state", "state.a", "", nil, 1),
		activity.StateFlushed("state", []string{"state0"}),
		activity.HistoryEvicted("state", 21, []string{"state0"}),
	}
	for _, event := range events {
		if err := hook.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if len(sink.records) != 1 || sink.records[0].Verb != activity.VerbHistoryEvicted {
		t.Fatalf("expected only evictions, got %+v", sink.records)
	}
}

func TestHookSkipsUnroutableEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{Verb: activity.VerbStateChanged}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.StateChanged("state", "state.a", "", nil, 1)); err != nil {
		t.Fatalf("nil sink: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records, got %d", len(sink.records))
	}
}

func TestHookReturnsSinkError(t *testing.T) {
	boom := errors.New("boom")
	hook := usersink.Hook{Sink: &recordingSink{err: boom}}

	err := hook.Notify(context.Background(), activity.StateChanged("state", "state.a", "", nil, 1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestRecordDefaultsStatePath(t *testing.T) {
	event := activity.StateChanged("state", "state.total", "", nil, 1)
	delete(event.Metadata, "path")

	record := usersink.Record(event)
	if got := record.Data["path"]; got != "state.total" {
		t.Fatalf("expected path defaulted from object id, got %v", got)
	}
	if _, ok := event.Metadata["path"]; ok {
		t.Fatalf("event metadata must stay untouched")
	}
}
