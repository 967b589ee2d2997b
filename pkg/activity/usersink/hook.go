// Package usersink records state events in a go-users activity trail.
package usersink

import (
	"context"
	"slices"

	"github.com/goliatone/go-composite/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards state events to Sink as ActivityRecords. When Verbs is set,
// only those verbs are forwarded.
type Hook struct {
	Sink  usertypes.ActivitySink
	Verbs []string
}

// Notify logs event unless it is filtered out or not routable.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Routable() {
		return nil
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps event to an ActivityRecord with a fresh id. Actor fields that
// are not UUIDs are kept verbatim under Data["actor"].
func Record(event activity.Event) usertypes.ActivityRecord {
	event = event.Clone()
	data := event.Metadata
	if data == nil {
		data = map[string]any{}
	}
	record := usertypes.ActivityRecord{
		ID:         uuid.New(),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	unparsed := map[string]string{}
	parse := func(field, raw string) uuid.UUID {
		if raw == "" {
			return uuid.Nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			unparsed[field] = raw
			return uuid.Nil
		}
		return id
	}
	record.ActorID = parse("id", event.Actor.ID)
	record.UserID = parse("user_id", event.Actor.UserID)
	record.TenantID = parse("tenant_id", event.Actor.TenantID)
	if len(unparsed) > 0 {
		data["actor"] = unparsed
	}
	if event.ObjectType == activity.ObjectTypeState && data["path"] == nil {
		data["path"] = event.ObjectID
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record
}
