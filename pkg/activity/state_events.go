package activity

const (
	VerbStateChanged   = "state.changed"
	VerbStateFlushed   = "state.flushed"
	VerbHistoryEvicted = "state.history.evicted"

	ObjectTypeState   = "state"
	ObjectTypeHistory = "state.history"
)

// StateChanged describes a committed write to the observable key at path.
// eventID is the id the payload was published under.
func StateChanged(rootKey, path, eventID string, oldValue, newValue any) Event {
	metadata := map[string]any{
		"root_key":  rootKey,
		"path":      path,
		"new_value": newValue,
	}
	if eventID != "" {
		metadata["event_id"] = eventID
	}
	if oldValue != nil {
		metadata["old_value"] = oldValue
	}
	return Event{
		Verb:       VerbStateChanged,
		ObjectType: ObjectTypeState,
		ObjectID:   path,
		Metadata:   metadata,
	}
}

// StateFlushed describes a flush that cut the listed snapshot keys.
func StateFlushed(rootKey string, snapshots []string) Event {
	return historyEvent(VerbStateFlushed, rootKey, map[string]any{
		"snapshots": append([]string(nil), snapshots...),
	})
}

// HistoryEvicted describes snapshots dropped by rollover once the root
// reached timeIndex.
func HistoryEvicted(rootKey string, timeIndex int, snapshots []string) Event {
	return historyEvent(VerbHistoryEvicted, rootKey, map[string]any{
		"snapshots":  append([]string(nil), snapshots...),
		"time_index": timeIndex,
	})
}

func historyEvent(verb, rootKey string, metadata map[string]any) Event {
	metadata["root_key"] = rootKey
	return Event{
		Verb:       verb,
		ObjectType: ObjectTypeHistory,
		ObjectID:   rootKey,
		Metadata:   metadata,
	}
}
