package data

import (
	"encoding/json"
)

// Trace captures, for one path, the value held by every retained snapshot
// and by the live accessor tree.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details one snapshot's contribution to a traced path.
type Provenance struct {
	TimeIndex   int    `json:"time_index"`
	SnapshotKey string `json:"snapshot_key"`
	// Timestamp is ms since history tracking started.
	Timestamp int64 `json:"timestamp"`
	Live      bool  `json:"live,omitempty"`
	Value     any   `json:"value,omitempty"`
	Found     bool  `json:"found"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Trace lists key across retained snapshots, oldest first, ending with the
// live value. Mutable roots only have the live layer.
func (c *Cursor) Trace(key any) (Trace, error) {
	slot, target, err := c.slot(key)
	if err != nil {
		return Trace{}, err
	}
	rootKey := c.path.Root()
	st, err := c.el.root(rootKey)
	if err != nil {
		return Trace{}, err
	}
	if err := c.el.sync(rootKey); err != nil {
		return Trace{}, err
	}
	trace := Trace{Path: target.String()}
	if st.immutable {
		for i := st.oldest; i < st.timeIndex; i++ {
			snapshot := historyKey(rootKey, i)
			layer := Provenance{
				TimeIndex:   i,
				SnapshotKey: snapshot,
				Timestamp:   st.timestamps[i-st.oldest],
			}
			if node, err := c.el.mmap.Select(c.snapshotPath(snapshot, target.Last())); err == nil {
				layer.Value = node.Content()
				layer.Found = true
			}
			trace.Layers = append(trace.Layers, layer)
		}
	}
	live := Provenance{
		TimeIndex:   st.timeIndex,
		SnapshotKey: rootKey,
		Live:        true,
		Value:       slot.Get(),
		Found:       true,
	}
	if st.immutable {
		live.Timestamp = st.timestamps[len(st.timestamps)-1]
	}
	trace.Layers = append(trace.Layers, live)
	return trace, nil
}
