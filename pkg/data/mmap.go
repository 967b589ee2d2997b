package data

import (
	"time"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
	"github.com/goliatone/go-composite/pkg/tree"
)

// record marks p as rewritten since the last rebuild. Everything beneath p
// and every ancestor of p is rebuilt; the rest of the root is shared with
// the previous snapshot.
func (el *Element) record(p path.Path) {
	if len(p) == 0 {
		return
	}
	st, ok := el.roots[p.Root()]
	if !ok {
		return
	}
	st.records[p.String()] = p.Clone()
	st.dirty = true
}

// touched reports whether p lies on or beneath a recorded path, or above
// one.
func (st *rootState) touched(p path.Path) bool {
	for _, record := range st.records {
		if record.HasPrefix(p) || p.HasPrefix(record) {
			return true
		}
	}
	return false
}

func (el *Element) sync(rootKey string) error {
	st, err := el.root(rootKey)
	if err != nil {
		return err
	}
	if !st.dirty {
		return nil
	}
	return el.rebuild(rootKey)
}

// rebuild refreshes the live accessor tree of rootKey. For an immutable
// root the previous live tree is kept as snapshot rootKey{timeIndex} and
// untouched subtrees of it are linked into the new live tree.
func (el *Element) rebuild(rootKey string) error {
	started := time.Now()
	st, err := el.root(rootKey)
	if err != nil {
		return err
	}
	ct, err := el.containerAt(path.Path{rootKey})
	if err != nil {
		return err
	}

	mode := "mutable"
	var prev tree.Node
	if st.immutable {
		mode = "immutable"
		if el.mmap.HasRoot(rootKey) {
			snapshot := historyKey(rootKey, st.timeIndex)
			if err := el.mmap.RenameRoot(rootKey, snapshot); err != nil {
				return err
			}
			prev, _ = el.mmap.Select(path.Path{snapshot})
		}
	} else if el.mmap.HasRoot(rootKey) {
		if err := el.mmap.CutRoot(rootKey); err != nil {
			return err
		}
	}

	live, err := el.mmap.SproutRoot(rootKey, map[string]any{})
	if err != nil {
		return err
	}
	hosts := el.registry.IDs(descriptor.KindComputable)
	if err := el.deepUpdate(st, live, prev, path.Path{rootKey}, ct, hosts); err != nil {
		return err
	}
	live.FreezeContent()

	if st.immutable && prev.Valid() {
		st.timeIndex++
		st.timestamps = append(st.timestamps, el.cfg.Clock().Sub(st.reference).Milliseconds())
		el.rollover(rootKey, st)
	}
	st.records = map[string]path.Path{}
	st.dirty = false

	mmapRebuildsTotal.WithLabelValues(mode).Inc()
	mmapRebuildDuration.Observe(time.Since(started).Seconds())
	return nil
}

// deepUpdate builds one level of the live tree. Computables are evaluated
// into plain values; untouched subtrees that host no computable are linked
// from prev instead of rebuilt.
func (el *Element) deepUpdate(st *rootState, live, prev tree.Node, at path.Path, ct *container, computables []string) error {
	for _, key := range ct.keys {
		childPath := at.Append(key)
		id := childPath.String()
		slot := ct.slots[key]

		if el.registry.IsComputable(id) {
			if _, err := live.Branch(key, common.Normalize(slot.Get())); err != nil {
				return err
			}
			continue
		}

		var prevTail tree.Node
		if prev.Valid() {
			prevTail, _ = prev.Tail(key)
		}
		// Per key rather than tree.Node.Refer: Refer would also share keys
		// that were dropped from content since prev.
		if prevTail.Valid() && !st.touched(childPath) && !hostsComputable(childPath, computables) {
			if err := live.Link(key, prevTail); err != nil {
				return err
			}
			continue
		}

		c, ok := ct.cell(key)
		if !ok {
			continue
		}
		nested, ok := c.container()
		if !ok {
			if _, err := live.Branch(key, common.Clone(slot.Get())); err != nil {
				return err
			}
			continue
		}
		var seed any = map[string]any{}
		if nested.array {
			seed = []any{}
		}
		child, err := live.Branch(key, seed)
		if err != nil {
			return err
		}
		if err := el.deepUpdate(st, child, prevTail, childPath, nested, computables); err != nil {
			return err
		}
	}
	return nil
}

func hostsComputable(p path.Path, computables []string) bool {
	prefix := p.String() + path.Delimiter
	for _, id := range computables {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// rollover evicts the oldest max(1, depth/2) snapshots once more than depth
// are retained.
func (el *Element) rollover(rootKey string, st *rootState) {
	depth := el.cfg.MutationHistoryDepth
	if st.timeIndex-st.oldest <= depth {
		return
	}
	n := depth >> 1
	if n < 1 {
		n = 1
	}
	evicted := make([]string, 0, n)
	for i := 0; i < n; i++ {
		key := historyKey(rootKey, st.oldest+i)
		if err := el.mmap.CutRoot(key); err != nil {
			el.reporter.Logger().Error("history eviction failed", "root", rootKey, "snapshot", key, "error", err)
			continue
		}
		evicted = append(evicted, key)
	}
	st.oldest += n
	st.timestamps = append([]int64(nil), st.timestamps[n:]...)
	historyEvictedTotal.Add(float64(len(evicted)))
	el.reporter.Info("history rolled over", "root", rootKey, "evicted", len(evicted), "time_index", st.timeIndex)
	el.emit(activity.HistoryEvicted(rootKey, st.timeIndex, evicted))
}
