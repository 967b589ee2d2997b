package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/eval"
	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/goliatone/go-composite/pkg/path"
	"github.com/goliatone/go-composite/pkg/tree"
)

// Element owns root contents, their descriptors and the mutation map that
// backs accessors and history. An Element is not safe for concurrent use.
type Element struct {
	cfg      Config
	reporter *logging.Reporter
	runner   *eval.Runner
	emitter  *activity.Emitter
	registry *descriptor.Registry
	content  *container
	mmap     *tree.Tree
	roots    map[string]*rootState
}

// rootState is the per-root history bookkeeping.
type rootState struct {
	immutable bool
	timeIndex int
	oldest    int
	// timestamps[i] is the age in ms of time index oldest+i, relative to
	// reference.
	timestamps []int64
	reference  time.Time
	records    map[string]path.Path
	dirty      bool
}

// New builds an empty Element.
func New(opts ...Option) (*Element, error) {
	cfg, err := ResolveConfig(opts...)
	if err != nil {
		return nil, err
	}
	reporter := logging.NewReporter(cfg.Logger, !cfg.Lenient, cfg.Debug)
	emitter := activity.NewEmitter(cfg.ActivityHooks, activity.Config{
		Enabled:  len(cfg.ActivityHooks) > 0,
		Channel:  cfg.ActivityChannel,
		Actor:    cfg.ActivityActor,
		Metadata: cfg.ActivityMetadata,
		Clock:    cfg.Clock,
	})
	functions, err := cfg.functionRegistry()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	runner := eval.NewRunner(
		eval.WithEvaluator(cfg.Evaluator),
		eval.WithFunctionRegistry(functions),
		eval.WithLogger(eval.StructuredLogger(cfg.Logger)),
		eval.WithClock(cfg.Clock),
	)
	return &Element{
		cfg:      cfg,
		reporter: reporter,
		runner:   runner,
		emitter:  emitter,
		registry: descriptor.NewRegistry(descriptor.WithReporter(reporter), descriptor.WithEmitter(emitter)),
		content:  newContainer(false),
		mmap:     tree.New(),
		roots:    map[string]*rootState{},
	}, nil
}

// Config returns the resolved configuration.
func (el *Element) Config() Config { return el.cfg }

// Registry exposes the descriptor registry.
func (el *Element) Registry() *descriptor.Registry { return el.registry }

// Runner exposes the expression runner used by string computables and
// conditions.
func (el *Element) Runner() *eval.Runner { return el.runner }

// Reporter exposes the element's diagnostics reporter.
func (el *Element) Reporter() *logging.Reporter { return el.reporter }

// RootKeys lists read roots in sorted order.
func (el *Element) RootKeys() []string {
	keys := make([]string, 0, len(el.roots))
	for key := range el.roots {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Reading is returned by Read to optionally mark the root immutable.
type Reading struct {
	el      *Element
	rootKey string
}

// RootKey is the key the bundle was read under.
func (r *Reading) RootKey() string { return r.rootKey }

// AsImmutable marks the root immutable, or mutable when flag is false.
func (r *Reading) AsImmutable(flag ...bool) error {
	immutable := true
	if len(flag) > 0 {
		immutable = flag[0]
	}
	return r.el.SetImmutability(r.rootKey, immutable)
}

// Read formats bundle, stores it under name and seeds the accessor tree.
// The root starts mutable.
func (el *Element) Read(bundle Bundle, name string) (*Reading, error) {
	if err := validRootKey(name); err != nil {
		return nil, err
	}
	if _, exists := el.roots[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrRootExists, name)
	}
	entries, err := FormatBundle(bundle)
	if err != nil {
		return nil, err
	}
	el.content.put(name, &cell{el: el, path: path.Path{name}, value: newContainer(false)})
	el.roots[name] = &rootState{records: map[string]path.Path{}}
	if err := el.populate(name, entries); err != nil {
		el.discard(name)
		return nil, err
	}
	if err := el.rebuild(name); err != nil {
		el.discard(name)
		return nil, err
	}
	el.reporter.Info("bundle read", "root", name, "keys", len(entries))
	return &Reading{el: el, rootKey: name}, nil
}

func (el *Element) populate(rootKey string, entries []NamedEntry) error {
	root := path.Path{rootKey}
	ct, err := el.containerAt(root)
	if err != nil {
		return err
	}
	cursor := &Cursor{el: el, path: root}
	var computables []NamedEntry
	for _, named := range entries {
		if named.Entry.Computable != nil {
			computables = append(computables, named)
			continue
		}
		if err := el.addKey(ct, root, named.Key, common.Normalize(named.Entry.Value)); err != nil {
			return err
		}
		if err := named.Entry.describe(cursor.DescribeItem(named.Key)); err != nil {
			return err
		}
	}
	// Computables bind to siblings, so they go in once every value exists.
	for _, named := range computables {
		if err := el.addKey(ct, root, named.Key, nil); err != nil {
			return err
		}
		if err := cursor.DescribeItem(named.Key).AsComputable(*named.Entry.Computable); err != nil {
			return err
		}
	}
	return nil
}

func (el *Element) discard(rootKey string) {
	if err := el.registry.RemoveUnder(rootKey); err != nil {
		el.reporter.Logger().Warn("discarding root descriptors failed", "root", rootKey, "error", err)
	}
	delete(el.content.slots, rootKey)
	for i, key := range el.content.keys {
		if key == rootKey {
			el.content.keys = append(el.content.keys[:i:i], el.content.keys[i+1:]...)
			break
		}
	}
	for _, key := range el.mmap.RootKeys() {
		if key == rootKey || strings.HasPrefix(key, rootKey+"{") {
			_ = el.mmap.CutRoot(key)
		}
	}
	delete(el.roots, rootKey)
}

func validRootKey(name string) error {
	if name == "" {
		return fmt.Errorf("data: root key must not be empty")
	}
	if strings.ContainsAny(name, path.Delimiter+"{}") {
		return fmt.Errorf("data: root key %q must not contain %q, '{' or '}'", name, path.Delimiter)
	}
	return nil
}

func (el *Element) root(rootKey string) (*rootState, error) {
	st, ok := el.roots[rootKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRootNotFound, rootKey)
	}
	return st, nil
}

// Select returns a cursor on the object or array at pathID.
func (el *Element) Select(pathID any) (*Cursor, error) {
	p, err := path.From(pathID)
	if err != nil {
		return nil, err
	}
	if _, err := el.root(p.Root()); err != nil {
		return nil, err
	}
	if _, err := el.containerAt(p); err != nil {
		return nil, err
	}
	return &Cursor{el: el, path: p}, nil
}

// GetAccessor returns the live accessor subtree at pathID, rebuilding it
// first when writes are pending.
func (el *Element) GetAccessor(pathID any) (*Accessor, error) {
	p, err := path.From(pathID)
	if err != nil {
		return nil, err
	}
	if err := el.sync(p.Root()); err != nil {
		return nil, err
	}
	node, err := el.mmap.Select(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPathNotFound, p, err)
	}
	return &Accessor{el: el, node: node, path: p}, nil
}

// IsImmutable reports whether rootKey keeps history.
func (el *Element) IsImmutable(rootKey string) bool {
	st, ok := el.roots[rootKey]
	return ok && st.immutable
}

// SetImmutability switches history tracking for rootKey. Turning it on
// starts at time index 0; turning it off discards all history.
func (el *Element) SetImmutability(rootKey string, immutable bool) error {
	st, err := el.root(rootKey)
	if err != nil {
		return err
	}
	if st.immutable == immutable {
		el.reporter.Warn1("immutability unchanged", "root", rootKey, "immutable", immutable)
		return nil
	}
	if !immutable {
		if err := el.Flush(rootKey); err != nil {
			return err
		}
		st.immutable = false
		st.timestamps = nil
		el.reporter.Info("root is mutable", "root", rootKey)
		return nil
	}
	if err := el.sync(rootKey); err != nil {
		return err
	}
	st.immutable = true
	el.resetHistory(st)
	el.reporter.Info("root is immutable", "root", rootKey)
	return nil
}

// Flush discards every historical snapshot of rootKey and restarts its
// time index at 0. Flushing a mutable root only syncs the accessor.
func (el *Element) Flush(rootKey string) error {
	st, err := el.root(rootKey)
	if err != nil {
		return err
	}
	if err := el.sync(rootKey); err != nil {
		return err
	}
	if !st.immutable {
		return nil
	}
	cut := el.HistoryKeys(rootKey)
	for _, key := range cut {
		if err := el.mmap.CutRoot(key); err != nil {
			return err
		}
	}
	el.resetHistory(st)
	if len(cut) > 0 {
		el.emit(activity.StateFlushed(rootKey, cut))
	}
	el.reporter.Info("history flushed", "root", rootKey, "snapshots", len(cut))
	return nil
}

func (el *Element) resetHistory(st *rootState) {
	st.timeIndex = 0
	st.oldest = 0
	st.timestamps = []int64{0}
	st.reference = el.cfg.Clock()
}

// TimeIndex is the number of snapshots taken since the root became
// immutable or was last flushed.
func (el *Element) TimeIndex(rootKey string) (int, error) {
	st, err := el.root(rootKey)
	if err != nil {
		return 0, err
	}
	return st.timeIndex, nil
}

// Timestamps lists, for each retained time index and the live one, the ms
// elapsed since history tracking started.
func (el *Element) Timestamps(rootKey string) ([]int64, error) {
	st, err := el.root(rootKey)
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), st.timestamps...), nil
}

// HistoryKeys lists retained snapshot keys of rootKey, oldest first.
func (el *Element) HistoryKeys(rootKey string) []string {
	st, ok := el.roots[rootKey]
	if !ok || !st.immutable {
		return nil
	}
	keys := make([]string, 0, st.timeIndex-st.oldest)
	for i := st.oldest; i < st.timeIndex; i++ {
		keys = append(keys, historyKey(rootKey, i))
	}
	return keys
}

// Subscribe registers h on the observable at pathID.
func (el *Element) Subscribe(pathID any, handlerKey string, h descriptor.Handler) error {
	p, err := path.From(pathID)
	if err != nil {
		return err
	}
	observable, err := el.registry.Observable(p.String())
	if err != nil {
		return err
	}
	return observable.Subscribe(handlerKey, h)
}

func (el *Element) emit(event activity.Event) {
	if !el.emitter.Enabled() {
		return
	}
	if err := el.emitter.Emit(context.Background(), event); err != nil {
		el.reporter.Logger().Warn("activity emission failed", "verb", event.Verb, "error", err)
	}
}

func (el *Element) descriptorOptions(rootKey string) []descriptor.Option {
	return append(el.registry.Options(), descriptor.WithRootKey(rootKey))
}

func historyKey(rootKey string, index int) string {
	return fmt.Sprintf("%s{%d}", rootKey, index)
}
