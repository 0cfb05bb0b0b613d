// Package cache holds the client-side stores: a normalized entity cache for
// GraphQL results with optimistic layers, and a TTL cache used to
// revalidate server-side query results.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	pkgerrors "blogify/pkg/errors"
)

// RootQueryID is the record holding top-level query fields.
const RootQueryID = "ROOT_QUERY"

const maxDepth = 64

// ErrCacheMiss is returned when a query's root field has never been written.
var ErrCacheMiss = errors.New("cache: query not cached")

// Variables are the operation variables of a query.
type Variables map[string]any

// Arguments are the field arguments of a query's root field.
type Arguments map[string]any

// Document identifies a query to the cache: its operation name and text,
// the root field it selects and how that field's arguments derive from the
// operation variables.
type Document struct {
	Name      string
	Query     string
	RootField string
	Args      func(Variables) Arguments
}

func (d Document) arguments(vars Variables) Arguments {
	if d.Args == nil {
		return Arguments{}
	}
	return d.Args(vars)
}

// MergeFunc combines the stored value of a field with an incoming one.
// Implementations must not mutate existing.
type MergeFunc func(existing, incoming any, args Arguments) any

// FieldPolicy customizes how a root field is stored. KeyArgs lists the
// arguments that distinguish stored values; nil means every argument does.
type FieldPolicy struct {
	KeyArgs []string
	Merge   MergeFunc
}

// Reference points from a stored value to an entity record.
type Reference struct {
	Ref string `json:"__ref"`
}

// ConsistencyError reports a stored value that cannot be resolved.
type ConsistencyError struct {
	Query  string
	Ref    string
	Reason string
}

func (e *ConsistencyError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("cache: %s: %s (%s)", e.Query, e.Reason, e.Ref)
	}
	return fmt.Sprintf("cache: %s: %s", e.Query, e.Reason)
}

func (e *ConsistencyError) Unwrap() error {
	return pkgerrors.ErrDanglingReference
}

// Metrics receives cache read outcomes.
type Metrics interface {
	RecordCacheRead(operation string, hit bool)
}

// Tx reads and writes one version of the store. It is handed to optimistic
// updates and must not escape them.
type Tx interface {
	ReadQuery(doc Document, vars Variables) (map[string]any, error)
	WriteQuery(doc Document, vars Variables, data map[string]any) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithFieldPolicy installs a policy for a root field.
func WithFieldPolicy(field string, p FieldPolicy) Option {
	return func(c *Cache) { c.policies[field] = p }
}

// WithLogger sets the logger used for replay failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics sets the read metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

type optimisticLayer struct {
	id    string
	apply func(Tx) error
}

// Cache is a normalized store of GraphQL results. Entities carrying
// __typename and id are kept once under "<typename>:<id>" and merged field
// by field; everything else is stored inline under ROOT_QUERY.
//
// Optimistic layers sit above the base store. Reads see the base with every
// layer applied in order; writes go to the base and layers are replayed on
// top of it.
type Cache struct {
	mu        sync.Mutex
	policies  map[string]FieldPolicy
	base      *store
	layers    []optimisticLayer
	effective *store
	logger    *zap.Logger
	metrics   Metrics
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		policies: make(map[string]FieldPolicy),
		base:     newStore(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadQuery returns the data for doc, resolving references. It returns
// ErrCacheMiss when the root field is absent.
func (c *Cache) ReadQuery(doc Document, vars Variables) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.current().read(c, doc, vars)
	if c.metrics != nil {
		c.metrics.RecordCacheRead(doc.Name, err == nil)
	}
	return data, err
}

// WriteQuery normalizes data and writes it to the base store. The root
// field's merge policy, if any, decides how it combines with what is there.
func (c *Cache) WriteQuery(doc Document, vars Variables, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.base.write(c, doc, vars, data); err != nil {
		return err
	}
	c.replay()
	return nil
}

// UpdateBase runs fn against the base store, ignoring optimistic layers,
// and commits its writes only if fn succeeds. Layers are replayed on top.
func (c *Cache) UpdateBase(fn func(Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.base.clone()
	if err := fn(&txn{cache: c, store: next}); err != nil {
		return err
	}
	c.base = next
	c.replay()
	return nil
}

// RecordOptimistic runs fn against the current view inside a new layer
// named id. If fn fails nothing is recorded.
func (c *Cache) RecordOptimistic(id string, fn func(Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.layers {
		if l.id == id {
			return fmt.Errorf("cache: optimistic layer %q already exists", id)
		}
	}

	next := c.current().clone()
	if err := fn(&txn{cache: c, store: next}); err != nil {
		return err
	}

	c.layers = append(c.layers, optimisticLayer{id: id, apply: fn})
	c.effective = next
	return nil
}

// RemoveOptimistic discards the layer named id and replays the remaining
// layers over the base. It reports whether the layer existed.
func (c *Cache) RemoveOptimistic(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, l := range c.layers {
		if l.id == id {
			c.layers = append(c.layers[:i:i], c.layers[i+1:]...)
			c.replay()
			return true
		}
	}
	return false
}

// OptimisticLayers returns the ids of the active layers, oldest first.
func (c *Cache) OptimisticLayers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, len(c.layers))
	for i, l := range c.layers {
		ids[i] = l.id
	}
	return ids
}

// Reset drops every record and optimistic layer.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.base = newStore()
	c.layers = nil
	c.effective = nil
}

// Snapshot returns a copy of the records as currently visible.
func (c *Cache) Snapshot() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current().clone().records
}

// Identify returns the record key for an entity object.
func Identify(obj map[string]any) (string, bool) {
	typename, _ := obj["__typename"].(string)
	if typename == "" {
		return "", false
	}

	var id string
	switch v := obj["id"].(type) {
	case string:
		id = v
	case fmt.Stringer:
		id = v.String()
	}
	if id == "" {
		return "", false
	}
	return typename + ":" + id, true
}

func (c *Cache) current() *store {
	if c.effective != nil {
		return c.effective
	}
	return c.base
}

// replay rebuilds the optimistic view. A layer that no longer applies is
// skipped and its partial writes discarded.
func (c *Cache) replay() {
	if len(c.layers) == 0 {
		c.effective = nil
		return
	}

	view := c.base.clone()
	for _, l := range c.layers {
		attempt := view.clone()
		if err := l.apply(&txn{cache: c, store: attempt}); err != nil {
			c.logger.Warn("Optimistic layer replay failed",
				zap.String("layer", l.id),
				zap.Error(err),
			)
			continue
		}
		view = attempt
	}
	c.effective = view
}

type txn struct {
	cache *Cache
	store *store
}

func (t *txn) ReadQuery(doc Document, vars Variables) (map[string]any, error) {
	return t.store.read(t.cache, doc, vars)
}

func (t *txn) WriteQuery(doc Document, vars Variables, data map[string]any) error {
	return t.store.write(t.cache, doc, vars, data)
}

type store struct {
	records map[string]map[string]any
}

func newStore() *store {
	return &store{records: make(map[string]map[string]any)}
}

func (s *store) clone() *store {
	out := &store{records: make(map[string]map[string]any, len(s.records))}
	for k, rec := range s.records {
		out.records[k] = cloneValue(rec).(map[string]any)
	}
	return out
}

func (s *store) read(c *Cache, doc Document, vars Variables) (map[string]any, error) {
	root, ok := s.records[RootQueryID]
	if !ok {
		return nil, ErrCacheMiss
	}

	key := storeFieldName(doc.RootField, doc.arguments(vars), c.policies[doc.RootField].KeyArgs)
	val, ok := root[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	out, err := s.denormalize(doc.Name, val, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{doc.RootField: out}, nil
}

func (s *store) write(c *Cache, doc Document, vars Variables, data map[string]any) error {
	val, ok := data[doc.RootField]
	if !ok {
		return fmt.Errorf("cache: write %s: result has no %q field", doc.Name, doc.RootField)
	}

	args := doc.arguments(vars)
	policy := c.policies[doc.RootField]
	key := storeFieldName(doc.RootField, args, policy.KeyArgs)

	incoming := s.normalize(val)

	root, ok := s.records[RootQueryID]
	if !ok {
		root = map[string]any{"__typename": "Query"}
		s.records[RootQueryID] = root
	}

	if policy.Merge != nil {
		incoming = policy.Merge(root[key], incoming, args)
	}
	root[key] = incoming
	return nil
}

func (s *store) normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		fields := make(map[string]any, len(t))
		for k, fv := range t {
			fields[k] = s.normalize(fv)
		}
		id, ok := Identify(t)
		if !ok {
			return fields
		}
		rec, exists := s.records[id]
		if !exists {
			rec = make(map[string]any, len(fields))
			s.records[id] = rec
		}
		for k, fv := range fields {
			rec[k] = fv
		}
		return Reference{Ref: id}
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.normalize(item)
		}
		return out
	default:
		return v
	}
}

func (s *store) denormalize(query string, v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, &ConsistencyError{Query: query, Reason: "reference cycle"}
	}

	switch t := v.(type) {
	case Reference:
		rec, ok := s.records[t.Ref]
		if !ok {
			return nil, &ConsistencyError{Query: query, Ref: t.Ref, Reason: "dangling reference"}
		}
		return s.denormalize(query, rec, depth+1)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, fv := range t {
			resolved, err := s.denormalize(query, fv, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := s.denormalize(query, item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// storeFieldName renders the key a root field is stored under:
// the bare field name, or name(<json of key arguments>).
func storeFieldName(field string, args Arguments, keyArgs []string) string {
	selected := make(map[string]any)
	if keyArgs == nil {
		for k, v := range args {
			selected[k] = v
		}
	} else {
		for _, k := range keyArgs {
			if v, ok := args[k]; ok {
				selected[k] = v
			}
		}
	}
	if len(selected) == 0 {
		return field
	}

	// encoding/json sorts map keys, which keeps the name stable.
	b, err := json.Marshal(selected)
	if err != nil {
		keys := make([]string, 0, len(selected))
		for k := range selected {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s(%v)", field, keys)
	}
	return field + "(" + string(b) + ")"
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, fv := range t {
			out[k] = cloneValue(fv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
