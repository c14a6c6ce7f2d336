// Package memstore is an in-memory Store used in development mode (no
// Firestore project configured) and in tests. It honors the same observable
// query contract as the Firestore implementation, including the cursor-replay
// pagination semantics.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/store"
)

type entry struct {
	data map[string]any
	seq  int64
}

type Memstore struct {
	mu   sync.RWMutex
	cols map[string]map[string]entry
	seq  int64
}

func New() *Memstore {
	return &Memstore{cols: make(map[string]map[string]entry)}
}

func (m *Memstore) GetDocument(_ context.Context, collection, id string) (*store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.cols[collection][id]
	if !ok {
		return nil, nil
	}
	return &store.Document{ID: id, Data: copyMap(e.data)}, nil
}

func (m *Memstore) GetDocuments(_ context.Context, collection string, q *store.Query) ([]store.Document, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filters []store.Filter
	if q != nil {
		filters = q.Filters
	}
	matched := m.matching(collection, filters)
	total := int64(len(matched))

	if q != nil && q.OrderBy != nil {
		orderDocs(matched, q.OrderBy)
	}

	// Cursor replay: page N starts after the limit*(N-1) preceding documents.
	// Only a replay that finds no documents at all short-circuits to total 0;
	// a page past the end of a non-empty match set keeps the real total.
	if q != nil && q.Page > 1 && q.Limit > 0 && q.OrderBy != nil {
		prefix := q.Limit * (q.Page - 1)
		if prefix > len(matched) {
			prefix = len(matched)
		}
		if prefix == 0 {
			return []store.Document{}, 0, nil
		}
		matched = matched[prefix:]
	}
	if q != nil && q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]store.Document, 0, len(matched))
	for _, d := range matched {
		out = append(out, store.Document{ID: d.ID, Data: copyMap(d.Data)})
	}
	return out, total, nil
}

func (m *Memstore) Count(_ context.Context, collection string, filters []store.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(collection, filters))), nil
}

func (m *Memstore) CreateDocument(_ context.Context, collection string, data any) (string, error) {
	doc, err := store.Encode(data)
	if err != nil {
		return "", apperror.Store("memstore.create "+collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.put(collection, id, doc)
	return id, nil
}

func (m *Memstore) SetDocument(_ context.Context, collection, id string, data any) error {
	doc, err := store.Encode(data)
	if err != nil {
		return apperror.Store("memstore.set "+collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(collection, id, doc)
	return nil
}

func (m *Memstore) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols[collection], id)
	return nil
}

// ApplyBatch encodes every op before touching state, so a batch either
// applies fully or not at all.
func (m *Memstore) ApplyBatch(_ context.Context, ops []store.BatchOp) error {
	encoded := make([]map[string]any, len(ops))
	for i, op := range ops {
		if op.Kind == store.BatchSet {
			doc, err := store.Encode(op.Data)
			if err != nil {
				return apperror.Store("memstore.batch "+op.Collection, err)
			}
			encoded[i] = doc
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, op := range ops {
		switch op.Kind {
		case store.BatchSet:
			m.put(op.Collection, op.ID, encoded[i])
		case store.BatchDelete:
			delete(m.cols[op.Collection], op.ID)
		default:
			return apperror.Store("memstore.batch", fmt.Errorf("unknown batch op kind %d", op.Kind))
		}
	}
	return nil
}

// Len reports the number of documents in a collection.
func (m *Memstore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cols[collection])
}

func (m *Memstore) put(collection, id string, data map[string]any) {
	if m.cols[collection] == nil {
		m.cols[collection] = make(map[string]entry)
	}
	m.seq++
	m.cols[collection][id] = entry{data: data, seq: m.seq}
}

func (m *Memstore) merge(collection, id string, data map[string]any) {
	existing, ok := m.cols[collection][id]
	if !ok {
		m.put(collection, id, data)
		return
	}
	for k, v := range data {
		existing.data[k] = v
	}
	m.cols[collection][id] = existing
}

type matchedDoc struct {
	ID   string
	Data map[string]any
	seq  int64
}

func (m *Memstore) matching(collection string, filters []store.Filter) []matchedDoc {
	out := make([]matchedDoc, 0)
	for id, e := range m.cols[collection] {
		ok := true
		for _, f := range filters {
			if !matches(id, e.data, f) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, matchedDoc{ID: id, Data: e.data, seq: e.seq})
		}
	}
	// Default ordering mirrors a stable store-native order.
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func matches(id string, data map[string]any, f store.Filter) bool {
	var candidate any
	if f.Field == store.DocumentID {
		candidate = id
	} else {
		candidate = data[f.Field]
	}
	switch f.Op {
	case store.OpEqual:
		return compare(candidate, f.Value) == 0
	case store.OpIn:
		values, ok := normalize(f.Value).([]any)
		if !ok {
			return compare(candidate, f.Value) == 0
		}
		for _, v := range values {
			if compare(candidate, v) == 0 {
				return true
			}
		}
		return false
	}
	return false
}

func orderDocs(docs []matchedDoc, order *store.Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compare(docs[i].Data[order.Field], docs[j].Data[order.Field])
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

// normalize pushes a value through JSON so that filter arguments and stored
// document values land in the same type universe (string/float64/bool/[]any).
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
		}
		// RFC3339 strings with differing fraction lengths do not sort
		// lexicographically; compare them as instants.
		at, errA := time.Parse(time.RFC3339Nano, av)
		bt, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return at.Compare(bt)
		}
		return strings.Compare(av, bv)
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
		}
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
