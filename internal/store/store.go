// Package store is the document-store access layer: uniform CRUD and
// paginated query execution over named collections, with no business rules.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Comparator is the filter operator subset the board needs.
type Comparator string

const (
	OpEqual Comparator = "=="
	OpIn    Comparator = "in"
)

// DocumentID is the pseudo-field that filters on the document id itself.
const DocumentID = "__name__"

type Filter struct {
	Field string
	Op    Comparator
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query describes a filtered, ordered, paginated read. Page is 1-based and
// only takes effect together with Limit and OrderBy. Ordering is a single
// field; ties fall back to store-native document ordering, which is not
// stable across pages.
type Query struct {
	Filters []Filter
	OrderBy *Order
	Limit   int
	Page    int
}

// CacheKey serializes the query for use in cache keys. Two equal queries
// always produce the same key.
func (q *Query) CacheKey() string {
	if q == nil {
		return "{}"
	}
	b, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%+v", q)
	}
	return string(b)
}

// Document is a raw schemaless document. Data never contains the id; it
// travels separately as the store key.
type Document struct {
	ID   string
	Data map[string]any
}

type BatchOpKind int

const (
	BatchSet BatchOpKind = iota
	BatchDelete
)

// BatchOp is one element of an atomic write batch.
type BatchOp struct {
	Kind       BatchOpKind
	Collection string
	ID         string
	Data       any // ignored for deletes
}

// Store is the driver boundary. A missing document is (nil, nil) from
// GetDocument, never an error; call sites decide whether absence is a
// failure. SetDocument is a merge upsert. ApplyBatch applies all ops or none.
type Store interface {
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	// GetDocuments returns the page described by q plus the total count of
	// documents matching q's filters alone.
	GetDocuments(ctx context.Context, collection string, q *Query) ([]Document, int64, error)
	Count(ctx context.Context, collection string, filters []Filter) (int64, error)
	// CreateDocument stores data under a store-assigned id and returns it.
	CreateDocument(ctx context.Context, collection string, data any) (string, error)
	SetDocument(ctx context.Context, collection, id string, data any) error
	DeleteDocument(ctx context.Context, collection, id string) error
	ApplyBatch(ctx context.Context, ops []BatchOp) error
}
