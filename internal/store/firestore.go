package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
)

const countAlias = "total"

// FirestoreStore implements Store on a Firestore database.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Store("store.get "+collection, err)
	}
	return &Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// GetDocuments runs the data query and the filters-only count query
// concurrently. Offsets are emulated by cursor replay: for page N > 1 a
// throwaway query fetches the first limit*(N-1) documents and the real query
// starts after its last one. An empty replay short-circuits to an empty page
// with total 0 rather than paying for a count of a page nobody has.
func (s *FirestoreStore) GetDocuments(ctx context.Context, collection string, q *Query) ([]Document, int64, error) {
	col := s.client.Collection(collection)

	countQ := col.Query
	if q != nil {
		for _, f := range q.Filters {
			field, value := filterValue(col, f)
			countQ = countQ.Where(field, string(f.Op), value)
		}
	}

	dataQ := countQ
	if q != nil && q.OrderBy != nil {
		dataQ = dataQ.OrderBy(q.OrderBy.Field, direction(q.OrderBy.Desc))
	}
	if q != nil && q.Limit > 0 {
		dataQ = dataQ.Limit(q.Limit)
	}

	if q != nil && q.Page > 1 && q.Limit > 0 && q.OrderBy != nil {
		replay := countQ.
			OrderBy(q.OrderBy.Field, direction(q.OrderBy.Desc)).
			Limit(q.Limit * (q.Page - 1))
		snaps, err := replay.Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, apperror.Store("store.query "+collection, err)
		}
		if len(snaps) == 0 {
			return []Document{}, 0, nil
		}
		dataQ = dataQ.StartAfter(snaps[len(snaps)-1])
	}

	var (
		docs  []Document
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snaps, err := dataQ.Documents(gctx).GetAll()
		if err != nil {
			return apperror.Store("store.query "+collection, err)
		}
		docs = make([]Document, 0, len(snaps))
		for _, snap := range snaps {
			docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
		}
		return nil
	})
	g.Go(func() error {
		n, err := countQuery(gctx, countQ)
		if err != nil {
			return apperror.Store("store.count "+collection, err)
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *FirestoreStore) Count(ctx context.Context, collection string, filters []Filter) (int64, error) {
	col := s.client.Collection(collection)
	q := col.Query
	for _, f := range filters {
		field, value := filterValue(col, f)
		q = q.Where(field, string(f.Op), value)
	}
	n, err := countQuery(ctx, q)
	if err != nil {
		return 0, apperror.Store("store.count "+collection, err)
	}
	return n, nil
}

func (s *FirestoreStore) CreateDocument(ctx context.Context, collection string, data any) (string, error) {
	m, err := Encode(data)
	if err != nil {
		return "", apperror.Store("store.create "+collection, err)
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, m)
	if err != nil {
		return "", apperror.Store("store.create "+collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) SetDocument(ctx context.Context, collection, id string, data any) error {
	m, err := Encode(data)
	if err != nil {
		return apperror.Store("store.set "+collection, err)
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, m, firestore.MergeAll); err != nil {
		return apperror.Store("store.set "+collection, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteDocument(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return apperror.Store("store.delete "+collection, err)
	}
	return nil
}

// ApplyBatch commits all ops in one Firestore write batch: all-or-nothing at
// the batch level, never across batches.
func (s *FirestoreStore) ApplyBatch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	batch := s.client.Batch()
	for _, op := range ops {
		ref := s.client.Collection(op.Collection).Doc(op.ID)
		switch op.Kind {
		case BatchSet:
			m, err := Encode(op.Data)
			if err != nil {
				return apperror.Store("store.batch "+op.Collection, err)
			}
			batch.Set(ref, m)
		case BatchDelete:
			batch.Delete(ref)
		default:
			return apperror.Store("store.batch", fmt.Errorf("unknown batch op kind %d", op.Kind))
		}
	}
	if _, err := batch.Commit(ctx); err != nil {
		return apperror.Store("store.batch", err)
	}
	return nil
}

func direction(desc bool) firestore.Direction {
	if desc {
		return firestore.Desc
	}
	return firestore.Asc
}

// filterValue rewrites DocumentID filters into document references, which is
// what Firestore expects for __name__ comparisons.
func filterValue(col *firestore.CollectionRef, f Filter) (string, any) {
	if f.Field != DocumentID {
		return f.Field, f.Value
	}
	switch v := f.Value.(type) {
	case string:
		return firestore.DocumentID, col.Doc(v)
	case []string:
		refs := make([]*firestore.DocumentRef, 0, len(v))
		for _, id := range v {
			refs = append(refs, col.Doc(id))
		}
		return firestore.DocumentID, refs
	}
	return firestore.DocumentID, f.Value
}

func countQuery(ctx context.Context, q firestore.Query) (int64, error) {
	res, err := q.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := res[countAlias]
	if !ok {
		return 0, fmt.Errorf("aggregation result missing %q", countAlias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected aggregation value type %T", raw)
	}
	return value.GetIntegerValue(), nil
}
