package memstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard-app/taskboard-backend/internal/store"
)

var _ store.Store = (*Memstore)(nil)

type widget struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Rank  int    `json:"rank"`
	Group string `json:"group"`
	Done  bool   `json:"done"`
}

func seedWidgets(t *testing.T, m *Memstore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := m.CreateDocument(context.Background(), "widgets", widget{
			Name:  fmt.Sprintf("w%02d", i),
			Rank:  i,
			Group: []string{"a", "b"}[i%2],
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestGetDocumentMissingIsNilNil(t *testing.T) {
	m := New()
	doc, err := m.GetDocument(context.Background(), "widgets", "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGetDocumentsPagination(t *testing.T) {
	m := New()
	seedWidgets(t, m, 7)

	q := &store.Query{
		OrderBy: &store.Order{Field: "rank"},
		Limit:   3,
		Page:    1,
	}
	docs, total, err := m.GetDocuments(context.Background(), "widgets", q)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, docs, 3)
	assert.Equal(t, "w00", docs[0].Data["name"])

	q.Page = 3
	docs, total, err = m.GetDocuments(context.Background(), "widgets", q)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "w06", docs[0].Data["name"])
}

func TestGetDocumentsPageBeyondEndKeepsTotal(t *testing.T) {
	m := New()
	seedWidgets(t, m, 4)

	docs, total, err := m.GetDocuments(context.Background(), "widgets", &store.Query{
		OrderBy: &store.Order{Field: "rank"},
		Limit:   10,
		Page:    5,
	})
	require.NoError(t, err)
	// The replay skipped every matching document, so the page is empty, but
	// the total still reflects the real match count.
	assert.Empty(t, docs)
	assert.EqualValues(t, 4, total)
}

func TestGetDocumentsEmptyReplayShortCircuits(t *testing.T) {
	m := New()
	seedWidgets(t, m, 4)

	// Nothing matches the filter, so the replay for page 2 finds no documents
	// and the read short-circuits to an empty page with total 0.
	docs, total, err := m.GetDocuments(context.Background(), "widgets", &store.Query{
		Filters: []store.Filter{{Field: "group", Op: store.OpEqual, Value: "z"}},
		OrderBy: &store.Order{Field: "rank"},
		Limit:   2,
		Page:    2,
	})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.EqualValues(t, 0, total)
}

func TestGetDocumentsTotalIgnoresPagination(t *testing.T) {
	m := New()
	seedWidgets(t, m, 6)

	docs, total, err := m.GetDocuments(context.Background(), "widgets", &store.Query{
		Filters: []store.Filter{{Field: "group", Op: store.OpEqual, Value: "a"}},
		OrderBy: &store.Order{Field: "rank", Desc: true},
		Limit:   2,
		Page:    1,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, "w04", docs[0].Data["name"])
}

func TestGetDocumentsFilterByDocumentID(t *testing.T) {
	m := New()
	ids := seedWidgets(t, m, 4)

	docs, total, err := m.GetDocuments(context.Background(), "widgets", &store.Query{
		Filters: []store.Filter{{Field: store.DocumentID, Op: store.OpIn, Value: []string{ids[1], ids[3]}}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, docs, 2)
}

func TestGetDocumentsOrdersTimestampsAsInstants(t *testing.T) {
	m := New()
	// Lexicographically "2024-01-02T00:00:00.5Z" < "2024-01-02T00:00:00Z",
	// but as an instant it is later.
	_, err := m.CreateDocument(context.Background(), "events", map[string]any{"name": "late", "at": "2024-01-02T00:00:00.5Z"})
	require.NoError(t, err)
	_, err = m.CreateDocument(context.Background(), "events", map[string]any{"name": "early", "at": "2024-01-02T00:00:00Z"})
	require.NoError(t, err)

	docs, _, err := m.GetDocuments(context.Background(), "events", &store.Query{
		OrderBy: &store.Order{Field: "at"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "early", docs[0].Data["name"])
	assert.Equal(t, "late", docs[1].Data["name"])
}

func TestSetDocumentMergesFields(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.SetDocument(ctx, "widgets", "x", map[string]any{"name": "one", "rank": 1}))
	require.NoError(t, m.SetDocument(ctx, "widgets", "x", map[string]any{"rank": 2}))

	doc, err := m.GetDocument(ctx, "widgets", "x")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "one", doc.Data["name"])
	assert.EqualValues(t, 2, doc.Data["rank"])
}

func TestApplyBatchMixedOps(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.SetDocument(ctx, "widgets", "gone", map[string]any{"name": "gone"}))

	err := m.ApplyBatch(ctx, []store.BatchOp{
		{Kind: store.BatchSet, Collection: "widgets", ID: "a", Data: widget{Name: "a"}},
		{Kind: store.BatchSet, Collection: "widgets", ID: "b", Data: widget{Name: "b"}},
		{Kind: store.BatchDelete, Collection: "widgets", ID: "gone"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len("widgets"))
	doc, err := m.GetDocument(ctx, "widgets", "gone")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestEncodeStripsIDFromStoredData(t *testing.T) {
	m := New()
	ctx := context.Background()
	id, err := m.CreateDocument(ctx, "widgets", widget{ID: "client-side", Name: "n"})
	require.NoError(t, err)
	assert.NotEqual(t, "client-side", id)

	doc, err := m.GetDocument(ctx, "widgets", id)
	require.NoError(t, err)
	_, hasID := doc.Data["id"]
	assert.False(t, hasID)
}

func TestCount(t *testing.T) {
	m := New()
	seedWidgets(t, m, 5)

	total, err := m.Count(context.Background(), "widgets", []store.Filter{
		{Field: "group", Op: store.OpEqual, Value: "b"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
