package store

import (
	"encoding/json"
	"fmt"
)

// Encode flattens an entity into a plain document map via its json tags.
// The id field is stripped: ids live in the store key, not in the document.
func Encode(data any) (map[string]any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(m, "id")
	return m, nil
}

// Decode materializes a document into T, injecting the store key as the
// entity id.
func Decode[T any](doc *Document) (*T, error) {
	m := make(map[string]any, len(doc.Data)+1)
	for k, v := range doc.Data {
		m[k] = v
	}
	m["id"] = doc.ID

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return &out, nil
}

func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i := range docs {
		v, err := Decode[T](&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
