package store

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Encode converts an entity into document fields. The "id" field is dropped:
// ids live beside the data, never inside it.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %T as an object: %w", v, err)
	}
	delete(fields, "id")
	return fields, nil
}

// Decode fills v from doc, setting its "id" field to the document id.
func Decode(doc Document, v any) error {
	data := make(map[string]any, len(doc.Data)+1)
	for k, val := range doc.Data {
		data[k] = val
	}
	data["id"] = doc.ID
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s into %T: %w", doc.ID, v, err)
	}
	return nil
}

// DecodeAll decodes every document into a T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Normalize converts v to the JSON value model used for stored data.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeFields normalizes every value of fields into a new map.
func NormalizeFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !ValidName(k) {
			return nil, fmt.Errorf("invalid field name %q", k)
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize field %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	return Document{ID: doc.ID, Data: cloneMap(doc.Data)}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
