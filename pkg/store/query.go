package store

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
)

// fieldPattern restricts collection and field names to plain identifiers.
// Backends interpolate them into SQL and SurrealQL, so nothing else is accepted.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name may be used as a collection or field name.
func ValidName(name string) bool {
	return fieldPattern.MatchString(name)
}

// Filter is an equality condition on one field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection. All filters must match.
// OrderBy is optional; without it documents come back in insertion order on the
// memory backend and in backend order elsewhere. A zero Limit means no limit.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// NewQuery starts a query on collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Eq returns a copy of q with an extra equality filter.
func (q Query) Eq(field string, value any) Query {
	where := make([]Filter, len(q.Where), len(q.Where)+1)
	copy(where, q.Where)
	q.Where = append(where, Filter{Field: field, Value: value})
	return q
}

// Order returns a copy of q ordered by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Take returns a copy of q limited to n documents. Non-positive n removes the limit.
func (q Query) Take(n int) Query {
	if n < 0 {
		n = 0
	}
	q.Limit = n
	return q
}

// Normalized validates q and returns a copy whose filter values are normalized
// the same way stored documents are.
func (q Query) Normalized() (Query, error) {
	if !ValidName(q.Collection) {
		return q, fmt.Errorf("invalid collection name %q", q.Collection)
	}
	if q.OrderBy != "" && !ValidName(q.OrderBy) {
		return q, fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	where := make([]Filter, len(q.Where))
	for i, f := range q.Where {
		if !ValidName(f.Field) {
			return q, fmt.Errorf("invalid filter field %q", f.Field)
		}
		v, err := Normalize(f.Value)
		if err != nil {
			return q, fmt.Errorf("failed to normalize filter %s: %w", f.Field, err)
		}
		where[i] = Filter{Field: f.Field, Value: v}
	}
	q.Where = where
	return q, nil
}

// Matches reports whether doc satisfies every filter of q. Filter values must be normalized.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Where {
		v, ok := doc.Data[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// Apply evaluates q over docs in memory: filter, stable sort, limit.
// docs are expected in insertion order and are not modified.
func Apply(q Query, docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if q.Matches(doc) {
			out = append(out, doc)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := CompareValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// CompareValues orders two normalized values. nil sorts first, then booleans,
// numbers and strings; values of other kinds compare equal.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
