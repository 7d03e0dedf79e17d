package store

import (
	"fmt"

	"github.com/google/uuid"
)

// OpKind is the kind of a batched write.
type OpKind int

const (
	OpCreate OpKind = iota
	OpSet
	OpUpdate
	OpDelete
	OpIncrement
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpIncrement:
		return "increment"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one write of a Batch.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       map[string]any
	Field      string
	Delta      int64
}

// Batch collects writes that a Store applies atomically with Commit.
// A Batch is not safe for concurrent use.
type Batch struct {
	ops []Op
	err error
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// Create queues an insert under a new id and returns that id.
func (b *Batch) Create(collection string, data map[string]any) string {
	id := NewID()
	b.add(Op{Kind: OpCreate, Collection: collection, ID: id, Data: data})
	return id
}

// Set queues an insert-or-replace of the document id.
func (b *Batch) Set(collection, id string, data map[string]any) {
	b.add(Op{Kind: OpSet, Collection: collection, ID: id, Data: data})
}

// Update queues a field merge into an existing document.
func (b *Batch) Update(collection, id string, fields map[string]any) {
	b.add(Op{Kind: OpUpdate, Collection: collection, ID: id, Data: fields})
}

// Delete queues the removal of a document.
func (b *Batch) Delete(collection, id string) {
	b.add(Op{Kind: OpDelete, Collection: collection, ID: id})
}

// Increment queues an atomic counter delta.
func (b *Batch) Increment(collection, id, field string, delta int64) {
	b.add(Op{Kind: OpIncrement, Collection: collection, ID: id, Field: field, Delta: delta})
}

func (b *Batch) add(op Op) {
	if b.err != nil {
		return
	}
	if !ValidName(op.Collection) {
		b.err = fmt.Errorf("batch %s: invalid collection name %q", op.Kind, op.Collection)
		return
	}
	if op.Kind == OpIncrement && !ValidName(op.Field) {
		b.err = fmt.Errorf("batch increment: invalid field name %q", op.Field)
		return
	}
	if op.Data != nil {
		data, err := NormalizeFields(op.Data)
		if err != nil {
			b.err = fmt.Errorf("batch %s: %w", op.Kind, err)
			return
		}
		op.Data = data
	}
	b.ops = append(b.ops, op)
}

// Ops returns the queued operations, or the first error met while queueing.
func (b *Batch) Ops() ([]Op, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.ops, nil
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Collections returns the distinct collections the batch writes to.
func (b *Batch) Collections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range b.ops {
		if !seen[op.Collection] {
			seen[op.Collection] = true
			out = append(out, op.Collection)
		}
	}
	return out
}
