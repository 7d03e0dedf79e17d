// Package postgres implements store.Store on PostgreSQL using GORM.
//
// Every collection lives in one table, documents, keyed by (collection, id) with the
// document body in a jsonb column:
//
//	CREATE TABLE documents (
//	    collection varchar(64),
//	    id         varchar(64),
//	    data       jsonb,
//	    created_at timestamptz,
//	    updated_at timestamptz,
//	    PRIMARY KEY (collection, id)
//	);
//
// A GIN index with jsonb_path_ops serves the equality filters, which are translated to
// a single containment test (data @> '{"year": 2000, "isFeatured": true}'). Ordering uses
// the jsonb value of the ordered field with missing values first, matching the memory
// backend. Without an explicit order, documents come back in creation order.
//
// # Counters and batches
//
// Increment is one UPDATE computing the new value from the current row, so concurrent
// increments never lose updates: PostgreSQL re-evaluates the expression against the
// latest row version after acquiring the row lock. Commit runs all operations of a
// batch in one transaction.
//
// # Subscriptions
//
// Writes made through this Store notify its subscriptions immediately. Writes made by
// other processes are picked up by polling: each subscription re-runs its query every
// poll interval and delivers only when the result changed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// DefaultPollInterval is used when New is given a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// documentRow is the GORM model of the documents table.
type documentRow struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:64"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// Store is a PostgreSQL-backed document store.
type Store struct {
	db  *gorm.DB
	hub *store.Hub
}

var _ store.Store = (*Store)(nil)

// New connects to PostgreSQL. Subscriptions poll every pollInterval.
func New(dsn string, pollInterval time.Duration) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewWithDB(db, pollInterval), nil
}

// NewWithDB wraps an existing GORM connection.
func NewWithDB(db *gorm.DB, pollInterval time.Duration) *Store {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	s := &Store{db: db}
	s.hub = store.NewHub(s.find, pollInterval)
	return s
}

// Migrate creates the documents table and its containment index.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops)`).Error; err != nil {
		return fmt.Errorf("failed to create documents data index: %w", err)
	}
	return nil
}

// Close stops all subscriptions and closes the database connection.
func (s *Store) Close() error {
	s.hub.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	b := store.NewBatch()
	id := b.Create(collection, data)
	if err := s.Commit(ctx, b); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	b := store.NewBatch()
	b.Set(collection, id, data)
	return s.Commit(ctx, b)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	b := store.NewBatch()
	b.Update(collection, id, fields)
	return s.Commit(ctx, b)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	b := store.NewBatch()
	b.Delete(collection, id)
	return s.Commit(ctx, b)
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	b := store.NewBatch()
	b.Increment(collection, id, field, delta)
	return s.Commit(ctx, b)
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if !store.ValidName(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}

	var row documentRow
	err := s.db.WithContext(ctx).Take(&row, "collection = ? AND id = ?", collection, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	doc, err := toDocument(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	q, err := q.Normalized()
	if err != nil {
		return nil, err
	}
	return s.find(ctx, q)
}

func (s *Store) find(ctx context.Context, q store.Query) ([]store.Document, error) {
	db := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", q.Collection)

	if len(q.Where) > 0 {
		match := make(map[string]any, len(q.Where))
		for _, f := range q.Where {
			match[f.Field] = f.Value
		}
		raw, err := json.Marshal(match)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		db = db.Where("data @> CAST(? AS jsonb)", string(raw))
	}

	// Field names are validated identifiers, so they can be inlined.
	if q.OrderBy != "" {
		if q.Desc {
			db = db.Order(fmt.Sprintf("data -> '%s' DESC NULLS LAST", q.OrderBy))
		} else {
			db = db.Order(fmt.Sprintf("data -> '%s' ASC NULLS FIRST", q.OrderBy))
		}
	}
	db = db.Order("created_at").Order("id")

	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []documentRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}

	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Commit applies the batch in one transaction and notifies subscriptions of every
// collection it touched.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	ops, err := b.Ops()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := applyOp(tx, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, collection := range b.Collections() {
		s.hub.Notify(collection)
	}
	return nil
}

func applyOp(tx *gorm.DB, op store.Op) error {
	switch op.Kind {
	case store.OpCreate:
		row, err := newRow(op)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create %s/%s: %w", op.Collection, op.ID, err)
		}

	case store.OpSet:
		row, err := newRow(op)
		if err != nil {
			return err
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to set %s/%s: %w", op.Collection, op.ID, err)
		}

	case store.OpUpdate:
		raw, err := encodeData(op.Data)
		if err != nil {
			return err
		}
		res := tx.Model(&documentRow{}).
			Where("collection = ? AND id = ?", op.Collection, op.ID).
			Updates(map[string]any{
				"data":       gorm.Expr("data || CAST(? AS jsonb)", string(raw)),
				"updated_at": time.Now().UTC(),
			})
		if err := affected(res, op); err != nil {
			return err
		}

	case store.OpDelete:
		err := tx.Where("collection = ? AND id = ?", op.Collection, op.ID).Delete(&documentRow{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", op.Collection, op.ID, err)
		}

	case store.OpIncrement:
		value := "COALESCE((data ->> ?)::numeric, 0) + ?"
		if op.Delta < 0 {
			value = "GREATEST(0, " + value + ")"
		}
		res := tx.Model(&documentRow{}).
			Where("collection = ? AND id = ?", op.Collection, op.ID).
			Updates(map[string]any{
				"data":       gorm.Expr("jsonb_set(data, ARRAY[?]::text[], to_jsonb("+value+"), true)", op.Field, op.Field, op.Delta),
				"updated_at": time.Now().UTC(),
			})
		if err := affected(res, op); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported batch operation %s", op.Kind)
	}
	return nil
}

func affected(res *gorm.DB, op store.Op) error {
	if res.Error != nil {
		return fmt.Errorf("failed to %s %s/%s: %w", op.Kind, op.Collection, op.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, store.ErrNotFound)
	}
	return nil
}

func newRow(op store.Op) (documentRow, error) {
	raw, err := encodeData(op.Data)
	if err != nil {
		return documentRow{}, err
	}
	now := time.Now().UTC()
	return documentRow{
		Collection: op.Collection,
		ID:         op.ID,
		Data:       datatypes.JSON(raw),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func encodeData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return raw, nil
}

func toDocument(row documentRow) (store.Document, error) {
	data := make(map[string]any)
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &data); err != nil {
			return store.Document{}, fmt.Errorf("failed to decode %s/%s: %w", row.Collection, row.ID, err)
		}
	}
	return store.Document{ID: row.ID, Data: data}, nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	q, err := q.Normalized()
	if err != nil {
		return nil, err
	}
	return s.hub.Watch(q, fn), nil
}
