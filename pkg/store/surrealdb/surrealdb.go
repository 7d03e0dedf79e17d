// Package surrealdb implements store.Store on SurrealDB using native SurrealQL.
//
// Each collection is a SurrealDB table and each document a record whose id is the
// document id, addressed with type::thing($tb, $id). Equality filters become a WHERE
// clause and ordering an ORDER BY on the document field, so queries run entirely on
// the server.
//
// # Batches
//
// Commit sends one BEGIN/COMMIT TRANSACTION query. Update and increment operations
// are guarded by a record::exists check that THROWs inside the transaction, which
// cancels the whole batch and surfaces as store.ErrNotFound.
//
// Single-statement writes that lose an optimistic transaction conflict (concurrent
// increments on one record) are retried a few times with backoff.
//
// # Subscriptions
//
// The first subscription on a collection opens a LIVE SELECT on its table; the
// notifications it produces wake every subscription of that collection, which then
// re-runs its own query. The live query is killed when the last subscription on the
// table goes away.
//
// # Example
//
//	s, err := surrealdb.New(ctx, surrealdb.Config{
//		URL:       "ws://localhost:8000",
//		Namespace: "acervo",
//		Database:  "acervo",
//		Username:  "root",
//		Password:  "root",
//		Indexes:   map[string][]string{"events": {"date", "isFeatured"}},
//	})
package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// notFoundMarker tags THROW messages raised for missing records.
const notFoundMarker = "acervo:not_found"

const maxConflictRetries = 5

// Config describes the SurrealDB connection.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string

	// Indexes lists, per table, the fields Migrate defines an index on.
	Indexes map[string][]string

	// PollInterval, when positive, also re-runs subscriptions periodically.
	PollInterval time.Duration

	Logger zerolog.Logger
}

// Store is a SurrealDB-backed document store.
type Store struct {
	db      *surrealdb.DB
	indexes map[string][]string
	log     zerolog.Logger
	hub     *store.Hub

	mu    sync.Mutex
	lives map[string]string // collection -> live query id
}

var _ store.Store = (*Store)(nil)

// New connects, signs in when credentials are set and selects the namespace and database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	s := &Store{
		db:      db,
		indexes: cfg.Indexes,
		log:     cfg.Logger.With().Str("store", "surrealdb").Logger(),
		lives:   make(map[string]string),
	}
	s.hub = store.NewHub(s.find, cfg.PollInterval)
	s.hub.OnWatch = s.startLive
	s.hub.OnRelease = s.killLive
	return s, nil
}

// Migrate defines every configured table and index. DEFINE ... IF NOT EXISTS makes it
// safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	var b strings.Builder
	for table, fields := range s.indexes {
		if !store.ValidName(table) {
			return fmt.Errorf("invalid table name %q", table)
		}
		fmt.Fprintf(&b, "DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;\n", table)
		for _, field := range fields {
			if !store.ValidName(field) {
				return fmt.Errorf("invalid index field %q", field)
			}
			fmt.Fprintf(&b, "DEFINE INDEX IF NOT EXISTS idx_%s_%s ON TABLE %s FIELDS %s;\n", table, field, table, field)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	if _, err := surrealdb.Query[any](ctx, s.db, b.String(), nil); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close ends all subscriptions and closes the connection.
func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close(context.Background())
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

	res, err := surrealdb.Query[[]map[string]any](ctx, s.db,
		"SELECT * FROM type::thing($tb, $id)",
		map[string]any{"tb": collection, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	rows := firstResult(res)
	if len(rows) == 0 {
		return nil, nil
	}
	doc, err := toDocument(id, rows[0])
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
	sql, vars := selectQuery(q)
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}

	rows := firstResult(res)
	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		id, err := recordKey(row["id"])
		if err != nil {
			return nil, err
		}
		doc, err := toDocument(id, row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// selectQuery renders a normalized query. Field names are validated identifiers,
// so they can be inlined; values always travel as variables.
func selectQuery(q store.Query) (string, map[string]any) {
	vars := map[string]any{"tb": q.Collection}

	var b strings.Builder
	b.WriteString("SELECT * FROM type::table($tb)")
	for i, f := range q.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		name := fmt.Sprintf("v%d", i)
		fmt.Fprintf(&b, "%s = $%s", f.Field, name)
		vars[name] = f.Value
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
		if q.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), vars
}

// Commit runs the batch as one SurrealQL transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	ops, err := b.Ops()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	sql, vars := batchQuery(ops)
	err = withRetry(ctx, func() error {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), notFoundMarker) {
			return fmt.Errorf("commit: %w", store.ErrNotFound)
		}
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	for _, collection := range b.Collections() {
		s.hub.Notify(collection)
	}
	return nil
}

func batchQuery(ops []store.Op) (string, map[string]any) {
	vars := make(map[string]any, len(ops)*3)

	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	for i, op := range ops {
		tb, id, data := fmt.Sprintf("tb%d", i), fmt.Sprintf("id%d", i), fmt.Sprintf("data%d", i)
		vars[tb] = op.Collection
		vars[id] = op.ID
		thing := fmt.Sprintf("type::thing($%s, $%s)", tb, id)

		switch op.Kind {
		case store.OpCreate:
			vars[data] = content(op.Data)
			fmt.Fprintf(&b, "CREATE %s CONTENT $%s;\n", thing, data)
		case store.OpSet:
			vars[data] = content(op.Data)
			fmt.Fprintf(&b, "UPSERT %s CONTENT $%s;\n", thing, data)
		case store.OpUpdate:
			vars[data] = content(op.Data)
			writeExistsGuard(&b, thing, op)
			fmt.Fprintf(&b, "UPDATE %s MERGE $%s;\n", thing, data)
		case store.OpDelete:
			fmt.Fprintf(&b, "DELETE %s;\n", thing)
		case store.OpIncrement:
			delta := fmt.Sprintf("delta%d", i)
			vars[delta] = op.Delta
			writeExistsGuard(&b, thing, op)
			value := fmt.Sprintf("(%s ?? 0) + $%s", op.Field, delta)
			if op.Delta < 0 {
				value = fmt.Sprintf("math::max([0, %s])", value)
			}
			fmt.Fprintf(&b, "UPDATE %s SET %s = %s;\n", thing, op.Field, value)
		}
	}
	b.WriteString("COMMIT TRANSACTION;")
	return b.String(), vars
}

func writeExistsGuard(b *strings.Builder, thing string, op store.Op) {
	fmt.Fprintf(b, "IF !record::exists(%s) { THROW \"%s %s/%s\" };\n", thing, notFoundMarker, op.Collection, op.ID)
}

func content(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

// withRetry retries fn while it fails with a transaction conflict.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if err == nil || !isConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func isConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "conflict") || strings.Contains(msg, "can be retried")
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	q, err := q.Normalized()
	if err != nil {
		return nil, err
	}
	return s.hub.Watch(q, fn), nil
}

// startLive opens a LIVE SELECT on collection and forwards its notifications to the hub.
func (s *Store) startLive(collection string) {
	ctx := context.Background()
	live, err := surrealdb.Live(ctx, s.db, models.Table(collection), false)
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).Msg("failed to start live query")
		return
	}
	id := live.String()

	notifications, err := s.db.LiveNotifications(id)
	if err != nil {
		s.log.Error().Err(err).Str("collection", collection).Msg("failed to get live notifications")
		_ = surrealdb.Kill(ctx, s.db, id)
		return
	}

	s.mu.Lock()
	s.lives[collection] = id
	s.mu.Unlock()

	go func() {
		for n := range notifications {
			s.log.Debug().Str("collection", collection).Str("action", string(n.Action)).Msg("live notification")
			s.hub.Notify(collection)
		}
	}()
}

func (s *Store) killLive(collection string) {
	s.mu.Lock()
	id, ok := s.lives[collection]
	delete(s.lives, collection)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := surrealdb.Kill(context.Background(), s.db, id); err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Msg("failed to kill live query")
	}
}

func firstResult(res *[]surrealdb.QueryResult[[]map[string]any]) []map[string]any {
	if res == nil || len(*res) == 0 {
		return nil
	}
	return (*res)[0].Result
}

// recordKey extracts the document id from a record id value.
func recordKey(v any) (string, error) {
	switch id := v.(type) {
	case models.RecordID:
		return keyString(id.ID)
	case *models.RecordID:
		if id == nil {
			return "", errors.New("record without id")
		}
		return keyString(id.ID)
	case string:
		if _, key, ok := strings.Cut(id, ":"); ok {
			return strings.Trim(key, "⟨⟩`"), nil
		}
		return id, nil
	default:
		return "", fmt.Errorf("unexpected record id type %T", v)
	}
}

func keyString(v any) (string, error) {
	switch k := v.(type) {
	case string:
		return k, nil
	case fmt.Stringer:
		return k.String(), nil
	default:
		return fmt.Sprint(k), nil
	}
}

// toDocument drops the record id and normalizes the driver's values.
func toDocument(id string, row map[string]any) (store.Document, error) {
	data := make(map[string]any, len(row))
	for k, v := range row {
		if k == "id" {
			continue
		}
		n, err := store.Normalize(plain(v))
		if err != nil {
			return store.Document{}, fmt.Errorf("failed to normalize field %s of %s: %w", k, id, err)
		}
		data[k] = n
	}
	return store.Document{ID: id, Data: data}, nil
}

// plain converts CBOR generic maps into string-keyed maps so they encode as JSON objects.
func plain(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = plain(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	default:
		return v
	}
}
