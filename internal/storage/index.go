package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storefront-api/internal/apperr"
)

// DocumentIndex is the typed document search/index store. Documents
// are JSON blobs addressed by id; each index is its own table.
type DocumentIndex struct {
	db             *sql.DB
	scrollBatch    int
	scrollLifetime time.Duration
}

// IndexOptions tune scroll behavior.
type IndexOptions struct {
	ScrollBatchSize int
	ScrollLifetime  time.Duration
}

// DefaultIndexOptions returns the default scroll tuning.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{ScrollBatchSize: 500, ScrollLifetime: 5 * time.Minute}
}

// NewDocumentIndex opens the backing store at the given path.
func NewDocumentIndex(path string, opts IndexOptions) (*DocumentIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, classify("open", err)
	}
	if opts.ScrollBatchSize <= 0 {
		opts.ScrollBatchSize = DefaultIndexOptions().ScrollBatchSize
	}
	if opts.ScrollLifetime <= 0 {
		opts.ScrollLifetime = DefaultIndexOptions().ScrollLifetime
	}
	return &DocumentIndex{db: db, scrollBatch: opts.ScrollBatchSize, scrollLifetime: opts.ScrollLifetime}, nil
}

// Close closes the backing store.
func (x *DocumentIndex) Close() error { return x.db.Close() }

var indexNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func tableName(index string) (string, error) {
	if !indexNameRe.MatchString(index) {
		return "", apperr.Incorrect("invalid index name %q", index)
	}
	return "idx_" + index, nil
}

// CreateIndex creates the index if it does not exist yet.
func (x *DocumentIndex) CreateIndex(ctx context.Context, index string) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	_, err = x.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, tbl))
	return classify("create_index", err)
}

// Hit is one returned document.
type Hit struct {
	ID     string
	Source json.RawMessage
}

// Decode unmarshals the hit source into dest.
func (h Hit) Decode(dest any) error {
	if err := json.Unmarshal(h.Source, dest); err != nil {
		return apperr.Rejected("decode document "+h.ID, err)
	}
	return nil
}

// Bucket is one terms-aggregation bucket.
type Bucket struct {
	Key   string
	Count int
}

// Hits is a search result page with optional aggregations.
type Hits struct {
	Total int
	Hits  []Hit
	Aggs  map[string][]Bucket
}

// Get returns the document with the given id.
func (x *DocumentIndex) Get(ctx context.Context, index, id string) (Hit, error) {
	tbl, err := tableName(index)
	if err != nil {
		return Hit{}, err
	}
	var doc string
	err = x.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, tbl), id).Scan(&doc)
	if err != nil {
		return Hit{}, classify("get", err)
	}
	return Hit{ID: id, Source: json.RawMessage(doc)}, nil
}

// Search runs the query and returns one result page plus requested
// aggregations.
func (x *DocumentIndex) Search(ctx context.Context, index string, q Query) (Hits, error) {
	tbl, err := tableName(index)
	if err != nil {
		return Hits{}, err
	}
	where, args := whereSQL(q)

	var total int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s d WHERE %s`, tbl, where)
	if err := x.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return Hits{}, classify("search", err)
	}

	result := Hits{Total: total}
	// A negative size asks for aggregations only.
	if q.Size >= 0 {
		querySQL := fmt.Sprintf(`SELECT d.id, d.doc FROM %s d WHERE %s%s`, tbl, where, orderSQL(q.Sorts))
		pageArgs := append([]any{}, args...)
		if q.Size > 0 {
			querySQL += " LIMIT ? OFFSET ?"
			pageArgs = append(pageArgs, q.Size, q.From)
		}
		rows, err := x.db.QueryContext(ctx, querySQL, pageArgs...)
		if err != nil {
			return Hits{}, classify("search", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id, doc string
			if err := rows.Scan(&id, &doc); err != nil {
				return Hits{}, classify("search", err)
			}
			result.Hits = append(result.Hits, Hit{ID: id, Source: json.RawMessage(doc)})
		}
		if err := rows.Err(); err != nil {
			return Hits{}, classify("search", err)
		}
	}

	if len(q.Aggs) > 0 {
		result.Aggs = make(map[string][]Bucket, len(q.Aggs))
		for _, agg := range q.Aggs {
			buckets, err := x.aggregate(ctx, tbl, where, args, agg)
			if err != nil {
				return Hits{}, err
			}
			result.Aggs[agg.Name] = buckets
		}
	}
	return result, nil
}

func (x *DocumentIndex) aggregate(ctx context.Context, tbl, where string, args []any, agg Agg) ([]Bucket, error) {
	expr, nested := fieldExpr(agg.Field)
	var aggSQL string
	if nested {
		aggSQL = fmt.Sprintf(
			`SELECT %s AS k, COUNT(DISTINCT d.id) AS c FROM %s d, json_each(d.doc, '$.sizes') je WHERE %s GROUP BY k ORDER BY c DESC, k ASC`,
			expr, tbl, where)
	} else {
		aggSQL = fmt.Sprintf(
			`SELECT %s AS k, COUNT(*) AS c FROM %s d WHERE %s GROUP BY k ORDER BY c DESC, k ASC`,
			expr, tbl, where)
	}
	rows, err := x.db.QueryContext(ctx, aggSQL, args...)
	if err != nil {
		return nil, classify("aggregate", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var key sql.NullString
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, classify("aggregate", err)
		}
		if !key.Valid || key.String == "" {
			continue
		}
		buckets = append(buckets, Bucket{Key: key.String, Count: count})
	}
	return buckets, classify("aggregate", rows.Err())
}

// Create indexes a new document; a duplicate id is rejected
// permanently.
func (x *DocumentIndex) Create(ctx context.Context, index, id string, doc any) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Rejected("encode document "+id, err)
	}
	_, err = x.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, tbl), id, string(raw))
	return classify("create", err)
}

// Index writes the document, replacing any existing one with the same
// id. Idempotent by id.
func (x *DocumentIndex) Index(ctx context.Context, index, id string, doc any) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Rejected("encode document "+id, err)
	}
	_, err = x.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, tbl),
		id, string(raw))
	return classify("index", err)
}

// Update merges the given partial document into an existing one.
func (x *DocumentIndex) Update(ctx context.Context, index, id string, partial any) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		return apperr.Rejected("encode document "+id, err)
	}
	res, err := x.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET doc = json_patch(doc, ?) WHERE id = ?`, tbl), string(raw), id)
	if err != nil {
		return classify("update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Replace overwrites the document only when its revision field still
// matches; the caller bumps the revision inside doc. A stale revision
// is a permanent rejection so callers can reload and retry.
func (x *DocumentIndex) Replace(ctx context.Context, index, id string, doc any, expectedRevision int) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Rejected("encode document "+id, err)
	}
	res, err := x.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET doc = ? WHERE id = ? AND CAST(json_extract(doc, '$.revision') AS INTEGER) = ?`, tbl),
		string(raw), id, expectedRevision)
	if err != nil {
		return classify("replace", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Rejected(fmt.Sprintf("replace %s: revision conflict", id), nil)
	}
	return nil
}

// UpdateByQuery applies the script to every document matching the
// query and returns the number of documents touched.
func (x *DocumentIndex) UpdateByQuery(ctx context.Context, index string, q Query, script Script) (int64, error) {
	tbl, err := tableName(index)
	if err != nil {
		return 0, err
	}
	setSQL, setArgs := scriptSQL(script)
	if setSQL == "" {
		return 0, apperr.Incorrect("update_by_query requires a script")
	}
	where, args := whereSQL(q)
	stmt := fmt.Sprintf(
		`UPDATE %s SET doc = %s WHERE id IN (SELECT d.id FROM %s d WHERE %s)`, tbl, setSQL, tbl, where)
	res, err := x.db.ExecContext(ctx, stmt, append(setArgs, args...)...)
	if err != nil {
		return 0, classify("update_by_query", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// scriptSQL renders a Script as a json_set expression over doc.
func scriptSQL(script Script) (string, []any) {
	type pair struct {
		path string
		expr string
		args []any
	}
	var pairs []pair

	incrFields := make([]string, 0, len(script.Incr))
	for f := range script.Incr {
		incrFields = append(incrFields, f)
	}
	sort.Strings(incrFields)
	for _, f := range incrFields {
		path := "'$." + f + "'"
		delta := script.Incr[f]
		// An integral delta keeps the stored value INTEGER; a REAL sum
		// would persist counters as 1.0 and break decoding into int
		// fields.
		if delta == math.Trunc(delta) {
			pairs = append(pairs, pair{
				path: path,
				expr: fmt.Sprintf("CAST(COALESCE(json_extract(doc, %s), 0) + ? AS INTEGER)", path),
				args: []any{int64(delta)},
			})
			continue
		}
		pairs = append(pairs, pair{
			path: path,
			expr: fmt.Sprintf("COALESCE(CAST(json_extract(doc, %s) AS REAL), 0) + ?", path),
			args: []any{delta},
		})
	}

	setFields := make([]string, 0, len(script.Set))
	for f := range script.Set {
		setFields = append(setFields, f)
	}
	sort.Strings(setFields)
	for _, f := range setFields {
		pairs = append(pairs, pair{path: "'$." + f + "'", expr: "?", args: []any{toArg(script.Set[f])}})
	}

	if len(pairs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(pairs))
	var args []any
	for _, p := range pairs {
		parts = append(parts, p.path+", "+p.expr)
		args = append(args, p.args...)
	}
	return "json_set(doc, " + strings.Join(parts, ", ") + ")", args
}

// DeleteByQuery removes every document matching the query.
func (x *DocumentIndex) DeleteByQuery(ctx context.Context, index string, q Query) (int64, error) {
	tbl, err := tableName(index)
	if err != nil {
		return 0, err
	}
	where, args := whereSQL(q)
	res, err := x.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE id IN (SELECT d.id FROM %s d WHERE %s)`, tbl, tbl, where), args...)
	if err != nil {
		return 0, classify("delete_by_query", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete removes the document with the given id. Deleting an absent
// document is not an error.
func (x *DocumentIndex) Delete(ctx context.Context, index, id string) error {
	tbl, err := tableName(index)
	if err != nil {
		return err
	}
	_, err = x.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tbl), id)
	return classify("delete", err)
}

// BulkOp selects the bulk action kind.
type BulkOp int

const (
	// BulkIndex writes the full document, replacing an existing one.
	BulkIndex BulkOp = iota
	// BulkUpdate merges a partial document into an existing one.
	BulkUpdate
)

// BulkAction is one entry of a bulk request.
type BulkAction struct {
	Op  BulkOp
	ID  string
	Doc any
}

// BulkError reports one failed bulk action.
type BulkError struct {
	ID  string
	Err error
}

// BulkResult reports accepted count and per-action failures.
type BulkResult struct {
	Accepted int
	Errors   []BulkError
}

// Bulk applies mixed index/update actions in one transaction batch.
// Individual failures are collected; the rest of the batch proceeds.
func (x *DocumentIndex) Bulk(ctx context.Context, index string, actions []BulkAction) (BulkResult, error) {
	tbl, err := tableName(index)
	if err != nil {
		return BulkResult{}, err
	}
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return BulkResult{}, classify("bulk", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, tbl))
	if err != nil {
		return BulkResult{}, classify("bulk", err)
	}
	defer upsert.Close()
	merge, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`UPDATE %s SET doc = json_patch(doc, ?) WHERE id = ?`, tbl))
	if err != nil {
		return BulkResult{}, classify("bulk", err)
	}
	defer merge.Close()

	var result BulkResult
	for _, action := range actions {
		raw, err := json.Marshal(action.Doc)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{ID: action.ID, Err: apperr.Rejected("encode document", err)})
			continue
		}
		switch action.Op {
		case BulkIndex:
			_, err = upsert.ExecContext(ctx, action.ID, string(raw))
		case BulkUpdate:
			var res sql.Result
			res, err = merge.ExecContext(ctx, string(raw), action.ID)
			if err == nil {
				if n, _ := res.RowsAffected(); n == 0 {
					err = ErrNotFound
				}
			}
		}
		if err != nil {
			result.Errors = append(result.Errors, BulkError{ID: action.ID, Err: classify("bulk", err)})
			continue
		}
		result.Accepted++
	}

	if err := tx.Commit(); err != nil {
		return BulkResult{}, classify("bulk", err)
	}
	return result, nil
}
