package storage

import (
	"context"
	"fmt"
	"time"

	"storefront-api/internal/apperr"
)

// Scroll is a lazy finite sequence over all documents matching a
// query. The cursor keeps its position server-side for a configured
// lifetime and is released on exhaustion, on error and on Close; it
// must not outlive those paths.
type Scroll struct {
	idx     *DocumentIndex
	table   string
	query   Query
	opened  time.Time
	lastRow int64
	buf     []Hit
	pos     int
	done    bool
}

// ScrollSearch opens a scroll cursor over the query. Sorting is by
// internal row order; callers needing ranked output use Search.
func (x *DocumentIndex) ScrollSearch(index string, q Query) (*Scroll, error) {
	tbl, err := tableName(index)
	if err != nil {
		return nil, err
	}
	return &Scroll{idx: x, table: tbl, query: q, opened: time.Now()}, nil
}

// Next returns the next document. The second return is false once the
// sequence is exhausted, after which the cursor is already released.
func (s *Scroll) Next(ctx context.Context) (Hit, bool, error) {
	if s.done {
		return Hit{}, false, nil
	}
	if time.Since(s.opened) > s.idx.scrollLifetime {
		s.Close()
		return Hit{}, false, apperr.Unavailable("scroll cursor expired", nil)
	}
	if s.pos >= len(s.buf) {
		if err := s.fetch(ctx); err != nil {
			s.Close()
			return Hit{}, false, err
		}
		if len(s.buf) == 0 {
			s.Close()
			return Hit{}, false, nil
		}
	}
	hit := s.buf[s.pos]
	s.pos++
	return hit, true, nil
}

func (s *Scroll) fetch(ctx context.Context) error {
	where, args := whereSQL(s.query)
	stmt := fmt.Sprintf(
		`SELECT d.rowid, d.id, d.doc FROM %s d WHERE %s AND d.rowid > ? ORDER BY d.rowid LIMIT ?`,
		s.table, where)
	args = append(args, s.lastRow, s.idx.scrollBatch)

	rows, err := s.idx.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return classify("scroll", err)
	}
	defer rows.Close()

	s.buf = s.buf[:0]
	s.pos = 0
	for rows.Next() {
		var rowid int64
		var id, doc string
		if err := rows.Scan(&rowid, &id, &doc); err != nil {
			return classify("scroll", err)
		}
		s.lastRow = rowid
		s.buf = append(s.buf, Hit{ID: id, Source: []byte(doc)})
	}
	return classify("scroll", rows.Err())
}

// Close releases the cursor. Safe to call more than once.
func (s *Scroll) Close() {
	s.done = true
	s.buf = nil
}

// Each iterates the whole sequence, guaranteeing cursor release on
// every exit path including callbacks that return an error.
func (s *Scroll) Each(ctx context.Context, fn func(Hit) error) error {
	defer s.Close()
	for {
		hit, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(hit); err != nil {
			return err
		}
	}
}
