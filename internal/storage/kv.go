package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-api/internal/apperr"
)

// Attrs is the attribute map of one KV record. Values round-trip
// through JSON, so numbers come back as float64.
type Attrs map[string]any

// AttrUpdate mutates individual attributes: absolute sets plus
// numeric increments (absent attributes count as zero).
type AttrUpdate struct {
	Set  Attrs
	Incr map[string]int64
}

// Record is one KV row.
type Record struct {
	PK    string
	SK    string
	Attrs Attrs
}

// KVStore is the key/value record store addressed by partition and
// sort key.
type KVStore interface {
	Put(ctx context.Context, pk, sk string, attrs Attrs) error
	Get(ctx context.Context, pk, sk string) (Attrs, error)
	Update(ctx context.Context, pk, sk string, upd AttrUpdate) error
	QueryByPK(ctx context.Context, pk string) ([]Record, error)
	Delete(ctx context.Context, pk, sk string) error
}

// Typed attribute accessors. Absent attributes yield zero values.

// AttrString reads a string attribute.
func AttrString(attrs Attrs, key string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

// AttrInt reads an integer attribute.
func AttrInt(attrs Attrs, key string) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// AttrFloat reads a float attribute.
func AttrFloat(attrs Attrs, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// AttrBool reads a boolean attribute.
func AttrBool(attrs Attrs, key string) bool {
	b, _ := attrs[key].(bool)
	return b
}

// AttrTime reads an RFC3339 time attribute; the zero time when absent
// or malformed.
func AttrTime(attrs Attrs, key string) time.Time {
	s := AttrString(attrs, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AttrDecode re-decodes a structured attribute into dest.
func AttrDecode(attrs Attrs, key string, dest any) error {
	v, ok := attrs[key]
	if !ok {
		return ErrNotFound
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return apperr.Rejected("encode attribute "+key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return apperr.Rejected("decode attribute "+key, err)
	}
	return nil
}

// AttrStrings reads a string-list attribute.
func AttrStrings(attrs Attrs, key string) []string {
	raw, ok := attrs[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// encodeAttr renders one attribute value for the hash field.
func encodeAttr(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		v = t.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", apperr.Rejected("encode attribute", err)
	}
	return string(raw), nil
}

func decodeAttrs(fields map[string]string) (Attrs, error) {
	attrs := make(Attrs, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Raw counters written by HIncrBy are bare integers and
			// already valid JSON, so this path is for legacy values.
			attrs[k] = raw
			continue
		}
		attrs[k] = v
	}
	return attrs, nil
}

// RedisKV is the redis-backed KV store. Rows are hashes keyed
// "<prefix>:<pk>:<sk>" with a per-partition key set for QueryByPK.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to redis and verifies the connection.
func NewRedisKV(addr, password string, db int, prefix string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, apperr.Unavailable("connect to redis", err)
	}
	if prefix == "" {
		prefix = "kv"
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

// Close releases the client.
func (r *RedisKV) Close() error { return r.client.Close() }

func (r *RedisKV) rowKey(pk, sk string) string { return fmt.Sprintf("%s:%s:%s", r.prefix, pk, sk) }
func (r *RedisKV) setKey(pk string) string     { return fmt.Sprintf("%s:%s", r.prefix, pk) }

func classifyRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return apperr.Unavailable(op+": kv failure", err)
}

// Put writes the full record, replacing any previous attributes.
func (r *RedisKV) Put(ctx context.Context, pk, sk string, attrs Attrs) error {
	fields := make(map[string]any, len(attrs))
	for k, v := range attrs {
		enc, err := encodeAttr(v)
		if err != nil {
			return err
		}
		fields[k] = enc
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.rowKey(pk, sk))
	if len(fields) > 0 {
		pipe.HSet(ctx, r.rowKey(pk, sk), fields)
	}
	pipe.SAdd(ctx, r.setKey(pk), sk)
	_, err := pipe.Exec(ctx)
	return classifyRedis("put", err)
}

// Get returns the record attributes.
func (r *RedisKV) Get(ctx context.Context, pk, sk string) (Attrs, error) {
	fields, err := r.client.HGetAll(ctx, r.rowKey(pk, sk)).Result()
	if err != nil {
		return nil, classifyRedis("get", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeAttrs(fields)
}

// Update applies attribute sets and increments to an existing record,
// creating it when absent.
func (r *RedisKV) Update(ctx context.Context, pk, sk string, upd AttrUpdate) error {
	pipe := r.client.TxPipeline()
	key := r.rowKey(pk, sk)
	for k, v := range upd.Set {
		enc, err := encodeAttr(v)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, k, enc)
	}
	for k, delta := range upd.Incr {
		pipe.HIncrBy(ctx, key, k, delta)
	}
	pipe.SAdd(ctx, r.setKey(pk), sk)
	_, err := pipe.Exec(ctx)
	return classifyRedis("update", err)
}

// QueryByPK returns all records of the partition, ordered by sort key.
func (r *RedisKV) QueryByPK(ctx context.Context, pk string) ([]Record, error) {
	sks, err := r.client.SMembers(ctx, r.setKey(pk)).Result()
	if err != nil {
		return nil, classifyRedis("query_by_pk", err)
	}
	sort.Strings(sks)
	records := make([]Record, 0, len(sks))
	for _, sk := range sks {
		attrs, err := r.Get(ctx, pk, sk)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, Record{PK: pk, SK: sk, Attrs: attrs})
	}
	return records, nil
}

// Delete removes the record. Removing an absent record is not an
// error.
func (r *RedisKV) Delete(ctx context.Context, pk, sk string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.rowKey(pk, sk))
	pipe.SRem(ctx, r.setKey(pk), sk)
	_, err := pipe.Exec(ctx)
	return classifyRedis("delete", err)
}
