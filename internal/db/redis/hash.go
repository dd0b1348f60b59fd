package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/semwalk/internal/db"
)

// HSetMulti writes every document hash in one pipelined round trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for field, value := range item.Fields {
			cmd = cmd.FieldValue(field, value)
		}
		cmds = append(cmds, cmd.Build())
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// HGetMulti reads the named fields of each key with pipelined HMGET. The
// result is index-aligned with keys. A key with none of the fields (a
// missing hash) yields nil.
func (s *Store) HGetMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	if len(keys) == 0 || len(fields) == 0 {
		return make([]map[string]string, len(keys)), nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, k := range keys {
		cmds[i] = s.b().Hmget().Key(k).Field(fields...).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		values, err := res.ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		var m map[string]string
		for j := 0; j < len(values) && j < len(fields); j++ {
			v, err := values[j].ToString()
			if err != nil {
				// nil reply: field absent
				continue
			}
			if m == nil {
				m = make(map[string]string, len(fields))
			}
			m[fields[j]] = v
		}
		out[i] = m
	}
	return out, nil
}

// Del removes keys; deleting nothing is a no-op.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.do(ctx, s.b().Del().Key(keys...).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Scan collects every key matching pattern, following the cursor to the end.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		entry, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(500).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, entry.Elements...)
		if entry.Cursor == 0 {
			return keys, nil
		}
		cursor = entry.Cursor
	}
}
