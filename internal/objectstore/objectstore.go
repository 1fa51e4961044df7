// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package objectstore implements the pipeline's only persistence
// mechanism: a flat, content-addressed key/value store with opaque
// string values and short string-to-string custom metadata, backed by
// BadgerDB. Every other package treats it as an ordered, paginated,
// prefix-filterable database rather than a blob store: a record's
// "table" is a key prefix, its "primary key" is the remainder of the
// key, and secondary fields live in customMetadata so they can be
// listed without decoding the value.
//
// Values and metadata live under separate key namespaces (see metaKey)
// so Head and a metadata-only List never touch a value's bytes at all,
// not even by decoding and discarding them.
package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/perr"
)

// Object is a single stored record: an opaque byte value plus a small
// set of string key/value pairs callers can filter and sort on without
// reading the value.
type Object struct {
	Key            string            `json:"key"`
	Value          []byte            `json:"value"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// metaKeyPrefix marks the metadata keyspace. "\x00" sorts before every
// printable-ASCII application key prefix, so it never collides with a
// real key and never appears in a body-keyspace prefix scan.
const metaKeyPrefix = "\x00meta\x00"

func metaKey(key string) string {
	return metaKeyPrefix + key
}

// ListPage is one page of a prefix listing.
type ListPage struct {
	Keys       []string
	Objects    []Object // populated according to the List call's mode
	NextCursor string // empty when there are no further pages
}

// ListMode selects how much of each matching record List decodes.
type ListMode int

const (
	// ListKeysOnly returns only Keys; neither values nor metadata are read.
	ListKeysOnly ListMode = iota
	// ListMetadataOnly populates Objects with CustomMetadata only. It
	// never reads a value's bytes, which is what makes status/category
	// pre-filtering (e.g. contentitem.CountsByStatus) cheap.
	ListMetadataOnly
	// ListFull populates Objects with both Value and CustomMetadata.
	ListFull
)

// Store is a BadgerDB-backed ObjectStore.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.Compression = options.Snappy

	db, err := badger.Open(opts)
	if err != nil {
		return nil, perr.FatalConfig("objectstore.Open", "failed to open database", err)
	}
	logging.Info().Str("path", path).Msg("object store opened")
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value and customMetadata under key, overwriting any
// existing object at that key. The value is stored as-is; metadata is
// stored separately so it can be read back without touching value bytes.
func (s *Store) Put(ctx context.Context, key string, value []byte, customMetadata map[string]string) error {
	if key == "" {
		return perr.Validation("objectstore.Put", "key must not be empty", nil)
	}
	metaEncoded, err := json.Marshal(customMetadata)
	if err != nil {
		return perr.Validation("objectstore.Put", "failed to encode metadata", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		return txn.Set([]byte(metaKey(key)), metaEncoded)
	})
	if err != nil {
		return perr.State("objectstore.Put", "write failed", err)
	}
	return nil
}

// Get returns the object stored at key, or a state error if absent.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	var obj *Object
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		meta, err := readMetadata(txn, key)
		if err != nil {
			return err
		}
		obj = &Object{Key: key, Value: value, CustomMetadata: meta}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, perr.State("objectstore.Get", fmt.Sprintf("no object at key %q", key), nil)
	}
	if err != nil {
		return nil, perr.State("objectstore.Get", "read failed", err)
	}
	return obj, nil
}

// readMetadata reads and decodes the metadata entry for key within an
// open transaction, tolerating its absence (a key written with no
// customMetadata still gets an empty-map entry from Put, but this stays
// defensive for anything written before metadata separation existed).
func readMetadata(txn *badger.Txn, key string) (map[string]string, error) {
	item, err := txn.Get([]byte(metaKey(key)))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta map[string]string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	}); err != nil {
		return nil, err
	}
	return meta, nil
}

// Head returns the customMetadata stored at key without ever reading the
// value's bytes, or a state error if absent.
func (s *Store) Head(ctx context.Context, key string) (map[string]string, error) {
	var meta map[string]string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey(key)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, perr.State("objectstore.Head", fmt.Sprintf("no object at key %q", key), nil)
	}
	if err != nil {
		return nil, perr.State("objectstore.Head", "read failed", err)
	}
	return meta, nil
}

// Delete removes the object and its metadata entry at key. Deleting an
// absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaKey(key)))
	})
	if err != nil {
		return perr.State("objectstore.Delete", "delete failed", err)
	}
	return nil
}

// List returns keys under prefix in lexicographic order, starting after
// cursor (an opaque token from a previous page's NextCursor; empty
// starts from the beginning) and returning at most limit entries.
// mode controls how much of each entry is decoded: ListMetadataOnly
// never reads a value's bytes, at the cost of a caller needing a
// separate Get for entries it ultimately needs the body of.
func (s *Store) List(ctx context.Context, prefix, cursor string, limit int, mode ListMode) (*ListPage, error) {
	if limit <= 0 {
		limit = 100
	}
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, perr.Validation("objectstore.List", "invalid cursor", err)
	}

	if mode == ListMetadataOnly {
		return s.listMetadata(ctx, prefix, start, limit)
	}
	return s.listBody(ctx, prefix, start, limit, mode == ListFull)
}

func (s *Store) listBody(ctx context.Context, prefix, start string, limit int, withMetadata bool) (*ListPage, error) {
	page := &ListPage{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = withMetadata
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		seekFrom := prefixBytes
		if start != "" {
			seekFrom = []byte(start)
		}

		for it.Seek(seekFrom); it.ValidForPrefix(prefixBytes); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			key := string(item.KeyCopy(nil))
			if start != "" && key == start {
				continue // cursor points at the last key already returned
			}

			if len(page.Keys) == limit {
				page.NextCursor = encodeCursor(key)
				return nil
			}

			page.Keys = append(page.Keys, key)
			if withMetadata {
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				meta, err := readMetadata(txn, key)
				if err != nil {
					return err
				}
				page.Objects = append(page.Objects, Object{Key: key, Value: value, CustomMetadata: meta})
			}
		}
		return nil
	})
	if err != nil {
		return nil, perr.State("objectstore.List", "list failed", err)
	}
	return page, nil
}

// listMetadata iterates the metadata keyspace directly: it only ever
// reads the small metadata blob stored at metaKey(key), never the body
// stored at key, regardless of how large the body is.
func (s *Store) listMetadata(ctx context.Context, prefix, start string, limit int) (*ListPage, error) {
	page := &ListPage{}
	metaPrefixBytes := []byte(metaKey(prefix))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seekFrom := metaPrefixBytes
		if start != "" {
			seekFrom = []byte(metaKey(start))
		}

		for it.Seek(seekFrom); it.ValidForPrefix(metaPrefixBytes); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			fullKey := string(item.KeyCopy(nil))
			appKey := fullKey[len(metaKeyPrefix):]
			if start != "" && appKey == start {
				continue
			}

			if len(page.Keys) == limit {
				page.NextCursor = encodeCursor(appKey)
				return nil
			}

			page.Keys = append(page.Keys, appKey)
			var meta map[string]string
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			page.Objects = append(page.Objects, Object{Key: appKey, CustomMetadata: meta})
		}
		return nil
	})
	if err != nil {
		return nil, perr.State("objectstore.List", "list failed", err)
	}
	return page, nil
}

// ListByMetadata lists every key under prefix whose customMetadata
// satisfies predicate, ignoring pagination. It is meant for bounded
// internal scans (e.g. counting items by status), not client-facing
// pagination; it decodes every matching key's metadata but, like
// ListMetadataOnly, never touches a value's bytes.
func (s *Store) ListByMetadata(ctx context.Context, prefix string, predicate func(map[string]string) bool) ([]Object, error) {
	var matched []Object
	cursor := ""
	for {
		page, err := s.List(ctx, prefix, cursor, 500, ListMetadataOnly)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			if predicate(obj.CustomMetadata) {
				matched = append(matched, obj)
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return matched, nil
}

func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// HasPrefix reports whether key begins with prefix; exported for callers
// building their own composite scans on top of Store.
func HasPrefix(key, prefix string) bool {
	return bytes.HasPrefix([]byte(key), []byte(prefix))
}
