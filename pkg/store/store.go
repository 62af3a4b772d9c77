// Package store keeps the key-value databases scripts and the bridge open.
// Each database is a single bbolt file with one bucket; values are stored
// as raw bytes (the callers store JSON).
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

const logSrc = "/store"

var dataBucket = []byte("poly")

var ErrUnknownHandle = errors.New("unknown database handle")

type handle struct {
	path string
	db   *bbolt.DB
}

// Registry maps opaque handle ids to open databases. It is safe for
// concurrent use.
type Registry struct {
	handles cmap.ConcurrentMap[string, *handle]
	log     zerolog.Logger
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{
		handles: cmap.New[*handle](),
		log:     logger.With().Str("src", logSrc).Logger(),
	}
}

// Default is shared by the interpreter built-ins and the bridge.
var Default = New(zerolog.Nop())

// Open opens (creating if needed) the database at path and returns its
// handle id. A path that is already open keeps its handle.
func (r *Registry) Open(path string) (string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}
	for _, id := range r.handles.Keys() {
		if h, ok := r.handles.Get(id); ok && h.path == path {
			return id, nil
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return "", fmt.Errorf("open database: %w", err)
	}
	id := uuid.NewString()
	r.handles.Set(id, &handle{path: path, db: db})
	r.log.Debug().Str("db", id).Str("path", path).Msg("open")
	return id, nil
}

func (r *Registry) lookup(id string) (*handle, error) {
	h, ok := r.handles.Get(id)
	if !ok {
		return nil, ErrUnknownHandle
	}
	return h, nil
}

// Get returns the value stored under key and whether it exists.
func (r *Registry) Get(id, key string) ([]byte, bool, error) {
	h, err := r.lookup(id)
	if err != nil {
		return nil, false, err
	}
	var out []byte
	err = h.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(dataBucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

func (r *Registry) Put(id, key string, value []byte) error {
	h, err := r.lookup(id)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataBucket).Put([]byte(key), value)
	})
}

// Delete removes key. It reports whether the key existed.
func (r *Registry) Delete(id, key string) (bool, error) {
	h, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	existed := false
	err = h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(dataBucket)
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	})
	return existed, err
}

// Keys lists the keys starting with prefix in byte order.
func (r *Registry) Keys(id, prefix string) ([]string, error) {
	h, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	err = h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Close closes the database behind id. It reports whether id was open.
func (r *Registry) Close(id string) bool {
	h, ok := r.handles.Pop(id)
	if !ok {
		return false
	}
	if err := h.db.Close(); err != nil {
		r.log.Warn().Err(err).Str("db", id).Msg("close")
	}
	return true
}

// Handles lists the open handle ids.
func (r *Registry) Handles() []string {
	ids := r.handles.Keys()
	sort.Strings(ids)
	return ids
}

func (r *Registry) CloseAll() {
	for _, id := range r.handles.Keys() {
		r.Close(id)
	}
}
