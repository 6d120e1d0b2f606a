// Package memory implements the blob contract in process memory. It is the
// default backend for tests and mirrors the fs backend's create-only and
// ETag semantics so code under test sees the same behavior either way.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"wardcore/internal/blob/core"
)

// object is an immutable stored blob. Readers get copies, so an object is
// never mutated after insertion.
type object struct {
	data        []byte
	contentType string
	etag        string
	metadata    map[string]string
	storedAt    time.Time
}

func (o *object) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		ETag:         o.etag,
		Metadata:     copyMeta(o.metadata),
		LastModified: o.storedAt,
	}
}

// Store keeps blobs in a key-indexed map plus a sorted key slice so List
// walks in order without re-sorting on every call.
type Store struct {
	mu    sync.Mutex
	objs  map[string]*object
	keys  []string
	nowFn func() time.Time
}

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]*object), nowFn: time.Now}
}

// SetNowFunc overrides the clock used for LastModified stamps in tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a new blob at key. Archive keys are unique per export, so an
// existing key is a hard error rather than an overwrite.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("memory blob: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("memory blob: read payload: %w", err)
	}
	sum := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.objs[key]; dup {
		return core.Info{}, fmt.Errorf("memory blob: key %q already stored", key)
	}
	obj := &object{
		data:        data,
		contentType: opts.ContentType,
		etag:        hex.EncodeToString(sum[:]),
		metadata:    copyMeta(opts.Metadata),
		storedAt:    s.nowFn().UTC(),
	}
	s.objs[key] = obj
	s.insertKeyLocked(key)
	return obj.info(key), nil
}

// Get returns blob metadata and a reader over a private copy of the payload.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.Lock()
	obj, ok := s.objs[key]
	s.mu.Unlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("memory blob: no blob at key %q", key)
	}
	payload := bytes.Clone(obj.data)
	return obj.info(key), io.NopCloser(bytes.NewReader(payload)), nil
}

// Head returns blob metadata only.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.Lock()
	obj, ok := s.objs[key]
	s.mu.Unlock()
	if !ok {
		return core.Info{}, fmt.Errorf("memory blob: no blob at key %q", key)
	}
	return obj.info(key), nil
}

// Delete removes the blob, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return false, nil
	}
	delete(s.objs, key)
	if i := sort.SearchStrings(s.keys, key); i < len(s.keys) && s.keys[i] == key {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
	return true, nil
}

// List returns blobs whose key has the given prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Info{}
	start := sort.SearchStrings(s.keys, prefix)
	for _, key := range s.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		out = append(out, s.objs[key].info(key))
	}
	return out, nil
}

// PresignURL is unsupported: there is nothing to hand out a URL to.
func (s *Store) PresignURL(_ context.Context, _ string, _ core.SignedURLOptions) (string, error) {
	return "", core.ErrUnsupported
}

func (s *Store) insertKeyLocked(key string) {
	i := sort.SearchStrings(s.keys, key)
	s.keys = append(s.keys, "")
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = key
}

func copyMeta(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ core.Store = (*Store)(nil)
