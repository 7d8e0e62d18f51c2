// Package store implements the in-memory keyspace: a tagged Value variant
// (String, Stream), per-key TTL on strings, and a background expiry sweep.
// All mutation is serialized by a single mutex, since this implementation
// runs on a multi-threaded Go runtime rather than the single cooperative
// event loop the source assumes.
package store

import (
	"sync"
	"time"

	"github.com/grevgeny/toy-redis-server/internal/stream"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// Value is the tagged union stored per key. Only the field matching Kind is
// meaningful.
type Value struct {
	Kind     Kind
	Str      string
	ExpireAt *time.Time // absolute expiry; nil means no TTL. Only used for KindString.
	Stream   *stream.Stream
}

// DefaultSweepInterval matches the source's storage.py expire_keys(interval=60).
const DefaultSweepInterval = 60 * time.Second

// Store is the single owner of the keyspace.
type Store struct {
	mu   sync.Mutex
	data map[string]*Value

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New returns an empty store and starts its background expiry sweep.
func New() *Store {
	s := &Store{
		data:      make(map[string]*Value),
		stopSweep: make(chan struct{}),
	}
	go s.sweepLoop(DefaultSweepInterval)
	return s
}

// Close stops the background expiry sweep. Safe to call more than once.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.data {
		if v.Kind == KindString && v.ExpireAt != nil && !now.Before(*v.ExpireAt) {
			delete(s.data, k)
		}
	}
}

// Set stores a string value, replacing anything previously at key. A nil
// expireAt means no TTL.
func (s *Store) Set(key, value string, expireAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &Value{Kind: KindString, Str: value, ExpireAt: expireAt}
}

// Get returns the string at key, or ok=false if missing, expired, or not a
// string. An observed expiry deletes the key before returning.
func (s *Store) Get(key string) (value string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exists := s.data[key]
	if !exists {
		return "", false
	}
	if v.Kind != KindString {
		return "", false
	}
	if v.ExpireAt != nil && !time.Now().Before(*v.ExpireAt) {
		delete(s.data, key)
		return "", false
	}
	return v.Str, true
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.data[key]
	if exists {
		delete(s.data, key)
	}
	return exists
}

// Keys returns every key currently present, lazily dropping expired strings
// it encounters along the way. Order is unspecified.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]string, 0, len(s.data))
	for k, v := range s.data {
		if v.Kind == KindString && v.ExpireAt != nil && !now.Before(*v.ExpireAt) {
			delete(s.data, k)
			continue
		}
		out = append(out, k)
	}
	return out
}

// Type reports "string", "stream", or "none".
func (s *Store) Type(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exists := s.data[key]
	if !exists {
		return "none"
	}
	if v.Kind == KindString && v.ExpireAt != nil && !time.Now().Before(*v.ExpireAt) {
		delete(s.data, key)
		return "none"
	}
	return v.Kind.String()
}

// ErrWrongType is returned when a stream operation targets a key holding a
// string, or vice versa.
var ErrWrongType = stream.ErrWrongType

// XAdd appends an entry to the stream at key, creating it if absent, and
// returns the resolved entry id. id may contain "*" wildcards per the
// stream package's resolution rules.
func (s *Store) XAdd(key, id string, fields []stream.FieldValue) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exists := s.data[key]
	if !exists {
		v = &Value{Kind: KindStream, Stream: stream.New()}
		s.data[key] = v
	}
	if v.Kind != KindStream {
		return "", ErrWrongType
	}
	return v.Stream.Add(id, fields)
}

// XRange returns entries in [start, end] inclusive. Returns an empty slice,
// not an error, if key is absent.
func (s *Store) XRange(key, start, end string) ([]stream.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exists := s.data[key]
	if !exists {
		return nil, nil
	}
	if v.Kind != KindStream {
		return nil, ErrWrongType
	}
	return v.Stream.Range(start, end)
}

// LoadString seeds a key with a string value and optional absolute expiry,
// used by the RDB loader during startup.
func (s *Store) LoadString(key, value string, expireAt *time.Time) {
	s.Set(key, value, expireAt)
}
