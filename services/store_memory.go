package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"quest-ledger/models"
)

// MemoryStore is an in-process KVStore. Each key has its own lock channel so
// waiting for a busy key respects ctx and other keys are never blocked. A lock
// lives only while someone holds or waits for it.
type MemoryStore struct {
	mu     sync.Mutex
	locks  map[string]*keyLock
	data   map[string][]byte
	events []models.QuestEvent
	closed bool

	writes atomic.Int64
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]*keyLock),
		data:  make(map[string][]byte),
	}
}

func (s *MemoryStore) lockKey(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			s.release(key, l)
		}, nil
	case <-ctx.Done():
		s.release(key, l)
		return nil, ctx.Err()
	}
}

func (s *MemoryStore) release(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 && s.locks[key] == l {
		delete(s.locks, key)
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrStoreClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock, err := s.lockKey(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	cur, found := s.data[key]
	cur = append([]byte(nil), cur...)
	s.mu.Unlock()

	m, err := fn(cur, found)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	// a caller that gave up must not see its write land afterwards
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), m.Value...)
	s.events = append(s.events, m.Events...)
	s.writes.Add(1)
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make(map[string][]byte)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (s *MemoryStore) Events(ctx context.Context, userID string) ([]models.QuestEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var out []models.QuestEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			out = append(out, s.events[i])
		}
	}
	// newest first, matching the Postgres ordering
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// heldLocks is the number of keys currently locked or waited on.
func (s *MemoryStore) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// Writes counts committed updates.
func (s *MemoryStore) Writes() int64 {
	return s.writes.Load()
}
