package store

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemStore is a minimal in-process Store, good enough for tests and the demo binary. A
// production deployment would instead point Adapter at a real coordinator (etcd, a file
// on shared storage, a rendezvous service, ...).
type MemStore struct {
	mu   sync.Mutex
	cond *sync.Cond
	data map[string][]byte
}

// NewMemStore returns an empty in-process Store.
func NewMemStore() *MemStore {
	s := &MemStore{data: make(map[string][]byte)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *MemStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	s.cond.Broadcast()
	return nil
}

func (s *MemStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return nil, errors.Errorf("memstore: key %q not found", key)
	}
	return value, nil
}

func (s *MemStore) Wait(keys []string) error {
	return s.WaitTimeout(keys, 0)
}

func (s *MemStore) WaitTimeout(keys []string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if s.lockedHasAll(keys) {
			return nil
		}
		if timeout <= 0 {
			s.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.Errorf("memstore: timed out waiting for keys %v", keys)
		}
		// sync.Cond has no timed wait; poll on a short interval bounded by remaining.
		s.mu.Unlock()
		sleep := remaining
		if sleep > 5*time.Millisecond {
			sleep = 5 * time.Millisecond
		}
		time.Sleep(sleep)
		s.mu.Lock()
	}
}

func (s *MemStore) lockedHasAll(keys []string) bool {
	for _, k := range keys {
		if _, ok := s.data[k]; !ok {
			return false
		}
	}
	return true
}
