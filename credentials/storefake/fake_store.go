package storefake

import (
	"sync"

	"github.com/tktapps/arrivals-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credential store for tests. Errors can be
// injected per key to simulate storage failures.
type FakeStore struct {
	values    map[string]string
	getErrs   map[string]error
	setErrs   map[string]error
	deleteErr error
	lock      sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values:  make(map[string]string),
		getErrs: make(map[string]error),
		setErrs: make(map[string]error),
	}
}

func (s *FakeStore) Get(key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if err := s.getErrs[key]; err != nil {
		return "", err
	}
	v, ok := s.values[key]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return v, nil
}

func (s *FakeStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.setErrs[key]; err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

func (s *FakeStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.values, key)
	return nil
}

// FailGet makes Get return err for the given key.
func (s *FakeStore) FailGet(key string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.getErrs[key] = err
}

// FailSet makes Set return err for the given key.
func (s *FakeStore) FailSet(key string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setErrs[key] = err
}

// FailDelete makes every Delete return err.
func (s *FakeStore) FailDelete(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.deleteErr = err
}

// Len reports how many values are stored.
func (s *FakeStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}
