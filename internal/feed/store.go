package feed

import (
	"context"
	"errors"
	"sync"
)

// ErrNotLoaded is returned while the feed is still being fetched.
var ErrNotLoaded = errors.New("feed not loaded yet")

// Store holds the outcome of the single feed load. It is written once and
// read by any number of goroutines afterwards.
type Store struct {
	done    chan struct{}
	dataset *Dataset
	err     error
	once    sync.Once
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{done: make(chan struct{})}
}

// Set records the load result. Only the first call has any effect.
func (s *Store) Set(ds *Dataset, err error) bool {
	if ds == nil && err == nil {
		err = ErrNoSource
	}

	set := false
	s.once.Do(func() {
		s.dataset, s.err = ds, err
		close(s.done)
		set = true
	})
	return set
}

// Done is closed once the load has finished, successfully or not.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// Dataset returns the loaded dataset, ErrNotLoaded while loading, or the
// load error after a failure. It never blocks.
func (s *Store) Dataset() (*Dataset, error) {
	select {
	case <-s.done:
		return s.dataset, s.err
	default:
		return nil, ErrNotLoaded
	}
}

// CheckReadiness returns nil once a dataset is available.
func (s *Store) CheckReadiness(_ context.Context) error {
	_, err := s.Dataset()
	return err
}

// Fill runs the loader and stores its result.
func (s *Store) Fill(ctx context.Context, l *Loader) error {
	ds, err := l.Load(ctx)
	s.Set(ds, err)
	return err
}
