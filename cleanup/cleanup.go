// Package cleanup provides scoped acquisition/release semantics for the
// transient resources a configuration's pipeline creates: execution
// contexts, temporary work directories, generated descriptors. A Scope
// is released exactly once, on every exit path.
package cleanup

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

type release struct {
	name string
	fn   func() error
}

// Scope collects release functions and runs them LIFO on Release.
type Scope struct {
	log      log.Logger
	mu       sync.Mutex
	releases []release
	released bool
}

// NewScope creates an empty scope.
func NewScope(logger log.Logger) *Scope {
	return &Scope{log: logger}
}

// Defer registers a release function. Functions run in reverse
// registration order, mirroring resource acquisition order.
func (s *Scope) Defer(name string, fn func() error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		// Late registration after release would leak; run immediately.
		_ = s.runOne(release{name: name, fn: fn})
		return
	}
	s.releases = append(s.releases, release{name: name, fn: fn})
	s.mu.Unlock()
}

// Release runs every registered release function in LIFO order. It is
// idempotent; calls after the first are no-ops. Individual failures are
// logged and joined but do not stop the remaining releases.
func (s *Scope) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := s.runOne(releases[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scope) runOne(r release) error {
	if r.fn == nil {
		return nil
	}
	if err := r.fn(); err != nil {
		if s.log != nil {
			s.log.Error("Failed to release resource", "resource", r.name, "error", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("Released resource", "resource", r.name)
	}
	return nil
}
