// Package memstore keeps the ledger, payment intents and the audit trail in
// process memory. A single mutex makes every method atomic, matching the
// conditional single-statement semantics of the Postgres store. It backs
// local development and engine-level tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/creditgate/pkg/audit"
	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
)

var (
	_ entitlement.Store = (*Store)(nil)
	_ billing.Store     = (*Store)(nil)
	_ audit.Storage     = (*Store)(nil)
)

// Store implements every storage port of the module.
type Store struct {
	mu      sync.Mutex
	ents    map[string]entitlement.Entitlement
	intents map[string]billing.Intent
	trail   []audit.Record
	fault   error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		ents:    make(map[string]entitlement.Entitlement),
		intents: make(map[string]billing.Intent),
	}
}

// Fail makes every subsequent call return err until Fail(nil) is called.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.fault = err
	s.mu.Unlock()
}

// Put replaces a user's entitlement row.
func (s *Store) Put(e entitlement.Entitlement) {
	s.mu.Lock()
	s.ents[e.UserID] = e.Clone()
	s.mu.Unlock()
}

// Snapshot returns a copy of the user's row.
func (s *Store) Snapshot(userID string) (entitlement.Entitlement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ents[userID]
	return e.Clone(), ok
}

// Ping reports the injected fault, if any.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.fault != nil {
		err := s.fault
		s.mu.Unlock()
		return err
	}
	return nil
}

func utc(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
