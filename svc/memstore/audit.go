package memstore

import (
	"context"
	"slices"

	"github.com/dmitrymomot/creditgate/pkg/audit"
)

func (s *Store) Store(ctx context.Context, rec audit.Record) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.hasRecord(rec) {
		return audit.ErrDuplicateRecord
	}
	s.trail = append(s.trail, rec)
	return nil
}

func (s *Store) hasRecord(rec audit.Record) bool {
	return slices.ContainsFunc(s.trail, func(r audit.Record) bool {
		return r.InvoiceID == rec.InvoiceID && r.PaymentID == rec.PaymentID && r.Action == rec.Action
	})
}

// Query walks the trail newest first. Records are appended in time order, so
// insertion order breaks CreatedAt ties.
func (s *Store) Query(ctx context.Context, c audit.Criteria) ([]audit.Record, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	start := len(s.trail) - 1
	if c.Cursor != "" {
		i := slices.IndexFunc(s.trail, func(r audit.Record) bool { return r.ID == c.Cursor })
		if i < 0 {
			return nil, nil
		}
		start = i - 1
	}

	var out []audit.Record
	for i := start; i >= 0; i-- {
		r := s.trail[i]
		switch {
		case c.UserID != "" && r.UserID != c.UserID,
			c.InvoiceID != "" && r.InvoiceID != c.InvoiceID,
			c.Action != "" && r.Action != c.Action:
			continue
		}
		out = append(out, r)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}
