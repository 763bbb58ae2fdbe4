package audit

import "context"

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type reader struct {
	storage Storage
}

// NewReader creates a new audit reader
func NewReader(storage Storage) Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &reader{storage: storage}
}

// Find returns one page of records and the cursor for the next page, which
// is empty when the page was not full.
func (r *reader) Find(ctx context.Context, c Criteria) ([]Record, string, error) {
	switch {
	case c.Limit <= 0:
		c.Limit = DefaultLimit
	case c.Limit > MaxLimit:
		c.Limit = MaxLimit
	}

	records, err := r.storage.Query(ctx, c)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(records) == c.Limit {
		next = records[len(records)-1].ID
	}
	return records, next, nil
}
