package statemachine

// Table is an immutable set of allowed transitions between string-typed
// states. Build it once at package init with NewTable and Allow; lookups are
// safe for concurrent use afterwards.
type Table[S ~string] struct {
	edges map[S]map[S]struct{}
}

// NewTable returns an empty transition table.
func NewTable[S ~string]() *Table[S] {
	return &Table[S]{edges: make(map[S]map[S]struct{})}
}

// Allow registers from -> each of to. It returns the table for chaining.
func (t *Table[S]) Allow(from S, to ...S) *Table[S] {
	set, ok := t.edges[from]
	if !ok {
		set = make(map[S]struct{}, len(to))
		t.edges[from] = set
	}
	for _, s := range to {
		set[s] = struct{}{}
	}
	return t
}

// Can reports whether from -> to is allowed.
func (t *Table[S]) Can(from, to S) bool {
	_, ok := t.edges[from][to]
	return ok
}

// Check returns *ErrNoTransitionAvailable when from -> to is not allowed.
func (t *Table[S]) Check(from, to S) error {
	if t.Can(from, to) {
		return nil
	}
	return &ErrNoTransitionAvailable{From: string(from), To: string(to)}
}

// IsTerminal reports whether no transition leaves s.
func (t *Table[S]) IsTerminal(s S) bool {
	return len(t.edges[s]) == 0
}

// Targets lists the states reachable from s in one step, in no particular order.
func (t *Table[S]) Targets(s S) []S {
	out := make([]S, 0, len(t.edges[s]))
	for to := range t.edges[s] {
		out = append(out, to)
	}
	return out
}
