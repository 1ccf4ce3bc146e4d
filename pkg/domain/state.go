package domain

// EntryState classifies a produced value relative to the previous pass.
type EntryState uint8

const (
	// Added means no corresponding value existed in the previous pass.
	Added EntryState = iota
	// Modified means the position existed previously but the value changed.
	Modified
	// Cached means the value matched the previous pass and was not recomputed.
	Cached
	// Removed is a tombstone kept for exactly one pass after a value disappears.
	Removed
)

func (s EntryState) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Cached:
		return "cached"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// IsChanged reports whether a consumer must recompute for this state.
func (s EntryState) IsChanged() bool {
	return s == Added || s == Modified
}

// Entry is a produced value tagged with its change classification.
type Entry[T any] struct {
	Value T
	State EntryState
}

// NewEntry is a convenience constructor for host-classified input deltas.
func NewEntry[T any](value T, state EntryState) Entry[T] {
	return Entry[T]{Value: value, State: state}
}

// AllStates lists every EntryState in declaration order.
var AllStates = []EntryState{Added, Modified, Cached, Removed}

// MarshalText renders the state by name, so maps keyed by EntryState encode readably.
func (s EntryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
