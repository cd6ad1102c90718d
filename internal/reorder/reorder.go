// Package reorder computes new total orders for flat, group-keyed sequences.
//
// A sequence is one ordered list of items where each item carries a group key
// (a board column). Display order inside a group is the order of its members in
// the flat sequence, so every move is expressed as a new flat sequence.
package reorder

// Accessor exposes the identity and group key of an item type.
type Accessor[T any] struct {
	ID    func(T) string
	Group func(T) string
	// WithGroup returns a copy of the item carrying the new group key.
	WithGroup func(T, string) T
}

// Move relocates itemID into targetGroup at targetIndex among that group's
// members after the move. An index outside the group (including negative
// values) appends the item after the group's last member, or at the very end
// of the sequence when the group has no members. An unknown itemID returns an
// unchanged copy. The input slice is never modified.
func Move[T any](seq []T, acc Accessor[T], itemID, targetGroup string, targetIndex int) []T {
	from := Index(seq, acc, itemID)
	if from < 0 {
		return append([]T(nil), seq...)
	}

	moved := acc.WithGroup(seq[from], targetGroup)
	remaining := make([]T, 0, len(seq))
	remaining = append(remaining, seq[:from]...)
	remaining = append(remaining, seq[from+1:]...)

	at := insertionPoint(remaining, acc.Group, targetGroup, targetIndex)
	out := make([]T, 0, len(seq))
	out = append(out, remaining[:at]...)
	out = append(out, moved)
	out = append(out, remaining[at:]...)
	return out
}

// insertionPoint resolves the absolute index in remaining where an item joining
// group at groupIndex must be placed.
func insertionPoint[T any](remaining []T, group func(T) string, target string, groupIndex int) int {
	seen := 0
	last := -1
	for idx, item := range remaining {
		if group(item) != target {
			continue
		}
		if groupIndex >= 0 && seen == groupIndex {
			return idx
		}
		seen++
		last = idx
	}
	if last < 0 {
		return len(remaining)
	}
	return last + 1
}

// Index returns the absolute position of id in seq, or -1.
func Index[T any](seq []T, acc Accessor[T], id string) int {
	for idx, item := range seq {
		if acc.ID(item) == id {
			return idx
		}
	}
	return -1
}

// GroupIndex returns the position of id among the members of its own group,
// or -1 when id is absent.
func GroupIndex[T any](seq []T, acc Accessor[T], id string) int {
	at := Index(seq, acc, id)
	if at < 0 {
		return -1
	}
	group := acc.Group(seq[at])
	pos := 0
	for _, item := range seq[:at] {
		if acc.Group(item) == group {
			pos++
		}
	}
	return pos
}

// Members returns the items of group in sequence order.
func Members[T any](seq []T, acc Accessor[T], group string) []T {
	out := make([]T, 0)
	for _, item := range seq {
		if acc.Group(item) == group {
			out = append(out, item)
		}
	}
	return out
}

// Groups returns distinct group keys in order of first appearance.
func Groups[T any](seq []T, acc Accessor[T]) []string {
	out := make([]string, 0)
	seen := map[string]struct{}{}
	for _, item := range seq {
		group := acc.Group(item)
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		out = append(out, group)
	}
	return out
}

// MoveKey moves key to index within an ordered key list using the same rules
// as Move: out-of-range indexes append and unknown keys return a copy.
func MoveKey(keys []string, key string, index int) []string {
	acc := Accessor[string]{
		ID:        func(k string) string { return k },
		Group:     func(string) string { return "" },
		WithGroup: func(k string, _ string) string { return k },
	}
	return Move(keys, acc, key, "", index)
}
