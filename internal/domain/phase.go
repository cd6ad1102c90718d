package domain

import (
	"slices"
	"strings"

	"github.com/evanschultz/brainboard/internal/reorder"
)

// PhaseOrder is the left-to-right column order. It is tracked separately from
// feature order and may hold phases with no features.
type PhaseOrder []string

// Ensure appends phases that are not yet present, in the given order.
func (o PhaseOrder) Ensure(phases ...string) PhaseOrder {
	out := slices.Clone(o)
	for _, phase := range phases {
		phase = strings.TrimSpace(phase)
		if phase == "" || slices.Contains(out, phase) {
			continue
		}
		out = append(out, phase)
	}
	return out
}

func (o PhaseOrder) Contains(phase string) bool {
	return slices.Contains(o, phase)
}

func (o PhaseOrder) Index(phase string) int {
	return slices.Index(o, phase)
}

// Move places phase at index; out-of-range indexes move it to the end.
func (o PhaseOrder) Move(phase string, index int) (PhaseOrder, error) {
	if !o.Contains(phase) {
		return nil, ErrUnknownPhase
	}
	return PhaseOrder(reorder.MoveKey(o, phase, index)), nil
}

// Rename replaces from with to in place.
func (o PhaseOrder) Rename(from, to string) (PhaseOrder, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, ErrInvalidPhase
	}
	idx := o.Index(from)
	if idx < 0 {
		return nil, ErrUnknownPhase
	}
	if from != to && o.Contains(to) {
		return nil, ErrPhaseExists
	}
	out := slices.Clone(o)
	out[idx] = to
	return out, nil
}

func (o PhaseOrder) Remove(phase string) (PhaseOrder, error) {
	idx := o.Index(phase)
	if idx < 0 {
		return nil, ErrUnknownPhase
	}
	return slices.Delete(slices.Clone(o), idx, idx+1), nil
}
