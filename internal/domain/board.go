package domain

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/evanschultz/brainboard/internal/reorder"
)

// Board is the whole organizer state: the vision, the feature sequence, and
// the column order.
type Board struct {
	Vision   string
	Features []Feature
	Phases   PhaseOrder
	// Extra holds top-level document fields carried through to export.
	Extra map[string]json.RawMessage
}

// Column is a derived view of one phase and its features in sequence order.
type Column struct {
	Phase    string
	Features []Feature
}

// NewBoard validates features and seeds the phase order from phases followed by
// feature phases in first-appearance order.
func NewBoard(vision string, features []Feature, phases []string) (Board, error) {
	vision = strings.TrimSpace(vision)
	if vision == "" {
		return Board{}, ErrInvalidVision
	}
	seen := map[string]struct{}{}
	for _, f := range features {
		if strings.TrimSpace(f.ID) == "" {
			return Board{}, ErrInvalidID
		}
		if _, ok := seen[f.ID]; ok {
			return Board{}, ErrDuplicateID
		}
		seen[f.ID] = struct{}{}
	}
	b := Board{
		Vision:   vision,
		Features: cloneFeatures(features),
	}
	b.Phases = PhaseOrder(nil).Ensure(phases...).Ensure(reorder.Groups(b.Features, FeatureOrder)...)
	return b, nil
}

// Clone returns a deep copy.
func (b Board) Clone() Board {
	b.Features = cloneFeatures(b.Features)
	b.Phases = slices.Clone(b.Phases)
	b.Extra = cloneExtra(b.Extra)
	return b
}

// Feature returns the feature with id.
func (b Board) Feature(id string) (Feature, bool) {
	idx := reorder.Index(b.Features, FeatureOrder, id)
	if idx < 0 {
		return Feature{}, false
	}
	return b.Features[idx], true
}

// MoveFeature returns a board with id moved into phase at index among that
// phase's features. Unknown ids leave the board unchanged and report false.
func (b Board) MoveFeature(id, phase string, index int) (Board, bool) {
	out := b.Clone()
	if reorder.Index(b.Features, FeatureOrder, id) < 0 {
		return out, false
	}
	out.Features = reorder.Move(out.Features, FeatureOrder, id, phase, index)
	out.Phases = out.Phases.Ensure(phase)
	return out, true
}

// Columns groups features by phase in phase order.
func (b Board) Columns() []Column {
	return b.ColumnsOf(b.Features)
}

// ColumnsOf groups a subset of the board's features (for example a filtered
// view) by the board's phase order. Phases missing from the order are appended.
func (b Board) ColumnsOf(features []Feature) []Column {
	order := b.Phases.Ensure(reorder.Groups(features, FeatureOrder)...)
	out := make([]Column, 0, len(order))
	for _, phase := range order {
		out = append(out, Column{
			Phase:    phase,
			Features: reorder.Members(features, FeatureOrder, phase),
		})
	}
	return out
}

// PhaseSize counts the features in phase.
func (b Board) PhaseSize(phase string) int {
	n := 0
	for _, f := range b.Features {
		if f.Phase == phase {
			n++
		}
	}
	return n
}

func cloneFeatures(in []Feature) []Feature {
	if in == nil {
		return nil
	}
	out := make([]Feature, 0, len(in))
	for _, f := range in {
		out = append(out, f.Clone())
	}
	return out
}
