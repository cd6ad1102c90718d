package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/evanschultz/brainboard/internal/reorder"
)

// Feature is one brainstorming card. Phase is the column it belongs to.
type Feature struct {
	ID            string
	Title         string
	Description   string
	UserProblem   string
	KeyComponents []string
	Phase         string
	Tags          []string
	// Extra holds document fields this package does not model, keyed by JSON name.
	Extra map[string]json.RawMessage
}

type FeatureInput struct {
	ID            string
	Title         string
	Description   string
	UserProblem   string
	KeyComponents []string
	Phase         string
	Tags          []string
	Extra         map[string]json.RawMessage
}

func NewFeature(in FeatureInput) (Feature, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Feature{}, ErrInvalidID
	}
	f := Feature{ID: in.ID, Extra: cloneExtra(in.Extra)}
	if err := f.UpdateDetails(in); err != nil {
		return Feature{}, err
	}
	return f, nil
}

// UpdateDetails replaces the editable fields. The id and extra fields are kept.
func (f *Feature) UpdateDetails(in FeatureInput) error {
	title := strings.TrimSpace(in.Title)
	phase := strings.TrimSpace(in.Phase)
	if title == "" {
		return ErrInvalidTitle
	}
	if phase == "" {
		return ErrInvalidPhase
	}
	f.Title = title
	f.Phase = phase
	f.Description = strings.TrimSpace(in.Description)
	f.UserProblem = strings.TrimSpace(in.UserProblem)
	f.KeyComponents = normalizeList(in.KeyComponents)
	f.Tags = NormalizeTags(in.Tags)
	return nil
}

// HasTag reports whether the feature carries tag.
func (f Feature) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// Clone returns a deep copy.
func (f Feature) Clone() Feature {
	f.KeyComponents = slices.Clone(f.KeyComponents)
	f.Tags = slices.Clone(f.Tags)
	f.Extra = cloneExtra(f.Extra)
	return f
}

// FeatureOrder adapts features to the reorder engine.
var FeatureOrder = reorder.Accessor[Feature]{
	ID:    func(f Feature) string { return f.ID },
	Group: func(f Feature) string { return f.Phase },
	WithGroup: func(f Feature, phase string) Feature {
		out := f.Clone()
		out.Phase = phase
		return out
	},
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) []string {
	return normalizeList(tags)
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func cloneExtra(in map[string]json.RawMessage) map[string]json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for key, raw := range maps.All(in) {
		out[key] = slices.Clone(raw)
	}
	return out
}
