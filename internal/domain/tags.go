package domain

import (
	"slices"
	"strings"
	"unicode/utf16"
)

// FilterMode selects how multiple selected tags combine.
type FilterMode string

const (
	FilterMatchAll FilterMode = "all"
	FilterMatchAny FilterMode = "any"
)

// ParseFilterMode normalizes a mode name; empty input yields FilterMatchAll.
func ParseFilterMode(raw string) (FilterMode, error) {
	switch FilterMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterMatchAll:
		return FilterMatchAll, nil
	case FilterMatchAny:
		return FilterMatchAny, nil
	default:
		return "", ErrInvalidFilterMode
	}
}

// TagFilter keeps features carrying the selected tags.
type TagFilter struct {
	Tags []string
	Mode FilterMode
}

// Active reports whether the filter narrows anything.
func (f TagFilter) Active() bool {
	return len(f.Tags) > 0
}

func (f TagFilter) Match(feature Feature) bool {
	if len(f.Tags) == 0 {
		return true
	}
	if f.Mode == FilterMatchAny {
		return slices.ContainsFunc(f.Tags, feature.HasTag)
	}
	for _, tag := range f.Tags {
		if !feature.HasTag(tag) {
			return false
		}
	}
	return true
}

// Apply returns matching features in sequence order.
func (f TagFilter) Apply(features []Feature) []Feature {
	out := make([]Feature, 0, len(features))
	for _, feature := range features {
		if f.Match(feature) {
			out = append(out, feature)
		}
	}
	return out
}

// Toggle adds tag when absent and removes it otherwise.
func (f TagFilter) Toggle(tag string) TagFilter {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return f
	}
	if idx := slices.Index(f.Tags, tag); idx >= 0 {
		f.Tags = slices.Delete(slices.Clone(f.Tags), idx, idx+1)
		return f
	}
	f.Tags = append(slices.Clone(f.Tags), tag)
	return f
}

// AllTags lists distinct tags in first-appearance order.
func AllTags(features []Feature) []string {
	out := make([]string, 0)
	seen := map[string]struct{}{}
	for _, feature := range features {
		for _, tag := range feature.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// TagPalette names the tag colours in assignment order.
var TagPalette = []string{
	"blue", "green", "purple", "orange", "red", "yellow",
	"pink", "indigo", "cyan", "emerald", "violet", "amber",
}

// TagColor returns the palette colour for tag. The same tag, ignoring case and
// surrounding space, always gets the same colour.
func TagColor(tag string) string {
	return TagPalette[TagColorIndex(tag, len(TagPalette))]
}

// TagColorIndex hashes tag into [0, size) with a 32-bit multiply-by-31 hash
// over UTF-16 code units.
func TagColorIndex(tag string, size int) int {
	if size <= 0 {
		return 0
	}
	var hash int32
	for _, unit := range utf16.Encode([]rune(strings.ToLower(strings.TrimSpace(tag)))) {
		hash = hash*31 + int32(unit)
	}
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(size))
}
