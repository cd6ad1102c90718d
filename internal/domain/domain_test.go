package domain

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestNewFeatureNormalizes(t *testing.T) {
	f, err := NewFeature(FeatureInput{
		ID:            " f1 ",
		Title:         "  Login  ",
		Phase:         " MVP ",
		Description:   " desc ",
		Tags:          []string{" auth", "", "auth", "ui "},
		KeyComponents: []string{"form", "form", " api "},
		Extra:         map[string]json.RawMessage{"priority": json.RawMessage(`"high"`)},
	})
	if err != nil {
		t.Fatalf("NewFeature() error = %v", err)
	}
	if f.ID != "f1" || f.Title != "Login" || f.Phase != "MVP" || f.Description != "desc" {
		t.Fatalf("unexpected feature %#v", f)
	}
	if !slices.Equal(f.Tags, []string{"auth", "ui"}) {
		t.Fatalf("unexpected tags %#v", f.Tags)
	}
	if !slices.Equal(f.KeyComponents, []string{"form", "api"}) {
		t.Fatalf("unexpected components %#v", f.KeyComponents)
	}
	if string(f.Extra["priority"]) != `"high"` {
		t.Fatalf("unexpected extra %#v", f.Extra)
	}
}

func TestNewFeatureValidation(t *testing.T) {
	if _, err := NewFeature(FeatureInput{Title: "x", Phase: "p"}); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewFeature(FeatureInput{ID: "1", Title: "  ", Phase: "p"}); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := NewFeature(FeatureInput{ID: "1", Title: "x", Phase: " "}); err != ErrInvalidPhase {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestFeatureCloneIsDeep(t *testing.T) {
	f, _ := NewFeature(FeatureInput{ID: "1", Title: "x", Phase: "p", Tags: []string{"a"}})
	c := f.Clone()
	c.Tags[0] = "b"
	if f.Tags[0] != "a" {
		t.Fatalf("clone shares tag storage")
	}
}

func TestNewBoardPhaseOrder(t *testing.T) {
	features := []Feature{
		mustFeature(t, "1", "Later"),
		mustFeature(t, "2", "Now"),
		mustFeature(t, "3", "Later"),
	}
	b, err := NewBoard(" vision ", features, []string{"Backlog", "Now"})
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if b.Vision != "vision" {
		t.Fatalf("unexpected vision %q", b.Vision)
	}
	if !slices.Equal([]string(b.Phases), []string{"Backlog", "Now", "Later"}) {
		t.Fatalf("unexpected phases %v", b.Phases)
	}
	cols := b.Columns()
	if len(cols) != 3 || len(cols[0].Features) != 0 || len(cols[2].Features) != 2 {
		t.Fatalf("unexpected columns %#v", cols)
	}
}

func TestNewBoardValidation(t *testing.T) {
	if _, err := NewBoard("  ", nil, nil); err != ErrInvalidVision {
		t.Fatalf("expected ErrInvalidVision, got %v", err)
	}
	dup := []Feature{mustFeature(t, "1", "a"), mustFeature(t, "1", "b")}
	if _, err := NewBoard("v", dup, nil); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBoardMoveFeature(t *testing.T) {
	b, err := NewBoard("v", []Feature{
		mustFeature(t, "A", "To Do"),
		mustFeature(t, "B", "To Do"),
		mustFeature(t, "C", "Doing"),
	}, nil)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}

	moved, ok := b.MoveFeature("A", "Doing", 0)
	if !ok {
		t.Fatal("expected move to succeed")
	}
	if got := ids(moved.Features); !slices.Equal(got, []string{"B", "A", "C"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if b.Features[0].Phase != "To Do" {
		t.Fatalf("original board mutated")
	}

	fresh, ok := b.MoveFeature("B", "Review", 3)
	if !ok {
		t.Fatal("expected move to succeed")
	}
	if !slices.Equal([]string(fresh.Phases), []string{"To Do", "Doing", "Review"}) {
		t.Fatalf("new phase not appended: %v", fresh.Phases)
	}
	if got := ids(fresh.Features); !slices.Equal(got, []string{"A", "C", "B"}) {
		t.Fatalf("unexpected order %v", got)
	}

	same, ok := b.MoveFeature("missing", "Doing", 0)
	if ok {
		t.Fatal("expected unknown id to report false")
	}
	if got := ids(same.Features); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("unknown id changed order %v", got)
	}
}

func TestPhaseOrderOperations(t *testing.T) {
	order := PhaseOrder{"a", "b", "c"}
	moved, err := order.Move("c", 0)
	if err != nil || !slices.Equal([]string(moved), []string{"c", "a", "b"}) {
		t.Fatalf("Move() = %v, %v", moved, err)
	}
	if _, err := order.Move("z", 0); !errors.Is(err, ErrUnknownPhase) {
		t.Fatalf("expected ErrUnknownPhase, got %v", err)
	}
	renamed, err := order.Rename("b", "beta")
	if err != nil || !slices.Equal([]string(renamed), []string{"a", "beta", "c"}) {
		t.Fatalf("Rename() = %v, %v", renamed, err)
	}
	if _, err := order.Rename("b", "c"); !errors.Is(err, ErrPhaseExists) {
		t.Fatalf("expected ErrPhaseExists, got %v", err)
	}
	removed, err := order.Remove("a")
	if err != nil || !slices.Equal([]string(removed), []string{"b", "c"}) {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	if !slices.Equal([]string(order), []string{"a", "b", "c"}) {
		t.Fatalf("order mutated: %v", order)
	}
	if got := order.Ensure("c", " d ", ""); !slices.Equal([]string(got), []string{"a", "b", "c", "d"}) {
		t.Fatalf("Ensure() = %v", got)
	}
}

func TestTagFilterModes(t *testing.T) {
	features := []Feature{
		mustFeature(t, "1", "p", "ui", "auth"),
		mustFeature(t, "2", "p", "ui"),
		mustFeature(t, "3", "p", "infra"),
	}
	all := TagFilter{Tags: []string{"ui", "auth"}, Mode: FilterMatchAll}
	if got := ids(all.Apply(features)); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("match-all = %v", got)
	}
	anyFilter := TagFilter{Tags: []string{"auth", "infra"}, Mode: FilterMatchAny}
	if got := ids(anyFilter.Apply(features)); !slices.Equal(got, []string{"1", "3"}) {
		t.Fatalf("match-any = %v", got)
	}
	if got := ids(TagFilter{}.Apply(features)); len(got) != 3 {
		t.Fatalf("empty filter = %v", got)
	}
	toggled := TagFilter{}.Toggle("ui").Toggle("auth").Toggle("ui")
	if !slices.Equal(toggled.Tags, []string{"auth"}) {
		t.Fatalf("Toggle() = %v", toggled.Tags)
	}
	if got := AllTags(features); !slices.Equal(got, []string{"ui", "auth", "infra"}) {
		t.Fatalf("AllTags() = %v", got)
	}
}

func TestParseFilterMode(t *testing.T) {
	for raw, want := range map[string]FilterMode{"": FilterMatchAll, "ALL": FilterMatchAll, " any ": FilterMatchAny} {
		got, err := ParseFilterMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseFilterMode(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseFilterMode("some"); err != ErrInvalidFilterMode {
		t.Fatalf("expected ErrInvalidFilterMode, got %v", err)
	}
}

func TestTagColorIndexStable(t *testing.T) {
	if got := TagColorIndex("a", 12); got != 1 {
		t.Fatalf("TagColorIndex(a) = %d, want 1", got)
	}
	if got := TagColorIndex("ab", 12); got != 9 {
		t.Fatalf("TagColorIndex(ab) = %d, want 9", got)
	}
	if TagColorIndex("  AB ", 12) != TagColorIndex("ab", 12) {
		t.Fatal("expected case and space insensitive hashing")
	}
	if got := TagColor("ab"); got != "emerald" {
		t.Fatalf("TagColor(ab) = %q", got)
	}
	long := "a very long tag name that overflows thirty two bits many times"
	if idx := TagColorIndex(long, 12); idx < 0 || idx >= 12 {
		t.Fatalf("index out of range: %d", idx)
	}
	if TagColorIndex("x", 0) != 0 {
		t.Fatal("expected zero palette to yield 0")
	}
}

func mustFeature(t *testing.T, id, phase string, tags ...string) Feature {
	t.Helper()
	f, err := NewFeature(FeatureInput{ID: id, Title: "Feature " + id, Phase: phase, Tags: tags})
	if err != nil {
		t.Fatalf("NewFeature() error = %v", err)
	}
	return f
}

func ids(features []Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, f.ID)
	}
	return out
}
