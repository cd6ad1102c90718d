package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/domain"
)

// memoryRepo keeps the last saved board in memory.
type memoryRepo struct {
	mu    sync.Mutex
	board *domain.Board
}

func (r *memoryRepo) SaveBoard(_ context.Context, board domain.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := board.Clone()
	r.board = &saved
	return nil
}

func (r *memoryRepo) LoadBoard(context.Context) (domain.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.board == nil {
		return domain.Board{}, app.ErrNotFound
	}
	return r.board.Clone(), nil
}

const adapterDocument = `{
  "projectVision": "Ship it",
  "features": [
    {"id": "A", "title": "Login", "phase": "To Do", "tags": ["auth"]},
    {"id": "B", "title": "Signup", "phase": "To Do", "tags": ["ui", "auth"]},
    {"id": "C", "title": "Theme", "phase": "Doing", "tags": ["ui"]}
  ]
}`

func newTestAdapter(t *testing.T, load bool) *AppServiceAdapter {
	t.Helper()
	n := 0
	svc := app.NewService(&memoryRepo{}, func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}, func() time.Time {
		return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	}, app.ServiceConfig{})
	adapter := NewAppServiceAdapter(svc)
	if load {
		if _, err := adapter.ImportDocument(context.Background(), []byte(adapterDocument)); err != nil {
			t.Fatalf("ImportDocument() error = %v", err)
		}
	}
	return adapter
}

func TestAppServiceAdapterRequiresBoard(t *testing.T) {
	adapter := newTestAdapter(t, false)
	_, err := adapter.GetBoard(context.Background())
	if !errors.Is(err, ErrBoardRequired) {
		t.Fatalf("expected ErrBoardRequired, got %v", err)
	}
	_, err = adapter.CreateFeature(context.Background(), CreateFeatureRequest{Title: "x", Phase: "p"})
	if !errors.Is(err, ErrBoardRequired) {
		t.Fatalf("expected ErrBoardRequired on create, got %v", err)
	}
}

func TestAppServiceAdapterNilService(t *testing.T) {
	var adapter *AppServiceAdapter
	if _, err := adapter.GetBoard(context.Background()); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAppServiceAdapterGetBoardGroupsColumns(t *testing.T) {
	adapter := newTestAdapter(t, true)
	board, err := adapter.GetBoard(context.Background())
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if board.Vision != "Ship it" || board.FeatureCount != 3 {
		t.Fatalf("unexpected board %#v", board)
	}
	if !slices.Equal(board.Phases, []string{"To Do", "Doing"}) {
		t.Fatalf("unexpected phases %v", board.Phases)
	}
	if len(board.Columns) != 2 || board.Columns[0].Count != 2 || board.Columns[1].Count != 1 {
		t.Fatalf("unexpected columns %#v", board.Columns)
	}
	if board.Columns[0].Features[1].ID != "B" {
		t.Fatalf("expected B second in To Do, got %q", board.Columns[0].Features[1].ID)
	}
}

func TestAppServiceAdapterMoveFeature(t *testing.T) {
	adapter := newTestAdapter(t, true)
	ctx := context.Background()
	zero := 0
	moved, err := adapter.MoveFeature(ctx, MoveFeatureRequest{ID: "A", Phase: "Doing", Index: &zero})
	if err != nil {
		t.Fatalf("MoveFeature() error = %v", err)
	}
	if moved.Phase != "Doing" {
		t.Fatalf("expected Doing, got %q", moved.Phase)
	}
	features, err := adapter.ListFeatures(ctx, ListFeaturesRequest{})
	if err != nil {
		t.Fatalf("ListFeatures() error = %v", err)
	}
	if got := viewIDs(features); !slices.Equal(got, []string{"B", "A", "C"}) {
		t.Fatalf("unexpected order %v", got)
	}

	// nil index appends after the last member of the phase
	if _, err := adapter.MoveFeature(ctx, MoveFeatureRequest{ID: "B", Phase: "Doing"}); err != nil {
		t.Fatalf("MoveFeature() append error = %v", err)
	}
	features, _ = adapter.ListFeatures(ctx, ListFeaturesRequest{Phase: "Doing"})
	if got := viewIDs(features); !slices.Equal(got, []string{"A", "C", "B"}) {
		t.Fatalf("unexpected Doing order %v", got)
	}

	_, err = adapter.MoveFeature(ctx, MoveFeatureRequest{ID: "missing", Phase: "Doing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppServiceAdapterUpdateMergesFields(t *testing.T) {
	adapter := newTestAdapter(t, true)
	ctx := context.Background()
	title := "Login v2"
	updated, err := adapter.UpdateFeature(ctx, UpdateFeatureRequest{ID: "A", Title: &title})
	if err != nil {
		t.Fatalf("UpdateFeature() error = %v", err)
	}
	if updated.Title != "Login v2" || updated.Phase != "To Do" || !slices.Equal(updated.Tags, []string{"auth"}) {
		t.Fatalf("unexpected update result %#v", updated)
	}

	blank := "  "
	_, err = adapter.UpdateFeature(ctx, UpdateFeatureRequest{ID: "A", Title: &blank})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for blank title, got %v", err)
	}
	_, err = adapter.UpdateFeature(ctx, UpdateFeatureRequest{ID: "nope", Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppServiceAdapterPhaseErrors(t *testing.T) {
	adapter := newTestAdapter(t, true)
	ctx := context.Background()

	phases, err := adapter.CreatePhase(ctx, "Done")
	if err != nil {
		t.Fatalf("CreatePhase() error = %v", err)
	}
	if len(phases) != 3 || phases[2].Name != "Done" || phases[2].Count != 0 {
		t.Fatalf("unexpected phases %#v", phases)
	}
	if _, err := adapter.CreatePhase(ctx, "Done"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate phase, got %v", err)
	}
	if _, err := adapter.DeletePhase(ctx, "To Do"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for non-empty phase, got %v", err)
	}
	if _, err := adapter.MovePhase(ctx, MovePhaseRequest{Name: "Nope", Index: 0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown phase, got %v", err)
	}

	phases, err = adapter.MovePhase(ctx, MovePhaseRequest{Name: "Done", Index: 0})
	if err != nil {
		t.Fatalf("MovePhase() error = %v", err)
	}
	if phases[0].Name != "Done" || phases[0].Position != 0 {
		t.Fatalf("unexpected phases after move %#v", phases)
	}

	phases, err = adapter.RenamePhase(ctx, RenamePhaseRequest{Name: "Doing", To: "In Progress"})
	if err != nil {
		t.Fatalf("RenamePhase() error = %v", err)
	}
	if phases[2].Name != "In Progress" || phases[2].Count != 1 {
		t.Fatalf("unexpected phases after rename %#v", phases)
	}
}

func TestAppServiceAdapterListFeaturesRejectsBadMode(t *testing.T) {
	adapter := newTestAdapter(t, true)
	_, err := adapter.ListFeatures(context.Background(), ListFeaturesRequest{Tags: []string{"ui"}, Mode: "some"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	features, err := adapter.ListFeatures(context.Background(), ListFeaturesRequest{Tags: []string{"ui", "auth"}, Mode: "all"})
	if err != nil {
		t.Fatalf("ListFeatures() error = %v", err)
	}
	if got := viewIDs(features); !slices.Equal(got, []string{"B"}) {
		t.Fatalf("unexpected filtered ids %v", got)
	}
}

func TestAppServiceAdapterExportAndImport(t *testing.T) {
	adapter := newTestAdapter(t, true)
	ctx := context.Background()

	out, err := adapter.ExportDocument(ctx, ExportRequest{Format: "yaml"})
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}
	if out.Format != "yaml" || !strings.HasSuffix(out.Filename, ".yaml") {
		t.Fatalf("unexpected export metadata %#v", out)
	}
	if !strings.Contains(out.Content, "projectVision: Ship it") {
		t.Fatalf("expected yaml content, got %q", out.Content)
	}
	if _, err := adapter.ExportDocument(ctx, ExportRequest{Format: "xml"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for xml, got %v", err)
	}

	if _, err := adapter.ImportDocument(ctx, []byte(`{"features": []}`)); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad document, got %v", err)
	}
	board, err := adapter.GetBoard(ctx)
	if err != nil || board.FeatureCount != 3 {
		t.Fatalf("expected previous board to survive bad import, got %#v, %v", board, err)
	}
}

func TestAppServiceAdapterTagsAndDelete(t *testing.T) {
	adapter := newTestAdapter(t, true)
	ctx := context.Background()
	tags, err := adapter.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "auth" || tags[0].Count != 2 || tags[0].Color == "" {
		t.Fatalf("unexpected tags %#v", tags)
	}
	if err := adapter.DeleteFeature(ctx, "A"); err != nil {
		t.Fatalf("DeleteFeature() error = %v", err)
	}
	if err := adapter.DeleteFeature(ctx, "A"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func viewIDs(features []FeatureView) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, f.ID)
	}
	return out
}
