package tui

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/domain"
)

const boardDocument = `{
  "projectVision": "Ship it",
  "features": [
    {"id": "A", "title": "Login", "phase": "To Do", "tags": ["auth"]},
    {"id": "H", "title": "Hidden", "phase": "To Do", "tags": ["ui"]},
    {"id": "B", "title": "Signup", "phase": "To Do", "tags": ["auth"]},
    {"id": "C", "title": "Theme", "phase": "Doing", "tags": ["ui"]}
  ]
}`

// newTestService returns an in-memory service, optionally seeded with boardDocument.
func newTestService(t *testing.T, load bool) *app.Service {
	t.Helper()
	n := 0
	svc := app.NewService(nil, func() string {
		n++
		return "new-" + string(rune('0'+n))
	}, func() time.Time {
		return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	}, app.ServiceConfig{DefaultPhases: []string{"Backlog", "Doing", "Done"}})
	if load {
		if _, err := svc.LoadDocument(context.Background(), []byte(boardDocument)); err != nil {
			t.Fatalf("LoadDocument() error = %v", err)
		}
	}
	return svc
}

// loadReadyModel sizes the model and runs its initial load.
func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	m = applyMsg(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	return applyCmd(t, m, m.Init())
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

// sendKey delivers msg and drops the returned command, which for prompts is
// only the cursor blink.
func sendKey(t *testing.T, m Model, msg tea.KeyPressMsg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = sendKey(t, m, keyRune(r))
	}
	return m
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func enter() tea.KeyPressMsg { return tea.KeyPressMsg{Code: tea.KeyEnter} }

func escape() tea.KeyPressMsg { return tea.KeyPressMsg{Code: tea.KeyEscape} }

// phaseIDs returns the feature ids of phase in board order.
func phaseIDs(t *testing.T, svc *app.Service, phase string) []string {
	t.Helper()
	board, err := svc.Board(context.Background())
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	var ids []string
	for _, f := range board.Features {
		if f.Phase == phase {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func selectedID(t *testing.T, m Model) string {
	t.Helper()
	f, ok := m.selectedFeatureView()
	if !ok {
		t.Fatal("expected a selected feature")
	}
	return f.ID
}

func TestModelWithoutBoardShowsHint(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, false)))
	if m.hasBoard {
		t.Fatal("expected no board")
	}
	if m.status != "no board yet" {
		t.Fatalf("status = %q", m.status)
	}
	if v := m.View(); v.Content == nil || !v.AltScreen {
		t.Fatal("expected alt screen view content")
	}
	// Board keys are inert until a board exists.
	m = applyMsg(t, m, keyRune('n'))
	if m.mode != modeNone {
		t.Fatalf("mode = %v, want none", m.mode)
	}
}

func TestModelNewBoardPrompt(t *testing.T) {
	svc := newTestService(t, false)
	m := loadReadyModel(t, NewModel(svc))

	m = sendKey(t, m, keyRune('N'))
	if m.mode != modeNewBoard {
		t.Fatalf("mode = %v, want new board", m.mode)
	}
	m = applyMsg(t, m, enter())
	if m.status != "vision required" || m.hasBoard {
		t.Fatalf("expected empty vision to be rejected, status %q", m.status)
	}

	m = sendKey(t, m, keyRune('N'))
	m = typeText(t, m, "Plan")
	m = applyMsg(t, m, enter())
	if !m.hasBoard || m.board.Vision != "Plan" {
		t.Fatalf("expected new board, got %#v", m.board)
	}
	if cols := m.columns(); len(cols) != 3 || cols[0].Phase != "Backlog" {
		t.Fatalf("unexpected columns %#v", cols)
	}
}

func TestModelOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ideas.json")
	if err := os.WriteFile(path, []byte(boardDocument), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	m := loadReadyModel(t, NewModel(newTestService(t, false)))

	m = sendKey(t, m, keyRune('o'))
	m = typeText(t, m, filepath.Join(t.TempDir(), "missing.json"))
	m = applyMsg(t, m, enter())
	if m.hasBoard || !strings.HasPrefix(m.status, "error: read document") {
		t.Fatalf("expected read error, status %q", m.status)
	}

	m = sendKey(t, m, keyRune('o'))
	m = typeText(t, m, path)
	m = applyMsg(t, m, enter())
	if !m.hasBoard || len(m.board.Features) != 4 {
		t.Fatalf("expected loaded board, got %#v", m.board)
	}
	if m.status != "loaded ideas.json" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestModelNavigation(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))
	if got := selectedID(t, m); got != "A" {
		t.Fatalf("selected = %q, want A", got)
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	if got := selectedID(t, m); got != "B" {
		t.Fatalf("selected = %q, want B (clamped)", got)
	}
	m = applyMsg(t, m, keyRune('l'))
	if got := selectedID(t, m); got != "C" {
		t.Fatalf("selected = %q, want C", got)
	}
	m = applyMsg(t, m, keyRune('l'))
	if m.selectedColumn != 1 {
		t.Fatalf("selectedColumn = %d, want 1", m.selectedColumn)
	}
	m = applyMsg(t, m, keyRune('h'))
	m = applyMsg(t, m, keyRune('k'))
	if got := selectedID(t, m); got != "A" {
		t.Fatalf("selected = %q, want A", got)
	}
}

func TestModelMovesCardAcrossColumns(t *testing.T) {
	svc := newTestService(t, true)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('L'))
	if got := phaseIDs(t, svc, "Doing"); !slices.Equal(got, []string{"A", "C"}) {
		t.Fatalf("Doing = %v, want [A C]", got)
	}
	if m.selectedColumn != 1 || selectedID(t, m) != "A" {
		t.Fatalf("focus did not follow the card: column %d", m.selectedColumn)
	}

	m = applyMsg(t, m, keyRune('L'))
	if m.status != "no column there" {
		t.Fatalf("status = %q", m.status)
	}

	// Row 1 of To Do is now B, so C lands just before it.
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('H'))
	if got := phaseIDs(t, svc, "To Do"); !slices.Equal(got, []string{"H", "C", "B"}) {
		t.Fatalf("To Do = %v, want [H C B]", got)
	}
}

func TestModelMovesCardWithinFilteredColumn(t *testing.T) {
	svc := newTestService(t, true)
	m := loadReadyModel(t, NewModel(svc))

	m = sendKey(t, m, keyRune('f'))
	m = typeText(t, m, "auth, auth")
	m = applyMsg(t, m, enter())
	if !slices.Equal(m.filter.Tags, []string{"auth"}) {
		t.Fatalf("filter tags = %v", m.filter.Tags)
	}
	col, _ := m.selectedColumnView()
	if len(col.Features) != 2 {
		t.Fatalf("visible To Do = %d, want 2", len(col.Features))
	}

	m = applyMsg(t, m, keyRune('J'))
	if got := phaseIDs(t, svc, "To Do"); !slices.Equal(got, []string{"H", "B", "A"}) {
		t.Fatalf("To Do = %v, want [H B A]", got)
	}
	if m.selectedFeature != 1 || selectedID(t, m) != "A" {
		t.Fatalf("focus did not follow the card: row %d", m.selectedFeature)
	}

	m = applyMsg(t, m, keyRune('K'))
	if got := phaseIDs(t, svc, "To Do"); !slices.Equal(got, []string{"H", "A", "B"}) {
		t.Fatalf("To Do = %v, want [H A B]", got)
	}

	// Moving past the top of the column is a no-op.
	m = applyMsg(t, m, keyRune('K'))
	if got := phaseIDs(t, svc, "To Do"); !slices.Equal(got, []string{"H", "A", "B"}) {
		t.Fatalf("To Do = %v after no-op", got)
	}
}

func TestModelFilterModeAndClear(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))
	if m.filter.Mode != domain.FilterMatchAll {
		t.Fatalf("mode = %q, want all", m.filter.Mode)
	}

	m = sendKey(t, m, keyRune('f'))
	m = typeText(t, m, "auth,ui")
	m = applyMsg(t, m, enter())
	if len(m.columns()) != 2 || len(m.columns()[0].Features) != 0 {
		t.Fatalf("match-all should hide every card, got %#v", m.columns())
	}

	m = applyMsg(t, m, keyRune('m'))
	if m.filter.Mode != domain.FilterMatchAny || len(m.columns()[0].Features) != 3 {
		t.Fatalf("match-any should show all To Do cards")
	}

	m = applyMsg(t, m, keyRune('F'))
	if m.filter.Active() || m.status != "filter cleared" {
		t.Fatalf("expected cleared filter, status %q", m.status)
	}
}

func TestModelQuickAddAndEdit(t *testing.T) {
	svc := newTestService(t, true)
	m := loadReadyModel(t, NewModel(svc))
	m = applyMsg(t, m, keyRune('l'))

	m = sendKey(t, m, keyRune('n'))
	m = applyMsg(t, m, enter())
	if m.status != "title required" {
		t.Fatalf("status = %q", m.status)
	}

	m = sendKey(t, m, keyRune('n'))
	m = typeText(t, m, "Search")
	m = applyMsg(t, m, enter())
	if got := phaseIDs(t, svc, "Doing"); !slices.Equal(got, []string{"C", "new-1"}) {
		t.Fatalf("Doing = %v", got)
	}
	if selectedID(t, m) != "new-1" {
		t.Fatal("expected focus on the new card")
	}

	m = sendKey(t, m, keyRune('e'))
	if m.mode != modeEditFeature || m.formInputs[featureFieldTitle].Value() != "Search" {
		t.Fatalf("expected edit form for Search")
	}
	if m.formInputs[featureFieldPhase].Value() != "Doing" {
		t.Fatalf("phase = %q", m.formInputs[featureFieldPhase].Value())
	}
	for range featureFieldTags {
		m = sendKey(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	}
	if m.formFocus != featureFieldTags {
		t.Fatalf("formFocus = %d, want tags", m.formFocus)
	}
	m = typeText(t, m, "search, ux,")
	m = sendKey(t, m, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	if m.formFocus != featureFieldPhase {
		t.Fatalf("formFocus = %d, want phase", m.formFocus)
	}
	m = applyMsg(t, m, enter())

	board, _ := svc.Board(context.Background())
	f, _ := board.Feature("new-1")
	if !slices.Equal(f.Tags, []string{"search", "ux"}) {
		t.Fatalf("tags = %v", f.Tags)
	}
	if m.mode != modeNone || m.status != "updated Search" {
		t.Fatalf("mode %v status %q", m.mode, m.status)
	}
}

func TestModelFeatureFormValidationAndCancel(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))

	m = sendKey(t, m, keyRune('e'))
	m.formInputs[featureFieldTitle].SetValue("  ")
	m = sendKey(t, m, enter())
	if m.mode != modeEditFeature || m.status != "title required" {
		t.Fatalf("expected title validation, status %q", m.status)
	}
	m = sendKey(t, m, escape())
	if m.mode != modeNone || m.formInputs != nil {
		t.Fatal("expected form to close")
	}
}

func TestModelDeleteConfirmation(t *testing.T) {
	svc := newTestService(t, true)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('n'))
	if m.status != "delete canceled" || len(phaseIDs(t, svc, "To Do")) != 3 {
		t.Fatalf("expected cancel, status %q", m.status)
	}

	m = applyMsg(t, m, keyRune('d'))
	m = applyMsg(t, m, keyRune('y'))
	if got := phaseIDs(t, svc, "To Do"); !slices.Equal(got, []string{"H", "B"}) {
		t.Fatalf("To Do = %v", got)
	}
	if selectedID(t, m) != "H" {
		t.Fatal("expected focus to stay in the column")
	}
}

func TestModelMovePhase(t *testing.T) {
	svc := newTestService(t, true)
	m := loadReadyModel(t, NewModel(svc))

	m = applyMsg(t, m, keyRune('<'))
	if m.board.Phases[0] != "To Do" {
		t.Fatal("moving the first column left should be a no-op")
	}
	m = applyMsg(t, m, keyRune('>'))
	if !slices.Equal([]string(m.board.Phases), []string{"Doing", "To Do"}) {
		t.Fatalf("phases = %v", m.board.Phases)
	}
	if m.selectedColumn != 1 {
		t.Fatalf("selectedColumn = %d, want 1", m.selectedColumn)
	}
}

func TestModelCopyFeatureJSON(t *testing.T) {
	var copied string
	m := loadReadyModel(t, NewModel(newTestService(t, true), WithClipboard(func(s string) error {
		copied = s
		return nil
	})))

	m = applyMsg(t, m, keyRune('y'))
	if !strings.Contains(copied, `"title": "Login"`) || !strings.Contains(copied, `"phase": "To Do"`) {
		t.Fatalf("unexpected clipboard payload %s", copied)
	}
	if m.status != "copied Login" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestModelExportWritesDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	m := loadReadyModel(t, NewModel(newTestService(t, true), WithExportConfig(ExportConfig{
		Dir:    dir,
		Format: app.ExportYAML,
	})))

	m = applyMsg(t, m, keyRune('x'))
	path := filepath.Join(dir, "brainstorming-data-2026-03-01T09-30-00.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v (status %q)", err, m.status)
	}
	if !strings.Contains(string(raw), "projectVision: Ship it") {
		t.Fatalf("unexpected export %s", raw)
	}
	if m.status != "exported "+path {
		t.Fatalf("status = %q", m.status)
	}
}

func TestModelFeatureInfo(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))
	m = applyMsg(t, m, enter())
	if m.mode != modeFeatureInfo || m.infoFeatureID != "A" {
		t.Fatalf("expected info for A, mode %v", m.mode)
	}
	overlay := m.renderModeOverlay(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"), 80)
	if !strings.Contains(overlay, "Login") {
		t.Fatal("expected info overlay to include the title")
	}
	m = applyMsg(t, m, escape())
	if m.mode != modeNone {
		t.Fatal("expected info to close")
	}
}

func TestModelRenderColumns(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))
	out := m.renderColumns(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"))
	for _, want := range []string{"To Do (3)", "Doing (1)", "› Login", "#auth"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered columns:\n%s", want, out)
		}
	}

	m.filter.Tags = []string{"auth"}
	out = m.renderColumns(lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239"))
	if !strings.Contains(out, "To Do (2/3)") {
		t.Fatalf("expected filtered count in:\n%s", out)
	}
}

func TestModelQuitAndHelp(t *testing.T) {
	m := loadReadyModel(t, NewModel(newTestService(t, true)))
	m = applyMsg(t, m, keyRune('?'))
	if !m.help.ShowAll {
		t.Fatal("expected full help")
	}
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
}

func TestWindowLinesKeepsSelectionVisible(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	if got := windowLines(lines, 5, 2); !slices.Equal(got, []string{"d", "e"}) {
		t.Fatalf("windowLines() = %v", got)
	}
	if got := windowLines(lines, 1, 2); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("windowLines() = %v", got)
	}
	if got := windowLines(lines, 1, 0); len(got) != 5 {
		t.Fatalf("windowLines() = %v", got)
	}
}

func TestParseCSV(t *testing.T) {
	if got := parseCSV(" a, ,b ,"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("parseCSV() = %v", got)
	}
	if got := parseCSV(""); got == nil || len(got) != 0 {
		t.Fatalf("parseCSV(\"\") = %#v", got)
	}
}
