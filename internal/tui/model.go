package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/domain"
	"github.com/evanschultz/brainboard/internal/reorder"
)

// Service represents service data used by this package.
type Service interface {
	Board(context.Context) (domain.Board, error)
	CreateBoard(context.Context, string) (domain.Board, error)
	LoadDocument(context.Context, []byte) (domain.Board, error)
	CreateFeature(context.Context, app.CreateFeatureInput) (domain.Feature, error)
	UpdateFeature(context.Context, app.UpdateFeatureInput) (domain.Feature, error)
	DeleteFeature(context.Context, string) error
	MoveFeature(context.Context, string, string, int) (domain.Feature, error)
	MovePhase(context.Context, string, int) (domain.PhaseOrder, error)
	ExportDocument(context.Context, app.ExportOptions) ([]byte, error)
	ExportFilename(app.ExportFormat) string
	DefaultFilterMode() domain.FilterMode
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeQuickAdd
	modeAddFeature
	modeEditFeature
	modeFeatureInfo
	modeTagFilter
	modeConfirmDelete
	modeOpenDocument
	modeNewBoard
)

// featureFormFields stores feature-form field labels in display order.
var featureFormFields = []string{"title", "description", "user problem", "phase", "tags", "components"}

// feature-form field indexes.
const (
	featureFieldTitle = iota
	featureFieldDescription
	featureFieldUserProblem
	featureFieldPhase
	featureFieldTags
	featureFieldComponents
)

// Model is the Bubble Tea board model.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	export   ExportConfig
	copyText func(string) error
	markdown *markdownRenderer

	board    domain.Board
	hasBoard bool
	filter   domain.TagFilter

	selectedColumn  int
	selectedFeature int
	focusID         string
	focusPhase      string

	mode          inputMode
	prompt        textinput.Model
	formInputs    []textinput.Model
	formFocus     int
	editingID     string
	infoFeatureID string
}

// loadedMsg carries a fresh board snapshot.
type loadedMsg struct {
	board    domain.Board
	hasBoard bool
	err      error
}

// actionMsg carries the outcome of one mutation.
type actionMsg struct {
	err        error
	status     string
	reload     bool
	focusID    string
	focusPhase string
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		export:   DefaultExportConfig(),
		copyText: clipboard.WriteAll,
		markdown: &markdownRenderer{},
		filter:   domain.TagFilter{Mode: svc.DefaultFilterMode()},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.board = msg.board
		m.hasBoard = msg.hasBoard
		if !m.hasBoard {
			m.status = "no board yet"
			return m, nil
		}
		if m.focusPhase != "" {
			m.focusColumn(m.focusPhase)
			m.focusPhase = ""
		}
		if m.focusID != "" {
			m.focusFeature(m.focusID)
			m.focusID = ""
		}
		m.clampSelections()
		if m.status == "" || m.status == "loading..." || m.status == "no board yet" {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		m.focusID = msg.focusID
		m.focusPhase = msg.focusPhase
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// loadData loads the current board.
func (m Model) loadData() tea.Msg {
	board, err := m.svc.Board(context.Background())
	if errors.Is(err, app.ErrNoBoard) {
		return loadedMsg{}
	}
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{board: board, hasBoard: true}
}

// columns returns the board grouped by phase after the tag filter.
func (m Model) columns() []domain.Column {
	if !m.hasBoard {
		return nil
	}
	return m.board.ColumnsOf(m.filter.Apply(m.board.Features))
}

// selectedColumnView returns the focused column.
func (m Model) selectedColumnView() (domain.Column, bool) {
	cols := m.columns()
	if len(cols) == 0 {
		return domain.Column{}, false
	}
	return cols[clamp(m.selectedColumn, 0, len(cols)-1)], true
}

// selectedFeatureView returns the focused feature.
func (m Model) selectedFeatureView() (domain.Feature, bool) {
	col, ok := m.selectedColumnView()
	if !ok || len(col.Features) == 0 {
		return domain.Feature{}, false
	}
	return col.Features[clamp(m.selectedFeature, 0, len(col.Features)-1)], true
}

// clampSelections keeps the focus inside the visible board.
func (m *Model) clampSelections() {
	cols := m.columns()
	if len(cols) == 0 {
		m.selectedColumn = 0
		m.selectedFeature = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(cols)-1)
	m.selectedFeature = clamp(m.selectedFeature, 0, len(cols[m.selectedColumn].Features)-1)
}

// focusFeature moves the focus onto id when it is visible.
func (m *Model) focusFeature(id string) {
	for colIdx, col := range m.columns() {
		for rowIdx, feature := range col.Features {
			if feature.ID == id {
				m.selectedColumn = colIdx
				m.selectedFeature = rowIdx
				return
			}
		}
	}
}

// focusColumn moves the focus onto phase.
func (m *Model) focusColumn(phase string) {
	for colIdx, col := range m.columns() {
		if col.Phase == phase {
			m.selectedColumn = colIdx
			return
		}
	}
}

// handleNormalModeKey handles board navigation and actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.newBoard):
		cmd := m.startPrompt(modeNewBoard, "vision: ", "what are we building?", "", 240)
		return m, cmd
	case key.Matches(msg, m.keys.openDocument):
		cmd := m.startPrompt(modeOpenDocument, "file: ", "path to brainstorming json", "", 512)
		return m, cmd
	}
	if !m.hasBoard {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn--
		m.clampSelections()
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn++
		m.clampSelections()
	case key.Matches(msg, m.keys.moveUp):
		m.selectedFeature--
		m.clampSelections()
	case key.Matches(msg, m.keys.moveDown):
		m.selectedFeature++
		m.clampSelections()
	case key.Matches(msg, m.keys.cardLeft):
		return m.moveCardAcross(-1)
	case key.Matches(msg, m.keys.cardRight):
		return m.moveCardAcross(1)
	case key.Matches(msg, m.keys.cardUp):
		return m.moveCardWithin(-1)
	case key.Matches(msg, m.keys.cardDown):
		return m.moveCardWithin(1)
	case key.Matches(msg, m.keys.phaseLeft):
		return m.movePhase(-1)
	case key.Matches(msg, m.keys.phaseRight):
		return m.movePhase(1)
	case key.Matches(msg, m.keys.addFeature):
		if _, ok := m.selectedColumnView(); !ok {
			cmd := m.startFeatureForm(nil)
			return m, cmd
		}
		cmd := m.startPrompt(modeQuickAdd, "title: ", "feature title", "", 120)
		return m, cmd
	case key.Matches(msg, m.keys.editFeature):
		feature, ok := m.selectedFeatureView()
		if !ok {
			m.status = "no feature selected"
			return m, nil
		}
		cmd := m.startFeatureForm(&feature)
		return m, cmd
	case key.Matches(msg, m.keys.deleteFeature):
		feature, ok := m.selectedFeatureView()
		if !ok {
			m.status = "no feature selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.editingID = feature.ID
		m.status = "delete " + feature.Title + "?"
	case key.Matches(msg, m.keys.featureInfo):
		feature, ok := m.selectedFeatureView()
		if !ok {
			m.status = "no feature selected"
			return m, nil
		}
		m.mode = modeFeatureInfo
		m.infoFeatureID = feature.ID
	case key.Matches(msg, m.keys.tagFilter):
		cmd := m.startPrompt(modeTagFilter, "tags: ", "comma separated, empty clears", strings.Join(m.filter.Tags, ","), 240)
		return m, cmd
	case key.Matches(msg, m.keys.clearFilter):
		m.filter.Tags = nil
		m.clampSelections()
		m.status = "filter cleared"
	case key.Matches(msg, m.keys.filterMode):
		if m.filter.Mode == domain.FilterMatchAny {
			m.filter.Mode = domain.FilterMatchAll
		} else {
			m.filter.Mode = domain.FilterMatchAny
		}
		m.clampSelections()
		m.status = "match " + string(m.filter.Mode) + " tags"
	case key.Matches(msg, m.keys.copyFeature):
		return m.copySelectedFeature()
	case key.Matches(msg, m.keys.export):
		return m, m.exportCmd()
	}
	return m, nil
}

// moveCardAcross moves the focused card into the neighbouring column at the
// same visible row, appending when that column is shorter.
func (m Model) moveCardAcross(delta int) (tea.Model, tea.Cmd) {
	feature, ok := m.selectedFeatureView()
	if !ok {
		return m, nil
	}
	cols := m.columns()
	target := m.selectedColumn + delta
	if target < 0 || target >= len(cols) {
		m.status = "no column there"
		return m, nil
	}
	targetCol := cols[target]
	index := -1
	if m.selectedFeature < len(targetCol.Features) {
		index = m.phaseIndexOf(targetCol.Features[m.selectedFeature].ID)
	}
	return m, m.moveFeatureCmd(feature, targetCol.Phase, index)
}

// moveCardWithin swaps the focused card past its visible neighbour.
func (m Model) moveCardWithin(delta int) (tea.Model, tea.Cmd) {
	feature, ok := m.selectedFeatureView()
	if !ok {
		return m, nil
	}
	col, _ := m.selectedColumnView()
	row := m.selectedFeature + delta
	if row < 0 || row >= len(col.Features) {
		return m, nil
	}
	index := m.phaseIndexOf(col.Features[row].ID)
	return m, m.moveFeatureCmd(feature, col.Phase, index)
}

// phaseIndexOf returns the position of id among all features of its phase,
// including ones hidden by the filter. Moving a card to that index lands it
// where the visible neighbour was.
func (m Model) phaseIndexOf(id string) int {
	return reorder.GroupIndex(m.board.Features, domain.FeatureOrder, id)
}

func (m Model) moveFeatureCmd(feature domain.Feature, phase string, index int) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.MoveFeature(context.Background(), feature.ID, phase, index); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{
			status:  fmt.Sprintf("moved %s to %s", truncate(feature.Title, 32), phase),
			reload:  true,
			focusID: feature.ID,
		}
	}
}

// movePhase shifts the focused column left or right.
func (m Model) movePhase(delta int) (tea.Model, tea.Cmd) {
	col, ok := m.selectedColumnView()
	if !ok {
		return m, nil
	}
	from := m.board.Phases.Index(col.Phase)
	target := from + delta
	if from < 0 || target < 0 || target >= len(m.board.Phases) {
		return m, nil
	}
	phase := col.Phase
	return m, func() tea.Msg {
		if _, err := m.svc.MovePhase(context.Background(), phase, target); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "moved column " + phase, reload: true, focusPhase: phase}
	}
}

func (m Model) copySelectedFeature() (tea.Model, tea.Cmd) {
	feature, ok := m.selectedFeatureView()
	if !ok {
		m.status = "no feature selected"
		return m, nil
	}
	raw, err := app.FeatureJSON(feature)
	if err != nil {
		m.status = "error: " + err.Error()
		return m, nil
	}
	if err := m.copyText(string(raw)); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = "copied " + truncate(feature.Title, 32)
	return m, nil
}

func (m Model) exportCmd() tea.Cmd {
	cfg := m.export
	return func() tea.Msg {
		data, err := m.svc.ExportDocument(context.Background(), app.ExportOptions{
			Format:        cfg.Format,
			IncludePhases: cfg.IncludePhases,
		})
		if err != nil {
			return actionMsg{err: err}
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return actionMsg{err: fmt.Errorf("create export dir: %w", err)}
		}
		path := filepath.Join(cfg.Dir, m.svc.ExportFilename(cfg.Format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return actionMsg{err: fmt.Errorf("write export: %w", err)}
		}
		return actionMsg{status: "exported " + path}
	}
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startPrompt opens a single-line prompt for mode.
func (m *Model) startPrompt(mode inputMode, prompt, placeholder, value string, limit int) tea.Cmd {
	m.mode = mode
	m.prompt = newModalInput(prompt, placeholder, value, limit)
	return m.prompt.Focus()
}

// startFeatureForm opens the add form, or the edit form when feature is set.
func (m *Model) startFeatureForm(feature *domain.Feature) tea.Cmd {
	m.formInputs = []textinput.Model{
		newModalInput("", "feature title (required)", "", 120),
		newModalInput("", "markdown description", "", 2000),
		newModalInput("", "who hurts and why", "", 500),
		newModalInput("", "phase (required)", "", 80),
		newModalInput("", "csv tags", "", 240),
		newModalInput("", "csv key components", "", 500),
	}
	if feature != nil {
		m.formInputs[featureFieldTitle].SetValue(feature.Title)
		m.formInputs[featureFieldDescription].SetValue(feature.Description)
		m.formInputs[featureFieldUserProblem].SetValue(feature.UserProblem)
		m.formInputs[featureFieldPhase].SetValue(feature.Phase)
		m.formInputs[featureFieldTags].SetValue(strings.Join(feature.Tags, ","))
		m.formInputs[featureFieldComponents].SetValue(strings.Join(feature.KeyComponents, ","))
		m.mode = modeEditFeature
		m.editingID = feature.ID
		m.status = "edit feature"
	} else {
		if col, ok := m.selectedColumnView(); ok {
			m.formInputs[featureFieldPhase].SetValue(col.Phase)
		}
		m.mode = modeAddFeature
		m.editingID = ""
		m.status = "new feature"
	}
	return m.focusFormField(0)
}

// focusFormField focuses feature form field.
func (m *Model) focusFormField(idx int) tea.Cmd {
	if len(m.formInputs) == 0 {
		return nil
	}
	idx = clamp(idx, 0, len(m.formInputs)-1)
	m.formFocus = idx
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	return m.formInputs[idx].Focus()
}

// handleInputModeKey routes keys while a prompt, form, or modal is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeFeatureInfo:
		switch msg.String() {
		case "esc", "q", "i", "enter":
			m.mode = modeNone
			m.infoFeatureID = ""
		case "y":
			m.mode = modeNone
			return m.copySelectedFeature()
		}
		return m, nil

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			id := m.editingID
			m.mode = modeNone
			m.editingID = ""
			return m, func() tea.Msg {
				if err := m.svc.DeleteFeature(context.Background(), id); err != nil {
					return actionMsg{err: err}
				}
				return actionMsg{status: "feature deleted", reload: true}
			}
		case "n", "esc":
			m.mode = modeNone
			m.editingID = ""
			m.status = "delete canceled"
		}
		return m, nil

	case modeAddFeature, modeEditFeature:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.formInputs = nil
			m.status = "canceled"
			return m, nil
		case "tab", "down":
			cmd := m.focusFormField((m.formFocus + 1) % len(m.formInputs))
			return m, cmd
		case "shift+tab", "up":
			cmd := m.focusFormField((m.formFocus - 1 + len(m.formInputs)) % len(m.formInputs))
			return m, cmd
		case "enter":
			return m.submitFeatureForm()
		}
		var cmd tea.Cmd
		m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
		return m, cmd

	default:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.status = "canceled"
			return m, nil
		case "enter":
			return m.submitPrompt()
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
}

// submitPrompt applies the single-line prompt for the current mode.
func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.prompt.Value())
	mode := m.mode
	m.mode = modeNone

	switch mode {
	case modeQuickAdd:
		col, ok := m.selectedColumnView()
		if value == "" || !ok {
			m.status = "title required"
			return m, nil
		}
		return m, m.createFeatureCmd(app.CreateFeatureInput{Title: value, Phase: col.Phase})

	case modeTagFilter:
		m.filter.Tags = domain.NormalizeTags(parseCSV(value))
		m.clampSelections()
		if m.filter.Active() {
			m.status = fmt.Sprintf("filtering %d tags (%s)", len(m.filter.Tags), m.filter.Mode)
		} else {
			m.status = "filter cleared"
		}
		return m, nil

	case modeOpenDocument:
		if value == "" {
			m.status = "path required"
			return m, nil
		}
		return m, func() tea.Msg {
			raw, err := os.ReadFile(value)
			if err != nil {
				return actionMsg{err: fmt.Errorf("read document: %w", err)}
			}
			if _, err := m.svc.LoadDocument(context.Background(), raw); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "loaded " + filepath.Base(value), reload: true}
		}

	case modeNewBoard:
		if value == "" {
			m.status = "vision required"
			return m, nil
		}
		return m, func() tea.Msg {
			if _, err := m.svc.CreateBoard(context.Background(), value); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "new board", reload: true}
		}
	}
	return m, nil
}

// submitFeatureForm creates or updates a feature from the form.
func (m Model) submitFeatureForm() (tea.Model, tea.Cmd) {
	vals := make([]string, len(m.formInputs))
	for i, in := range m.formInputs {
		vals[i] = strings.TrimSpace(in.Value())
	}
	if vals[featureFieldTitle] == "" {
		m.status = "title required"
		cmd := m.focusFormField(featureFieldTitle)
		return m, cmd
	}
	if vals[featureFieldPhase] == "" {
		m.status = "phase required"
		cmd := m.focusFormField(featureFieldPhase)
		return m, cmd
	}
	mode := m.mode
	id := m.editingID
	m.mode = modeNone
	m.formInputs = nil
	m.editingID = ""

	if mode == modeAddFeature {
		return m, m.createFeatureCmd(app.CreateFeatureInput{
			Title:         vals[featureFieldTitle],
			Description:   vals[featureFieldDescription],
			UserProblem:   vals[featureFieldUserProblem],
			Phase:         vals[featureFieldPhase],
			Tags:          parseCSV(vals[featureFieldTags]),
			KeyComponents: parseCSV(vals[featureFieldComponents]),
		})
	}
	in := app.UpdateFeatureInput{
		ID:            id,
		Title:         vals[featureFieldTitle],
		Description:   vals[featureFieldDescription],
		UserProblem:   vals[featureFieldUserProblem],
		Phase:         vals[featureFieldPhase],
		Tags:          parseCSV(vals[featureFieldTags]),
		KeyComponents: parseCSV(vals[featureFieldComponents]),
	}
	return m, func() tea.Msg {
		feature, err := m.svc.UpdateFeature(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "updated " + truncate(feature.Title, 32), reload: true, focusID: feature.ID}
	}
}

func (m Model) createFeatureCmd(in app.CreateFeatureInput) tea.Cmd {
	return func() tea.Msg {
		feature, err := m.svc.CreateFeature(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "added " + truncate(feature.Title, 32), reload: true, focusID: feature.ID}
	}
}

// parseCSV splits a comma separated list and drops blanks.
func parseCSV(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
