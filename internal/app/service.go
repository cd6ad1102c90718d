package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evanschultz/brainboard/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// FilterMode is used when a filter does not name a mode.
	FilterMode domain.FilterMode
	// DefaultPhases seed the column order of a brand-new board.
	DefaultPhases []string
	Notifier      Notifier
}

// IDGenerator returns unique identifiers for new features.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns the current board. Every operation reads or replaces the whole
// board under one lock, so callers always observe a consistent sequence.
type Service struct {
	repo          Repository
	idGen         IDGenerator
	clock         Clock
	notifier      Notifier
	filterMode    domain.FilterMode
	defaultPhases []string

	mu     sync.RWMutex
	board  domain.Board
	loaded bool
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.FilterMode == "" {
		cfg.FilterMode = domain.FilterMatchAll
	}
	return &Service{
		repo:          repo,
		idGen:         idGen,
		clock:         clock,
		notifier:      cfg.Notifier,
		filterMode:    cfg.FilterMode,
		defaultPhases: slices.Clone(cfg.DefaultPhases),
	}
}

// Restore seeds the state from the last saved snapshot. It reports false when
// nothing has been saved yet.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	board, err := s.repo.LoadBoard(ctx)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore board: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = board
	s.loaded = true
	return true, nil
}

// HasBoard reports whether a board has been loaded or created.
func (s *Service) HasBoard() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// DefaultFilterMode returns the configured tag filter mode.
func (s *Service) DefaultFilterMode() domain.FilterMode {
	return s.filterMode
}

// Board returns a deep copy of the current board.
func (s *Service) Board(ctx context.Context) (domain.Board, error) {
	if err := ctx.Err(); err != nil {
		return domain.Board{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return domain.Board{}, ErrNoBoard
	}
	return s.board.Clone(), nil
}

// CreateBoard starts an empty board with the configured default phases.
func (s *Service) CreateBoard(ctx context.Context, vision string) (domain.Board, error) {
	board, err := domain.NewBoard(vision, nil, s.defaultPhases)
	if err != nil {
		return domain.Board{}, err
	}
	return s.ReplaceBoard(ctx, board)
}

// LoadDocument parses raw as a document and replaces the board with it. The
// previous board is kept when the document is rejected.
func (s *Service) LoadDocument(ctx context.Context, raw []byte) (domain.Board, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return domain.Board{}, err
	}
	board, err := doc.toBoard(s.idGen)
	if err != nil {
		return domain.Board{}, err
	}
	return s.ReplaceBoard(ctx, board)
}

// ReplaceBoard validates board and installs it wholesale.
func (s *Service) ReplaceBoard(ctx context.Context, board domain.Board) (domain.Board, error) {
	if err := ctx.Err(); err != nil {
		return domain.Board{}, err
	}
	next, err := domain.NewBoard(board.Vision, board.Features, board.Phases)
	if err != nil {
		return domain.Board{}, err
	}
	next.Extra = cloneRaw(board.Extra)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = next
	s.loaded = true
	s.notify()
	return next.Clone(), nil
}

// CreateFeatureInput holds input values for create feature operations.
type CreateFeatureInput struct {
	Title         string
	Description   string
	UserProblem   string
	KeyComponents []string
	Phase         string
	Tags          []string
}

// CreateFeature appends a new feature to the end of the sequence.
func (s *Service) CreateFeature(ctx context.Context, in CreateFeatureInput) (domain.Feature, error) {
	var created domain.Feature
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		feature, err := domain.NewFeature(domain.FeatureInput{
			ID:            s.idGen(),
			Title:         in.Title,
			Description:   in.Description,
			UserProblem:   in.UserProblem,
			KeyComponents: in.KeyComponents,
			Phase:         in.Phase,
			Tags:          in.Tags,
		})
		if err != nil {
			return board, err
		}
		if _, exists := board.Feature(feature.ID); exists {
			return board, domain.ErrDuplicateID
		}
		board.Features = append(board.Features, feature)
		board.Phases = board.Phases.Ensure(feature.Phase)
		created = feature.Clone()
		return board, nil
	})
	return created, err
}

// UpdateFeatureInput holds input values for update feature operations. All
// editable fields are replaced.
type UpdateFeatureInput struct {
	ID            string
	Title         string
	Description   string
	UserProblem   string
	KeyComponents []string
	Phase         string
	Tags          []string
}

// UpdateFeature edits a feature in place. A phase change moves the feature to
// the end of its new phase.
func (s *Service) UpdateFeature(ctx context.Context, in UpdateFeatureInput) (domain.Feature, error) {
	var updated domain.Feature
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		idx := slices.IndexFunc(board.Features, func(f domain.Feature) bool { return f.ID == in.ID })
		if idx < 0 {
			return board, ErrNotFound
		}
		current := board.Features[idx]
		next := current.Clone()
		if err := next.UpdateDetails(domain.FeatureInput{
			Title:         in.Title,
			Description:   in.Description,
			UserProblem:   in.UserProblem,
			KeyComponents: in.KeyComponents,
			Phase:         in.Phase,
			Tags:          in.Tags,
		}); err != nil {
			return board, err
		}
		targetPhase := next.Phase
		next.Phase = current.Phase
		board.Features[idx] = next
		if targetPhase != current.Phase {
			board, _ = board.MoveFeature(next.ID, targetPhase, -1)
		}
		updated, _ = board.Feature(next.ID)
		return board, nil
	})
	return updated, err
}

// DeleteFeature removes a feature from the sequence.
func (s *Service) DeleteFeature(ctx context.Context, id string) error {
	return s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		idx := slices.IndexFunc(board.Features, func(f domain.Feature) bool { return f.ID == id })
		if idx < 0 {
			return board, ErrNotFound
		}
		board.Features = slices.Delete(board.Features, idx, idx+1)
		return board, nil
	})
}

// MoveFeature places a feature into phase at index among that phase's
// features. Out-of-range indexes append to the phase.
func (s *Service) MoveFeature(ctx context.Context, id, phase string, index int) (domain.Feature, error) {
	phase = strings.TrimSpace(phase)
	if phase == "" {
		return domain.Feature{}, domain.ErrInvalidPhase
	}
	var moved domain.Feature
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		next, ok := board.MoveFeature(id, phase, index)
		if !ok {
			return board, ErrNotFound
		}
		moved, _ = next.Feature(id)
		return next, nil
	})
	return moved, err
}

// CreatePhase appends an empty column.
func (s *Service) CreatePhase(ctx context.Context, name string) (domain.PhaseOrder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidPhase
	}
	var order domain.PhaseOrder
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		if board.Phases.Contains(name) {
			return board, domain.ErrPhaseExists
		}
		board.Phases = board.Phases.Ensure(name)
		order = slices.Clone(board.Phases)
		return board, nil
	})
	return order, err
}

// MovePhase moves a column to index in the column order.
func (s *Service) MovePhase(ctx context.Context, name string, index int) (domain.PhaseOrder, error) {
	var order domain.PhaseOrder
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		next, err := board.Phases.Move(name, index)
		if err != nil {
			return board, err
		}
		board.Phases = next
		order = slices.Clone(next)
		return board, nil
	})
	return order, err
}

// RenamePhase renames a column and rewrites the phase of its features without
// changing their order.
func (s *Service) RenamePhase(ctx context.Context, from, to string) (domain.PhaseOrder, error) {
	from = strings.TrimSpace(from)
	var order domain.PhaseOrder
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		next, err := board.Phases.Rename(from, to)
		if err != nil {
			return board, err
		}
		renamed := strings.TrimSpace(to)
		for idx := range board.Features {
			if board.Features[idx].Phase == from {
				board.Features[idx].Phase = renamed
			}
		}
		board.Phases = next
		order = slices.Clone(next)
		return board, nil
	})
	return order, err
}

// DeletePhase removes an empty column.
func (s *Service) DeletePhase(ctx context.Context, name string) (domain.PhaseOrder, error) {
	var order domain.PhaseOrder
	err := s.mutate(ctx, func(board domain.Board) (domain.Board, error) {
		if board.PhaseSize(name) > 0 {
			return board, domain.ErrPhaseNotEmpty
		}
		next, err := board.Phases.Remove(name)
		if err != nil {
			return board, err
		}
		board.Phases = next
		order = slices.Clone(next)
		return board, nil
	})
	return order, err
}

// FeatureFilter narrows ListFeatures. Zero values match everything.
type FeatureFilter struct {
	Tags  []string
	Mode  domain.FilterMode
	Phase string
	Query string
}

// ListFeatures returns matching features in sequence order.
func (s *Service) ListFeatures(ctx context.Context, filter FeatureFilter) ([]domain.Feature, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	mode := filter.Mode
	if mode == "" {
		mode = s.filterMode
	}
	tagFilter := domain.TagFilter{Tags: domain.NormalizeTags(filter.Tags), Mode: mode}
	phase := strings.TrimSpace(filter.Phase)
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]domain.Feature, 0, len(board.Features))
	for _, feature := range tagFilter.Apply(board.Features) {
		if phase != "" && feature.Phase != phase {
			continue
		}
		if query != "" && !featureMatchesQuery(feature, query) {
			continue
		}
		out = append(out, feature)
	}
	return out, nil
}

// TagSummary describes one tag in use on the board.
type TagSummary struct {
	Name       string `json:"name"`
	Color      string `json:"color"`
	ColorIndex int    `json:"color_index"`
	Count      int    `json:"count"`
}

// Tags lists every tag on the board in first-appearance order.
func (s *Service) Tags(ctx context.Context) ([]TagSummary, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, feature := range board.Features {
		for _, tag := range feature.Tags {
			counts[tag]++
		}
	}
	tags := domain.AllTags(board.Features)
	out := make([]TagSummary, 0, len(tags))
	for _, tag := range tags {
		out = append(out, TagSummary{
			Name:       tag,
			Color:      domain.TagColor(tag),
			ColorIndex: domain.TagColorIndex(tag, len(domain.TagPalette)),
			Count:      counts[tag],
		})
	}
	return out, nil
}

// ExportOptions selects the export encoding.
type ExportOptions struct {
	Format        ExportFormat
	IncludePhases bool
}

// Document returns the current board as an interchange document.
func (s *Service) Document(ctx context.Context, includePhases bool) (Document, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return Document{}, err
	}
	return documentFromBoard(board, includePhases), nil
}

// ExportDocument encodes the current board.
func (s *Service) ExportDocument(ctx context.Context, opts ExportOptions) ([]byte, error) {
	doc, err := s.Document(ctx, opts.IncludePhases)
	if err != nil {
		return nil, err
	}
	return EncodeDocument(doc, opts.Format)
}

// ExportFilename names an export taken now.
func (s *Service) ExportFilename(format ExportFormat) string {
	return ExportFilename(s.clock(), format)
}

// Flush writes pending changes synchronously when the notifier buffers them.
func (s *Service) Flush(ctx context.Context) error {
	flusher, ok := s.notifier.(Flusher)
	if !ok {
		return nil
	}
	return flusher.Flush(ctx)
}

// mutate applies fn to a copy of the board and installs the result when fn
// succeeds.
func (s *Service) mutate(ctx context.Context, fn func(domain.Board) (domain.Board, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoBoard
	}
	next, err := fn(s.board.Clone())
	if err != nil {
		return err
	}
	s.board = next
	s.notify()
	return nil
}

// notify must be called with mu held.
func (s *Service) notify() {
	if s.notifier != nil {
		s.notifier.Notify(s.board.Clone())
	}
}

func featureMatchesQuery(feature domain.Feature, query string) bool {
	fields := []string{feature.Title, feature.Description, feature.UserProblem}
	fields = append(fields, feature.Tags...)
	fields = append(fields, feature.KeyComponents...)
	return slices.ContainsFunc(fields, func(field string) bool {
		return strings.Contains(strings.ToLower(field), query)
	})
}
