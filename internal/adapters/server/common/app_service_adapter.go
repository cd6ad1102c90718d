package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// GetBoard returns the board grouped into columns.
func (a *AppServiceAdapter) GetBoard(ctx context.Context) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return BoardView{}, mapAppError("get board", err)
	}
	return boardViewFromDomain(board), nil
}

// ListFeatures lists features matching the request in board order.
func (a *AppServiceAdapter) ListFeatures(ctx context.Context, in ListFeaturesRequest) ([]FeatureView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	var mode domain.FilterMode
	if strings.TrimSpace(in.Mode) != "" {
		parsed, err := domain.ParseFilterMode(in.Mode)
		if err != nil {
			return nil, fmt.Errorf("list features: %w", errors.Join(ErrInvalidRequest, err))
		}
		mode = parsed
	}
	features, err := a.service.ListFeatures(ctx, app.FeatureFilter{
		Tags:  in.Tags,
		Mode:  mode,
		Phase: in.Phase,
		Query: in.Query,
	})
	if err != nil {
		return nil, mapAppError("list features", err)
	}
	return featureViewsFromDomain(features), nil
}

// CreateFeature appends a new feature.
func (a *AppServiceAdapter) CreateFeature(ctx context.Context, in CreateFeatureRequest) (FeatureView, error) {
	if err := a.ready(); err != nil {
		return FeatureView{}, err
	}
	feature, err := a.service.CreateFeature(ctx, app.CreateFeatureInput{
		Title:         in.Title,
		Description:   in.Description,
		UserProblem:   in.UserProblem,
		KeyComponents: in.KeyComponents,
		Phase:         in.Phase,
		Tags:          in.Tags,
	})
	if err != nil {
		return FeatureView{}, mapAppError("create feature", err)
	}
	return featureViewFromDomain(feature), nil
}

// UpdateFeature merges the provided fields into the current feature.
func (a *AppServiceAdapter) UpdateFeature(ctx context.Context, in UpdateFeatureRequest) (FeatureView, error) {
	if err := a.ready(); err != nil {
		return FeatureView{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return FeatureView{}, fmt.Errorf("update feature: id is required: %w", ErrInvalidRequest)
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return FeatureView{}, mapAppError("update feature", err)
	}
	current, ok := board.Feature(id)
	if !ok {
		return FeatureView{}, fmt.Errorf("update feature %q: %w", id, ErrNotFound)
	}

	update := app.UpdateFeatureInput{
		ID:            id,
		Title:         valueOr(in.Title, current.Title),
		Description:   valueOr(in.Description, current.Description),
		UserProblem:   valueOr(in.UserProblem, current.UserProblem),
		KeyComponents: valueOr(in.KeyComponents, current.KeyComponents),
		Phase:         valueOr(in.Phase, current.Phase),
		Tags:          valueOr(in.Tags, current.Tags),
	}
	feature, err := a.service.UpdateFeature(ctx, update)
	if err != nil {
		return FeatureView{}, mapAppError("update feature", err)
	}
	return featureViewFromDomain(feature), nil
}

// MoveFeature reorders a feature.
func (a *AppServiceAdapter) MoveFeature(ctx context.Context, in MoveFeatureRequest) (FeatureView, error) {
	if err := a.ready(); err != nil {
		return FeatureView{}, err
	}
	index := -1
	if in.Index != nil {
		index = *in.Index
	}
	feature, err := a.service.MoveFeature(ctx, strings.TrimSpace(in.ID), in.Phase, index)
	if err != nil {
		return FeatureView{}, mapAppError("move feature", err)
	}
	return featureViewFromDomain(feature), nil
}

// DeleteFeature removes a feature.
func (a *AppServiceAdapter) DeleteFeature(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete feature", a.service.DeleteFeature(ctx, strings.TrimSpace(id)))
}

// ListPhases returns the column order with feature counts.
func (a *AppServiceAdapter) ListPhases(ctx context.Context) ([]PhaseView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.phaseViews(ctx, "list phases")
}

// CreatePhase appends an empty column.
func (a *AppServiceAdapter) CreatePhase(ctx context.Context, name string) ([]PhaseView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if _, err := a.service.CreatePhase(ctx, name); err != nil {
		return nil, mapAppError("create phase", err)
	}
	return a.phaseViews(ctx, "create phase")
}

// MovePhase reorders a column.
func (a *AppServiceAdapter) MovePhase(ctx context.Context, in MovePhaseRequest) ([]PhaseView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if _, err := a.service.MovePhase(ctx, in.Name, in.Index); err != nil {
		return nil, mapAppError("move phase", err)
	}
	return a.phaseViews(ctx, "move phase")
}

// RenamePhase renames a column and its features' phase.
func (a *AppServiceAdapter) RenamePhase(ctx context.Context, in RenamePhaseRequest) ([]PhaseView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if _, err := a.service.RenamePhase(ctx, in.Name, in.To); err != nil {
		return nil, mapAppError("rename phase", err)
	}
	return a.phaseViews(ctx, "rename phase")
}

// DeletePhase removes an empty column.
func (a *AppServiceAdapter) DeletePhase(ctx context.Context, name string) ([]PhaseView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if _, err := a.service.DeletePhase(ctx, name); err != nil {
		return nil, mapAppError("delete phase", err)
	}
	return a.phaseViews(ctx, "delete phase")
}

// ListTags lists tags with their colours.
func (a *AppServiceAdapter) ListTags(ctx context.Context) ([]TagView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tags, err := a.service.Tags(ctx)
	if err != nil {
		return nil, mapAppError("list tags", err)
	}
	out := make([]TagView, 0, len(tags))
	for _, tag := range tags {
		out = append(out, TagView(tag))
	}
	return out, nil
}

// ExportDocument encodes the board as a document.
func (a *AppServiceAdapter) ExportDocument(ctx context.Context, in ExportRequest) (ExportResult, error) {
	if err := a.ready(); err != nil {
		return ExportResult{}, err
	}
	format, err := app.ParseExportFormat(in.Format)
	if err != nil {
		return ExportResult{}, mapAppError("export document", err)
	}
	content, err := a.service.ExportDocument(ctx, app.ExportOptions{Format: format, IncludePhases: in.IncludePhases})
	if err != nil {
		return ExportResult{}, mapAppError("export document", err)
	}
	return ExportResult{
		Filename: a.service.ExportFilename(format),
		Format:   string(format),
		Content:  string(content),
	}, nil
}

// ImportDocument replaces the board with a parsed document.
func (a *AppServiceAdapter) ImportDocument(ctx context.Context, raw []byte) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	board, err := a.service.LoadDocument(ctx, raw)
	if err != nil {
		return BoardView{}, mapAppError("import document", err)
	}
	return boardViewFromDomain(board), nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

func (a *AppServiceAdapter) phaseViews(ctx context.Context, operation string) ([]PhaseView, error) {
	board, err := a.service.Board(ctx)
	if err != nil {
		return nil, mapAppError(operation, err)
	}
	out := make([]PhaseView, 0, len(board.Phases))
	for pos, name := range board.Phases {
		out = append(out, PhaseView{Name: name, Position: pos, Count: board.PhaseSize(name)})
	}
	return out, nil
}

// mapAppError maps app and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNoBoard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrBoardRequired, err))
	case errors.Is(err, app.ErrNotFound), errors.Is(err, domain.ErrUnknownPhase):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrPhaseExists),
		errors.Is(err, domain.ErrPhaseNotEmpty),
		errors.Is(err, domain.ErrDuplicateID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrInvalidDocument),
		errors.Is(err, app.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPhase),
		errors.Is(err, domain.ErrInvalidVision),
		errors.Is(err, domain.ErrInvalidFilterMode):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func boardViewFromDomain(board domain.Board) BoardView {
	columns := board.Columns()
	out := BoardView{
		Vision:       board.Vision,
		Phases:       slices.Clone([]string(board.Phases)),
		FeatureCount: len(board.Features),
		Columns:      make([]ColumnView, 0, len(columns)),
	}
	for _, column := range columns {
		out.Columns = append(out.Columns, ColumnView{
			Phase:    column.Phase,
			Count:    len(column.Features),
			Features: featureViewsFromDomain(column.Features),
		})
	}
	return out
}

func featureViewsFromDomain(features []domain.Feature) []FeatureView {
	out := make([]FeatureView, 0, len(features))
	for _, feature := range features {
		out = append(out, featureViewFromDomain(feature))
	}
	return out
}

func featureViewFromDomain(f domain.Feature) FeatureView {
	return FeatureView{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		UserProblem:   f.UserProblem,
		KeyComponents: nonNil(f.KeyComponents),
		Phase:         f.Phase,
		Tags:          nonNil(f.Tags),
		Extra:         f.Extra,
	}
}

func valueOr[T any](in *T, fallback T) T {
	if in == nil {
		return fallback
	}
	return *in
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
