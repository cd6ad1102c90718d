// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that clash with the current board state.
var ErrConflict = errors.New("conflict")

// ErrBoardRequired reports that no board has been loaded or created yet.
var ErrBoardRequired = errors.New("board is required")

// BoardService is the board surface shared by REST and MCP transports.
type BoardService interface {
	GetBoard(context.Context) (BoardView, error)
	ListFeatures(context.Context, ListFeaturesRequest) ([]FeatureView, error)
	CreateFeature(context.Context, CreateFeatureRequest) (FeatureView, error)
	UpdateFeature(context.Context, UpdateFeatureRequest) (FeatureView, error)
	MoveFeature(context.Context, MoveFeatureRequest) (FeatureView, error)
	DeleteFeature(context.Context, string) error
	ListPhases(context.Context) ([]PhaseView, error)
	CreatePhase(context.Context, string) ([]PhaseView, error)
	MovePhase(context.Context, MovePhaseRequest) ([]PhaseView, error)
	RenamePhase(context.Context, RenamePhaseRequest) ([]PhaseView, error)
	DeletePhase(context.Context, string) ([]PhaseView, error)
	ListTags(context.Context) ([]TagView, error)
	ExportDocument(context.Context, ExportRequest) (ExportResult, error)
	ImportDocument(context.Context, []byte) (BoardView, error)
}

// FeatureView is one feature as transports render it.
type FeatureView struct {
	ID            string                     `json:"id"`
	Title         string                     `json:"title"`
	Description   string                     `json:"description"`
	UserProblem   string                     `json:"user_problem,omitempty"`
	KeyComponents []string                   `json:"key_components"`
	Phase         string                     `json:"phase"`
	Tags          []string                   `json:"tags"`
	Extra         map[string]json.RawMessage `json:"extra,omitempty"`
}

// ColumnView is one phase with its features in board order.
type ColumnView struct {
	Phase    string        `json:"phase"`
	Count    int           `json:"count"`
	Features []FeatureView `json:"features"`
}

// BoardView is the whole board grouped into columns.
type BoardView struct {
	Vision       string       `json:"vision"`
	Phases       []string     `json:"phases"`
	FeatureCount int          `json:"feature_count"`
	Columns      []ColumnView `json:"columns"`
}

// PhaseView is one entry in the column order.
type PhaseView struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	Count    int    `json:"count"`
}

// TagView describes one tag in use.
type TagView struct {
	Name       string `json:"name"`
	Color      string `json:"color"`
	ColorIndex int    `json:"color_index"`
	Count      int    `json:"count"`
}

// ListFeaturesRequest narrows a feature listing.
type ListFeaturesRequest struct {
	Tags  []string
	Mode  string
	Phase string
	Query string
}

// CreateFeatureRequest stores transport input for feature creation.
type CreateFeatureRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	UserProblem   string   `json:"user_problem"`
	KeyComponents []string `json:"key_components"`
	Phase         string   `json:"phase"`
	Tags          []string `json:"tags"`
}

// UpdateFeatureRequest stores transport input for feature updates. Nil fields
// keep their current value.
type UpdateFeatureRequest struct {
	ID            string    `json:"-"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	UserProblem   *string   `json:"user_problem"`
	KeyComponents *[]string `json:"key_components"`
	Phase         *string   `json:"phase"`
	Tags          *[]string `json:"tags"`
}

// MoveFeatureRequest places a feature at Index among the features of Phase.
// A nil Index appends.
type MoveFeatureRequest struct {
	ID    string `json:"-"`
	Phase string `json:"phase"`
	Index *int   `json:"index"`
}

// MovePhaseRequest moves a column to Index in the column order.
type MovePhaseRequest struct {
	Name  string `json:"-"`
	Index int    `json:"index"`
}

// RenamePhaseRequest renames a column.
type RenamePhaseRequest struct {
	Name string `json:"-"`
	To   string `json:"name"`
}

// ExportRequest selects the export encoding.
type ExportRequest struct {
	Format        string
	IncludePhases bool
}

// ExportResult carries an encoded document and a suggested file name.
type ExportResult struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Content  string `json:"content"`
}
