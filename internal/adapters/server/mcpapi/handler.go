// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/brainboard/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, board)
	registerFeatureTools(mcpSrv, board)
	registerPhaseTools(mcpSrv, board)
	registerExportTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "brainboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerBoardTools registers read-only board and tag tools.
func registerBoardTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"brainboard.get_board",
			mcp.WithDescription("Return the project vision and every feature grouped by phase, in board order."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			view, err := board.GetBoard(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_board", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"brainboard.list_tags",
			mcp.WithDescription("List tags in use with their display colours and feature counts."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tags, err := board.ListTags(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tags", map[string]any{"tags": tags})
		},
	)
}

// registerFeatureTools registers feature list and mutation tools.
func registerFeatureTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"brainboard.list_features",
			mcp.WithDescription("List features in board order, optionally narrowed by tags, phase, or text."),
			mcp.WithArray("tags", mcp.Description("Tags to filter by"), mcp.WithStringItems()),
			mcp.WithString("mode", mcp.Description("Tag match mode"), mcp.Enum("all", "any")),
			mcp.WithString("phase", mcp.Description("Only features in this phase")),
			mcp.WithString("query", mcp.Description("Case-insensitive text search")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			features, err := board.ListFeatures(ctx, common.ListFeaturesRequest{
				Tags:  req.GetStringSlice("tags", nil),
				Mode:  req.GetString("mode", ""),
				Phase: req.GetString("phase", ""),
				Query: req.GetString("query", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_features", map[string]any{"features": features})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"brainboard.create_feature",
			mcp.WithDescription("Append a new feature card to the end of the board."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Feature title")),
			mcp.WithString("phase", mcp.Required(), mcp.Description("Phase (column) name")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("user_problem", mcp.Description("The user problem this feature solves")),
			mcp.WithArray("key_components", mcp.Description("Key components"), mcp.WithStringItems()),
			mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			phase, err := req.RequireString("phase")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			feature, err := board.CreateFeature(ctx, common.CreateFeatureRequest{
				Title:         title,
				Phase:         phase,
				Description:   req.GetString("description", ""),
				UserProblem:   req.GetString("user_problem", ""),
				KeyComponents: req.GetStringSlice("key_components", nil),
				Tags:          req.GetStringSlice("tags", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_feature", feature)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"brainboard.update_feature",
			mcp.WithDescription("Update one feature. Omitted fields keep their current value; a new phase moves the card to the end of that phase."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Feature id")),
			mcp.WithString("title", mcp.Description("Feature title")),
			mcp.WithString("phase", mcp.Description("Phase (column) name")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("user_problem", mcp.Description("The user problem this feature solves")),
			mcp.WithArray("key_components", mcp.Description("Key components"), mcp.WithStringItems()),
			mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ID            string    `json:"id"`
				Title         *string   `json:"title"`
				Phase         *string   `json:"phase"`
				Description   *string   `json:"description"`
				UserProblem   *string   `json:"user_problem"`
				KeyComponents *[]string `json:"key_components"`
				Tags          *[]string `json:"tags"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			feature, err := board.UpdateFeature(ctx, common.UpdateFeatureRequest{
				ID:            args.ID,
				Title:         args.Title,
				Phase:         args.Phase,
				Description:   args.Description,
				UserProblem:   args.UserProblem,
				KeyComponents: args.KeyComponents,
				Tags:          args.Tags,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_feature", feature)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"brainboard.move_feature",
			mcp.WithDescription("Move a feature into a phase at a position among that phase's features. Omit index to append."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Feature id")),
			mcp.WithString("phase", mcp.Required(), mcp.Description("Destination phase")),
			mcp.WithNumber("index", mcp.Description("Zero-based position within the destination phase")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ID    string `json:"id"`
				Phase string `json:"phase"`
				Index *int   `json:"index"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			if strings.TrimSpace(args.Phase) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "phase" not found`), nil
			}
			feature, err := board.MoveFeature(ctx, common.MoveFeatureRequest{
				ID:    args.ID,
				Phase: args.Phase,
				Index: args.Index,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_feature", feature)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"brainboard.delete_feature",
			mcp.WithDescription("Delete one feature by id."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Feature id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := board.DeleteFeature(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_feature", map[string]any{"deleted": id})
		},
	)
}

// registerPhaseTools registers column order tools.
func registerPhaseTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"brainboard.move_phase",
			mcp.WithDescription("Move a phase (column) to a new position in the column order."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Phase name")),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based destination position")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			index, err := req.RequireInt("index")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			phases, err := board.MovePhase(ctx, common.MovePhaseRequest{Name: name, Index: index})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_phase", map[string]any{"phases": phases})
		},
	)
}

// registerExportTools registers document export.
func registerExportTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"brainboard.export_document",
			mcp.WithDescription("Export the board as a brainstorming document."),
			mcp.WithString("format", mcp.Description("Document encoding"), mcp.Enum("json", "yaml")),
			mcp.WithBoolean("include_phases", mcp.Description("Include the explicit column order")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := board.ExportDocument(ctx, common.ExportRequest{
				Format:        req.GetString("format", ""),
				IncludePhases: req.GetBool("include_phases", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("export_document", out)
		},
	)
}

func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrBoardRequired):
		return mcp.NewToolResultError("board_required: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
