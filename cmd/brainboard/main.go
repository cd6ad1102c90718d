package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/evanschultz/brainboard/internal/adapters/server"
	"github.com/evanschultz/brainboard/internal/adapters/server/common"
	"github.com/evanschultz/brainboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/brainboard/internal/app"
	"github.com/evanschultz/brainboard/internal/config"
	"github.com/evanschultz/brainboard/internal/domain"
	"github.com/evanschultz/brainboard/internal/platform"
	"github.com/evanschultz/brainboard/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command line without fang's styling; tests drive it directly.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newRootCommand builds the command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &globalOptions{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("BRAINBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("BRAINBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:     "brainboard",
		Short:   "Organize brainstormed features into phases",
		Long:    "brainboard keeps a project vision and its features on a board of phase columns.\nRun without a command to open the board.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, "tui", runTUI)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newInitCommand(opts, stderr),
		newLoadCommand(opts, stderr),
		newExportCommand(opts, stderr),
		newListCommand(opts, stderr),
		newAddCommand(opts, stderr),
		newMoveCommand(opts, stderr),
		newPhasesCommand(opts, stderr),
		newServeCommand(opts, stderr),
		newPathsCommand(opts),
	)
	return root
}

// runtimeEnv holds everything a command needs once config is resolved.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	persister  *app.Persister
	svc        *app.Service
}

// withRuntime resolves config, opens storage, restores the board, runs fn,
// and flushes pending writes on the way out.
func withRuntime(cmd *cobra.Command, opts *globalOptions, stderr io.Writer, command string, fn func(context.Context, *cobra.Command, *runtimeEnv) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := openRuntime(ctx, opts, stderr, command == "tui")
	if err != nil {
		return err
	}
	defer env.close()

	env.logger.Info("command flow start", "command", command)
	if err := fn(ctx, cmd, env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

// resolvePaths applies flag, environment, and platform defaults in that order.
func resolvePaths(opts *globalOptions) (platform.Paths, string, string, bool, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return platform.Paths{}, "", "", false, err
	}
	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		configPath = firstNonEmpty(os.Getenv("BRAINBOARD_CONFIG"), paths.ConfigPath)
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("BRAINBOARD_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}
	return paths, configPath, dbPath, dbOverridden, nil
}

func openRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer, tuiMode bool) (*runtimeEnv, error) {
	paths, configPath, dbPath, dbOverridden, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	filterMode, err := domain.ParseFilterMode(cfg.Filter.Mode)
	if err != nil {
		return nil, fmt.Errorf("config filter.mode: %w", err)
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if tuiMode {
		// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
		logger.SetConsoleEnabled(false)
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	persister := app.NewPersister(repo, app.PersisterOptions{
		Debounce: debounce,
		Logger:   logger.Component("persist"),
	})
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		FilterMode:    filterMode,
		DefaultPhases: cfg.Board.DefaultPhases,
		Notifier:      persister,
	})
	env := &runtimeEnv{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		persister:  persister,
		svc:        svc,
	}
	restored, err := svc.Restore(ctx)
	if err != nil {
		env.close()
		return nil, err
	}
	logger.Info("board restored", "db_path", cfg.Database.Path, "found", restored)
	return env, nil
}

// close flushes pending snapshots, then releases storage and log sinks.
func (e *runtimeEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.persister.Close(ctx); err != nil {
		e.logger.Error("final snapshot save failed", "err", err)
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	_ = e.logger.Close()
}

// exportDir returns the configured export directory or the platform default.
func (e *runtimeEnv) exportDir() string {
	return firstNonEmpty(e.cfg.Export.Dir, e.paths.ExportDir, ".")
}

func runTUI(_ context.Context, _ *cobra.Command, env *runtimeEnv) error {
	format, err := app.ParseExportFormat(env.cfg.Export.Format)
	if err != nil {
		return fmt.Errorf("config export.format: %w", err)
	}
	m := tui.NewModel(env.svc, tui.WithExportConfig(tui.ExportConfig{
		Dir:           env.exportDir(),
		Format:        format,
		IncludePhases: env.cfg.Export.IncludePhases,
	}))
	env.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

func newInitCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <vision>",
		Short: "Start an empty board with the default phases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, stderr, "init", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				if env.svc.HasBoard() && !force {
					return errors.New("a board already exists; pass --force to replace it")
				}
				board, err := env.svc.CreateBoard(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created board %q with phases: %s\n", board.Vision, strings.Join(board.Phases, ", "))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing board")
	return cmd
}

func newLoadCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Validate a brainstorming document and replace the board with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, stderr, "load", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				board, err := env.svc.LoadDocument(ctx, raw)
				if err != nil {
					return fmt.Errorf("load %s: %w", args[0], err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d features in %d phases\n", len(board.Features), len(board.Phases))
				return err
			})
		},
	}
}

func newExportCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var (
		outPath       string
		format        string
		includePhases bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board as a brainstorming document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, "export", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				if !cmd.Flags().Changed("format") {
					format = env.cfg.Export.Format
				}
				if !cmd.Flags().Changed("phases") {
					includePhases = env.cfg.Export.IncludePhases
				}
				parsed, err := app.ParseExportFormat(format)
				if err != nil {
					return err
				}
				data, err := env.svc.ExportDocument(ctx, app.ExportOptions{Format: parsed, IncludePhases: includePhases})
				if err != nil {
					return err
				}
				if outPath == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if outPath == "" {
					outPath = filepath.Join(env.exportDir(), env.svc.ExportFilename(parsed))
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), outPath)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file path ('-' for stdout, default: export dir)")
	cmd.Flags().StringVar(&format, "format", "json", "json | yaml")
	cmd.Flags().BoolVar(&includePhases, "phases", false, "include the column order")
	return cmd
}

func newListCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var (
		tags  []string
		mode  string
		phase string
		query string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List features in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, "list", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				filter := app.FeatureFilter{Tags: tags, Phase: phase, Query: query}
				if strings.TrimSpace(mode) != "" {
					parsed, err := domain.ParseFilterMode(mode)
					if err != nil {
						return fmt.Errorf("--mode: %w", err)
					}
					filter.Mode = parsed
				}
				features, err := env.svc.ListFeatures(ctx, filter)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderFeatureTable(features))
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "only features carrying these tags")
	cmd.Flags().StringVar(&mode, "mode", "", "tag match mode: all | any (default from config)")
	cmd.Flags().StringVar(&phase, "phase", "", "only features in this phase")
	cmd.Flags().StringVar(&query, "query", "", "case-insensitive text search")
	return cmd
}

func newAddCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var in app.CreateFeatureInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a feature to the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, "add", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				feature, err := env.svc.CreateFeature(ctx, in)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), feature.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "feature title")
	cmd.Flags().StringVar(&in.Phase, "phase", "", "phase (column) name")
	cmd.Flags().StringVar(&in.Description, "description", "", "markdown description")
	cmd.Flags().StringVar(&in.UserProblem, "problem", "", "user problem statement")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringSliceVar(&in.KeyComponents, "component", nil, "key component (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("phase")
	return cmd
}

func newMoveCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <phase> [index]",
		Short: "Move a feature to a phase, at index or at the end",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := -1
			if len(args) == 3 {
				parsed, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("index %q: %w", args[2], err)
				}
				index = parsed
			}
			return withRuntime(cmd, opts, stderr, "move", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				feature, err := env.svc.MoveFeature(ctx, args[0], args[1], index)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s\n", feature.ID, feature.Phase)
				return err
			})
		},
	}
}

func newPhasesCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	printPhases := func(ctx context.Context, w io.Writer, env *runtimeEnv) error {
		board, err := env.svc.Board(ctx)
		if err != nil {
			return err
		}
		for idx, phase := range board.Phases {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%d\n", idx, phase, board.PhaseSize(phase)); err != nil {
				return err
			}
		}
		return nil
	}
	phaseAction := func(name string, args cobra.PositionalArgs, fn func(context.Context, *runtimeEnv, []string) error) *cobra.Command {
		return &cobra.Command{
			Use:  name,
			Args: args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, opts, stderr, "phases", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
					if err := fn(ctx, env, args); err != nil {
						return err
					}
					return printPhases(ctx, cmd.OutOrStdout(), env)
				})
			},
		}
	}

	cmd := phaseAction("phases", cobra.NoArgs, func(context.Context, *runtimeEnv, []string) error { return nil })
	cmd.Short = "List phases in column order with feature counts"

	add := phaseAction("add <name>", cobra.ExactArgs(1), func(ctx context.Context, env *runtimeEnv, args []string) error {
		_, err := env.svc.CreatePhase(ctx, args[0])
		return err
	})
	add.Short = "Append an empty phase"

	move := phaseAction("move <name> <index>", cobra.ExactArgs(2), func(ctx context.Context, env *runtimeEnv, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index %q: %w", args[1], err)
		}
		_, err = env.svc.MovePhase(ctx, args[0], index)
		return err
	})
	move.Short = "Move a phase to a new column position"

	rename := phaseAction("rename <name> <new-name>", cobra.ExactArgs(2), func(ctx context.Context, env *runtimeEnv, args []string) error {
		_, err := env.svc.RenamePhase(ctx, args[0], args[1])
		return err
	})
	rename.Short = "Rename a phase and relabel its features"

	remove := phaseAction("delete <name>", cobra.ExactArgs(1), func(ctx context.Context, env *runtimeEnv, args []string) error {
		_, err := env.svc.DeletePhase(ctx, args[0])
		return err
	})
	remove.Short = "Delete an empty phase"

	cmd.AddCommand(add, move, rename, remove)
	return cmd
}

func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over a local REST API and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, "serve", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv) error {
				cfg := server.Config{
					HTTPBind:      firstNonEmpty(httpBind, env.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Server.MCPEndpoint),
					ServerName:    opts.appName,
					ServerVersion: version,
				}
				env.logger.Info("serve starting", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
				return serveCommandRunner(ctx, cfg, server.Dependencies{
					Board:  common.NewAppServiceAdapter(env.svc),
					Ready:  env.svc.HasBoard,
					Logger: env.logger.Component("http"),
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API path prefix")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path")
	return cmd
}

func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, configPath, dbPath, _, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", dbPath)
			_, _ = fmt.Fprintf(out, "export_dir: %s\n", paths.ExportDir)
			_, err = fmt.Fprintf(out, "last_saved: %s\n", lastSavedAt(cmd.Context(), dbPath))
			return err
		},
	}
}

// lastSavedAt reports when the stored board was last written, without creating
// a database that does not exist yet.
func lastSavedAt(ctx context.Context, dbPath string) string {
	if _, err := os.Stat(dbPath); err != nil {
		return "never"
	}
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		return "unknown"
	}
	defer func() { _ = repo.Close() }()
	savedAt, err := repo.SavedAt(ctx)
	switch {
	case errors.Is(err, app.ErrNotFound):
		return "never"
	case err != nil:
		return "unknown"
	}
	return savedAt.Local().Format(time.RFC3339)
}

// parseBoolEnv parses one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
