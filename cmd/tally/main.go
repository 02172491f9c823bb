package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/dustin/go-humanize"
	"github.com/evanschultz/tally/internal/adapters/server"
	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/adapters/storage/file"
	"github.com/evanschultz/tally/internal/adapters/storage/redis"
	"github.com/evanschultz/tally/internal/adapters/storage/sqlite"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/config"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/platform"
	"github.com/evanschultz/tally/internal/tui"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags.
var version = "dev"

// program is the slice of *tea.Program the CLI drives, swappable in tests.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with explicit args and writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	env        config.Env
	envErr     error
}

// newRootCommand builds the tally command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := &globalOptions{appName: "tally", devMode: version == "dev"}
	opts.env, opts.envErr = config.ParseEnv()
	if opts.env.AppName != nil && strings.TrimSpace(*opts.env.AppName) != "" {
		opts.appName = strings.TrimSpace(*opts.env.AppName)
	}
	if opts.env.DevMode != nil {
		opts.devMode = *opts.env.DevMode
	}

	root := &cobra.Command{
		Use:           "tally",
		Short:         "Track tasks by return on time invested",
		Long:          "tally ranks tasks by ROI (revenue / time taken), then priority, then title.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	root.PersistentPreRunE = func(*cobra.Command, []string) error {
		return opts.envErr
	}

	root.AddCommand(
		newPathsCommand(opts, stdout),
		newConfigCommand(opts, stdout),
		newListCommand(opts, stdout, stderr),
		newAddCommand(opts, stdout, stderr),
		newExportCommand(opts, stdout, stderr),
		newImportCommand(opts, stdout, stderr),
		newServeCommand(opts, stderr),
	)
	return root
}

func newPathsCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", opts.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "store_dir: %s\n", paths.StoreDir)
			if cwd, err := os.Getwd(); err == nil {
				_, _ = fmt.Fprintf(stdout, "dev_log: %s\n", platform.DevLogFile("", opts.appName, cwd, time.Now().UTC()))
			}
			return nil
		},
	}
}

func newConfigCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			configPath := opts.resolveConfigPath(paths)
			if strings.TrimSpace(opts.dbPath) != "" {
				paths.DBPath = strings.TrimSpace(opts.dbPath)
			}
			if err := config.Write(configPath, config.Default(paths), force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to replace it)", err)
				}
				return err
			}
			_, err = fmt.Fprintf(stdout, "wrote %s\n", configPath)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing config file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newListCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks ranked by ROI with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, "list", stderr)
			if err != nil {
				return err
			}
			defer rt.Close()
			view := rt.store.Snapshot()
			if asJSON {
				return writeJSON(stdout, view)
			}
			if err := writeTaskTable(stdout, view, rt.cfg.Display.Currency); err != nil {
				return err
			}
			if at, ok := rt.lastSaved(cmd.Context()); ok {
				_, err = fmt.Fprintf(stdout, "last saved %s\n", humanize.Time(at))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the derived view as JSON")
	return cmd
}

func newAddCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		id        string
		title     string
		revenue   float64
		timeTaken float64
		priority  string
		status    string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedPriority, _ := domain.ParsePriority(priority)
			in := domain.TaskInput{
				ID:       id,
				Title:    title,
				Priority: parsedPriority,
				Status:   domain.Status(strings.TrimSpace(status)),
			}
			if cmd.Flags().Changed("revenue") {
				in.Revenue = domain.Amount(revenue)
			}
			if cmd.Flags().Changed("time") {
				in.TimeTaken = domain.Amount(timeTaken)
			}

			rt, err := openRuntime(cmd.Context(), opts, "add", stderr)
			if err != nil {
				return err
			}
			defer rt.Close()
			task, err := rt.store.Add(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("add task: %w", err)
			}
			if rt.persistErr != nil {
				return fmt.Errorf("persist task: %w", rt.persistErr)
			}
			_, _ = fmt.Fprintf(stdout, "added %s %q (ROI %.2f)\n", task.ID, task.Title, task.ROI())
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "explicit task id (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "revenue earned")
	cmd.Flags().Float64Var(&timeTaken, "time", 0, "time taken")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "High | Medium | Low")
	cmd.Flags().StringVar(&status, "status", string(domain.StatusTodo), "workflow status")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newExportCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all tasks as a versioned JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, "export", stderr)
			if err != nil {
				return err
			}
			defer rt.Close()
			if loadErr := rt.store.Err(); loadErr != nil {
				return fmt.Errorf("refusing to export after failed load: %w", loadErr)
			}
			return runExport(rt.store, outPath, stdout)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		inPath string
		merge  bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load tasks from an export document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var exp app.Export
			if err := json.Unmarshal(content, &exp); err != nil {
				return fmt.Errorf("decode export json: %w", err)
			}
			mode := app.ImportReplace
			if merge {
				mode = app.ImportMerge
			}

			rt, err := openRuntime(cmd.Context(), opts, "import", stderr)
			if err != nil {
				return err
			}
			defer rt.Close()
			count, err := rt.store.Import(cmd.Context(), exp, mode)
			if err != nil {
				return fmt.Errorf("import tasks: %w", err)
			}
			if rt.persistErr != nil {
				return fmt.Errorf("persist import: %w", rt.persistErr)
			}
			_, _ = fmt.Fprintf(stdout, "imported %d tasks (%s)\n", count, mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input export JSON file")
	cmd.Flags().BoolVar(&merge, "merge", false, "merge by id instead of replacing all tasks")
	return cmd
}

func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tasks over local REST and MCP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, "serve", stderr)
			if err != nil {
				return err
			}
			defer rt.Close()
			cfg := server.Config{
				HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
				ServerName:    opts.appName,
				ServerVersion: version,
			}
			err = server.Run(cmd.Context(), cfg, server.Dependencies{
				Tasks:  common.NewAppServiceAdapter(rt.store),
				Logger: rt.logger.Primary(),
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST base path (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default from config)")
	return cmd
}

// runTUI opens the store and hands it to the interactive model.
func runTUI(ctx context.Context, opts *globalOptions, stderr io.Writer) error {
	rt, err := openRuntime(ctx, opts, "", stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	m := tui.NewModel(
		rt.store,
		tui.WithDisplayConfig(tui.DisplayConfig{
			Currency:    rt.cfg.Display.Currency,
			ShowMetrics: rt.cfg.Display.ShowMetrics,
		}),
		tui.WithConfirmDelete(rt.cfg.Confirm.Delete),
	)
	rt.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

// cliRuntime bundles the opened store with the resources it depends on.
type cliRuntime struct {
	cfg        config.Config
	logger     *runtimeLogger
	kv         app.KVStore
	store      *app.Store
	persistErr error
	closers    []func() error
}

// Close releases the store backend and log sinks in reverse order.
func (rt *cliRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", "err", err)
		}
	}
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(rt.logger.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// writeTimer is implemented by backends that record when a key was last written.
type writeTimer interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

// lastSaved reports when the task collection was last persisted, if the backend tracks it.
func (rt *cliRuntime) lastSaved(ctx context.Context) (time.Time, bool) {
	timer, ok := rt.kv.(writeTimer)
	if !ok {
		return time.Time{}, false
	}
	at, found, err := timer.UpdatedAt(ctx, rt.cfg.Storage.Key)
	if err != nil {
		rt.logger.Warn("read last write time failed", "key", rt.cfg.Storage.Key, "err", err)
		return time.Time{}, false
	}
	return at, found && !at.IsZero()
}

// openRuntime resolves config, builds the logger, opens the storage backend, and loads the store.
func openRuntime(ctx context.Context, opts *globalOptions, command string, stderr io.Writer) (*cliRuntime, error) {
	paths, err := opts.paths()
	if err != nil {
		return nil, err
	}
	configPath := opts.resolveConfigPath(paths)
	dbOverridden := strings.TrimSpace(opts.dbPath) != ""
	if dbOverridden {
		paths.DBPath = strings.TrimSpace(opts.dbPath)
	}

	cfg, err := config.Load(configPath, config.Default(paths))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = opts.env.Apply(cfg)
	if dbOverridden {
		cfg.Storage.Path = paths.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "" {
		// TUI owns the terminal; runtime logs go to the dev-file sink only.
		logger.SetConsoleEnabled(false)
	}
	rt := &cliRuntime{cfg: cfg, logger: logger}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "store_dir", paths.StoreDir)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	kv, closeKV, err := openKV(ctx, cfg.Storage, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if closeKV != nil {
		rt.closers = append(rt.closers, closeKV)
	}
	rt.kv = kv

	rt.store = app.NewStore(kv, app.StoreConfig{
		Key:    cfg.Storage.Key,
		Locale: cfg.LocaleTag(),
	},
		app.WithLogger(logger.Primary()),
		app.WithPersistErrorHandler(func(err error) {
			rt.persistErr = err
		}),
	)
	rt.store.Load(ctx)
	if loadErr := rt.store.Err(); loadErr != nil {
		logger.Warn("task collection started empty", "key", cfg.Storage.Key, "err", loadErr)
	}
	return rt, nil
}

// openKV opens the configured persistence backend.
func openKV(ctx context.Context, cfg config.StorageConfig, logger *runtimeLogger) (app.KVStore, func() error, error) {
	switch config.StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver)))) {
	case config.DriverSQLite:
		logger.Info("opening sqlite repository", "db_path", cfg.Path)
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Path, "err", err)
			return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, repo.Close, nil
	case config.DriverFile:
		logger.Info("opening file store", "dir", cfg.Dir)
		return file.NewOS(cfg.Dir), nil, nil
	case config.DriverRedis:
		logger.Info("connecting to redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		store, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// paths resolves per-user locations for the selected app name and mode.
func (o *globalOptions) paths() (platform.Paths, error) {
	return platform.DefaultPaths(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolveConfigPath picks --config, then TALLY_CONFIG, then the platform default.
func (o *globalOptions) resolveConfigPath(paths platform.Paths) string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	if o.env.ConfigPath != nil && strings.TrimSpace(*o.env.ConfigPath) != "" {
		return strings.TrimSpace(*o.env.ConfigPath)
	}
	return paths.ConfigPath
}

// runExport writes the export document to outPath or stdout.
func runExport(store *app.Store, outPath string, stdout io.Writer) error {
	encoded, err := json.MarshalIndent(store.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode export json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write export to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}

// writeTaskTable prints the ranked tasks followed by the aggregate metrics.
func writeTaskTable(w io.Writer, view app.View, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "#\tID\tTITLE\tREVENUE\tTIME\tROI\tPRIORITY\tSTATUS\t")
	for idx, task := range view.Derived {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\t\n",
			idx+1,
			task.ID,
			task.Title,
			formatAmount(currency, task.Revenue),
			formatAmount("", task.TimeTaken),
			task.ROI,
			orDash(string(task.Priority)),
			orDash(string(task.Status)),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s tasks • revenue %s%s • time %s • avg ROI %.2f\n",
		humanize.Comma(int64(len(view.Derived))),
		currency,
		humanize.CommafWithDigits(view.Metrics.TotalRevenue, 2),
		humanize.CommafWithDigits(view.Metrics.TotalTimeTaken, 2),
		view.Metrics.AverageROI,
	)
	return err
}

func formatAmount(prefix string, v *float64) string {
	if v == nil {
		return "-"
	}
	return prefix + humanize.CommafWithDigits(*v, 2)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
