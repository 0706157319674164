// Package main is the hondana CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hyperjump/hondana/internal/cli"
	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/extract"
	"github.com/hyperjump/hondana/internal/indexer"
	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/search"
	"github.com/hyperjump/hondana/internal/server"
	"github.com/hyperjump/hondana/internal/session"
	"github.com/hyperjump/hondana/internal/shell"
	"github.com/hyperjump/hondana/internal/storage"
	"github.com/hyperjump/hondana/internal/watcher"
	"github.com/hyperjump/hondana/pkg/utils"
)

var version = "dev"

const configFlagUsage = "config file path (default: ./config.yaml if present, else the user config dir)"

// loadConfig loads config from path. An empty path means the default: config.yaml in
// the current directory when it exists (for development), else config.DefaultPath().
// A missing file yields the defaults. Returns the config and the path it belongs to.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "search":
		runSearch()
	case "shell":
		runShell()
	case "serve":
		runServe()
	case "index":
		runIndex()
	case "config":
		runConfig()
	case "history":
		runHistory()
	case "version", "--version", "-v":
		fmt.Printf("hondana version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// mustLoad loads and validates the config or exits.
func mustLoad(path string) (*config.Config, string) {
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("Invalid config %s: %v", resolved, err)
	}
	return cfg, resolved
}

// newTransport picks the search transport named by backend.transport.
func newTransport(cfg *config.BackendConfig) search.Transport {
	if cfg.Transport == config.TransportElasticsearch {
		return search.NewESTransport()
	}
	return search.NewHTTPTransport(cfg.Timeout, search.WithRateLimit(cfg.RateLimit))
}

// recordHistory returns a session observer that stores every resolved search.
// Loading and Idle snapshots are not searches and are ignored.
func recordHistory(history storage.History, limit int, logger *zap.Logger) func(session.Session) {
	return func(s session.Session) {
		switch s.State {
		case session.Populated, session.Empty, session.Failed:
		default:
			return
		}
		ctx := context.Background()
		entry := &models.HistoryEntry{
			Query:  s.QueryText,
			Page:   s.Page,
			Total:  s.Total(),
			Failed: s.State == session.Failed,
		}
		if err := history.Record(ctx, entry); err != nil {
			logger.Warn("history record failed", zap.Error(err))
			return
		}
		if limit > 0 {
			if n, err := history.Prune(ctx, limit); err != nil {
				logger.Warn("history prune failed", zap.Error(err))
			} else if n > 0 {
				logger.Debug("history pruned", zap.Int64("removed", n))
			}
		}
	}
}

// openHistory opens the history database. A failure is logged and history is
// disabled rather than aborting the command.
func openHistory(cfg *config.Config, logger *zap.Logger) storage.History {
	h, err := storage.NewSQLiteHistory(cfg.Storage.HistoryPath)
	if err != nil {
		logger.Warn("history disabled", zap.String("path", cfg.Storage.HistoryPath), zap.Error(err))
		return nil
	}
	return h
}

// watchConfig reloads store whenever its file is written.
func watchConfig(ctx context.Context, store *config.Store, logger *zap.Logger) (*watcher.Watcher, error) {
	path := store.Path()
	w := watcher.New([]string{filepath.Dir(path)}, func(string) {
		if err := store.Reload(); err != nil {
			logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("path", path))
	},
		watcher.WithRecursive(false),
		watcher.WithFilter(watcher.NameFilter(filepath.Base(path))),
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// settingsEditor persists one dotted setting through store.
func settingsEditor(store *config.Store) func(key, value string) error {
	return func(key, value string) error {
		_, err := store.Update(func(c *config.Config) error { return c.Set(key, value) })
		return err
	}
}

// newMachine builds the session machine over store and records history when enabled.
func newMachine(store *config.Store, history storage.History, logger *zap.Logger) *session.Machine {
	cfg := store.Config()
	gateway := search.NewGateway(newTransport(&cfg.Backend), search.WithLogger(logger))
	machine := session.New(gateway, store, session.WithLogger(logger))
	if history != nil {
		machine.OnChange(recordHistory(history, cfg.Storage.HistoryLimit, logger))
	}
	return machine
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: hondana search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Words are ANDed. When the second word is OR, the first two words are ORed:
  hondana search linux kernel        # linux AND kernel
  hondana search linux OR bsd        # linux OR bsd
  hondana search --page 2 --output json golang
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	page := fs.Int("page", 1, "page to show")
	pageSize := fs.Int("page-size", 0, "hits per page (default from config)")
	highlights := fs.Int("highlights", -1, "highlight fragments per hit (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	text := buildSearchQuery(fs.Args())
	if text == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if *pageSize > 0 {
		cfg.Display.PageSize = *pageSize
	}
	if *highlights >= 0 {
		cfg.Display.HighlightSize = highlights
	}
	if err := cfg.Validate(); err != nil {
		fail("Invalid config %s: %v", resolved, err)
	}

	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	store := config.NewStore(resolved, cfg)
	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
	}
	machine := newMachine(store, history, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	snap := machine.SubmitSearch(ctx, text, *page)

	renderer := cli.NewRenderer(cfg.Display.PageSize, !color.NoColor)
	if err := renderer.Write(os.Stdout, snap, format); err != nil {
		fail("Output failed: %v", err)
	}
	if snap.State == session.Empty && format == cli.OutputText {
		fmt.Println("No matches.")
	}
	if snap.State == session.Failed {
		os.Exit(1)
	}
}

func runShell() {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	debug := fs.Bool("debug", false, "enable debug logging")
	logPath := fs.String("log", "", "log file (default: shell.log next to the history database)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved := mustLoad(*configPath)
	if *logPath == "" {
		*logPath = filepath.Join(filepath.Dir(cfg.Storage.HistoryPath), "shell.log")
	}
	if err := os.MkdirAll(filepath.Dir(*logPath), 0755); err != nil {
		fail("Failed to create log directory: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug, *logPath)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := config.NewStore(resolved, cfg)
	if w, err := watchConfig(ctx, store, logger); err != nil {
		logger.Warn("config watching disabled", zap.Error(err))
	} else {
		defer w.Stop()
	}

	opts := []shell.Option{
		shell.WithSettingsEditor(settingsEditor(store)),
		shell.WithColor(!color.NoColor),
		shell.WithLogger(logger),
	}
	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
		opts = append(opts, shell.WithHistory(history))
	}
	machine := newMachine(store, history, logger)

	sh := shell.New(machine, store, os.Stdin, os.Stdout, opts...)
	if err := sh.Run(ctx); err != nil {
		fail("Shell failed: %v", err)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved := mustLoad(*configPath)
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := config.NewStore(resolved, cfg)
	if w, err := watchConfig(ctx, store, logger); err != nil {
		logger.Warn("config watching disabled", zap.Error(err))
	} else {
		defer w.Stop()
	}
	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
	}
	machine := newMachine(store, history, logger)

	srv := server.NewServer(machine, store, history, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			fail("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// splitExtensions parses a comma-separated extension list, adding missing dots.
func splitExtensions(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// indexOptions converts the indexer config into run options.
func indexOptions(cfg *config.IndexerConfig) (indexer.Options, error) {
	after, err := indexer.ParseModifiedAfter(cfg.ModifiedAfter)
	if err != nil {
		return indexer.Options{}, err
	}
	return indexer.Options{
		Extensions:    cfg.Extensions,
		Recursive:     cfg.RecursiveOrDefault(),
		Parallel:      cfg.Parallel,
		StartInterval: cfg.StartInterval,
		ModifiedAfter: after,
	}, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	recursive := fs.Bool("recursive", false, "index subdirectories too")
	parallel := fs.Int("parallel", 0, "number of workers (default from config)")
	interval := fs.Duration("interval", 0, "delay between worker starts (default from config)")
	modifiedAfter := fs.String("modified-after", "", "only index files modified after this date (YYYY-MM-DD)")
	extensions := fs.String("ext", "", "comma-separated extensions to index (default from config)")
	watch := fs.Bool("watch", false, "keep running and index new or changed files")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _ := mustLoad(*configPath)
	ic := &cfg.Indexer
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "recursive":
			ic.Recursive = recursive
		case "parallel":
			ic.Parallel = *parallel
		case "interval":
			ic.StartInterval = *interval
		case "modified-after":
			ic.ModifiedAfter = *modifiedAfter
		case "ext":
			ic.Extensions = splitExtensions(*extensions)
		}
	})
	dir := ic.Directory
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	if dir == "" {
		fmt.Println("Usage: hondana index [flags] <directory>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	opts, err := indexOptions(ic)
	if err != nil {
		fail("Invalid options: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client, err := indexer.NewClient(cfg.Backend.URL, cfg.Backend.Auth)
	if err != nil {
		fail("Failed to create backend client: %v", err)
	}
	backend := indexer.NewBackend(client, cfg.Backend.Index, ic.ContentAnalyzer)
	idx := indexer.NewIndexer(backend, extract.NewExtractor(), opts, indexer.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := idx.Run(ctx, dir)
	fmt.Printf("Indexed %d, skipped %d, failed %d\n", stats.Indexed, stats.Skipped, stats.Failed)
	if err != nil {
		fail("Indexing failed: %v", err)
	}
	if !*watch {
		return
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", dir)
	err = idx.Watch(ctx, dir, func(path string, o indexer.Outcome) {
		switch o {
		case indexer.Indexed:
			fmt.Printf("indexed  %s\n", path)
		case indexer.Skipped:
			fmt.Printf("skipped  %s\n", path)
		default:
			fmt.Printf("failed   %s\n", path)
		}
	})
	if err != nil {
		fail("Watch failed: %v", err)
	}
}

func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	store := config.NewStore(resolved, cfg)

	switch fs.Arg(0) {
	case "", "show":
		cli.WriteSettings(os.Stdout, store.Settings())
	case "path":
		fmt.Println(resolved)
	case "set":
		if fs.NArg() != 3 {
			fail("Usage: hondana config set <key> <value>")
		}
		if err := settingsEditor(store)(fs.Arg(1), fs.Arg(2)); err != nil {
			fail("Failed to update settings: %v", err)
		}
		fmt.Printf("%s saved to %s\n", fs.Arg(1), resolved)
	default:
		fail("Unknown config action %q; use show, set or path", fs.Arg(0))
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	limit := fs.Int("limit", 20, "number of entries to show")
	clearAll := fs.Bool("clear", false, "delete all entries")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fail("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	history, err := storage.NewSQLiteHistory(cfg.Storage.HistoryPath)
	if err != nil {
		fail("Failed to open history: %v", err)
	}
	defer history.Close()

	ctx := context.Background()
	if *clearAll {
		if err := history.Clear(ctx); err != nil {
			fail("Failed to clear history: %v", err)
		}
		fmt.Println("History cleared.")
		return
	}
	entries, err := history.Recent(ctx, *limit)
	if err != nil {
		fail("Failed to read history: %v", err)
	}
	if err := cli.WriteHistory(os.Stdout, entries, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(`hondana - Full-text search client for a document index

Usage:
  hondana search [flags] <query>   Search and print one page
  hondana shell [flags]            Interactive search session
  hondana serve [flags]            Start the local HTTP API
  hondana index [flags] <dir>      Index documents into the backend
  hondana config [show|set|path]   Show or change settings
  hondana history [flags]          Show recent searches
  hondana version                  Show version
  hondana help                     Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, else the user config dir)
  --debug            Enable debug logging

Search Flags:
  --page int         Page to show (default: 1)
  --page-size int    Hits per page (default from config)
  --highlights int   Highlight fragments per hit (default from config)
  --output string    Output format: text, compact or json (default: text)

Index Flags:
  --recursive             Index subdirectories too
  --parallel int          Number of workers
  --interval duration     Delay between worker starts
  --modified-after date   Only files modified after YYYY-MM-DD
  --ext string            Comma-separated extensions, e.g. .pdf,.txt
  --watch                 Keep indexing new or changed files

History Flags:
  --limit int        Number of entries (default: 20)
  --clear            Delete all entries

Examples:
  hondana search linux kernel
  hondana search --output json "linux OR bsd"
  hondana shell
  hondana serve
  hondana index --recursive --modified-after 2024-01-01 ~/books
  hondana config set backend.index books
  hondana history --limit 5`)
}
