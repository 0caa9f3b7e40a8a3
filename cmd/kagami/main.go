// Package main is the kagami CLI entry point.
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
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/cli"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/search"
	"github.com/hyperjump/kagami/internal/server"
	"github.com/hyperjump/kagami/internal/watcher"
	"github.com/hyperjump/kagami/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kagami/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
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
	case "server":
		runServer()
	case "neighbors":
		runNeighbors()
	case "categories":
		runCategories()
	case "text":
		runText()
	case "path":
		runPath()
	case "build":
		runBuild()
	case "status":
		runStatus()
	case "check":
		runCheck()
	case "version", "--version", "-v":
		fmt.Printf("kagami version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, reloads, degraded queries)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	engine, err := search.NewEngine(context.Background(), cfg, search.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	defer engine.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		paths, onChange := watchHandler(watchCtx, engine.WatchTargets(), logger)
		watchOpts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Watch.Debounce)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(paths, onChange, watchOpts...)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		logger.Info("watching for catalog changes", zap.Strings("files", w.Files()))
	}

	srv := server.NewServer(engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// watchHandler returns the files to watch and a callback running the reload registered
// for the changed file.
func watchHandler(ctx context.Context, targets map[string]func(context.Context) error, logger *zap.Logger) ([]string, func(string)) {
	byPath := make(map[string]func(context.Context) error, len(targets))
	paths := make([]string, 0, len(targets))
	for p, fn := range targets {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		p = filepath.Clean(p)
		byPath[p] = fn
		paths = append(paths, p)
	}
	return paths, func(path string) {
		fn, ok := byPath[filepath.Clean(path)]
		if !ok {
			return
		}
		if err := fn(ctx); err != nil {
			logger.Warn("reload after file change failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// queryFlags are shared by neighbors, categories and text.
type queryFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	catalog    *string
	k          *int
	vector     *string
	file       *string
	format     *string
	debug      *bool
}

func newQueryFlags(name, defaultCatalog string) *queryFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &queryFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path (direct mode)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = load catalogs directly)"),
		catalog:    fs.String("catalog", defaultCatalog, "catalog name"),
		k:          fs.Int("k", 0, "number of results (0 = configured default)"),
		vector:     fs.String("vector", "", "query vector: JSON array or comma/space separated numbers"),
		file:       fs.String("file", "", "read the query vector from a file (- for stdin)"),
		format:     fs.String("format", "text", "output format: text, json or paths"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// queryVector returns the vector given by -vector or -file. Both empty yields nil.
func queryVector(vec, file string) ([]float32, error) {
	switch {
	case vec != "" && file != "":
		return nil, fmt.Errorf("use either -vector or -file, not both")
	case vec != "":
		return cli.ParseVector(vec)
	case file != "":
		return cli.ReadVector(file, os.Stdin)
	}
	return nil, nil
}

func (q *queryFlags) parse(args []string) (*models.VectorQuery, cli.OutputFormat) {
	q.fs.Usage = func() {
		fmt.Fprintf(q.fs.Output(), "Usage: kagami %s [flags]\n\n", q.fs.Name())
		q.fs.PrintDefaults()
	}
	_ = q.fs.Parse(reorderArgs(args))
	format, err := cli.ParseFormat(*q.format)
	if err != nil {
		fatalf("%v", err)
	}
	vec, err := queryVector(*q.vector, *q.file)
	if err != nil {
		fatalf("%v", err)
	}
	return &models.VectorQuery{Vector: vec, K: *q.k, Text: joinArgs(q.fs.Args())}, format
}

// openEngine loads the configured catalogs for a one-shot command.
func openEngine(configPath string, debug bool) (*search.Engine, *config.Config) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCommandLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	engine, err := search.NewEngine(context.Background(), cfg, search.WithLogger(logger))
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return engine, cfg
}

func runNeighbors() {
	q := newQueryFlags("neighbors", "image")
	query, format := q.parse(os.Args[2:])
	if len(query.Vector) == 0 {
		fatalf("a query vector is required (-vector or -file)")
	}
	var resp *models.SearchResponse
	var err error
	if *q.serverURL != "" {
		resp = &models.SearchResponse{}
		err = postJSON(*q.serverURL, catalogPath(*q.catalog, "neighbors"), query, resp)
	} else {
		engine, _ := openEngine(*q.configPath, *q.debug)
		defer engine.Close()
		resp, err = engine.SimilarImages(context.Background(), *q.catalog, query)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResponse(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runCategories() {
	q := newQueryFlags("categories", "image")
	query, format := q.parse(os.Args[2:])
	if len(query.Vector) == 0 {
		fatalf("a query vector is required (-vector or -file)")
	}
	var resp *models.CategoryResponse
	var err error
	if *q.serverURL != "" {
		resp = &models.CategoryResponse{}
		err = postJSON(*q.serverURL, catalogPath(*q.catalog, "categories"), query, resp)
	} else {
		engine, _ := openEngine(*q.configPath, *q.debug)
		defer engine.Close()
		resp, err = engine.Categories(context.Background(), *q.catalog, query)
	}
	if err != nil {
		fatalf("Ranking failed: %v", err)
	}
	if err := cli.WriteCategoryResponse(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runText() {
	q := newQueryFlags("text", "text")
	query, format := q.parse(os.Args[2:])
	if len(query.Vector) == 0 && query.Text == "" {
		fatalf("Usage: kagami text [flags] <text> (or -vector / -file with a pre-encoded query)")
	}
	if len(query.Vector) > 0 {
		query.Text = ""
	}
	var resp *models.SearchResponse
	var err error
	if *q.serverURL != "" {
		resp = &models.SearchResponse{}
		err = postJSON(*q.serverURL, catalogPath(*q.catalog, "text"), query, resp)
	} else {
		engine, _ := openEngine(*q.configPath, *q.debug)
		defer engine.Close()
		resp, err = engine.Text(context.Background(), *q.catalog, query)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResponse(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runPath() {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	catalogName := fs.String("catalog", "image", "catalog name")
	base := fs.String("base", "", "base directory (default: the catalog's assets.base_path)")
	outputFormat := fs.String("format", "paths", "output format: text, json or paths")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() != 1 {
		fatalf("Usage: kagami path [flags] <index>")
	}
	index, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fatalf("index must be an integer: %v", err)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	engine, _ := openEngine(*configPath, false)
	defer engine.Close()
	item, err := engine.Item(*catalogName, index)
	if err != nil {
		fatalf("Resolve failed: %v", err)
	}
	if *base != "" {
		col, _ := engine.Collection(*catalogName)
		if item.Path, err = col.Resolver().Resolve(index, *base); err != nil {
			fatalf("Resolve failed: %v", err)
		}
	}
	if err := cli.WriteItem(os.Stdout, item, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load catalogs directly)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var st *models.Status
	if *serverURL != "" {
		st = &models.Status{}
		err = getJSON(*serverURL, "/api/v1/status", st)
	} else {
		engine, _ := openEngine(*configPath, false)
		defer engine.Close()
		st, err = engine.Status()
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	catalogName := fs.String("catalog", "", "catalog to check (default: all)")
	limit := fs.Int("limit", 20, "maximum missing images to report per catalog (0 = all)")
	_ = fs.Parse(os.Args[2:])

	engine, _ := openEngine(*configPath, false)
	defer engine.Close()
	names := engine.Catalogs()
	if *catalogName != "" {
		names = []string{*catalogName}
	}
	problems := 0
	for _, name := range names {
		mismatches, err := engine.CheckOrdinals(name)
		if err != nil {
			fatalf("Check failed: %v", err)
		}
		for _, m := range mismatches {
			fmt.Printf("%s: #%d %s ordinal %d, catalog order gives %d\n", name, m.Index, m.CategoryID, m.Persisted, m.Derived)
		}
		missing, err := engine.CheckAssets(name, *limit)
		if err != nil {
			fatalf("Check failed: %v", err)
		}
		for _, m := range missing {
			fmt.Printf("%s: #%d missing %s\n", name, m.Index, m.Path)
		}
		problems += len(mismatches) + len(missing)
		fmt.Printf("%s: %d ordinal mismatches, %d missing images\n", name, len(mismatches), len(missing))
	}
	if problems > 0 {
		os.Exit(1)
	}
}

func catalogPath(name, op string) string {
	return "/api/v1/catalogs/" + name + "/" + op
}

// reorderArgs moves any flags (and their values) that appear after positional arguments
// to the front so that flag.Parse sees them: Go's flag package stops at the first
// non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' && a != "-" {
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

// joinArgs joins positional args with spaces so multi-word text queries work with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printUsage() {
	fmt.Println(`kagami - content-based image retrieval over precomputed embeddings

Usage:
  kagami server [flags]             Start the HTTP server
  kagami neighbors [flags]          Nearest images to a query vector (L2)
  kagami categories [flags]         Nearest categories to a query vector (cosine)
  kagami text [flags] <text>        Images matching a text query (cosine)
  kagami path [flags] <index>       Image path of a catalog record
  kagami build [flags]              Build a catalog from JSON records
  kagami status [flags]             Show loaded catalogs
  kagami check [flags]              Report ordinal mismatches and missing images
  kagami version                    Show version
  kagami help                       Show this help

Query Flags (neighbors, categories, text):
  --config string    Config file path (direct mode; default: /usr/local/etc/kagami/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to load catalogs directly.
  --catalog string   Catalog name (default: image; text for the text command)
  --k int            Number of results (default from config)
  --vector string    Query vector, e.g. "[0.1, 0.2, ...]" or "0.1,0.2,..."
  --file string      Read the query vector from a file (- for stdin)
  --format string    Output format: text, json or paths (default: text)

Build Flags:
  --in string        JSON records, one {"vector":[...],"category_id":"...","ordinal":N} per line (- for stdin)
  --to string        Destination: file, sqlite or s3 (default: file)
  --out string       Catalog file, SQLite database or object key
  --name string      Catalog name (default: derived from --out)
  --float16          Store vectors in half precision
  --omit-ordinals    Do not persist ordinals

Examples:
  kagami server
  kagami neighbors --vector "$(cat query.json)" --k 5
  kagami categories --file query.txt --format json
  kagami text a small orange fish
  kagami path --base test_dataset 2
  kagami build --in image.jsonl --out image.kgc.zst
  kagami build --in text.jsonl --to sqlite --out catalogs.db --name text --float16`)
}
