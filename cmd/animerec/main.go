// Package main is the animerec CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/animerec/internal/catalog"
	"github.com/hyperjump/animerec/internal/cli"
	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/embedding"
	"github.com/hyperjump/animerec/internal/index"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/recommend"
	"github.com/hyperjump/animerec/internal/server"
	"github.com/hyperjump/animerec/internal/storage"
	"github.com/hyperjump/animerec/internal/watcher"
	"github.com/hyperjump/animerec/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/animerec/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence, and a missing default file means built-in
// defaults. Returns the config and the path that was actually loaded.
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
		if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			cfg = &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
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
	case "recommend":
		runRecommend()
	case "suggest":
		runSuggest()
	case "search":
		runSearch()
	case "refresh":
		runRefresh()
	case "status":
		runStatus()
	case "export":
		runExport()
	case "version", "--version", "-v":
		fmt.Printf("animerec version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand that talks to the engine.
type commonFlags struct {
	configPath *string
	serverURL  *string
	output     *string
	debug      *bool
}

func registerCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL; empty runs against the local cache directly"),
		output:     fs.String("output", "text", "output format: text, compact, or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

func (c commonFlags) format() cli.OutputFormat {
	format, err := cli.ParseOutputFormat(*c.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// setup loads config and builds the local component graph, exiting on failure.
func (c commonFlags) setup() (*config.Config, *zap.Logger, *Components) {
	cfg, resolvedConfigPath, err := loadConfig(*c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedConfigPath))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := components.Engine.Snapshot(ctx); err != nil {
		logger.Warn("initial catalog load failed; retrying on first request", zap.Error(err))
	}

	var cacheWatcher *watcher.FileWatcher
	if cfg.Cache.WatchOrDefault() {
		engine := components.Engine
		cacheWatcher = watcher.NewFileWatcher(cfg.Cache.Path, func(op fsnotify.Op) {
			if engine.InvalidateIfChanged(ctx) {
				logger.Info("cache file changed, catalog invalidated", zap.String("op", op.String()))
			}
		}, watcher.WithLogger(logger))
		if err := cacheWatcher.Start(ctx); err != nil {
			logger.Fatal("Failed to start cache watcher", zap.Error(err))
		}
		defer cacheWatcher.Stop()
	}

	srv := server.NewServer(components.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// printRecommendUsage prints recommend subcommand usage.
func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: animerec recommend [flags] <title>\n\n")
	fmt.Fprintf(fs.Output(), "Title is all remaining arguments joined by spaces. Matching is case-insensitive and\n")
	fmt.Fprintf(fs.Output(), "accepts English, Japanese, and alternate titles. Unknown titles print suggestions.\n\n")
	fs.PrintDefaults()
}

// buildSearchQuery joins all positional args with spaces so multi-word titles
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "animerec recommend naruto -limit 3"
// would otherwise leave -limit unparsed.
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

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	flags := registerCommonFlags(fs)
	limit := fs.Int("limit", 0, "number of recommendations (default from config)")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	title := buildSearchQuery(fs.Args())
	if title == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format := flags.format()
	query := &models.RecommendQuery{Title: title, Limit: *limit}

	var (
		resp *models.RecommendResponse
		err  error
	)
	if *flags.serverURL != "" {
		resp = &models.RecommendResponse{}
		err = getJSON(*flags.serverURL, "/api/v1/recommend", url.Values{
			"title": {title}, "limit": {strconv.Itoa(*limit)},
		}, resp)
		if errors.Is(err, errNotFound) {
			err = recommend.ErrTitleNotFound
		}
	} else {
		_, logger, components := flags.setup()
		defer logger.Sync()
		defer components.Close()
		resp, err = components.Engine.Recommend(context.Background(), query)
		if errors.Is(err, recommend.ErrTitleNotFound) && format != cli.OutputJSON {
			fmt.Fprintf(os.Stderr, "Title %q not found in the catalog.\n", title)
			if suggestions, sErr := components.Engine.Suggest(context.Background(), &models.SuggestQuery{Query: title}); sErr == nil {
				_ = cli.WriteSuggestions(os.Stderr, suggestions, cli.OutputText)
			}
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	flags := registerCommonFlags(fs)
	limit := fs.Int("limit", 0, "number of suggestions (default from config)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		fmt.Fprintln(os.Stderr, "Usage: animerec suggest [flags] <partial title>")
		os.Exit(1)
	}
	format := flags.format()

	var (
		resp *models.SuggestResponse
		err  error
	)
	if *flags.serverURL != "" {
		resp = &models.SuggestResponse{}
		err = getJSON(*flags.serverURL, "/api/v1/suggest", url.Values{"q": {q}, "limit": {strconv.Itoa(*limit)}}, resp)
	} else {
		_, logger, components := flags.setup()
		defer logger.Sync()
		defer components.Close()
		resp, err = components.Engine.Suggest(context.Background(), &models.SuggestQuery{Query: q, Limit: *limit})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSuggestions(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := registerCommonFlags(fs)
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable typo-tolerant matching")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		fmt.Fprintln(os.Stderr, "Usage: animerec search [flags] <query>")
		os.Exit(1)
	}
	format := flags.format()
	query := &models.SuggestQuery{Query: q, Limit: *limit}

	search := func() (*models.SearchResponse, error) {
		resp := &models.SearchResponse{}
		err := getJSON(*flags.serverURL, "/api/v1/search", url.Values{
			"q": {q}, "limit": {strconv.Itoa(*limit)}, "fuzzy": {strconv.FormatBool(*fuzzy)},
		}, resp)
		return resp, err
	}
	if *flags.serverURL == "" {
		_, logger, components := flags.setup()
		defer logger.Sync()
		defer components.Close()
		search = func() (*models.SearchResponse, error) {
			return components.Engine.Search(context.Background(), query, *fuzzy)
		}
	}

	resp, err := search()
	// Retry with typo tolerance when an exact search finds nothing.
	if err == nil && resp.Total == 0 && !*fuzzy {
		*fuzzy = true
		if fuzzyResp, fuzzyErr := search(); fuzzyErr == nil && fuzzyResp.Total > 0 {
			resp = fuzzyResp
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	flags := registerCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()

	var (
		resp *models.RefreshResponse
		err  error
	)
	if *flags.serverURL != "" {
		resp = &models.RefreshResponse{}
		err = postJSON(*flags.serverURL, "/api/v1/catalog/refresh", resp)
	} else {
		_, logger, components := flags.setup()
		defer logger.Sync()
		defer components.Close()
		resp, err = components.Engine.RefreshSummary(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Refresh failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRefresh(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := registerCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()

	var (
		status *models.CatalogStatus
		err    error
	)
	if *flags.serverURL != "" {
		status = &models.CatalogStatus{}
		err = getJSON(*flags.serverURL, "/api/v1/status", nil, status)
	} else {
		_, logger, components := flags.setup()
		defer logger.Sync()
		defer components.Close()
		status, err = components.Engine.Status(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: animerec export [flags] <file.xlsx>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	flags := commonFlags{configPath: configPath, debug: debug}
	_, logger, components := flags.setup()
	defer logger.Sync()
	defer components.Close()

	snap, err := components.Engine.Snapshot(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	if err := cli.ExportXLSX(path, snap.Records); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d records to %s\n", len(snap.Records), path)
}

var errNotFound = errors.New("not found")

func getJSON(serverURL, path string, params url.Values, out interface{}) error {
	target := strings.TrimRight(serverURL, "/") + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	resp, err := http.Get(target)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func postJSON(serverURL, path string, out interface{}) error {
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Store    storage.CacheStore
	Embedder embedding.Embedder
	Fetcher  *catalog.Fetcher
	Builder  *index.Builder
	Engine   *recommend.Engine
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	fetcher := catalog.NewFetcher(store, cfg.Catalog, catalog.WithLogger(logger))
	embedder := embedding.New(cfg.Embedding, logger)
	builder := index.NewBuilder(embedder,
		index.WithLogger(logger),
		index.WithCacheSize(cfg.Index.CacheSize),
	)
	engine := recommend.NewEngine(fetcher, builder, store, cfg.Recommend, recommend.WithEngineLogger(logger))

	logger.Debug("components initialized",
		zap.String("cache_backend", store.Backend()),
		zap.String("cache_path", store.Path()),
		zap.String("embedder", embedder.Name()),
	)
	return &Components{
		Store:    store,
		Embedder: embedder,
		Fetcher:  fetcher,
		Builder:  builder,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`animerec - Content-based anime recommendations

Usage:
  animerec server [flags]               Start the HTTP server
  animerec recommend [flags] <title>    Recommend titles similar to <title>
  animerec suggest [flags] <text>       Suggest catalog titles resembling <text>
  animerec search [flags] <query>       Full-text search over titles, synopses, and genres
  animerec refresh [flags]              Re-fetch the catalog regardless of cache age
  animerec status [flags]               Show catalog and cache status
  animerec export [flags] <file.xlsx>   Export the catalog to an Excel workbook
  animerec version                      Show version
  animerec help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/animerec/config.yaml)
  --server string    Server URL; empty runs against the local cache directly
  --output string    Output format: text, compact, or json (default: text)
  --debug            Enable debug logging

Command Flags:
  recommend --limit int   Number of recommendations (default from config, 5)
  suggest   --limit int   Number of suggestions (default from config, 5)
  search    --limit int   Number of results (default: 10)
  search    --fuzzy       Enable typo tolerance (retried automatically on zero hits)

Examples:
  animerec server
  animerec recommend Naruto
  animerec recommend --limit 10 "Cowboy Bebop"
  animerec recommend --server http://localhost:8080 "Shingeki no Kyojin"
  animerec suggest narto
  animerec search --fuzzy "space bounty hunter"
  animerec status --output json
  animerec export catalog.xlsx`)
}
