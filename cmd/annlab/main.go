// Package main is the annlab CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/annlab/internal/cli"
	"github.com/hyperjump/annlab/internal/config"
	"github.com/hyperjump/annlab/internal/dataset"
	"github.com/hyperjump/annlab/internal/explorer"
	"github.com/hyperjump/annlab/internal/indexer"
	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/internal/server"
	"github.com/hyperjump/annlab/internal/storage"
	"github.com/hyperjump/annlab/internal/watcher"
	"github.com/hyperjump/annlab/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/annlab/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists, defaults are used.
// Returns the config and the path that was actually loaded ("" for defaults).
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			cfg.Generator.APIKey = config.APIKeyFromEnv()
			return cfg, "", nil
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
	case "generate":
		runGenerate()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("annlab version %s\n", version)
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

// setup loads config and creates the logger. debug forces debug logging on.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func openStorage(cfg *config.Config) *storage.SQLiteStorage {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fatalf("Failed to initialize storage: %v", err)
	}
	return store
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (iterations, probes, file events)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	store := openStorage(cfg)
	defer store.Close()

	gen, err := dataset.NewGenerator(context.Background(), cfg.Generator, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}

	srv := server.NewServer(store, gen, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildPrompt joins all positional args with spaces so multi-word prompts work the same with
// or without shell quoting.
func buildPrompt(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return defaultPath
}

// searchArgsReorder partitions args into flags (with their values) followed by positionals so
// that fs.Parse sees every flag. Go's flag package stops at the first non-flag argument, so
// "annlab search -dataset X banana -top-k 3" would otherwise leave -top-k unparsed. Flags not
// defined on fs are kept as single tokens for fs.Parse to report; "--" ends flag handling.
func searchArgsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positionals []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positionals = append(positionals, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil || isBoolFlag(f) || i+1 >= len(args) {
			continue
		}
		i++
		flags = append(flags, args[i])
	}
	return append(flags, positionals...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	size := fs.Int("size", 0, "keep at most this many generated points (0 = all)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(fs, os.Args[2:]))

	prompt := buildPrompt(fs.Args())
	if prompt == "" {
		fmt.Println("Usage: annlab generate [flags] <prompt>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	store := openStorage(cfg)
	defer store.Close()

	ctx := context.Background()
	gen, err := dataset.NewGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		fatalf("Failed to initialize generator: %v", err)
	}
	points, source, err := gen.GenerateWithSource(ctx, prompt)
	if err != nil {
		fatalf("Generation failed: %v", err)
	}
	if *size > 0 && len(points) > *size {
		points = points[:*size]
	}
	ds := &models.Dataset{Prompt: prompt, Source: source, Points: points}
	if err := store.CreateDataset(ctx, ds); err != nil {
		fatalf("Storing dataset failed: %v", err)
	}

	if format == cli.OutputJSON {
		if err := json.NewEncoder(os.Stdout).Encode(ds); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("Dataset %s stored: %d points from %s\n", ds.ID, len(ds.Points), source)
	if source != gen.Name() {
		fmt.Println("The generator was unavailable; random points were used instead.")
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	offset := fs.Int("offset", 0, "number of datasets to skip")
	limit := fs.Int("limit", 20, "maximum number of datasets")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	store := openStorage(cfg)
	defer store.Close()

	datasets, err := store.ListDatasets(context.Background(), *offset, *limit)
	if err != nil {
		fatalf("List failed: %v", err)
	}
	if err := cli.WriteDatasets(os.Stdout, datasets, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(searchArgsReorder(fs, os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: annlab delete [flags] <dataset-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	store := openStorage(cfg)
	defer store.Close()

	if err := store.DeleteDataset(context.Background(), id); err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Dataset deleted: %s\n", id)
}

// queryFlags holds the flags shared by build, search and watch.
type queryFlags struct {
	configPath *string
	debug      *bool
	datasetID  *string
	file       *string
	k          *int
	seed       *int64
	x, y       *float64
	mode       *string
	topK       *int
	nProbes    *int
	near       *string
	output     *string
}

// newQueryFlags registers the shared flags with defaults taken from cfg.
func newQueryFlags(fs *flag.FlagSet, cfg *config.Config) *queryFlags {
	return &queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging (iterations, probes)"),
		datasetID:  fs.String("dataset", "", "stored dataset id"),
		file:       fs.String("file", "", "dataset file (.json, .csv or .xlsx)"),
		k:          fs.Int("k", cfg.Index.Clusters, "number of clusters"),
		seed:       fs.Int64("seed", 0, "centroid initialization seed (0 = config seed or random)"),
		x:          fs.Float64("x", cfg.Search.QueryX, "query x"),
		y:          fs.Float64("y", cfg.Search.QueryY, "query y"),
		mode:       fs.String("mode", cfg.Search.Mode, "search mode: exact or approx"),
		topK:       fs.Int("top-k", cfg.Search.TopK, "number of neighbors"),
		nProbes:    fs.Int("n-probes", cfg.Search.NProbes, "clusters probed in approx mode"),
		near:       fs.String("near", "", "place the query on the point whose label best matches this text"),
		output:     fs.String("output", "text", "output format: text, compact or json"),
	}
}

func (f *queryFlags) query(cfg *config.Config) (*models.SearchQuery, error) {
	mode, err := models.ParseSearchMode(*f.mode)
	if err != nil {
		return nil, err
	}
	q := &models.SearchQuery{X: *f.x, Y: *f.y, Mode: mode, TopK: *f.topK, NProbes: *f.nProbes}
	if cfg.Search.MaxTopK > 0 && q.TopK > cfg.Search.MaxTopK {
		return nil, fmt.Errorf("%w: top-k must be <= %d, got %d", models.ErrInvalidParameter, cfg.Search.MaxTopK, q.TopK)
	}
	return q, q.Validate()
}

func (f *queryFlags) builderOptions(cfg *config.Config, logger *zap.Logger) []indexer.BuilderOption {
	opts := indexer.OptionsFromConfig(cfg.Index, logger)
	if *f.seed != 0 {
		opts = append(opts, indexer.WithSeed(*f.seed))
	}
	return opts
}

// parseQueryFlags loads config first so that flag defaults come from it.
func parseQueryFlags(name string, args []string) (*queryFlags, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPathFromArgs(args, defaultConfigPath))
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	qf := newQueryFlags(fs, cfg)
	_ = fs.Parse(searchArgsReorder(fs, args))
	if near := buildPrompt(fs.Args()); near != "" && *qf.near == "" {
		*qf.near = near
	}
	if (*qf.datasetID == "") == (*qf.file == "") {
		fatalf("Exactly one of -dataset or -file is required")
	}
	logger, err := utils.NewLogger(cfg.Debug || *qf.debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return qf, cfg, logger
}

// loadDataset reads the dataset named by -dataset or -file.
func loadDataset(ctx context.Context, cfg *config.Config, qf *queryFlags) (*models.Dataset, error) {
	if *qf.file != "" {
		points, err := dataset.LoadFile(*qf.file)
		if err != nil {
			return nil, err
		}
		return &models.Dataset{
			ID:     filepath.Base(*qf.file),
			Source: dataset.SourceFile,
			Points: points,
		}, nil
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	return store.GetDataset(ctx, *qf.datasetID)
}

func runBuild() {
	qf, cfg, logger := parseQueryFlags("build", os.Args[2:])
	defer logger.Sync()
	format, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		fatalf("%v", err)
	}

	ds, err := loadDataset(context.Background(), cfg, qf)
	if err != nil {
		fatalf("Loading dataset failed: %v", err)
	}
	idx, err := indexer.NewBuilder(qf.builderOptions(cfg, logger)...).Build(ds.Points, *qf.k)
	if err != nil {
		fatalf("Build failed: %v", err)
	}
	if err := cli.WriteIndexSummary(os.Stdout, idx, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	qf, cfg, logger := parseQueryFlags("search", os.Args[2:])
	defer logger.Sync()
	format, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		fatalf("%v", err)
	}
	query, err := qf.query(cfg)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	ds, err := loadDataset(ctx, cfg, qf)
	if err != nil {
		fatalf("Loading dataset failed: %v", err)
	}
	sess := explorer.NewSession(
		explorer.WithLogger(logger),
		explorer.WithBuilderOptions(qf.builderOptions(cfg, logger)...),
	)
	defer sess.Close()
	if _, err := sess.Load(ctx, ds, *qf.k); err != nil {
		fatalf("Build failed: %v", err)
	}
	if err := searchAndWrite(ctx, os.Stdout, sess, query, *qf.near, format); err != nil {
		fatalf("Search failed: %v", err)
	}
}

// searchAndWrite resolves near (if set), runs query on sess and writes the report.
func searchAndWrite(ctx context.Context, w io.Writer, sess *explorer.Session, query *models.SearchQuery, near string, format cli.OutputFormat) error {
	q := *query
	report := &cli.SearchReport{}
	if near != "" {
		p, err := sess.Lookup(ctx, near)
		if err != nil {
			return err
		}
		q.X, q.Y = p.X, p.Y
		report.Near = &p
	}
	result, err := sess.Search(&q)
	if err != nil {
		return err
	}
	idx, err := sess.Snapshot()
	if err != nil {
		return err
	}
	report.Query = q
	report.Result = result
	report.Clusters = idx.Clusters
	return cli.WriteSearchResults(w, report, format)
}

func runWatch() {
	qf, cfg, logger := parseQueryFlags("watch", os.Args[2:])
	defer logger.Sync()
	if *qf.file == "" {
		fatalf("watch requires -file")
	}
	format, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		fatalf("%v", err)
	}
	query, err := qf.query(cfg)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := explorer.NewSession(
		explorer.WithLogger(logger),
		explorer.WithBuilderOptions(qf.builderOptions(cfg, logger)...),
	)
	defer sess.Close()

	reload := func(path string) {
		points, err := dataset.LoadFile(path)
		if err != nil {
			logger.Warn("reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		ds := &models.Dataset{ID: filepath.Base(path), Source: dataset.SourceFile, Points: points}
		if _, err := sess.Load(ctx, ds, *qf.k); err != nil {
			logger.Warn("rebuild failed", zap.String("path", path), zap.Error(err))
			return
		}
		if err := searchAndWrite(ctx, os.Stdout, sess, query, *qf.near, format); err != nil {
			logger.Warn("search failed", zap.Error(err))
		}
	}
	reload(*qf.file)

	watchSvc := watcher.NewWatcher(
		[]string{*qf.file},
		reload,
		func(path string) {
			logger.Warn("watched dataset file removed; keeping last index", zap.String("path", path))
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
	)
	if err := watchSvc.Start(ctx); err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	defer watchSvc.Stop()
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", *qf.file)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Datasets       int64                  `json:"datasets"`
	Sessions       int                    `json:"sessions"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = *res
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		store := openStorage(cfg)
		defer store.Close()
		count, err := store.CountDatasets(context.Background())
		if err != nil {
			fatalf("Count datasets failed: %v", err)
		}
		status = statusResponse{
			Datasets: count,
			Config: map[string]interface{}{
				"database_path": cfg.Storage.DatabasePath,
				"provider":      cfg.Generator.Provider,
				"clusters":      cfg.Index.Clusters,
				"top_k":         cfg.Search.TopK,
				"n_probes":      cfg.Search.NProbes,
				"mode":          cfg.Search.Mode,
			},
		}
		if diskBytes, err := storage.DatabaseSize(cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fatalf("Unknown output format %q; use text or json", *outputFormat)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "datasets:           %d   # stored datasets\n", status.Datasets)
	fmt.Fprintf(w, "sessions:           %d   # datasets loaded in the server\n", status.Sessions)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database on disk\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"database_path", "provider", "clusters", "top_k", "n_probes", "mode"} {
			if v, ok := status.Config[key]; ok {
				fmt.Fprintf(w, "%-19s %v\n", key+":", v)
			}
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printUsage() {
	fmt.Println(`annlab - 2D approximate nearest neighbor explorer (IVF + k-means)

Usage:
  annlab server [flags]             Start the HTTP server
  annlab generate [flags] <prompt>  Generate and store a dataset
  annlab list [flags]               List stored datasets
  annlab delete [flags] <id>        Delete a stored dataset
  annlab build [flags]              Train an index and print its clusters
  annlab search [flags] [near]      Run a nearest-neighbor query
  annlab watch [flags]              Re-run a query whenever a dataset file changes
  annlab status [flags]             Show storage status
  annlab version                    Show version
  annlab help                       Show this help

Build/Search/Watch Flags:
  --dataset string   Stored dataset id (or --file)
  --file string      Dataset file: .json, .csv or .xlsx (or --dataset)
  --k int            Number of clusters (default from config: 5, at most index.max_clusters)
  --seed int         Centroid initialization seed
  --x, --y float     Query point (default from config: 50, 50)
  --mode string      exact or approx (default from config: approx)
  --top-k int        Number of neighbors (default from config: 5)
  --n-probes int     Clusters probed in approx mode (default from config: 2)
  --near string      Place the query on the best label match
  --output string    text, compact or json

Examples:
  annlab generate "fruits by sweetness and acidity"
  annlab build --dataset 3f2c... --k 4
  annlab search --file points.csv --x 20 --y 80 --n-probes 1
  annlab search --dataset 3f2c... --mode exact banana
  annlab watch --file points.json --near apple
  annlab status --output json`)
}
