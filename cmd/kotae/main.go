// Package main is the kotae CLI entry point.
package main

import (
	"context"
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

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/client"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/tui"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

var defaultConfigPath = config.DefaultConfigPath()

const defaultEnvPath = ".env"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if that exists it is used. A missing default
// config yields the built-in defaults. Values from .env and the environment are applied last.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	resolved := path
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				resolved = fallback
			}
		}
	}
	var (
		cfg *config.Config
		err error
	)
	if resolved == defaultConfigPath {
		cfg, err = config.LoadOrDefault(resolved)
	} else {
		cfg, err = config.Load(resolved)
	}
	if err != nil {
		return nil, "", err
	}
	if err := config.LoadDotEnv(defaultEnvPath); err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	return cfg, resolved, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "load":
		runLoad()
	case "status":
		runStatus()
	case "history":
		runHistory()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
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

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	document := fs.String("document", "", "document to load at startup (overrides watch.document)")
	watch := fs.Bool("watch", false, "reload the document whenever it changes on disk")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if *document != "" {
		cfg.Watch.Document = *document
	}
	if *watch {
		cfg.Watch.Enabled = true
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
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signalContext()
	defer stop()

	if doc := cfg.Watch.Document; doc != "" {
		loadAndLog(ctx, components, doc, logger)
		if cfg.Watch.Enabled {
			w, err := watcher.NewFileWatcher(doc, func(path string) {
				loadAndLog(ctx, components, path, logger)
			}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
			if err != nil {
				logger.Fatal("Failed to create watcher", zap.Error(err))
			}
			if err := w.Start(ctx); err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
			defer w.Stop()
		}
	}

	var history server.History
	if components.History != nil {
		history = components.History
	}
	srv := server.NewServer(components.Orchestrator, history, components.Extractor, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func loadAndLog(ctx context.Context, c *Components, path string, logger *zap.Logger) {
	res, err := c.Load(ctx, path)
	if err != nil {
		logger.Error("document load failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("document loaded",
		zap.String("path", path),
		zap.Int("chunks", res.Chunks),
		zap.Int("dimensions", res.Dimensions))
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
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

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Without --server, the document given by --file is loaded in-process and the
configured endpoint is called directly. With --server, the question goes to a
running "kotae serve"; --file is then extracted locally and sent to the server first.

Examples:
  kotae ask --file notes.txt what is this document about
  kotae ask --server http://localhost:8080 "who wrote it?"
  kotae ask --output json --sources --file report.pdf summarize the findings
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = answer in-process)")
	file := fs.String("file", "", "document to load before asking")
	outputFormat := fs.String("output", "text", "output format: text or json")
	sources := fs.Bool("sources", false, "show the retrieved chunks")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	ctx, stop := signalContext()
	defer stop()

	var answer models.Answer
	if *serverURL != "" {
		c := client.New(*serverURL, nil)
		if *file != "" {
			abs, err := filepath.Abs(*file)
			if err != nil {
				fatalf("Invalid path: %v", err)
			}
			if _, err := c.Load(ctx, abs); err != nil {
				fatalf("Load failed: %v", err)
			}
		}
		answer, err = c.Ask(ctx, question)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, err := utils.NewConsoleLogger(cfg.Debug || *debug)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()

		if *file != "" {
			if _, err := components.Load(ctx, *file); err != nil {
				fatalf("Load failed: %v", err)
			}
		}
		answer, err = components.Ask(ctx, question)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format, *sources); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = answer in-process)")
	file := fs.String("file", "", "document to load before the chat starts")
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signalContext()
	defer stop()

	var backend tui.Backend
	if *serverURL != "" {
		c := client.New(*serverURL, nil)
		if err := c.Health(ctx); err != nil {
			fatalf("Server not reachable: %v", err)
		}
		backend = c
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		components, err := initializeComponents(cfg, zap.NewNop())
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		backend = components
	}

	summary := "No document loaded. Use /load <file>."
	if *file != "" {
		abs, err := filepath.Abs(*file)
		if err != nil {
			fatalf("Invalid path: %v", err)
		}
		res, err := backend.Load(ctx, abs)
		if err != nil {
			fatalf("Load failed: %v", err)
		}
		summary = fmt.Sprintf("%s: %d chunks", abs, res.Chunks)
	} else if *serverURL != "" {
		summary = "Connected to " + *serverURL
	}
	if err := tui.Run(ctx, backend, summary); err != nil {
		fatalf("Chat failed: %v", err)
	}
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	serverURL := fs.String("server", client.DefaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	remote := fs.Bool("remote", false, "let the server read the file (must be under its document_roots)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae load [flags] <file>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	abs, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fatalf("Invalid path: %v", err)
	}
	ctx, stop := signalContext()
	defer stop()

	c := client.New(*serverURL, nil)
	load := c.Load
	if *remote {
		load = c.LoadRemote
	}
	res, err := load(ctx, abs)
	if err != nil {
		fatalf("Load failed: %v", err)
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", client.DefaultServerURL, "server URL (empty = read local history only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	ctx, stop := signalContext()
	defer stop()

	var report models.StatusReport
	if *serverURL != "" {
		report, err = client.New(*serverURL, nil).Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		report, err = localStatus(ctx, cfg)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, report, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// localStatus reports configuration and history without a running server. No document
// is loaded in a fresh process, so the index is always empty.
func localStatus(ctx context.Context, cfg *config.Config) (models.StatusReport, error) {
	report := models.StatusReport{Index: models.Status{
		State:        models.StateEmpty,
		TopK:         cfg.RAG.TopK,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.Overlap(),
	}}
	if cfg.Storage.Disabled {
		return report, nil
	}
	store, err := openHistory(cfg)
	if err != nil {
		return report, err
	}
	defer store.Close()
	counts, err := server.HistoryCounts(ctx, store)
	if err != nil {
		return report, err
	}
	report.History = counts
	return report, nil
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read the local history database)")
	limit := fs.Int("limit", 20, "number of questions to show")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	if *limit <= 0 {
		fatalf("--limit must be positive")
	}
	ctx, stop := signalContext()
	defer stop()

	var records []*models.QuestionRecord
	if *serverURL != "" {
		records, err = client.New(*serverURL, nil).History(ctx, *limit)
		if err != nil {
			fatalf("History failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		if cfg.Storage.Disabled {
			fatalf("History is disabled in %s", *configPath)
		}
		store, err := openHistory(cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()
		records, err = store.ListQuestions(ctx, 0, *limit)
		if err != nil {
			fatalf("History failed: %v", err)
		}
	}
	if err := cli.WriteHistory(os.Stdout, records, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file to create")
	envPath := fs.String("env", defaultEnvPath, ".env file to create")
	_ = fs.Parse(os.Args[2:])

	configured, err := initWorkspace(os.Stdout, *configPath, *envPath)
	if err != nil {
		fatalf("Init failed: %v", err)
	}
	if !configured {
		os.Exit(1)
	}
}

// initWorkspace writes a default config and a .env template when they are missing and
// reports whether the .env file holds real credentials.
func initWorkspace(w io.Writer, configPath, envPath string) (bool, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(configPath, config.Default()); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Created %s\n", configPath)
	}
	created, err := config.WriteEnvTemplate(envPath)
	if err != nil {
		return false, err
	}
	if created {
		fmt.Fprintf(w, "Created %s\n", envPath)
	}
	configured, err := config.EnvConfigured(envPath)
	if err != nil {
		return false, err
	}
	if !configured {
		fmt.Fprintf(w, "\nWARNING: %s needs to be configured!\n", envPath)
		fmt.Fprintf(w, "Please edit it with your credentials:\n")
		fmt.Fprintf(w, "1. %s - Your LLM API endpoint\n", config.EnvEndpointURL)
		fmt.Fprintf(w, "2. %s - Your API key for the LLM service\n", config.EnvAPIKey)
		return false, nil
	}
	fmt.Fprintln(w, "Environment is configured. Start with: kotae chat --file <document>")
	return true, nil
}

func printUsage() {
	fmt.Println(`kotae - Ask questions about a document with retrieval-augmented generation

Usage:
  kotae serve [flags]             Start the HTTP server
  kotae ask [flags] <question>    Ask a question
  kotae chat [flags]              Interactive chat
  kotae load [flags] <file>       Load a document into a running server
  kotae status [flags]            Show index and history status
  kotae history [flags]           Show recent questions
  kotae init [flags]              Create config.yaml and .env templates
  kotae version                   Show version
  kotae help                      Show this help

Serve Flags:
  --config string    Config file path (default: ` + defaultConfigPath + `)
  --document string  Document to load at startup
  --watch            Reload the document when it changes
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL. Empty (default) answers in-process.
  --file string      Document to load before asking
  --output string    Output format: text or json (default: text)
  --sources          Show the retrieved chunks

Chat Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL. Empty (default) answers in-process.
  --file string      Document to load before the chat starts

Load Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)
  --remote           Send the path instead of the text; the server reads it
                     from one of its server.document_roots

Status / History Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (status default: http://localhost:8080; history default: local database)
  --limit int        Number of questions (history, default: 20)
  --output string    Output format: text or json (default: text)

Environment:
  LLM_ENDPOINT_URL   Generation endpoint (also read from .env)
  LLM_API_KEY        Bearer token for the endpoint

Examples:
  kotae init
  kotae ask --file notes.txt "What is this document about?"
  kotae serve --document notes.txt --watch
  kotae load report.pdf
  kotae ask --server http://localhost:8080 who wrote the report
  kotae chat --file notes.txt
  kotae history --output json`)
}
