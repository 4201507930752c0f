// Catcher - error report collection service
//
// Catcher accepts error reports from browser and server processes, enriches
// browser stacks through source maps, groups repeated errors and persists
// them, notifying project webhooks about fresh events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/armorclaw/catcher/pkg/config"
	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/logger"
	"github.com/armorclaw/catcher/pkg/notify"
	"github.com/armorclaw/catcher/pkg/pipeline"
	"github.com/armorclaw/catcher/pkg/receiver"
	"github.com/armorclaw/catcher/pkg/sourcemap"
	"github.com/armorclaw/catcher/pkg/store"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

type cliConfig struct {
	command      string
	configPath   string
	configOutput string
	logLevel     string
	version      bool
	help         bool

	// add-project flags
	projectName  string
	projectToken string
}

func main() {
	cliCfg := parseFlags()

	if cliCfg.version {
		printVersion()
		return
	}

	if cliCfg.help || cliCfg.command == "help" {
		printHelp()
		return
	}

	switch cliCfg.command {
	case "init":
		runInitCommand(cliCfg)
	case "validate":
		runValidateCommand(cliCfg)
	case "add-project":
		runAddProjectCommand(cliCfg)
	case "", "serve":
		runServer(cliCfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cliCfg.command)
		printHelp()
		os.Exit(1)
	}
}

func parseFlags() cliConfig {
	var cliCfg cliConfig

	flag.StringVar(&cliCfg.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&cliCfg.configOutput, "output", "", "Output path for generated config (init)")
	flag.StringVar(&cliCfg.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flag.StringVar(&cliCfg.projectName, "name", "", "Project name (add-project)")
	flag.StringVar(&cliCfg.projectToken, "token", "", "Project token (add-project; generated when empty)")
	flag.BoolVar(&cliCfg.version, "version", false, "Print version and exit")
	flag.BoolVar(&cliCfg.help, "help", false, "Print help and exit")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		cliCfg.command = args[0]
	}

	return cliCfg
}

func printVersion() {
	fmt.Printf("catcher %s (built %s)\n", version, buildTime)
}

func printHelp() {
	fmt.Println(`catcher - error report collection service

Usage:
  catcher [command] [flags]

Commands:
  serve         Start the receivers (default)
  init          Write an example configuration file
  validate      Validate the configuration
  add-project   Register a project and print its token
  help          Show this help

Flags:
  -config path      Path to configuration file
  -output path      Output path for generated config (init)
  -log-level level  Override log level
  -name name        Project name (add-project)
  -token token      Project token (add-project; generated when empty)
  -version          Print version and exit`)
}

// runInitCommand generates an example configuration file
func runInitCommand(cliCfg cliConfig) {
	outputPath := cliCfg.configOutput
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to determine home directory: %v", err)
		}
		outputPath = filepath.Join(homeDir, ".catcher", "config.toml")
	}
	if err := config.GenerateExampleConfig(outputPath); err != nil {
		log.Fatalf("Failed to generate example config: %v", err)
	}
	log.Printf("Example configuration written to: %s", outputPath)
	log.Println("Next: register a project with: catcher add-project -name my-app")
}

// runValidateCommand validates the configuration
func runValidateCommand(cliCfg cliConfig) {
	cfg, err := config.Load(cliCfg.configPath)
	if err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	log.Printf("Configuration is valid")
	log.Printf("  Socket receiver: %s%s", cfg.Receivers.SocketAddr, receiver.SocketPath)
	log.Printf("  HTTP receiver:   %s%s", cfg.Receivers.HTTPAddr, receiver.ServerPath)
	log.Printf("  Store:           %s", cfg.Store.DBPath)
	log.Printf("  Source maps:     %v", cfg.SourceMaps.Enabled)
	log.Printf("  Notifications:   %v", cfg.Notifications.Enabled)
}

// runAddProjectCommand registers a project in the store and prints its token.
func runAddProjectCommand(cliCfg cliConfig) {
	if cliCfg.projectName == "" {
		log.Fatal("add-project requires -name")
	}

	cfg := config.LoadOrDie(cliCfg.configPath)

	st, err := store.Open(store.Config{Path: cfg.Store.DBPath})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	token := cliCfg.projectToken
	if token == "" {
		token = event.NewID()
	}

	project := &event.Project{
		ID:    event.NewID(),
		Token: token,
		Name:  cliCfg.projectName,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.AddProject(ctx, project); err != nil {
		log.Fatalf("Failed to add project: %v", err)
	}

	fmt.Printf("Project registered\n")
	fmt.Printf("  ID:    %s\n", project.ID)
	fmt.Printf("  Name:  %s\n", project.Name)
	fmt.Printf("  Token: %s\n", project.Token)
}

// runServer starts both receivers and blocks until shutdown.
func runServer(cliCfg cliConfig) {
	cfg := config.LoadOrDie(cliCfg.configPath)

	level := cfg.Logging.Level
	if cliCfg.logLevel != "" {
		level = cliCfg.logLevel
	}
	output := cfg.Logging.Output
	if output == "file" {
		output = cfg.Logging.File
	}
	if err := logger.Initialize(level, cfg.Logging.Format, output); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	mainLog := logger.Global().WithComponent("main")

	st, err := store.Open(store.Config{Path: cfg.Store.DBPath})
	if err != nil {
		mainLog.Error("failed to open store", "error", err, "path", cfg.Store.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	var resolver *sourcemap.Resolver
	if cfg.SourceMaps.Enabled {
		resolver = sourcemap.NewResolver(sourcemap.ResolverConfig{
			Fetcher:   sourcemap.NewHTTPFetcher(sourcemap.HTTPFetcherConfig{Timeout: cfg.FetchTimeout()}),
			CacheSize: cfg.SourceMaps.CacheSize,
			CacheTTL:  cfg.CacheTTL(),
		})
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		Webhooks:  cfg.WebhookMap(),
		Enabled:   cfg.Notifications.Enabled,
		RateLimit: cfg.Notifications.RateLimit,
	})

	pipe, err := pipeline.New(pipeline.Config{
		Projects: st,
		Events:   st,
		Notifier: dispatcher,
		Resolver: resolver,
	})
	if err != nil {
		mainLog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	socketRecv, err := receiver.NewSocketReceiver(receiver.SocketConfig{
		Addr:        cfg.Receivers.SocketAddr,
		Pipeline:    pipe,
		ReadTimeout: cfg.ReadTimeout(),
	})
	if err != nil {
		mainLog.Error("failed to build socket receiver", "error", err)
		os.Exit(1)
	}

	httpRecv, err := receiver.NewHTTPReceiver(receiver.HTTPConfig{
		Addr:         cfg.Receivers.HTTPAddr,
		Pipeline:     pipe,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	})
	if err != nil {
		mainLog.Error("failed to build http receiver", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(socketRecv.Start)
	group.Go(httpRecv.Start)
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := socketRecv.Stop(shutdownCtx); err != nil {
			mainLog.Warn("socket receiver shutdown", "error", err)
		}
		if err := httpRecv.Stop(shutdownCtx); err != nil {
			mainLog.Warn("http receiver shutdown", "error", err)
		}
		return nil
	})

	mainLog.Info("catcher started",
		"version", version,
		"socket_addr", cfg.Receivers.SocketAddr,
		"http_addr", cfg.Receivers.HTTPAddr)

	if err := group.Wait(); err != nil {
		mainLog.Error("server error", "error", err)
		os.Exit(1)
	}
	mainLog.Info("catcher stopped")
}
