package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leonardotrapani/factstream/internal/config"
	"github.com/leonardotrapani/factstream/internal/knowledge"
	"github.com/leonardotrapani/factstream/internal/llm"
	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/server"
	"github.com/leonardotrapani/factstream/internal/sink"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "factstream",
	Short:        "Real-time transcription and fact checking",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// serve always logs; the one-shot commands only with --verbose
		if !verbose && cmd.Name() != "serve" {
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(
		serveCmd(),
		checkCmd(),
		analyzeCmd(),
		streamCmd(),
		kbCmd(),
		configCmd(),
		versionCmd(),
	)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openKnowledge opens the sqlite store, seeds it when empty and wraps it in
// the query cache
func openKnowledge(ctx context.Context, cfg *config.Config) (*knowledge.SQLiteStore, knowledge.Searcher, error) {
	store, err := knowledge.OpenSQLite(cfg.Knowledge.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 && cfg.Knowledge.SeedSamples {
		if _, err := knowledge.Seed(ctx, store); err != nil {
			log.Printf("knowledge: seeding failed: %v", err)
		}
	}
	for _, path := range cfg.Knowledge.SeedFiles {
		n, err := knowledge.LoadFile(ctx, store, path)
		if err != nil {
			log.Printf("knowledge: failed to load %s: %v", path, err)
			continue
		}
		log.Printf("knowledge: loaded %d documents from %s", n, path)
	}

	return store, knowledge.NewCachedSearcher(store, cfg.Knowledge.CacheTTL), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := mgr.GetConfig()

	ctx, cancel := signalContext()
	defer cancel()

	store, searcher, err := openKnowledge(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	responder, err := llm.NewResponder(ctx, cfg.ToLLMConfig())
	if err != nil {
		return fmt.Errorf("failed to create LLM responder: %w", err)
	}

	deps := server.Deps{Responder: responder, Searcher: searcher}
	if cfg.Sink.RedisAddr != "" {
		client, err := sink.OpenRedis(ctx, cfg.Sink.RedisAddr, cfg.Sink.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Results = append(deps.Results, sink.NewRedis(client, cfg.Sink.RedisChannel, cfg.Sink.RedisKeyPrefix))
		log.Printf("Server: publishing verdicts to redis %s", cfg.Sink.RedisAddr)
	}

	srv := server.New(cfg, deps)
	mgr.OnReload(srv.Apply)
	if err := mgr.StartWatching(ctx); err != nil {
		log.Printf("Config manager: hot reload disabled: %v", err)
	}
	defer mgr.Stop()

	return srv.Run(ctx)
}

// localEngine builds what check and analyze need without a server
func localEngine(ctx context.Context) (*config.Config, server.Deps, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, server.Deps{}, nil, err
	}
	store, searcher, err := openKnowledge(ctx, cfg)
	if err != nil {
		return nil, server.Deps{}, nil, err
	}
	responder, err := llm.NewResponder(ctx, cfg.ToLLMConfig())
	if err != nil {
		store.Close()
		return nil, server.Deps{}, nil, fmt.Errorf("failed to create LLM responder: %w", err)
	}
	deps := server.Deps{Responder: responder, Searcher: searcher}
	return cfg, deps, func() { store.Close() }, nil
}

func resultPrinter(w io.Writer) notify.Observer[model.FactCheckResult] {
	return notify.Func[model.FactCheckResult](func(_ context.Context, r model.FactCheckResult) error {
		printResult(w, r)
		return nil
	})
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), server.Version)
		},
	}
}
