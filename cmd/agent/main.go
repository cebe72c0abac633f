package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/petasbytes/turnkit/agent"
	"github.com/petasbytes/turnkit/internal/config"
	"github.com/petasbytes/turnkit/internal/logger"
	"github.com/petasbytes/turnkit/internal/provider"
	"github.com/petasbytes/turnkit/internal/workspace"
	"github.com/petasbytes/turnkit/tools"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":    "backend",
	"model":      "model",
	"memory":     "memory_capacity",
	"max-hops":   "max_hops",
	"max-tokens": "max_tokens",
	"log-level":  "log_level",
	"log-json":   "log_json",
	"system":     "system_prompt",
	"tools":      "tools",
	"read-root":  "read_root",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agent",
		Short:         "Chat with a model from the terminal",
		Long:          "Start an interactive session. Settings come from flags, then AGT_* environment variables, then defaults.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(overrides(cmd))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.String("backend", config.BackendAnthropic, "generation backend (anthropic or openai)")
	f.String("model", "", "model name; empty selects the backend default")
	f.Int("memory", 10, "number of messages remembered")
	f.Int("max-hops", 8, "maximum backend calls per turn")
	f.Int("max-tokens", 1024, "reply token limit")
	f.String("log-level", "info", "debug, info, warn, error or disabled")
	f.Bool("log-json", false, "log as JSON")
	f.String("system", "", "system prompt sent with every turn")
	f.Bool("tools", true, "enable the read_file and list_files tools")
	f.String("read-root", "", "directory the tools may read; defaults to the working directory")
	return cmd
}

// overrides returns the flags set explicitly on the command line.
func overrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		if cmd.Flags().Changed(name) {
			out[key] = cmd.Flags().Lookup(name).Value.String()
		}
	}
	return out
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		JSON:       cfg.LogJSON,
		TimeFormat: "15:04:05",
	})
	logger.SetDefault(log)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	var reg *tools.Registry
	if cfg.Tools {
		root, err := workspace.Open(cfg.ReadRoot)
		if err != nil {
			return fmt.Errorf("workspace: %w", err)
		}
		reg = tools.NewRegistry(root.Tools()...)
		log.Debug("Workspace tools enabled", "root", root.Dir())
	}
	ag, err := agent.New(backend, agent.Config{
		MemoryCapacity: cfg.MemoryCapacity,
		MaxHops:        cfg.MaxHops,
		Tools:          reg,
		System:         cfg.SystemPrompt,
	})
	if err != nil {
		return err
	}

	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		select {
		case <-sigch:
			fmt.Println("\nExiting...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return newREPL(ag, os.Stdin, os.Stdout, cfg.MaxTokens).Loop(ctx)
}

func newBackend(cfg *config.Config) (provider.Backend, error) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, errors.New("missing OPENAI_API_KEY; export it before running")
		}
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return provider.NewLangChain(llm), nil
	default:
		// The SDK reads the key itself; fail early with a clearer message.
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, errors.New("missing ANTHROPIC_API_KEY; export it before running")
		}
		a := provider.NewAnthropic(provider.NewAnthropicClient(), cfg.Model)
		a.MaxTokens = int64(cfg.MaxTokens)
		return a, nil
	}
}
