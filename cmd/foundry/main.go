package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentfoundry/internal/api"
	"agentfoundry/internal/compiler"
	"agentfoundry/internal/config"
	"agentfoundry/internal/factory"
	"agentfoundry/internal/logging"
	"agentfoundry/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "agentfoundry - agent template authoring and versioned distribution",
	Long: `agentfoundry manages AI agent configuration templates: prompt layers,
behavioral rules, few-shot examples, factory memories and knowledge base
descriptors. It compiles templates into deterministic runtime prompts and
publishes factory-memory versions that installed clients converge to.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Initialize(level, cfg.Logging.JSONFormat)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.Get(logging.CategoryBoot)

		s, err := store.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.NewRouter(s),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("serving", zap.String("listen", cfg.Listen), zap.String("database", cfg.DatabasePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			// Hot-reload the log level when the config file changes.
			return config.Watch(ctx, configPath, func(next config.Config) {
				if next.Logging.Level != cfg.Logging.Level {
					if err := logging.SetLevel(next.Logging.Level); err == nil {
						cfg.Logging.Level = next.Logging.Level
					}
				}
			})
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		logging.Sync()
		return err
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile <template-id>",
	Short: "Render a template's compiled prompt to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		id := args[0]
		tpl, err := s.GetTemplate(id)
		if err != nil {
			return err
		}
		layers, err := s.ListLayers(id)
		if err != nil {
			return err
		}
		rules, err := s.ListRules(id)
		if err != nil {
			return err
		}
		examples, err := s.ListExamples(id)
		if err != nil {
			return err
		}
		res, err := compiler.Compile(compiler.Input{
			Template: tpl,
			Layers:   layers,
			Rules:    rules,
			Examples: examples,
		})
		if err != nil {
			return err
		}
		fmt.Print(res.Prompt)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <template-id>",
	Short: "Publish the template's active factory memories as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := factory.NewManager(s).Publish(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts per table",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "foundry.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
