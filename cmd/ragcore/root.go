package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ragcore/internal/config"
	"ragcore/internal/embedding"
	"ragcore/internal/log"
	"ragcore/internal/service"
)

var (
	cfgFile       string
	currentConfig *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "ragcore",
	Short: "Semantic retrieval over a knowledge document",
	Long: `ragcore chunks a knowledge document, embeds the chunks into an exact
in-memory vector index and answers queries with a ranked, threshold-filtered,
length-bounded context. Queries fall back to keyword search when the index
is unavailable or not confident.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		currentConfig = cfg
		if err := log.Init(log.Options{Level: cfg.Log.Level, File: cfg.Log.File, Development: cfg.Log.Development}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml or ~/.config/ragcore/config.yaml)")
	rootCmd.PersistentFlags().StringP("document", "d", "", "knowledge document (markdown or text)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "append JSON retrieval records to this file")
	rootCmd.PersistentFlags().String("strategy", "", "search strategy: vector, lexical or auto")
	rootCmd.PersistentFlags().Int("top-k", 0, "number of chunks to retrieve")
	rootCmd.PersistentFlags().Float64("threshold", 0, "minimum vector similarity score")

	_ = viper.BindPFlag("document", rootCmd.PersistentFlags().Lookup("document"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("search_strategy", rootCmd.PersistentFlags().Lookup("strategy"))
	_ = viper.BindPFlag("top_k", rootCmd.PersistentFlags().Lookup("top-k"))
	_ = viper.BindPFlag("score_threshold", rootCmd.PersistentFlags().Lookup("threshold"))

	// Map environment variables to Viper keys
	_ = viper.BindEnv("document", "RAG_DOCUMENT")
	_ = viper.BindEnv("log_level", "RAG_LOG_LEVEL")
	_ = viper.BindEnv("log_file", "RAG_LOG_FILE")
	_ = viper.BindEnv("search_strategy", "RAG_SEARCH_STRATEGY")
	_ = viper.BindEnv("top_k", "RAG_TOP_K")
	_ = viper.BindEnv("score_threshold", "RAG_SCORE_THRESHOLD")
	_ = viper.BindEnv("max_context_length", "RAG_MAX_CONTEXT_LENGTH")
	_ = viper.BindEnv("embedder", "RAG_EMBEDDER")
	_ = viper.BindEnv("server_addr", "RAG_SERVER_ADDR")
}

// loadConfig reads the YAML config, applies flag and environment overrides
// and validates the result.
func loadConfig() (*config.AppConfig, error) {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		path = cfgFile
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg)
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.AppConfig) {
	if viper.IsSet("document") {
		cfg.Document.Path = viper.GetString("document")
	}
	if viper.IsSet("log_level") {
		cfg.Log.Level = viper.GetString("log_level")
	}
	if viper.IsSet("log_file") {
		cfg.Log.File = viper.GetString("log_file")
	}
	if viper.IsSet("search_strategy") {
		cfg.Retrieval.SearchStrategy = viper.GetString("search_strategy")
	}
	if viper.IsSet("top_k") {
		cfg.Retrieval.TopK = viper.GetInt("top_k")
	}
	if viper.IsSet("score_threshold") {
		cfg.Retrieval.ScoreThreshold = viper.GetFloat64("score_threshold")
	}
	if viper.IsSet("max_context_length") {
		cfg.Retrieval.MaxContextLength = viper.GetInt("max_context_length")
	}
	if viper.IsSet("embedder") {
		cfg.Embedder.Type = viper.GetString("embedder")
	}
	if viper.IsSet("server_addr") {
		cfg.Server.Addr = viper.GetString("server_addr")
	}
}

// newEngine wires the configured embedder and document into an engine.
func newEngine(cfg *config.AppConfig, progress func(done, total int)) (*service.Engine, error) {
	if cfg.Document.Path == "" {
		return nil, fmt.Errorf("no document configured: set document.path, --document or RAG_DOCUMENT")
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	lg := log.WithName("retrieval")
	return service.New(service.Options{
		Source:   service.FileSource(cfg.Document.Path),
		Embedder: emb,
		Config:   cfg.Retrieval,
		Logger:   &lg,
		Progress: progress,
	})
}
