package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spaceboy92/Aether-IDE/internal/config"
	"github.com/spaceboy92/Aether-IDE/internal/gateway"
	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/session"
	"github.com/spaceboy92/Aether-IDE/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aether",
	Short: "Aether - chat-driven coding workspace",
	Long: `Aether is a chat-driven coding workspace.

Describe what you want to build and the agent generates, edits, and deletes
project files for you. Projects persist locally; every project can be
previewed live, exported as a standalone HTML file or a zip archive, and
rolled back through snapshots.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Interactive mode drives its own output
		if cmd.Use == "aether" && cmd.CalledAs() == "aether" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default <workspace>/.aether/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(composeCmd)
}

// loadConfig resolves and loads the workspace configuration.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workspace, ".aether", "config.yaml")
	}
	return config.Load(path)
}

// appContext is the wired core shared by every command.
type appContext struct {
	cfg      *config.Config
	store    *store.FileStore
	sessions *session.Manager
	client   *gateway.Client
}

// buildApp initializes logging, storage, and the gateway client.
func buildApp() (*appContext, error) {
	if err := logging.Initialize(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DatabasePath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}

	fs, err := store.NewFileStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}
	fs.SetSnapshotLimit(cfg.Storage.SnapshotLimit)

	clientCfg := gateway.DefaultClientConfig(cfg.LLM.APIKey)
	clientCfg.BaseURL = cfg.LLM.BaseURL
	clientCfg.Model = cfg.LLM.Model
	clientCfg.Timeout = cfg.GetLLMTimeout()
	clientCfg.MaxOutputTokens = cfg.LLM.MaxOutputTokens
	clientCfg.EnableGoogleSearch = cfg.LLM.EnableGoogleSearch
	clientCfg.HistoryWindow = cfg.LLM.HistoryWindow

	return &appContext{
		cfg:      cfg,
		store:    fs,
		sessions: session.NewManager(fs),
		client:   gateway.NewClient(clientCfg),
	}, nil
}

func (a *appContext) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
	}
	logging.CloseAll()
}

func main() {
	start := time.Now()
	defer func() {
		logging.Boot("aether exited after %v", time.Since(start))
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
