package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/trustflow-labs/trustflow/internal/api"
	"github.com/trustflow-labs/trustflow/internal/auth"
	"github.com/trustflow-labs/trustflow/internal/chat"
	"github.com/trustflow-labs/trustflow/internal/config"
	"github.com/trustflow-labs/trustflow/internal/tui"
)

var (
	debug   bool
	baseURL string
	logFile *os.File
)

// appContext bundles what every subcommand needs.
type appContext struct {
	cfg    *config.Config
	logger *log.Logger
	store  *auth.Store
	client *api.Client
}

// setupApp loads config and wires the credential store into the API client.
func setupApp() (*appContext, error) {
	cfg, err := config.Load(debug)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}

	logger, err := setupLogging(cfg.Data.Directory, debug)
	if err != nil {
		return nil, err
	}

	store, err := auth.NewStore(cfg.Data.Directory)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(api.Options{
		BaseURL:         cfg.API.BaseURL,
		RequestTimeout:  cfg.API.RequestTimeout,
		GenerateTimeout: cfg.API.GenerateTimeout,
		Credentials:     store,
		Logger:          logger,
	})

	return &appContext{cfg: cfg, logger: logger, store: store, client: client}, nil
}

// setupLogging sends structured logs to a file so the TUI owns the
// terminal; debug mode keeps them on stderr.
func setupLogging(dataDir string, debug bool) (*log.Logger, error) {
	if debug {
		logger := log.New(os.Stderr)
		logger.SetLevel(log.DebugLevel)
		return logger, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dataDir, "trustflow.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	return log.New(f), nil
}

func cleanupLogging() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// newReconciler builds the conversation core from loaded config.
func newReconciler(app *appContext) *chat.Reconciler {
	return chat.NewReconciler(chat.Options{
		Backend: app.client,
		Logger:  app.logger,
		Models: chat.Models{
			Text:  app.cfg.Models.Text,
			Image: app.cfg.Models.Image,
		},
		Params: chat.Parameters{
			Temperature:       app.cfg.Generation.Temperature,
			ImageSize:         app.cfg.Generation.ImageSize,
			NumInferenceSteps: app.cfg.Generation.NumInferenceSteps,
			BatchSize:         app.cfg.Generation.BatchSize,
		},
	})
}

var rootCmd = &cobra.Command{
	Use:   "trustflow [prompt]",
	Short: "Chat client for the TrustFlow provenance backend",
	Long: `TrustFlow is a terminal client for an AI-generation provenance service.
Every generated answer is anchored on chain; the client shows the anchor
hash and the retrieval citations alongside each response.

With no arguments it opens the chat TUI. With a prompt argument it runs a
single text-mode exchange and prints the answer.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		reconciler := newReconciler(app)

		if len(args) > 0 {
			return runOneShot(cmd.Context(), reconciler, args[0])
		}
		return tui.Run(reconciler, app.cfg.TUI.Theme, app.logger)
	},
}

// runOneShot sends one prompt in a fresh session and prints the merged
// assistant message.
func runOneShot(ctx context.Context, reconciler *chat.Reconciler, prompt string) error {
	if err := reconciler.SendMessage(ctx, prompt, nil); err != nil {
		return err
	}
	messages := reconciler.Messages()
	if len(messages) == 0 {
		return fmt.Errorf("no response")
	}
	last := messages[len(messages)-1]
	fmt.Println(last.Content)
	if last.TxHash != "" {
		fmt.Printf("\ntx: %s\n", last.TxHash)
	}
	for _, c := range last.Citations {
		fmt.Printf("引用 %s p.%d (%.2f)\n", c.FileName, c.Page, c.Score)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (overrides config)")
}
