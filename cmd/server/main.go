package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/app"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/log"
	"github.com/vovakirdan/relaychat/internal/persist"
)

var (
	configPath string
	addr       string
	logLevel   string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:           "relaychat",
	Short:         "Chat relay with slash-command assistants",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the persisted state of a session as JSON",
	Long: `Reads every key stored for a session (messages, theme, bookmarks)
and prints them as one JSON object on stdout.`,
	RunE: runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")

	historyCmd.Flags().StringVar(&sessionID, "session", "", "session id")
	_ = historyCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(serveCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	bootLogger := log.New("info")
	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return nil, err
	}
	cfg.UpdateFrom(config.Config{Addr: addr, LogLevel: logLevel})
	bootLogger.Debug().Str("config", path).Msg("configuration loaded")
	return &cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting relaychat")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if sessionID == "" {
		return errors.New("--session is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := app.OpenStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logger := log.NewWithWriter(cfg.LogLevel, os.Stderr)
	storage := persist.New(st, cfg.Chat.WelcomeText, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dump, err := storage.Export(ctx, sessionID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}
