package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pep299/news-chat/internal/chat"
	"github.com/pep299/news-chat/internal/config"
	"github.com/pep299/news-chat/internal/handlers"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

var modelName string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "newschat",
	Short: "Search news and chat about it from the terminal",
	Long: `newschat runs the news chat service without the HTTP server.

Example usage:
  newschat search 반도체            # List matching articles
  newschat summarize 반도체         # Summarize the top articles
  newschat chat 반도체              # Summarize, then ask follow-up questions
  newschat sessions                # List stored sessions
  newschat lotto --include 3,7     # Draw lotto number sets`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "Gemini model (default from GEMINI_MODEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// openService builds the same service the HTTP server uses.
func openService(ctx context.Context) (*chat.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	server, err := handlers.NewServer(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}
	return server.Service(), func() { _ = server.Close() }, nil
}
