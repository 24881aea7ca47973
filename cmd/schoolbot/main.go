package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFlag   string
	providerFlag string
	modelFlag    string
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "schoolbot",
	Short: "schoolbot - chat assistant for the school management backend",
	Long: `schoolbot answers staff questions in natural language by letting an LLM
call the school management REST API: classes, students and chat messages.

It runs as an HTTP service (serve), as a local REPL (chat), and keeps an
optional audit log of handled requests (traces).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./schoolbot.yaml or ~/.schoolbot/schoolbot.yaml)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "LLM provider (gemini, openai)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Model to use (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
