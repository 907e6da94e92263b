// researchflow answers research questions: it searches the web, drafts an
// answer with an LLM, and refines it.
//
// Usage:
//
//	researchflow ask [query]
//	researchflow serve [--addr=:8080]
//	researchflow mcp
//	researchflow graph [--run=<id>]
//	researchflow snapshots [run-id] [--stage=<id>]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "researchflow",
	Short: "Web research assistant with resilient LLM invocation",
	Long: "researchflow searches the web for a query, drafts a cited answer with the\n" +
		"first available LLM provider, and refines it. Provider failures degrade to\n" +
		"a deterministic summary of the search results.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd.ErrOrStderr(), rootFlags.logLevel, rootFlags.logFormat)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Config file (YAML, JSON, or .env)")
	f.StringSliceVar(&rootFlags.envFiles, "env-file", []string{".env"}, "Dotenv files read before the process environment")
	f.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
