// Package cli implements the carscan command line client. It runs scan
// sessions in-process against a detection endpoint.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	platformconfig "carscan-server/internal/platform/config"
	platformlogging "carscan-server/internal/platform/logging"
)

// Version is the client version reported by --version.
var Version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the carscan command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "carscan",
		Short:         "Scan vehicle photos for body damage",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: $CARSCAN_CONFIG or .config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")

	root.AddCommand(newScanCommand(opts))
	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load reads configuration and opens a file-only logger so console output
// stays free for the progress bar.
func (o *globalOptions) load() (*platformconfig.Config, *platformlogging.Logger, error) {
	loader := platformconfig.NewLoader()
	if o.configPath != "" {
		loader = loader.WithPath(o.configPath)
	}
	result, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg := result.Config
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: "carscan-cli.log",
		Console:  io.Discard,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
