// Command caia-extract runs document extractions from the command line
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Caia-Tech/caia-extract/internal/bootstrap"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/Caia-Tech/caia-extract/pkg/pipeline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

func main() {
	root := &cobra.Command{
		Use:           "caia-extract",
		Short:         "Extract structured data from scanned business documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CAIA_CONFIG"), "path to a JSON configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a summary")

	root.AddCommand(
		newExtractCommand(),
		newCompareCommand(),
		newCapabilitiesCommand(),
		newMemoryCommand(),
		newBatchCommand(),
	)

	if err := root.Execute(); err != nil {
		failColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up stderr logging
func loadConfig() (*pipeline.PipelineConfig, error) {
	cfg, err := pipeline.LoadPipelineConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Logging.Level = logLevel
	cfg.Logging.Format = "pretty"
	cfg.Logging.Console = true
	cfg.Logging.OutputFile = ""
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withRuntime builds the runtime, runs fn and closes the runtime
func withRuntime(ctx context.Context, fn func(*bootstrap.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	return fn(rt)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
