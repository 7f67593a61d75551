package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Caia-Tech/caia-extract/internal/bootstrap"
	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/temporal/workflows"
	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
)

type documentFlags struct {
	strategy string
	maxPages int
	dpi      int
}

func (f *documentFlags) register(cmd *cobra.Command, withStrategy bool) {
	if withStrategy {
		cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "", "FAST, BALANCED, PRECISE, CLOUD, AUTO or COMPARE (default from config)")
	}
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "PDF pages to rasterize (default from config)")
	cmd.Flags().IntVar(&f.dpi, "dpi", 0, "PDF rasterization resolution (default from config)")
}

func (f *documentFlags) input(rt *bootstrap.Runtime, path string) (ocr.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ocr.Input{}, err
	}
	in := ocr.Input{Data: data, Filename: filepath.Base(path), MaxPages: f.maxPages, DPI: f.dpi}
	if in.MaxPages == 0 {
		in.MaxPages = rt.Config.Processing.PDFMaxPages
	}
	if in.DPI == 0 {
		in.DPI = rt.Config.Processing.PDFDPI
	}
	return in, nil
}

func newExtractCommand() *cobra.Command {
	var flags documentFlags
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Recognize and extract one image or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				value := flags.strategy
				if value == "" {
					value = rt.Config.Engines.DefaultStrategy
				}
				strategy, err := orchestrator.ParseStrategy(value)
				if err != nil {
					return err
				}
				in, err := flags.input(rt, args[0])
				if err != nil {
					return err
				}

				if strategy == orchestrator.StrategyCompare {
					return runCompare(cmd, rt, in)
				}

				report, err := rt.Orchestrator.Extract(cmd.Context(), in, strategy)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(report)
				}
				printReport(report)
				return nil
			})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newCompareCommand() *cobra.Command {
	var flags documentFlags
	cmd := &cobra.Command{
		Use:   "compare <file>",
		Short: "Run every available engine over one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				in, err := flags.input(rt, args[0])
				if err != nil {
					return err
				}
				return runCompare(cmd, rt, in)
			})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func runCompare(cmd *cobra.Command, rt *bootstrap.Runtime, in ocr.Input) error {
	cmp, err := rt.Orchestrator.Compare(cmd.Context(), in)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmp)
	}

	titleColor.Printf("Comparison of %s (%d pages)\n", in.Filename, cmp.Pages)
	for _, name := range cmp.Engines() {
		r := cmp.Results[name]
		if r.Extraction == nil {
			failColor.Printf("  ✗ %-14s %s\n", name, r.Error)
			continue
		}
		okColor.Printf("  ✓ %-14s ", name)
		fmt.Printf("%s, %d values ", r.Extraction.DocumentType, resultSize(r.Extraction))
		dimColor.Printf("(%s)\n", r.Elapsed.Round(1e6))
	}
	return nil
}

func newCapabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Probe the configured OCR engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				caps := rt.Orchestrator.Capabilities()
				if jsonOutput {
					return printJSON(caps)
				}
				titleColor.Println("OCR engines")
				for _, name := range []string{ocr.NameTesseract, ocr.NameEasyOCR, ocr.NamePaddleOCR, ocr.NameOpenAIVision} {
					c, ok := caps[name]
					switch {
					case !ok:
						dimColor.Printf("  - %-14s not configured\n", name)
					case c.Available:
						okColor.Printf("  ✓ %-14s", name)
						dimColor.Printf(" layout=%t\n", c.Layout)
					default:
						failColor.Printf("  ✗ %-14s %s\n", name, c.Reason)
					}
				}
				return nil
			})
		},
	}
}

func newMemoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset the correction memory",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the learned names and digit confusions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				snap := rt.Memory.Snapshot()
				if jsonOutput {
					return printJSON(snap)
				}
				titleColor.Printf("Correction memory (%s)\n", rt.Memory.Backend())
				for _, category := range snap.Categories() {
					fmt.Printf("  %s: %d\n", category, len(snap.Names[category]))
					for _, name := range snap.Names[category] {
						dimColor.Printf("    %s\n", name)
					}
				}
				fmt.Printf("  digit confusions: %d\n", len(snap.DigitConfusions))
				fmt.Printf("  corrections logged: %d\n", len(snap.CorrectionLog))
				return nil
			})
		},
	}

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Empty the correction memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm("Reset the correction memory? [y/N] ") {
				fmt.Println("Aborted")
				return nil
			}
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				if err := rt.Memory.Reset(cmd.Context()); err != nil {
					return err
				}
				okColor.Printf("Memory reset (%s)\n", rt.Memory.Backend())
				return nil
			})
		},
	}
	reset.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(show, reset)
	return cmd
}

func newBatchCommand() *cobra.Command {
	var flags documentFlags
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Start a batch extraction workflow on Temporal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := orchestrator.ParseStrategy(flags.strategy); err != nil {
				return err
			}

			input := workflows.BatchInput{
				BatchID:  fmt.Sprintf("batch-%s", uuid.New().String()),
				Strategy: flags.strategy,
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				input.Documents = append(input.Documents, workflows.DocumentInput{
					Filename: filepath.Base(path),
					Content:  data,
					MaxPages: flags.maxPages,
					DPI:      flags.dpi,
				})
			}

			temporalClient, err := client.Dial(client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("failed to connect to Temporal: %w", err)
			}
			defer temporalClient.Close()

			we, err := temporalClient.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
				ID:        input.BatchID,
				TaskQueue: cfg.Temporal.TaskQueue,
			}, workflows.BatchExtractionWorkflow, input)
			if err != nil {
				return fmt.Errorf("failed to start batch: %w", err)
			}

			okColor.Printf("Batch started with %d documents\n", len(input.Documents))
			fmt.Printf("  workflow: %s\n  run:      %s\n", we.GetID(), we.GetRunID())
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func printReport(report *orchestrator.Report) {
	ext := report.Extraction
	rec := report.Recognition

	titleColor.Printf("%s: %s\n", ext.Filename, ext.DocumentType)
	dimColor.Printf("engine %s, strategy %s", rec.Engine, rec.Strategy)
	if rec.Profile != "" {
		dimColor.Printf(" (%s)", rec.Profile)
	}
	dimColor.Printf(", %d pages, %s\n", rec.Pages, rec.Elapsed.Round(1e6))

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	switch res := ext.Result.(type) {
	case *document.Fields:
		res.Range(func(key, value string) bool {
			fmt.Fprintf(w, "  %s\t%s\n", key, value)
			return true
		})
	case *document.Tabular:
		fmt.Fprintf(w, "  %s\n", strings.Join(res.Columns, "\t"))
		for _, record := range res.Records() {
			fmt.Fprintf(w, "  %s\n", strings.Join(record, "\t"))
		}
	}
	w.Flush()

	for _, c := range ext.Corrections {
		okColor.Printf("  corrected %s: %q → %q\n", c.Field, c.Original, c.Corrected)
	}
	for _, a := range rec.Attempts {
		if !a.OK() {
			failColor.Printf("  %s failed: %v\n", a.Engine, a.Err)
		}
	}
}

func resultSize(ext *document.Extraction) int {
	if ext.Result == nil {
		return 0
	}
	return ext.Result.Len()
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
