package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/system0x7/dt/internal/config"
	"github.com/system0x7/dt/pkg/engine"
	"github.com/system0x7/dt/pkg/repl"
	"github.com/system0x7/dt/pkg/table"
)

type rootOptions struct {
	cfgFile     string
	file        string
	output      string
	interactive bool
	verbose     bool
	preload     []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dt [PIPELINE]",
		Short: "dt - pipelines for tabular data",
		Long: `dt reads CSV, TSV, JSON and Parquet files and transforms them with
pipelines of operations joined by '|':

  read('sales.csv') | filter(quantity > 10) | select(price, quantity)

With neither a pipeline nor a script, dt starts an interactive REPL.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}}\n  commit: %s\n  built:  %s\n", commit, date))

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "Run the script in this file")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "Start the REPL after running the pipeline or script")
	flags.StringVarP(&opts.output, "output", "o", "", "Write the final table here (format by extension)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	flags.StringVar(&opts.cfgFile, "config", "", "Config file (default: ./dt.yaml)")
	flags.StringArrayVar(&opts.preload, "preload", nil, "Bind a file as a variable before running, as name=path (repeatable)")
	flags.StringSlice("sandbox", nil, "Restrict file access to these directories")
	flags.Int("history-limit", 0, "Number of undo steps to keep")

	return cmd
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := config.Load(opts.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	opts.verbose = cfg.Verbose
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithContext(ctx),
		engine.WithHistoryLimit(cfg.HistoryLimit),
		engine.WithOptimizations(cfg.Optimize),
	}
	if len(cfg.Sandbox) > 0 {
		engOpts = append(engOpts, engine.WithSandbox(cfg.Sandbox...))
	}
	eng := engine.New(engOpts...)

	if err := preload(ctx, eng, opts.preload); err != nil {
		return err
	}

	src := ""
	switch {
	case len(args) > 0 && opts.file != "":
		return fmt.Errorf("give either a pipeline or --file, not both")
	case len(args) > 0:
		src = args[0]
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return err
		}
		src = string(data)
	default:
		return startREPL(cmd, eng, cfg)
	}

	if err := runProgram(cmd, eng, src, opts); err != nil {
		return err
	}
	if opts.interactive {
		return startREPL(cmd, eng, cfg)
	}
	return nil
}

func runProgram(cmd *cobra.Command, eng *engine.Engine, src string, opts *rootOptions) error {
	stmts, err := engine.Statements(src)
	if err != nil {
		return err
	}
	if opts.verbose {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Executing %d statement(s)\n", len(stmts))
	}

	result, err := eng.Evaluate(src)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	if opts.output != "" {
		if err := eng.WriteTable(cmd.Context(), opts.output, result); err != nil {
			return err
		}
		if opts.verbose {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", result.NRows(), opts.output)
		}
		return nil
	}

	repl.Render(cmd.OutOrStdout(), result)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d rows × %d cols)\n", result.NRows(), result.NCols())
	return nil
}

// preload reads name=path specs concurrently and binds each table.
func preload(ctx context.Context, eng *engine.Engine, specs []string) error {
	type binding struct {
		name, path string
	}
	bindings := make([]binding, len(specs))
	for i, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("invalid --preload %q: expected name=path", spec)
		}
		bindings[i] = binding{name: name, path: path}
	}

	tables := make([]*table.Table, len(bindings))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bindings {
		g.Go(func() error {
			t, err := eng.ReadTable(gctx, b.path)
			if err != nil {
				return fmt.Errorf("preload %s: %w", b.name, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, b := range bindings {
		eng.Bind(b.name, tables[i])
	}
	return nil
}

func startREPL(cmd *cobra.Command, eng *engine.Engine, cfg *config.Config) error {
	r := repl.New(eng,
		repl.WithPrompt(cfg.Prompt, cfg.ContinuationPrompt),
		repl.WithPreviewRows(cfg.PreviewRows),
		repl.WithHistoryFile(cfg.HistoryFile),
	)
	if cmd.InOrStdin() == os.Stdin && readline.DefaultIsTerminal() {
		return r.Run()
	}
	r.Start(cmd.InOrStdin(), cmd.OutOrStdout())
	return nil
}
