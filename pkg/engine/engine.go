// Package engine is the Go embedding API for dt. It ties the front end,
// the executor and a session together: pass a program, get a table.
//
// Basic usage:
//
//	eng := engine.New()
//	result, err := eng.Evaluate(`
//	    sales = read('sales.csv')
//	    sales | filter(quantity > 10) | select(price, quantity)
//	`)
//
// With pre-loaded tables:
//
//	eng := engine.New(
//	    engine.WithTables(map[string]*table.Table{"sales": t}),
//	    engine.WithSandbox("/data"),
//	)
//	result, err := eng.Evaluate(`sales | sort(price desc) | take(5)`)
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/system0x7/dt/pkg/compiler"
	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/loader"
	"github.com/system0x7/dt/pkg/optimizer"
	"github.com/system0x7/dt/pkg/resolve"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/session"
	"github.com/system0x7/dt/pkg/table"
	"github.com/system0x7/dt/pkg/vm"
)

// Common errors
var (
	ErrTimeout          = errors.New("execution timeout exceeded")
	ErrFileAccessDenied = vm.ErrFileAccessDenied
	ErrNoCurrentTable   = errors.New("no current table; start the pipeline with read('file') or a variable name")
)

// StatementError reports which statement of a multi-statement program
// failed. Statements before it have been committed.
type StatementError struct {
	Index int // zero-based
	Text  string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Options configures an Engine.
type Options struct {
	// Tables are bound as variables before the first statement runs.
	Tables map[string]*table.Table

	// Timeout bounds each Evaluate call. Zero means no timeout.
	Timeout time.Duration

	// HistoryLimit bounds the undo history. Zero uses the session default.
	HistoryLimit int

	// Optimize enables plan rewrites before execution.
	Optimize bool

	// Sandbox restricts read() and write() to AllowedPaths.
	Sandbox      bool
	AllowedPaths []string

	// Stats collects execution statistics for each statement.
	Stats bool

	Logger *slog.Logger

	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithTables binds pre-loaded tables as variables.
func WithTables(tables map[string]*table.Table) Option {
	return func(o *Options) {
		o.Tables = tables
	}
}

// WithTimeout sets a per-evaluation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithHistoryLimit bounds the undo history.
func WithHistoryLimit(n int) Option {
	return func(o *Options) {
		o.HistoryLimit = n
	}
}

// WithOptimizations toggles plan rewrites.
func WithOptimizations(enabled bool) Option {
	return func(o *Options) {
		o.Optimize = enabled
	}
}

// WithSandbox enables sandbox mode. Files may only be read or written
// under the given paths.
func WithSandbox(allowedPaths ...string) Option {
	return func(o *Options) {
		o.Sandbox = true
		o.AllowedPaths = allowedPaths
	}
}

// WithStats enables execution statistics.
func WithStats() Option {
	return func(o *Options) {
		o.Stats = true
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// Engine evaluates programs against one session. It is not safe for
// concurrent use, except for ReadTable.
type Engine struct {
	opts      Options
	session   *session.Session
	optimizer *optimizer.Optimizer
	logger    *slog.Logger
	stats     *vm.ExecutionStats
}

// New creates an engine with an empty session.
func New(opts ...Option) *Engine {
	options := Options{
		Context:  context.Background(),
		Optimize: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Context == nil {
		options.Context = context.Background()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		opts:   options,
		logger: logger,
		session: session.New(
			session.WithHistoryLimit(options.HistoryLimit),
			session.WithLogger(logger),
		),
	}
	if options.Optimize {
		e.optimizer = optimizer.New(optimizer.WithAllOptimizations())
	}
	for name, t := range options.Tables {
		e.session.Bind(name, t)
	}
	return e
}

// Session exposes the underlying session.
func (e *Engine) Session() *session.Session { return e.session }

// Evaluate parses and runs a program. Statements run in order and each one
// commits to the session only when it fully succeeds. It returns the table
// produced by the last statement, or the current table when the program is
// empty.
func (e *Engine) Evaluate(src string) (*table.Table, error) {
	prog, err := dsl.Parse(src)
	if err != nil {
		return nil, err
	}

	ctx := e.opts.Context
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	result := e.session.Current()
	for i, stmt := range prog.Statements {
		start := time.Now()
		t, err := e.run(ctx, stmt)
		if err != nil {
			err = mapError(err)
			if len(prog.Statements) > 1 {
				err = &StatementError{Index: i, Text: stmt.Text, Err: err}
			}
			return nil, err
		}

		if stmt.Target != "" {
			e.session.Assign(stmt.Target, stmt.Text, t)
		} else {
			e.session.Record(stmt.Text, t)
		}
		e.logger.Debug("evaluated statement",
			"index", i,
			"target", stmt.Target,
			"rows", t.NRows(),
			"cols", t.NCols(),
			"duration", time.Since(start),
		)
		result = t
	}
	return result, nil
}

// EvaluateFile reads a script and evaluates it.
func (e *Engine) EvaluateFile(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(string(data))
}

// StatementInfo describes one statement of a program.
type StatementInfo struct {
	Target string // empty for a bare pipeline
	Text   string
}

// Statements parses src and describes each statement. Callers use it to
// report progress before evaluating.
func Statements(src string) ([]StatementInfo, error) {
	prog, err := dsl.Parse(src)
	if err != nil {
		return nil, err
	}
	out := make([]StatementInfo, len(prog.Statements))
	for i, stmt := range prog.Statements {
		out[i] = StatementInfo{Target: stmt.Target, Text: stmt.Text}
	}
	return out, nil
}

func (e *Engine) run(ctx context.Context, stmt *dsl.Statement) (*table.Table, error) {
	machine := e.newVM(ctx)

	in, err := e.source(ctx, machine, stmt.Pipeline.Source)
	if err != nil {
		return nil, err
	}

	stages, out, err := resolve.New(e.session).Pipeline(stmt.Pipeline.Stages, in.Schema())
	if err != nil {
		return nil, err
	}
	p, err := compiler.Compile(stages, out)
	if err != nil {
		return nil, err
	}
	if e.optimizer != nil {
		p = e.optimizer.Optimize(p)
	}

	t, err := machine.Execute(p, in)
	if e.opts.Stats {
		e.stats = machine.Stats()
	}
	return t, err
}

func (e *Engine) newVM(ctx context.Context) *vm.VM {
	machine := vm.NewVM(e.session)
	machine.SetContext(ctx)
	machine.SetLogger(e.logger)
	machine.SetSandbox(e.opts.Sandbox, e.opts.AllowedPaths)
	if e.opts.Stats {
		machine.EnableStats()
	}
	return machine
}

// source produces the table a pipeline starts from.
func (e *Engine) source(ctx context.Context, machine *vm.VM, src dsl.Source) (*table.Table, error) {
	switch s := src.(type) {
	case *dsl.ReadStage:
		if err := machine.CheckPath(s.Path); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		t, err := loader.Read(ctx, s.Path, e.readOptions(s))
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return t, nil
	case *dsl.VarSource:
		t, ok := e.session.Table(s.Var)
		if ok {
			return t, nil
		}
		if s.Var == session.Current {
			return nil, ErrNoCurrentTable
		}
		return nil, fmt.Errorf("%w '%s'", resolve.ErrUnknownVariable, s.Var)
	case nil:
		if t := e.session.Current(); t != nil {
			return t, nil
		}
		return nil, ErrNoCurrentTable
	}
	return nil, fmt.Errorf("unsupported source %T", src)
}

func (e *Engine) readOptions(s *dsl.ReadStage) loader.ReadOptions {
	return loader.ReadOptions{
		Format:         s.Format,
		Delimiter:      s.Delimiter,
		Header:         s.Header,
		SkipRows:       s.SkipRows,
		TrimWhitespace: s.TrimWhitespace,
		Logger:         e.logger,
	}
}

// ReadTable reads a file with detected options, honoring the sandbox. It
// does not touch the session and may be called concurrently.
func (e *Engine) ReadTable(ctx context.Context, path string) (*table.Table, error) {
	machine := e.newVM(ctx)
	if err := machine.CheckPath(path); err != nil {
		return nil, err
	}
	t, err := loader.Read(ctx, path, loader.ReadOptions{Logger: e.logger})
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// WriteTable writes t to path with the format chosen by extension,
// honoring the sandbox.
func (e *Engine) WriteTable(ctx context.Context, path string, t *table.Table) error {
	machine := e.newVM(ctx)
	if err := machine.CheckPath(path); err != nil {
		return err
	}
	return loader.Write(ctx, path, t, loader.WriteOptions{Logger: e.logger})
}

// Bind sets a variable without recording history.
func (e *Engine) Bind(name string, t *table.Table) {
	e.session.Bind(name, t)
}

// DescribeSchema returns the schema of a variable, or of the current table
// for "_".
func (e *Engine) DescribeSchema(name string) (schema.Schema, error) {
	s, ok := e.session.Schema(name)
	if ok {
		return s, nil
	}
	if name == session.Current {
		return schema.Schema{}, ErrNoCurrentTable
	}
	return schema.Schema{}, fmt.Errorf("%w '%s'", resolve.ErrUnknownVariable, name)
}

// Current returns the current table, or nil.
func (e *Engine) Current() *table.Table { return e.session.Current() }

// ListVariables lists the bound variables by name.
func (e *Engine) ListVariables() []session.VarInfo { return e.session.Vars() }

// Undo steps the current table back n entries.
func (e *Engine) Undo(n int) (int, error) { return e.session.Undo(n) }

// Redo steps the current table forward n entries.
func (e *Engine) Redo(n int) (int, error) { return e.session.Redo(n) }

// History returns the text of the applied statements, oldest first.
func (e *Engine) History() []string {
	entries, cursor := e.session.History()
	out := make([]string, 0, cursor)
	for _, entry := range entries[:cursor] {
		out = append(out, entry.Command)
	}
	return out
}

// Clear drops every variable and the whole history.
func (e *Engine) Clear() { e.session.Clear() }

// Stats returns the statistics of the last executed statement, or nil when
// stats are disabled.
func (e *Engine) Stats() *vm.ExecutionStats { return e.stats }

// mapError maps executor errors to engine errors.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
