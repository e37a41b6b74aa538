// Package repl is the interactive shell for dt. Run drives it from a
// terminal through readline; Start drives the same logic from any reader.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/system0x7/dt/pkg/engine"
	"github.com/system0x7/dt/pkg/session"
)

const (
	DefaultPrompt             = ">> "
	DefaultContinuationPrompt = ".. "
	DefaultPreviewRows        = 10
)

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt sets the primary and continuation prompts.
func WithPrompt(prompt, continuation string) Option {
	return func(r *REPL) {
		if prompt != "" {
			r.prompt = prompt
		}
		if continuation != "" {
			r.contPrompt = continuation
		}
	}
}

// WithPreviewRows sets how many rows a result preview shows.
func WithPreviewRows(n int) Option {
	return func(r *REPL) {
		if n > 0 {
			r.previewRows = n
		}
	}
}

// WithHistoryFile persists line editing history for Run. Empty disables it.
func WithHistoryFile(path string) Option {
	return func(r *REPL) {
		r.historyFile = path
	}
}

// REPL provides an interactive Read-Eval-Print Loop over an engine.
type REPL struct {
	engine      *engine.Engine
	prompt      string
	contPrompt  string
	previewRows int
	historyFile string

	pending strings.Builder
}

// New creates a REPL evaluating through eng.
func New(eng *engine.Engine, opts ...Option) *REPL {
	r := &REPL{
		engine:      eng,
		prompt:      DefaultPrompt,
		contPrompt:  DefaultContinuationPrompt,
		previewRows: DefaultPreviewRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts an interactive session on the terminal.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt,
		HistoryFile:     r.historyFile,
		AutoComplete:    r.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := rl.Stdout()
	r.banner(out)

	for {
		rl.SetPrompt(r.currentPrompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.pending.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}
		if r.handleLine(line, out) {
			return nil
		}
	}
}

// Start runs the loop over in until it is exhausted or .exit is read.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	r.banner(out)

	for {
		_, _ = fmt.Fprint(out, r.currentPrompt())
		if !scanner.Scan() {
			break
		}
		if r.handleLine(scanner.Text(), out) {
			return
		}
	}
	if r.pending.Len() > 0 {
		r.eval(r.takePending(), out)
	}
	_, _ = fmt.Fprintln(out, "Goodbye!")
}

func (r *REPL) banner(out io.Writer) {
	_, _ = fmt.Fprintln(out, "dt - data transform REPL")
	_, _ = fmt.Fprintln(out, "Type .help for help, .exit to quit")
	_, _ = fmt.Fprintln(out, "Use .undo/.redo to step through operations")
	_, _ = fmt.Fprintln(out)
}

func (r *REPL) currentPrompt() string {
	if r.pending.Len() > 0 {
		return r.contPrompt
	}
	return r.prompt
}

// handleLine processes one input line and reports whether the session
// should end. A line ending in '|' continues on the next one.
func (r *REPL) handleLine(line string, out io.Writer) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" && r.pending.Len() == 0 {
		return false
	}

	if r.pending.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return r.handleCommand(trimmed, out)
	}

	if r.pending.Len() > 0 {
		r.pending.WriteByte(' ')
	}
	r.pending.WriteString(trimmed)
	if strings.HasSuffix(trimmed, "|") {
		return false
	}

	r.eval(r.takePending(), out)
	return false
}

func (r *REPL) takePending() string {
	s := r.pending.String()
	r.pending.Reset()
	return s
}

func (r *REPL) eval(input string, out io.Writer) {
	stmts, err := engine.Statements(input)
	if err != nil {
		r.printError(out, err)
		return
	}
	if len(stmts) == 0 {
		return
	}

	result, err := r.engine.Evaluate(input)
	if err != nil {
		r.printError(out, err)
		return
	}

	if last := stmts[len(stmts)-1]; last.Target != "" {
		_, _ = fmt.Fprintf(out, "Stored: %s (%d rows × %d cols)\n", last.Target, result.NRows(), result.NCols())
	}
	Preview(out, result, r.previewRows)
}

func (r *REPL) printError(out io.Writer, err error) {
	_, _ = fmt.Fprintf(out, "Error: %s\n", Friendly(err))
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".exit", ".quit":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true

	case ".help":
		printHelp(out)

	case ".schema":
		name := session.Current
		if len(parts) > 1 {
			name = parts[1]
		}
		r.showSchema(out, name)

	case ".undo", ".redo":
		n, ok := steps(parts)
		if !ok {
			_, _ = fmt.Fprintf(out, "Usage: %s [n]\n", command)
			return false
		}
		r.move(out, command == ".undo", n)

	case ".history":
		r.showHistory(out)

	case ".vars", ".variables":
		r.showVariables(out)

	case ".clear":
		r.engine.Clear()
		_, _ = fmt.Fprintln(out, "Cleared variables and history")

	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type .help for help.\n", parts[0])
	}
	return false
}

// steps parses the optional step count of .undo and .redo.
func steps(parts []string) (int, bool) {
	if len(parts) < 2 {
		return 1, true
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (r *REPL) move(out io.Writer, undo bool, n int) {
	var moved int
	var err error
	verb := "Undid"
	if undo {
		moved, err = r.engine.Undo(n)
	} else {
		verb = "Redid"
		moved, err = r.engine.Redo(n)
	}
	if err != nil {
		_, _ = fmt.Fprintf(out, "%s\n", capitalize(err.Error()))
		return
	}

	_, _ = fmt.Fprintf(out, "%s %d step(s)\n", verb, moved)
	if cur := r.engine.Current(); cur != nil {
		Preview(out, cur, r.previewRows)
	}
}

func (r *REPL) showSchema(out io.Writer, name string) {
	s, err := r.engine.DescribeSchema(name)
	if err != nil {
		if name == session.Current {
			_, _ = fmt.Fprintln(out, "No table loaded. Use read() to load data or a variable name.")
			return
		}
		r.printError(out, err)
		return
	}
	t, _ := r.engine.Session().Table(name)
	RenderSchema(out, s, t.NRows())
}

func (r *REPL) showHistory(out io.Writer) {
	entries, cursor := r.engine.Session().History()
	_, _ = fmt.Fprintln(out, "Operation History:")
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "  (no operations yet)")
		return
	}
	for i, e := range entries {
		marker := ""
		if i == cursor-1 {
			marker = "  <- current"
		}
		_, _ = fmt.Fprintf(out, "  %d. %s%s\n", i+1, e.Command, marker)
	}
}

func (r *REPL) showVariables(out io.Writer) {
	vars := r.engine.ListVariables()
	_, _ = fmt.Fprintln(out, "Stored Variables:")
	if len(vars) == 0 {
		_, _ = fmt.Fprintln(out, "  (no variables stored)")
		return
	}
	for _, v := range vars {
		_, _ = fmt.Fprintf(out, "  %s -> %d rows × %d cols\n", v.Name, v.Rows, v.Schema.Len())
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var commands = []string{".help", ".exit", ".quit", ".schema", ".undo", ".redo", ".history", ".vars", ".clear"}

var stageNames = []string{
	"read(", "write(", "select(", "filter(", "mutate(", "rename(", "rename_all(",
	"sort(", "take(", "skip(", "slice(", "drop(", "distinct(",
}

// completer completes dot commands, stage names and, after .schema,
// variable names.
func (r *REPL) completer() *readline.PrefixCompleter {
	vars := func(string) []string {
		var names []string
		for _, v := range r.engine.ListVariables() {
			names = append(names, v.Name)
		}
		return names
	}

	var items []readline.PrefixCompleterInterface
	for _, c := range commands {
		if c == ".schema" {
			items = append(items, readline.PcItem(c, readline.PcItemDynamic(vars)))
			continue
		}
		items = append(items, readline.PcItem(c))
	}
	for _, s := range stageNames {
		items = append(items, readline.PcItem(s))
	}
	return readline.NewPrefixCompleter(items...)
}

func printHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .exit / .quit   Exit the REPL
  .schema [var]   Show the schema of the current table or a variable
  .undo [n]       Undo the last n operations (default 1)
  .redo [n]       Redo n operations (default 1)
  .history        Show operation history
  .vars           Show stored variables
  .clear          Clear variables and history

Multi-line statements:
  Lines ending with | continue on the next line:
    >> data = read('data.csv') |
    .. filter(price > 100) |
    .. select(product, quantity)

Examples:
  data = read('data.csv')
  data | select($1, $2) | filter(age > 25)
  data | select(re('^Sales_'), types(Number))
  data | rename(old_name -> new_name) | rename_all(lower)
  data | mutate(id = split(code, '-')[0], label = lookup(labels, id, on='id', return='name'))
  _ | sort(total desc) | take(10) | write('top.csv')
`
	_, _ = fmt.Fprintln(w, help)
}
