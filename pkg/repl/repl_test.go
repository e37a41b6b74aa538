package repl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/system0x7/dt/internal/testutil"
	"github.com/system0x7/dt/pkg/engine"
	"github.com/system0x7/dt/pkg/resolve"
	"github.com/system0x7/dt/pkg/table"
)

func newREPL(t *testing.T, opts ...Option) *REPL {
	t.Helper()
	eng := engine.New(
		engine.WithLogger(testutil.NewTestLogger(t)),
		engine.WithTables(map[string]*table.Table{"sales": testutil.MakeSalesTable()}),
	)
	return New(eng, opts...)
}

func run(r *REPL, input string) string {
	var out bytes.Buffer
	r.Start(strings.NewReader(input), &out)
	return out.String()
}

func TestREPL_New(t *testing.T) {
	r := newREPL(t)
	assert.Equal(t, DefaultPrompt, r.prompt)
	assert.Equal(t, DefaultContinuationPrompt, r.contPrompt)
	assert.Equal(t, DefaultPreviewRows, r.previewRows)

	r = newREPL(t, WithPrompt("dt> ", ""), WithPreviewRows(3), WithHistoryFile("/tmp/h"))
	assert.Equal(t, "dt> ", r.prompt)
	assert.Equal(t, DefaultContinuationPrompt, r.contPrompt)
	assert.Equal(t, 3, r.previewRows)
	assert.Equal(t, "/tmp/h", r.historyFile)
}

func TestREPL_Assignment(t *testing.T) {
	out := run(newREPL(t), "top = sales | filter(quantity > 10)\n")
	assert.Contains(t, out, "Stored: top (2 rows × 3 cols)")
	assert.Contains(t, out, "[Table: 2 rows × 3 cols]")
	assert.Contains(t, out, "category")
	assert.Contains(t, out, "20.0")
}

func TestREPL_PreviewLimit(t *testing.T) {
	out := run(newREPL(t, WithPreviewRows(2)), "sales\n")
	assert.Contains(t, out, "[Table: 5 rows × 3 cols]")
	assert.Contains(t, out, "... 3 more rows")
}

func TestREPL_Continuation(t *testing.T) {
	out := run(newREPL(t), "sales |\nselect(category) |\ntake(1)\n.history\n")
	assert.Contains(t, out, DefaultContinuationPrompt)
	assert.Contains(t, out, "[Table: 1 rows × 1 cols]")
	assert.Contains(t, out, "1. sales | select(category) | take(1)  <- current")
}

func TestREPL_UndoRedo(t *testing.T) {
	r := newREPL(t)
	out := run(r, "a = sales | take(1)\nb = sales | take(2)\n.undo\n.redo 5\n.redo\n.undo x\n")
	assert.Contains(t, out, "Undid 1 step(s)")
	assert.Contains(t, out, "Redid 1 step(s)")
	assert.Contains(t, out, "Nothing to redo")
	assert.Contains(t, out, "Usage: .undo [n]")
	assert.Equal(t, 2, r.engine.Current().NRows())
}

func TestREPL_Schema(t *testing.T) {
	out := run(newREPL(t), ".schema\n.schema sales\n.schema nope\n")
	assert.Contains(t, out, "No table loaded")
	assert.Contains(t, out, "quantity")
	assert.Contains(t, out, "Integer")
	assert.Contains(t, out, "5 rows × 3 columns")
	assert.Contains(t, out, "Use .vars to see all variables.")
}

func TestREPL_VarsAndClear(t *testing.T) {
	out := run(newREPL(t), "x = sales | take(2)\n.vars\n.clear\n.vars\n.history\n")
	assert.Contains(t, out, "sales -> 5 rows × 3 cols")
	assert.Contains(t, out, "x -> 2 rows × 3 cols")
	assert.Contains(t, out, "Cleared variables and history")
	assert.Contains(t, out, "(no variables stored)")
	assert.Contains(t, out, "(no operations yet)")
}

func TestREPL_Errors(t *testing.T) {
	out := run(newREPL(t), "sales | select(nope)\nsales | select(\nmissing | take(1)\n")
	assert.Contains(t, out, "Use .schema to see all columns.")
	assert.Contains(t, out, "Syntax error:")
	assert.Contains(t, out, "See examples with .help")
	assert.Contains(t, out, "Use .vars to see all variables.")
}

func TestREPL_Commands(t *testing.T) {
	out := run(newREPL(t), ".help\n.bogus\n.exit\nsales\n")
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "Unknown command: .bogus")
	assert.Contains(t, out, "Goodbye!")
	// input after .exit is not evaluated
	assert.NotContains(t, out, "[Table:")
}

func TestREPL_PendingAtEOF(t *testing.T) {
	out := run(newREPL(t), "sales | take(1) |")
	assert.Contains(t, out, "Error: Syntax error:")
}

func TestFriendly(t *testing.T) {
	err := fmt.Errorf("select: %w", fmt.Errorf("%w 'x'", resolve.ErrUnknownColumn))
	assert.Equal(t, "select: unknown column 'x'\nUse .schema to see all columns.", Friendly(err))
	assert.Equal(t, "boom", Friendly(errors.New("boom")))
}

func TestCompleter(t *testing.T) {
	r := newREPL(t)
	c := r.completer()
	require.NotNil(t, c)

	got, _ := c.Do([]rune(".sch"), 4)
	require.Len(t, got, 1)
	assert.Equal(t, "ema ", string(got[0]))

	got, _ = c.Do([]rune(".schema sa"), 10)
	require.Len(t, got, 1)
	assert.Equal(t, "les ", string(got[0]))
}
