package ui

import (
	"bytes"
	"calcpad/core/evaluator"
	"calcpad/core/history"
	"calcpad/core/persistence"
	"calcpad/core/symbols"
	"calcpad/models"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, input string) (*ConsoleInterface, *history.HistoryManager, *bytes.Buffer) {
	t.Helper()
	h := history.NewHistoryManager(persistence.NewMemoryStore())
	var out bytes.Buffer
	c := NewConsoleInterface(h, strings.NewReader(input), &out)
	c.copyText = func(string) error { return errors.New("no clipboard in tests") }
	return c, h, &out
}

func TestParseKeys(t *testing.T) {
	tests := []struct {
		line string
		want []KeyPress
	}{
		{"7", []KeyPress{{symbols.Number, "SEVEN"}}},
		{"SEVEN plus three", []KeyPress{{symbols.Number, "SEVEN"}, {symbols.BinaryOperator, "PLUS"}, {symbols.Number, "THREE"}}},
		{"2+3*4", []KeyPress{
			{symbols.Number, "TWO"}, {symbols.BinaryOperator, "PLUS"}, {symbols.Number, "THREE"},
			{symbols.BinaryOperator, "MULTIPLY"}, {symbols.Number, "FOUR"},
		}},
		{"=", []KeyPress{{symbols.UnaryFunction, symbols.Equals}}},
		{"c", []KeyPress{{symbols.UnaryFunction, symbols.Clear}}},
		{"±", []KeyPress{{symbols.UnaryFunction, symbols.Sign}}},
		{"sin pi", []KeyPress{{symbols.UnaryFunction, "SIN"}, {symbols.Constant, "PI"}}},
		{"(2+3)!", []KeyPress{
			{symbols.Grouping, "LEFT_PAREN"}, {symbols.Number, "TWO"}, {symbols.BinaryOperator, "PLUS"},
			{symbols.Number, "THREE"}, {symbols.Grouping, "RIGHT_PAREN"}, {symbols.UnaryFunction, "X_FACTORIAL"},
		}},
		{"3^2", []KeyPress{{symbols.Number, "THREE"}, {symbols.UnaryFunction, "X_SQUARED"}}},
		{"2π", []KeyPress{{symbols.Number, "TWO"}, {symbols.Constant, "PI"}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseKeys(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeysUnknown(t *testing.T) {
	_, err := ParseKeys("2+e")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestConsoleEval(t *testing.T) {
	c, h, _ := newTestConsole(t, "")

	got, err := c.Eval("2+3*4")
	require.NoError(t, err)
	assert.Equal(t, "14", got)

	got, err = c.Eval("(2+3)!")
	require.NoError(t, err)
	assert.Equal(t, "120", got)

	_, err = c.Eval("1/0")
	assert.ErrorIs(t, err, evaluator.ErrInvalidExpression)

	entries, err := h.List()
	require.NoError(t, err)
	assert.Equal(t, []models.HistoryEntry{
		{Expression: "2+3*4", Result: "14"},
		{Expression: "(2+3)!", Result: "120"},
	}, entries)
}

func TestConsoleRunSession(t *testing.T) {
	input := strings.Join([]string{
		"7 PLUS 3",
		"=",
		"5 + =",
		"/history",
		"/quit",
		"9",
	}, "\n")
	c, h, out := newTestConsole(t, input)

	require.NoError(t, c.Run())

	text := out.String()
	assert.Contains(t, text, "7+3")
	assert.Contains(t, text, "= 10")
	assert.Contains(t, text, "Invalid expression")
	assert.Contains(t, text, "0. 7+3 = ")
	assert.Contains(t, text, "Bye!")
	// ввод после /quit не обрабатывается
	assert.NotContains(t, text, "  9 ")

	count, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConsoleHistoryCommands(t *testing.T) {
	c, h, out := newTestConsole(t, "")
	require.NoError(t, h.Add(models.HistoryEntry{Expression: "1+1", Result: "2"}))
	require.NoError(t, h.Add(models.HistoryEntry{Expression: "6*7", Result: "42"}))

	c.processLine("/restore 1")
	assert.Equal(t, "42", c.engine.Text())
	assert.True(t, c.engine.Evaluated())

	c.processLine("/delete 0")
	entries, err := h.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "6*7", entries[0].Expression)

	c.processLine("/delete 5")
	assert.Contains(t, out.String(), "out of range")

	c.processLine("/delete x")
	assert.Contains(t, out.String(), `Invalid index "x"`)

	c.processLine("/clear-history")
	count, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	c.processLine("/history")
	assert.Contains(t, out.String(), "History is empty")
}

func TestConsoleCopy(t *testing.T) {
	c, _, out := newTestConsole(t, "")

	var copied string
	c.copyText = func(text string) error {
		copied = text
		return nil
	}

	c.processLine("4 2")
	c.processLine("/copy")
	assert.Equal(t, "42", copied)
	assert.Contains(t, out.String(), "Copied 42")
}

func TestConsoleUnknownInput(t *testing.T) {
	c, _, out := newTestConsole(t, "")

	c.processLine("/frobnicate")
	assert.Contains(t, out.String(), "Unknown command /frobnicate")

	c.processLine("hello")
	assert.Contains(t, out.String(), "unknown key")
	assert.Equal(t, "0", c.engine.Text())
}

func TestConsoleKeys(t *testing.T) {
	c, _, out := newTestConsole(t, "")

	c.processLine("/keys")
	assert.Contains(t, out.String(), "SEVEN")
	assert.NotContains(t, out.String(), "X_FACTORIAL")

	c.SetKeypadMode(symbols.Scientific)
	c.processLine("/keys")
	assert.Contains(t, out.String(), "X_FACTORIAL")
}

func TestConsoleHelpListsIdentifiers(t *testing.T) {
	c, _, out := newTestConsole(t, "")
	c.processLine("/help")

	tests := []struct {
		category symbols.Category
		want     []string
	}{
		{symbols.Number, []string{"SEVEN", "DECIMAL"}},
		{symbols.BinaryOperator, []string{"PLUS", "PERCENT"}},
		{symbols.Grouping, []string{"LEFT_PAREN", "RIGHT_PAREN"}},
		{symbols.UnaryFunction, []string{"X_FACTORIAL", symbols.Equals, symbols.Clear, symbols.Sign}},
		{symbols.Constant, []string{"PI"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			var line string
			for _, l := range strings.Split(out.String(), "\n") {
				if strings.HasPrefix(strings.TrimSpace(l), string(tt.category)+" ") {
					line = l
				}
			}
			require.NotEmpty(t, line)
			for _, id := range tt.want {
				assert.Contains(t, line, id)
			}
		})
	}
}

func TestConsoleSearchAndRecent(t *testing.T) {
	c, h, out := newTestConsole(t, "/quit")
	require.NoError(t, h.Add(models.HistoryEntry{Expression: "sin(0)", Result: "0"}))
	require.NoError(t, h.Add(models.HistoryEntry{Expression: "6*7", Result: "42"}))

	require.NoError(t, c.Run())
	assert.Contains(t, out.String(), "2 entries in history")
	assert.Contains(t, out.String(), "Recent:")
	assert.Contains(t, out.String(), "6*7 = 42")

	c.processLine("/search SIN")
	assert.Contains(t, out.String(), "sin(0) = ")

	c.processLine("/search cos")
	assert.Contains(t, out.String(), `Nothing matches "cos"`)
}
