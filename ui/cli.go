package ui

import (
	"bufio"
	"calcpad/core/engine"
	"calcpad/core/history"
	"calcpad/core/symbols"
	"calcpad/logger"
	"calcpad/models"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.design/x/clipboard"
)

// ErrUnknownKey - слово не соответствует ни одной кнопке
var ErrUnknownKey = errors.New("unknown key")

// KeyPress - одно нажатие кнопки
type KeyPress struct {
	Category symbols.Category
	ID       string
}

// keyAliases - сокращения, которых нет среди глифов
var keyAliases = map[string]KeyPress{
	"=":    {symbols.UnaryFunction, symbols.Equals},
	"C":    {symbols.UnaryFunction, symbols.Clear},
	"AC":   {symbols.UnaryFunction, symbols.Clear},
	"CE":   {symbols.UnaryFunction, symbols.Clear},
	"±":    {symbols.UnaryFunction, symbols.Sign},
	"+/-":  {symbols.UnaryFunction, symbols.Sign},
	"×":    {symbols.BinaryOperator, "MULTIPLY"},
	"X":    {symbols.BinaryOperator, "MULTIPLY"},
	"÷":    {symbols.BinaryOperator, "DIVIDE"},
	"−":    {symbols.BinaryOperator, "MINUS"},
	"√":    {symbols.UnaryFunction, "SQRT"},
	"∛":    {symbols.UnaryFunction, "CBRT"},
	"²":    {symbols.UnaryFunction, "X_SQUARED"},
	"³":    {symbols.UnaryFunction, "X_CUBED"},
	"X!":   {symbols.UnaryFunction, "X_FACTORIAL"},
	"X²":   {symbols.UnaryFunction, "X_SQUARED"},
	"X³":   {symbols.UnaryFunction, "X_CUBED"},
	"π":    {symbols.Constant, "PI"},
	"ROOT": {symbols.UnaryFunction, "SQRT"},
}

var (
	resultColor = color.New(color.FgGreen, color.Bold)
	errorColor  = color.New(color.FgRed)
	infoColor   = color.New(color.FgCyan)
)

// ConsoleInterface - клавиатура калькулятора в терминале
type ConsoleInterface struct {
	engine  *engine.Engine
	history *history.HistoryManager
	in      *bufio.Scanner
	out     io.Writer
	log     *logger.Logger
	lastErr error
	mode    symbols.Mode

	// copyText - запись в буфер обмена, подменяется в тестах
	copyText func(string) error
}

// NewConsoleInterface создает консольный интерфейс
func NewConsoleInterface(h *history.HistoryManager, in io.Reader, out io.Writer) *ConsoleInterface {
	c := &ConsoleInterface{
		history:  h,
		in:       bufio.NewScanner(in),
		out:      out,
		log:      logger.Global().WithPrefix("cli"),
		mode:     symbols.Basic,
		copyText: systemClipboard,
	}
	c.engine = engine.NewEngine(c.saveHistory, func(err error) { c.lastErr = err })
	return c
}

// SetKeypadMode - раскладка для команды /keys
func (c *ConsoleInterface) SetKeypadMode(mode symbols.Mode) {
	c.mode = mode
}

// Run запускает главный цикл интерфейса
func (c *ConsoleInterface) Run() error {
	c.showWelcome()

	for {
		fmt.Fprint(c.out, "calc> ")

		if !c.in.Scan() {
			break
		}

		input := strings.TrimSpace(c.in.Text())
		if input == "" {
			continue
		}

		// Проверяем команды выхода
		if input == "/quit" || input == "/exit" {
			break
		}

		c.processLine(input)
	}

	fmt.Fprintln(c.out, "Bye!")
	return c.in.Err()
}

// Eval набирает выражение на клавиатуре и нажимает "="
func (c *ConsoleInterface) Eval(expression string) (string, error) {
	keys, err := ParseKeys(expression)
	if err != nil {
		return "", err
	}

	c.lastErr = nil
	for _, k := range keys {
		c.engine.Input(k.Category, k.ID)
	}
	c.engine.Input(symbols.UnaryFunction, symbols.Equals)

	if c.lastErr != nil {
		return "", c.lastErr
	}
	return c.engine.Text(), nil
}

// ParseKeys разбирает строку на нажатия: слова через пробел, каждое слово -
// идентификатор кнопки, сокращение или цепочка глифов вроде "2+3*4".
func ParseKeys(line string) ([]KeyPress, error) {
	var keys []KeyPress
	for _, word := range strings.Fields(line) {
		if k, ok := parseWord(word); ok {
			keys = append(keys, k)
			continue
		}

		glyphs, err := parseGlyphs(word)
		if err != nil {
			return nil, err
		}
		keys = append(keys, glyphs...)
	}
	return keys, nil
}

func parseWord(word string) (KeyPress, bool) {
	upper := strings.ToUpper(word)
	if k, ok := keyAliases[upper]; ok {
		return k, true
	}

	for _, category := range []symbols.Category{symbols.Number, symbols.BinaryOperator, symbols.Grouping, symbols.UnaryFunction, symbols.Constant} {
		if _, ok := symbols.Lookup(category, upper); ok {
			return KeyPress{category, upper}, true
		}
	}

	if category, id, ok := symbols.Reverse(word); ok {
		return KeyPress{category, id}, true
	}
	return KeyPress{}, false
}

// parseGlyphs - жадный разбор слова на глифы, самые длинные первыми
func parseGlyphs(word string) ([]KeyPress, error) {
	var keys []KeyPress
	runes := []rune(word)

	for i := 0; i < len(runes); {
		matched := false
		for end := len(runes); end > i; end-- {
			if k, ok := parseWord(string(runes[i:end])); ok {
				keys = append(keys, k)
				i = end
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownKey, string(runes[i]), word)
		}
	}
	return keys, nil
}

func (c *ConsoleInterface) processLine(input string) {
	if strings.HasPrefix(input, "/") {
		c.processCommand(input)
		return
	}

	keys, err := ParseKeys(input)
	if err != nil {
		errorColor.Fprintf(c.out, "%v\n", err)
		return
	}

	c.lastErr = nil
	for _, k := range keys {
		c.engine.Input(k.Category, k.ID)
	}

	if c.lastErr != nil {
		c.log.Debug("%v", c.lastErr)
		errorColor.Fprintln(c.out, "Invalid expression")
	}
	c.showDisplay()
}

func (c *ConsoleInterface) processCommand(input string) {
	fields := strings.Fields(input)

	switch fields[0] {
	case "/history":
		c.showHistory()
	case "/delete", "/del":
		index, ok := c.indexArg(fields)
		if !ok {
			return
		}
		if err := c.history.Delete(index); err != nil {
			errorColor.Fprintf(c.out, "%v\n", err)
			return
		}
		infoColor.Fprintf(c.out, "Deleted entry %d\n", index)
	case "/restore":
		index, ok := c.indexArg(fields)
		if !ok {
			return
		}
		entry, err := c.history.Get(index)
		if err == nil {
			err = c.engine.Restore(entry.Result)
		}
		if err != nil {
			errorColor.Fprintf(c.out, "%v\n", err)
			return
		}
		c.showDisplay()
	case "/clear-history":
		if err := c.history.Clear(); err != nil {
			errorColor.Fprintf(c.out, "%v\n", err)
			return
		}
		infoColor.Fprintln(c.out, "History cleared")
	case "/copy":
		if err := c.copyText(c.engine.Text()); err != nil {
			errorColor.Fprintf(c.out, "%v\n", err)
			return
		}
		infoColor.Fprintf(c.out, "Copied %s\n", c.engine.Text())
	case "/search":
		if len(fields) < 2 {
			errorColor.Fprintln(c.out, "Usage: /search TEXT")
			return
		}
		c.search(strings.Join(fields[1:], " "))
	case "/keys":
		c.showKeys()
	case "/help":
		c.showHelp()
	default:
		errorColor.Fprintf(c.out, "Unknown command %s, try /help\n", fields[0])
	}
}

func (c *ConsoleInterface) indexArg(fields []string) (int, bool) {
	if len(fields) != 2 {
		errorColor.Fprintf(c.out, "Usage: %s N\n", fields[0])
		return 0, false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		errorColor.Fprintf(c.out, "Invalid index %q\n", fields[1])
		return 0, false
	}
	return index, true
}

func (c *ConsoleInterface) saveHistory(entry models.HistoryEntry) {
	if err := c.history.Add(entry); err != nil {
		c.log.Error("failed to save history entry: %v", err)
	}
}

func (c *ConsoleInterface) showDisplay() {
	clearLabel := fmt.Sprintf("[%s]", c.engine.ClearMode())
	if c.engine.Evaluated() {
		resultColor.Fprintf(c.out, "= %s", c.engine.Text())
	} else {
		fmt.Fprintf(c.out, "  %s", c.engine.Text())
	}
	infoColor.Fprintf(c.out, " %s\n", clearLabel)
}

// showHistory - история, новые записи сверху, с индексами для /delete и /restore
func (c *ConsoleInterface) showHistory() {
	entries, err := c.history.List()
	if err != nil {
		errorColor.Fprintf(c.out, "%v\n", err)
		return
	}
	if len(entries) == 0 {
		infoColor.Fprintln(c.out, "History is empty")
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		fmt.Fprintf(c.out, "  %3d. %s = ", i, entries[i].Expression)
		resultColor.Fprintln(c.out, entries[i].Result)
	}
}

// search - записи истории, содержащие text в выражении или результате
func (c *ConsoleInterface) search(text string) {
	entries, err := c.history.Search(text)
	if err != nil {
		errorColor.Fprintf(c.out, "%v\n", err)
		return
	}
	if len(entries) == 0 {
		infoColor.Fprintf(c.out, "Nothing matches %q\n", text)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "  %s = ", e.Expression)
		resultColor.Fprintln(c.out, e.Result)
	}
}

// showKeys печатает раскладку рядами по четыре кнопки
func (c *ConsoleInterface) showKeys() {
	keys := symbols.Keypad(c.mode)
	for i, k := range keys {
		fmt.Fprintf(c.out, "%5s %-12s", k.Label, k.Value)
		if i%4 == 3 || i == len(keys)-1 {
			fmt.Fprintln(c.out)
		}
	}
}

func (c *ConsoleInterface) showWelcome() {
	infoColor.Fprintln(c.out, "calcpad: keypad calculator")
	fmt.Fprintln(c.out, "Type keys separated by spaces (7 PLUS 3 =) or glyphs (2+3*4 =). /help for more.")

	// последние вычисления
	if recent, err := c.history.Recent(5); err == nil && len(recent) > 0 {
		if total, err := c.history.Count(); err == nil {
			infoColor.Fprintf(c.out, "%d entries in history\n", total)
		}
		infoColor.Fprintln(c.out, "Recent:")
		for _, e := range recent {
			fmt.Fprintf(c.out, "  %s = %s\n", e.Expression, e.Result)
		}
	}
	c.showDisplay()
}

func (c *ConsoleInterface) showHelp() {
	fmt.Fprintln(c.out, "Keys:")
	fmt.Fprintln(c.out, "  digits, . + - * / % ( ) !     glyphs, may be chained: (2+3)!")
	fmt.Fprintln(c.out, "  sin cos tan sqrt cbrt pi       functions and constants")
	fmt.Fprintln(c.out, "  = C ± ^2 ^3                    equals, clear/backspace, sign, powers")
	fmt.Fprintln(c.out, "Key identifiers:")
	for _, category := range []symbols.Category{symbols.Number, symbols.BinaryOperator, symbols.Grouping, symbols.UnaryFunction, symbols.Constant} {
		fmt.Fprintf(c.out, "  %-16s %s\n", category, strings.Join(symbols.Identifiers(category), " "))
	}
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  /history          show history, newest first")
	fmt.Fprintln(c.out, "  /delete N         delete history entry N")
	fmt.Fprintln(c.out, "  /restore N        load the result of entry N")
	fmt.Fprintln(c.out, "  /search TEXT      find history entries containing TEXT")
	fmt.Fprintln(c.out, "  /clear-history    delete all history")
	fmt.Fprintln(c.out, "  /copy             copy the display to the clipboard")
	fmt.Fprintln(c.out, "  /keys             show the keypad layout")
	fmt.Fprintln(c.out, "  /quit             exit")
}

func systemClipboard(text string) error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
