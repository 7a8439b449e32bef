package engine

import (
	"calcpad/core/evaluator"
	"calcpad/core/symbols"
	"calcpad/logger"
	"calcpad/models"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// trailingOperandPattern - число или π в конце дисплея
var trailingOperandPattern = regexp.MustCompile(`(\d+(\.\d+)?|π)$`)

// Engine - состояние дисплея калькулятора. Один владелец, без блокировок:
// вызывающая сторона сама сериализует ввод.
type Engine struct {
	evaluator *evaluator.Evaluator
	log       *logger.Logger

	text      string
	evaluated bool
	clearMode models.ClearMode

	onHistorySave func(models.HistoryEntry)
	onError       func(error)
}

// NewEngine создает движок с дисплеем "0".
// onHistorySave вызывается после каждого вычисления, изменившего значение,
// onError - при ошибке вычисления. Оба могут быть nil.
func NewEngine(onHistorySave func(models.HistoryEntry), onError func(error)) *Engine {
	return &Engine{
		evaluator:     evaluator.NewEvaluator(),
		log:           logger.Global().WithPrefix("engine"),
		text:          "0",
		clearMode:     models.AllClear,
		onHistorySave: onHistorySave,
		onError:       onError,
	}
}

func (e *Engine) Text() string {
	return e.text
}

func (e *Engine) ClearMode() models.ClearMode {
	return e.clearMode
}

func (e *Engine) Evaluated() bool {
	return e.evaluated
}

// Snapshot - текущее состояние для отрисовки
func (e *Engine) Snapshot() models.Display {
	return models.Display{
		Text:      e.text,
		ClearMode: e.clearMode,
		Evaluated: e.evaluated,
	}
}

// Restore загружает результат из истории как только что вычисленное значение
func (e *Engine) Restore(result string) error {
	if _, err := strconv.ParseFloat(result, 64); err != nil {
		return fmt.Errorf("history result %q is not a number", result)
	}
	e.text = result
	e.evaluated = true
	e.clearMode = models.AllClear
	return nil
}

// Input - единственная точка входа для нажатий кнопок.
// Неизвестные категории и идентификаторы игнорируются.
func (e *Engine) Input(category symbols.Category, identifier string) {
	glyph, ok := symbols.Lookup(category, identifier)
	if !ok {
		e.log.Debug("ignoring unknown key %s/%s", category, identifier)
		return
	}

	if category != symbols.UnaryFunction || (identifier != symbols.Clear && identifier != symbols.Equals) {
		e.clearMode = models.ClearEntry
	}

	switch category {
	case symbols.Number:
		e.appendNumber(glyph)
	case symbols.BinaryOperator:
		e.appendBinary(glyph)
	case symbols.Grouping:
		e.appendGrouping(glyph)
	case symbols.UnaryFunction:
		e.handleUnary(identifier, glyph)
	case symbols.Constant:
		e.appendConstant(glyph)
	}
}

func (e *Engine) handleUnary(identifier, glyph string) {
	switch identifier {
	case symbols.Clear:
		if e.clearMode == models.ClearEntry {
			e.backspace()
		} else {
			e.clear()
		}
		return
	case symbols.Equals:
		e.evaluate()
		e.clearMode = models.AllClear
		return
	case symbols.Sign:
		e.toggleSign()
		return
	}

	if strings.HasSuffix(glyph, "(") {
		if e.evaluated {
			e.text = glyph + e.text
			e.evaluated = false
			return
		}
		if operand := trailingOperandPattern.FindString(e.text); operand != "" {
			e.text = e.text[:len(e.text)-len(operand)] + glyph + operand
			return
		}
	}

	e.evaluated = false

	if glyph == "!" {
		last := e.lastChar()
		if isOperator(last) || last == '(' {
			e.appendNumber("1")
		}
	}

	e.append(glyph)
}

func (e *Engine) appendNumber(glyph string) {
	if e.evaluated {
		e.clear()
		e.clearMode = models.ClearEntry
	}

	switch e.lastChar() {
	case 'π', ')', '!':
		e.append("*")
	}
	e.append(glyph)
}

func (e *Engine) appendConstant(glyph string) {
	if e.evaluated {
		e.clear()
		e.clearMode = models.ClearEntry
	}

	last := e.lastChar()
	if (isDigit(last) || last == ')' || last == '!') && e.text != "0" {
		e.append("*")
	}
	e.append(glyph)
}

func (e *Engine) appendGrouping(glyph string) {
	if e.evaluated {
		e.clear()
		e.clearMode = models.ClearEntry
	}

	last := e.lastChar()
	if glyph == "(" && (isDigit(last) || last == 'π' || last == ')' || last == '!') && e.text != "0" {
		e.append("*")
	}
	e.append(glyph)
}

func (e *Engine) appendBinary(glyph string) {
	e.evaluated = false
	e.clearMode = models.ClearEntry

	if isOperator(e.lastChar()) {
		// операторы однобайтовые
		e.text = e.text[:len(e.text)-1] + glyph
		return
	}

	if e.text == "0" || e.text == "" {
		e.text = "0" + glyph
		return
	}
	e.append(glyph)
}

// append дописывает глиф. Начальный "0" заменяется всем, кроме "!" и ".".
func (e *Engine) append(glyph string) {
	if glyph == "" {
		return
	}

	if e.text == "0" && glyph != "!" && glyph != "." {
		e.text = glyph
		return
	}
	e.text += glyph
}

func (e *Engine) backspace() {
	runes := []rune(e.text)
	if len(runes) <= 1 {
		e.text = "0"
		e.clearMode = models.AllClear
		return
	}
	e.text = string(runes[:len(runes)-1])
}

func (e *Engine) clear() {
	e.text = "0"
	e.evaluated = false
	e.clearMode = models.AllClear
}

func (e *Engine) evaluate() {
	e.evaluated = true
	expression := e.text

	result, err := e.evaluator.Evaluate(expression)
	if err != nil {
		e.log.Debug("evaluation failed: %v", err)
		if e.onError != nil {
			e.onError(err)
		}
		e.clear()
		return
	}

	formatted := evaluator.FormatResult(result)
	if e.onHistorySave != nil && expression != formatted {
		e.onHistorySave(models.HistoryEntry{Expression: expression, Result: formatted})
	}

	e.text = formatted
	e.clearMode = models.AllClear
}

func (e *Engine) lastChar() rune {
	if e.text == "" {
		return 0
	}
	runes := []rune(e.text)
	return runes[len(runes)-1]
}

func isOperator(r rune) bool {
	return strings.ContainsRune("+-*/%", r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
