package engine

import (
	"calcpad/models"
	"strconv"
)

// toggleSign меняет знак последнего операнда или группы в скобках.
// Результат вычисления меняет знак арифметически.
func (e *Engine) toggleSign() {
	e.clearMode = models.ClearEntry

	if e.evaluated {
		val, err := strconv.ParseFloat(e.text, 64)
		if err != nil {
			return
		}
		e.text = formatNumber(-val)
		return
	}

	if e.text == "0" {
		return
	}

	runes := []rune(e.text)
	i := len(runes) - 1
	newText := e.text

	switch {
	case runes[i] == ')':
		depth := 1
		i--
		for i >= 0 && depth > 0 {
			if runes[i] == ')' {
				depth++
			}
			if runes[i] == '(' {
				depth--
			}
			i--
		}
		open := i + 1

		if runes[open] == '(' && open+1 < len(runes) && runes[open+1] == '-' {
			// (-...) -> ...
			newText = string(runes[:open]) + string(runes[open+2:len(runes)-1])
		} else {
			start := open
			for start > 0 && isFunctionRune(runes[start-1]) {
				start--
			}
			newText = string(runes[:start]) + "(-" + string(runes[start:]) + ")"
		}

	case isDigit(runes[i]):
		for i >= 0 && (isDigit(runes[i]) || runes[i] == '.') {
			i--
		}
		start := i + 1
		if start == 1 && runes[0] == '-' {
			newText = string(runes[1:])
		} else {
			newText = string(runes[:start]) + "(-" + string(runes[start:]) + ")"
		}
	}

	if newText == "" {
		newText = "0"
	}
	e.text = newText
}

// isFunctionRune - символы имен функций перед скобкой: sin, cos, tan, √, ∛
func isFunctionRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == '√' || r == '∛'
}

func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
