package symbols

import "strings"

// Mode - раскладка клавиатуры
type Mode string

const (
	Basic      Mode = "BASIC"
	Scientific Mode = "SCIENTIFIC"
)

// Key - кнопка клавиатуры
type Key struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
	Label    string   `json:"label"`
}

var basicKeys = []Key{
	{UnaryFunction, Clear, "AC"}, {UnaryFunction, Sign, "±"}, {BinaryOperator, "PERCENT", "%"}, {BinaryOperator, "DIVIDE", "÷"},
	{Number, "SEVEN", "7"}, {Number, "EIGHT", "8"}, {Number, "NINE", "9"}, {BinaryOperator, "MULTIPLY", "×"},
	{Number, "FOUR", "4"}, {Number, "FIVE", "5"}, {Number, "SIX", "6"}, {BinaryOperator, "MINUS", "−"},
	{Number, "ONE", "1"}, {Number, "TWO", "2"}, {Number, "THREE", "3"}, {BinaryOperator, "PLUS", "+"},
	{Number, "ZERO", "0"}, {Number, "DECIMAL", "."}, {UnaryFunction, Equals, "="},
}

var scientificKeys = []Key{
	{Grouping, "LEFT_PAREN", "("}, {Grouping, "RIGHT_PAREN", ")"}, {Constant, "PI", "π"}, {UnaryFunction, "X_FACTORIAL", "x!"},
	{UnaryFunction, "SIN", "sin"}, {UnaryFunction, "COS", "cos"}, {UnaryFunction, "TAN", "tan"},
	{UnaryFunction, "SQRT", "√x"}, {UnaryFunction, "CBRT", "∛x"}, {UnaryFunction, "X_SQUARED", "x²"}, {UnaryFunction, "X_CUBED", "x³"},
}

// ParseMode - разбор названия раскладки
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToUpper(s)); m {
	case Basic, Scientific:
		return m, true
	}
	return "", false
}

// Keypad возвращает кнопки раскладки. Научная раскладка включает все кнопки базовой.
func Keypad(mode Mode) []Key {
	keys := make([]Key, 0, len(basicKeys)+len(scientificKeys))
	if mode == Scientific {
		keys = append(keys, scientificKeys...)
	}
	return append(keys, basicKeys...)
}
