package symbols

import (
	"sort"
	"strings"
)

// Category - категория кнопки клавиатуры
type Category string

const (
	Number         Category = "NUMBER"
	BinaryOperator Category = "BINARY_OPERATOR"
	Grouping       Category = "GROUPING"
	UnaryFunction  Category = "UNARY_FUNCTION"
	Constant       Category = "CONSTANT"
)

// Управляющие идентификаторы UNARY_FUNCTION без глифа
const (
	Clear  = "CLEAR"
	Equals = "EQUALS"
	Sign   = "SIGN"
)

// Pi - глиф константы π
const Pi = "π"

var (
	numbers = map[string]string{
		"ZERO":    "0",
		"ONE":     "1",
		"TWO":     "2",
		"THREE":   "3",
		"FOUR":    "4",
		"FIVE":    "5",
		"SIX":     "6",
		"SEVEN":   "7",
		"EIGHT":   "8",
		"NINE":    "9",
		"DECIMAL": ".",
	}

	binaryOperators = map[string]string{
		"PLUS":     "+",
		"MINUS":    "-",
		"MULTIPLY": "*",
		"DIVIDE":   "/",
		"PERCENT":  "%",
	}

	grouping = map[string]string{
		"LEFT_PAREN":  "(",
		"RIGHT_PAREN": ")",
	}

	unary = map[string]string{
		"SIN":         "sin(",
		"COS":         "cos(",
		"TAN":         "tan(",
		"SQRT":        "√(",
		"CBRT":        "∛(",
		"X_SQUARED":   "^2",
		"X_CUBED":     "^3",
		"X_FACTORIAL": "!",
	}

	constants = map[string]string{
		"PI": Pi,
	}

	tables = map[Category]map[string]string{
		Number:         numbers,
		BinaryOperator: binaryOperators,
		Grouping:       grouping,
		UnaryFunction:  unary,
		Constant:       constants,
	}
)

// ParseCategory - разбор названия категории, пришедшего от UI
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := tables[c]
	return c, ok
}

// Lookup - глиф для идентификатора. Управляющие кнопки CLEAR, EQUALS и SIGN
// известны, но глифа не имеют.
func Lookup(category Category, identifier string) (string, bool) {
	if category == UnaryFunction && IsControl(identifier) {
		return "", true
	}
	table, ok := tables[category]
	if !ok {
		return "", false
	}
	glyph, ok := table[identifier]
	return glyph, ok
}

// IsControl сообщает, является ли идентификатор управляющей кнопкой
func IsControl(identifier string) bool {
	switch identifier {
	case Clear, Equals, Sign:
		return true
	}
	return false
}

// Identifiers - отсортированный список идентификаторов категории
func Identifiers(category Category) []string {
	table := tables[category]
	ids := make([]string, 0, len(table)+3)
	for id := range table {
		ids = append(ids, id)
	}
	if category == UnaryFunction {
		ids = append(ids, Clear, Equals, Sign)
	}
	sort.Strings(ids)
	return ids
}

// Reverse ищет кнопку по глифу, например "7" -> NUMBER/SEVEN.
// Используется консольным интерфейсом.
func Reverse(glyph string) (Category, string, bool) {
	for _, c := range []Category{Number, BinaryOperator, Grouping, UnaryFunction, Constant} {
		for id, g := range tables[c] {
			if g == glyph {
				return c, id, true
			}
		}
	}
	return "", "", false
}
