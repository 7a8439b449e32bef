package evaluator

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// TokenKind - тип лексемы
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenConstant
	TokenFunction
	TokenOperator
	TokenLeftParen
	TokenRightParen
	TokenFactorial
)

func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "number"
	case TokenConstant:
		return "constant"
	case TokenFunction:
		return "function"
	case TokenOperator:
		return "operator"
	case TokenLeftParen:
		return "("
	case TokenRightParen:
		return ")"
	case TokenFactorial:
		return "!"
	default:
		return "unknown"
	}
}

// Token - лексема выражения с дисплея
type Token struct {
	Kind  TokenKind
	Text  string
	Value float64
}

func numberToken(v float64) Token {
	return Token{Kind: TokenNumber, Text: strconv.FormatFloat(v, 'g', -1, 64), Value: v}
}

var functions = map[string]func(float64) float64{
	"sin": math.Sin,
	"cos": math.Cos,
	"tan": math.Tan,
	"√":   math.Sqrt,
	"∛":   math.Cbrt,
}

var constantValues = map[string]float64{
	"π": math.Pi,
}

const operatorChars = "+-*/%^"

// Tokenize - разбиение текста дисплея на лексемы
func Tokenize(expression string) ([]Token, error) {
	runes := []rune(expression)
	tokens := make([]Token, 0, len(runes))

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case isDigit(r) || r == '.':
			start := i
			for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			if strings.Count(text, ".") > 1 || text == "." {
				return nil, syntaxError("malformed number %q", text)
			}
			val, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, syntaxError("malformed number %q", text)
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: text, Value: val})
		case r >= 'a' && r <= 'z':
			start := i
			for i < len(runes) && runes[i] >= 'a' && runes[i] <= 'z' {
				i++
			}
			name := string(runes[start:i])
			if _, ok := functions[name]; !ok {
				return nil, syntaxError("unknown function %q", name)
			}
			tokens = append(tokens, Token{Kind: TokenFunction, Text: name})
		case r == '√' || r == '∛':
			tokens = append(tokens, Token{Kind: TokenFunction, Text: string(r)})
			i++
		case r == 'π':
			tokens = append(tokens, Token{Kind: TokenConstant, Text: string(r), Value: constantValues[string(r)]})
			i++
		case strings.ContainsRune(operatorChars, r):
			tokens = append(tokens, Token{Kind: TokenOperator, Text: string(r)})
			i++
		case r == '(':
			tokens = append(tokens, Token{Kind: TokenLeftParen, Text: "("})
			i++
		case r == ')':
			tokens = append(tokens, Token{Kind: TokenRightParen, Text: ")"})
			i++
		case r == '!':
			tokens = append(tokens, Token{Kind: TokenFactorial, Text: "!"})
			i++
		default:
			return nil, syntaxError("unexpected character %q", r)
		}
	}

	return tokens, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
