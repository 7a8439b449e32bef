package evaluator

import (
	"errors"
	"math"
	"strconv"
)

const unaryPrecedence = 3

type Evaluator struct {
	operators  map[string]func(float64, float64) (float64, error)
	precedence map[string]int
}

func NewEvaluator() *Evaluator {
	calc := &Evaluator{
		operators: make(map[string]func(float64, float64) (float64, error)),
		precedence: map[string]int{
			"+": 1, "-": 1,
			"*": 2, "/": 2, "%": 2,
			"^": 4,
		},
	}

	// Инициализация операторов
	calc.operators["+"] = func(a, b float64) (float64, error) { return a + b, nil }
	calc.operators["-"] = func(a, b float64) (float64, error) { return a - b, nil }
	calc.operators["*"] = func(a, b float64) (float64, error) { return a * b, nil }
	calc.operators["/"] = func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, syntaxError("division by zero")
		}
		return a / b, nil
	}
	calc.operators["^"] = func(a, b float64) (float64, error) { return math.Pow(a, b), nil }
	calc.operators["%"] = func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, syntaxError("modulo by zero")
		}
		return math.Mod(a, b), nil
	}

	return calc
}

// Evaluate - вычисление выражения в том виде, в каком оно набрано на дисплее
func (c *Evaluator) Evaluate(expression string) (float64, error) {
	tokens, err := Tokenize(expression)
	if err != nil {
		return 0, withExpression(err, expression)
	}

	normalized, err := c.Normalize(tokens)
	if err != nil {
		return 0, withExpression(err, expression)
	}

	result, err := c.reduce(normalized)
	if err != nil {
		return 0, withExpression(err, expression)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, &EvaluationError{Expression: expression, Reason: "result is not a finite number"}
	}
	return result, nil
}

// FormatResult - целое значение без дробной части, иначе два знака после точки
func FormatResult(v float64) string {
	if v == 0 {
		// -0 показываем как 0
		return "0"
	}
	if v == math.Trunc(v) {
		// кратчайшая запись: большие степени без шумовых цифр
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func withExpression(err error, expression string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) && evalErr.Expression == "" {
		evalErr.Expression = expression
	}
	return err
}

// reduce - вычисление нормализованных лексем
func (c *Evaluator) reduce(tokens []Token) (float64, error) {
	rpn, err := c.shuntingYard(tokens)
	if err != nil {
		return 0, err
	}
	return c.evaluateRPN(rpn)
}

func (c *Evaluator) operatorPrecedence(t Token) int {
	if isUnary(t) {
		return unaryPrecedence
	}
	return c.precedence[t.Text]
}

func isUnary(t Token) bool {
	return t.Kind == TokenOperator && (t.Text == "neg" || t.Text == "pos")
}

// shuntingYard - алгоритм сортировочной станции (Dijkstra) для преобразования в ОПН.
// Заодно проверяет, что операнды и операторы чередуются.
func (c *Evaluator) shuntingYard(tokens []Token) ([]Token, error) {
	var output []Token
	var stack []Token
	expectOperand := true

	for i, token := range tokens {
		switch token.Kind {
		case TokenNumber, TokenConstant:
			if !expectOperand {
				return nil, syntaxError("unexpected operand %q", token.Text)
			}
			output = append(output, token)
			expectOperand = false

		case TokenFunction:
			if !expectOperand {
				return nil, syntaxError("unexpected function %q", token.Text)
			}
			if i+1 >= len(tokens) || tokens[i+1].Kind != TokenLeftParen {
				return nil, syntaxError("function %q must be followed by (", token.Text)
			}
			stack = append(stack, token)

		case TokenLeftParen:
			if !expectOperand {
				return nil, syntaxError("unexpected (")
			}
			stack = append(stack, token)

		case TokenRightParen:
			if expectOperand {
				return nil, syntaxError("unexpected )")
			}
			for len(stack) > 0 && stack[len(stack)-1].Kind != TokenLeftParen {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				return nil, syntaxError("mismatched parentheses")
			}
			stack = stack[:len(stack)-1] // удаляем "("
			if len(stack) > 0 && stack[len(stack)-1].Kind == TokenFunction {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}

		case TokenOperator:
			if expectOperand {
				switch token.Text {
				case "-":
					stack = append(stack, Token{Kind: TokenOperator, Text: "neg"})
				case "+":
					stack = append(stack, Token{Kind: TokenOperator, Text: "pos"})
				default:
					return nil, syntaxError("unexpected operator %q", token.Text)
				}
				continue
			}
			prec := c.operatorPrecedence(token)
			rightAssoc := token.Text == "^"
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.Kind != TokenOperator {
					break
				}
				topPrec := c.operatorPrecedence(top)
				if topPrec > prec || (topPrec == prec && !rightAssoc) {
					output = append(output, top)
					stack = stack[:len(stack)-1]
				} else {
					break
				}
			}
			stack = append(stack, token)
			expectOperand = true

		default:
			return nil, syntaxError("unexpected %s", token.Kind)
		}
	}

	if expectOperand {
		return nil, syntaxError("incomplete expression")
	}

	// Выталкиваем оставшиеся операторы из стека
	for len(stack) > 0 {
		if stack[len(stack)-1].Kind == TokenLeftParen {
			return nil, syntaxError("mismatched parentheses")
		}
		output = append(output, stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}

	return output, nil
}

// evaluateRPN - вычисление выражения в обратной польской нотации
func (c *Evaluator) evaluateRPN(rpn []Token) (float64, error) {
	var stack []float64

	for _, token := range rpn {
		switch {
		case token.Kind == TokenNumber || token.Kind == TokenConstant:
			stack = append(stack, token.Value)

		case token.Kind == TokenFunction || isUnary(token):
			if len(stack) < 1 {
				return 0, syntaxError("missing operand for %q", token.Text)
			}
			x := stack[len(stack)-1]
			switch {
			case token.Text == "neg":
				x = -x
			case token.Text == "pos":
			default:
				x = functions[token.Text](x)
			}
			stack[len(stack)-1] = x

		default:
			op, exists := c.operators[token.Text]
			if !exists {
				return 0, syntaxError("unknown operator %q", token.Text)
			}
			if len(stack) < 2 {
				return 0, syntaxError("missing operand for %q", token.Text)
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			result, err := op(a, b)
			if err != nil {
				return 0, err
			}
			stack = append(stack, result)
		}
	}

	if len(stack) != 1 {
		return 0, syntaxError("malformed expression")
	}

	return stack[0], nil
}
