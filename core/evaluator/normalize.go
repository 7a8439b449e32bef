package evaluator

// Normalize - перезапись лексем перед вычислением:
//  1. явное умножение между ")(", "!(", "π" и числом или "(", ")" и числом или "π";
//  2. подстановка значений констант;
//  3. свёртка факториалов: сначала самые внутренние группы "(...)!", затем "число!".
//
// Оставшийся после свёртки "!" считается синтаксической ошибкой при вычислении.
func (c *Evaluator) Normalize(tokens []Token) ([]Token, error) {
	tokens = insertImplicitMultiplication(tokens)
	tokens = substituteConstants(tokens)
	return c.collapseFactorials(tokens)
}

func insertImplicitMultiplication(tokens []Token) []Token {
	if len(tokens) < 2 {
		return tokens
	}

	result := make([]Token, 0, len(tokens)+4)
	result = append(result, tokens[0])
	for i := 1; i < len(tokens); i++ {
		if needsMultiplication(tokens[i-1], tokens[i]) {
			result = append(result, Token{Kind: TokenOperator, Text: "*"})
		}
		result = append(result, tokens[i])
	}
	return result
}

func needsMultiplication(prev, next Token) bool {
	switch prev.Kind {
	case TokenRightParen:
		return next.Kind == TokenLeftParen || startsWithDigit(next) || next.Kind == TokenConstant
	case TokenFactorial:
		return next.Kind == TokenLeftParen
	case TokenConstant:
		return startsWithDigit(next) || next.Kind == TokenLeftParen
	}
	return false
}

func startsWithDigit(t Token) bool {
	return t.Kind == TokenNumber && t.Text != "" && isDigit(rune(t.Text[0]))
}

func substituteConstants(tokens []Token) []Token {
	for i := range tokens {
		if tokens[i].Kind == TokenConstant {
			tokens[i].Value = constantValues[tokens[i].Text]
		}
	}
	return tokens
}

// collapseFactorials заменяет факториалы вычисленными значениями
func (c *Evaluator) collapseFactorials(tokens []Token) ([]Token, error) {
	for {
		open, bang, ok := innermostGroupFactorial(tokens)
		if !ok {
			break
		}

		inner, err := c.reduce(tokens[open+1 : bang-1])
		if err != nil {
			return nil, err
		}
		value, err := Factorial(inner)
		if err != nil {
			return nil, err
		}

		collapsed := make([]Token, 0, len(tokens))
		collapsed = append(collapsed, tokens[:open]...)
		collapsed = append(collapsed, numberToken(value))
		collapsed = append(collapsed, tokens[bang+1:]...)
		tokens = collapsed
	}

	result := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Kind == TokenNumber && i+1 < len(tokens) && tokens[i+1].Kind == TokenFactorial {
			value, err := Factorial(t.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, numberToken(value))
			i++
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// innermostGroupFactorial ищет первую группу "(...)!" без вложенных скобок.
// Возвращает индексы "(" и "!".
func innermostGroupFactorial(tokens []Token) (int, int, bool) {
	for bang := 2; bang < len(tokens); bang++ {
		if tokens[bang].Kind != TokenFactorial || tokens[bang-1].Kind != TokenRightParen {
			continue
		}
		for k := bang - 2; k >= 0; k-- {
			if tokens[k].Kind == TokenRightParen {
				break
			}
			if tokens[k].Kind == TokenLeftParen {
				if k < bang-2 {
					return k, bang, true
				}
				break
			}
		}
	}
	return 0, 0, false
}
