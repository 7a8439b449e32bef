package evaluator

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression - общая причина для всех ошибок вычисления.
// errors.Is(err, ErrInvalidExpression) истинно для EvaluationError и DomainError.
var ErrInvalidExpression = errors.New("invalid expression")

// EvaluationError - выражение некорректно или его значение не является конечным числом
type EvaluationError struct {
	Expression string
	Reason     string
}

func (e *EvaluationError) Error() string {
	if e.Expression == "" {
		return fmt.Sprintf("invalid expression: %s", e.Reason)
	}
	return fmt.Sprintf("invalid expression %q: %s", e.Expression, e.Reason)
}

func (e *EvaluationError) Is(target error) bool {
	return target == ErrInvalidExpression
}

// DomainError - факториал от числа, не являющегося неотрицательным целым
type DomainError struct {
	Value float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("factorial is only defined for non-negative integers, got %v", e.Value)
}

func (e *DomainError) Is(target error) bool {
	return target == ErrInvalidExpression
}

func syntaxError(reason string, args ...interface{}) error {
	return &EvaluationError{Reason: fmt.Sprintf(reason, args...)}
}
