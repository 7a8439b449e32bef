package evaluator

import "math"

// Factorial - n! для неотрицательного целого n
func Factorial(n float64) (float64, error) {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return 0, &DomainError{Value: n}
	}
	res := 1.0
	for i := 2.0; i <= n; i++ {
		res *= i
		if math.IsInf(res, 1) {
			// дальше результат не изменится
			break
		}
	}
	return res, nil
}
