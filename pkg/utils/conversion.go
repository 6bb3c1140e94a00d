package utils

import "math"

// Clamp limita um valor ao intervalo [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Lerp interpola linearmente entre a e b com fator t em [0,1]
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ApplyDeadzone zera o eixo quando o módulo fica abaixo do limiar.
// Acima do limiar o valor passa inalterado (sem reescala).
func ApplyDeadzone(value, threshold float64) float64 {
	if math.Abs(value) < threshold {
		return 0
	}
	return Clamp(value, -1, 1)
}
