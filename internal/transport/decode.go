package transport

import (
	"fmt"
	"strconv"
	"strings"

	"teleop_go/internal/models"
)

// RobotFeedback é a posição reportada pelo firmware AR4 em resposta a GP
type RobotFeedback struct {
	Pose      models.RobotPose
	Cartesian models.CartesianPose
}

// Índices da linha de posição do AR4: A-F juntas, G-L pose cartesiana,
// P posição do carro no trilho
var robotFieldOrder = []byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P'}

// ParseRobotFeedback interpreta a linha de posição do AR4. Os campos são
// delimitados pelas próprias letras de índice, na ordem fixa do firmware.
func ParseRobotFeedback(line string) (*RobotFeedback, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("linha de posição vazia")
	}

	values := make(map[byte]float64)
	for i, marker := range robotFieldOrder {
		start := strings.IndexByte(line, marker)
		if start < 0 {
			continue
		}
		end := len(line)
		for _, next := range robotFieldOrder[i+1:] {
			if idx := strings.IndexByte(line[start+1:], next); idx >= 0 {
				end = start + 1 + idx
				break
			}
		}
		raw := line[start+1 : end]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("campo %c inválido em %q: %w", marker, line, err)
		}
		values[marker] = v
	}

	if _, ok := values['A']; !ok {
		return nil, fmt.Errorf("linha de posição sem campo A: %q", line)
	}

	fb := &RobotFeedback{}
	for i, marker := range []byte{'A', 'B', 'C', 'D', 'E', 'F'} {
		fb.Pose.Joints[i] = values[marker]
	}
	for i, marker := range []byte{'G', 'H', 'I', 'J', 'K', 'L'} {
		fb.Cartesian[i] = values[marker]
	}
	fb.Pose.J7 = values['P']
	return fb, nil
}

// ParseFeederFeedback interpreta a resposta POS:<mm> do alimentador
func ParseFeederFeedback(line string) (float64, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "POS:")
	if !ok {
		return 0, fmt.Errorf("resposta inesperada do alimentador: %q", line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, fmt.Errorf("posição inválida do alimentador em %q: %w", line, err)
	}
	return v, nil
}
