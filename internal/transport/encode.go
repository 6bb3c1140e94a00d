package transport

import (
	"fmt"
	"math"

	"teleop_go/internal/models"
)

// Encoder serializa comandos de movimento no protocolo ASCII do firmware
// de cada classe de dispositivo. As linhas devolvidas não incluem o
// terminador; o canal acrescenta o newline ao transmitir.
type Encoder interface {
	// Encode serializa um comando; devolve nil quando o comando não tem
	// representação no protocolo do dispositivo
	Encode(cmd models.MotionCommand) ([]byte, error)
	// Heartbeat devolve o pedido periódico de posição usado como prova de
	// vida do enlace
	Heartbeat() []byte
	// Stop devolve a parada suave do dispositivo
	Stop() []byte
	// EmergencyStop devolve a parada de emergência do dispositivo
	EmergencyStop() []byte
}

// speedPercent converte a escala [0.1, 2.0] para o percentual 1-100
// esperado pelos firmwares
func speedPercent(scale float64) int {
	p := int(math.Round(scale * 50))
	if p < 1 {
		p = 1
	}
	if p > 100 {
		p = 100
	}
	return p
}

// firmwareSpeed converte o percentual para a faixa 1-25 do Teensy
func firmwareSpeed(scale float64) int {
	fw := speedPercent(scale) * 25 / 100
	if fw < 1 {
		fw = 1
	}
	return fw
}

// RobotEncoder fala o protocolo do controlador AR4 (Teensy).
// Movimentos articulares viajam como alvo absoluto MJ (o dispatcher
// anexa a pose resultante ao comando); jogs cartesianos viajam como LC
// no eixo dominante, resolvidos pelo firmware sem cinemática no host.
type RobotEncoder struct {
	Accel int
	Decel int
}

// NewRobotEncoder cria o codificador com as rampas padrão do firmware
func NewRobotEncoder() *RobotEncoder {
	return &RobotEncoder{Accel: 10, Decel: 10}
}

func (e *RobotEncoder) Encode(cmd models.MotionCommand) ([]byte, error) {
	switch cmd.Kind {
	case models.CmdJointDelta, models.CmdAbsolute:
		if cmd.Pose == nil {
			return nil, fmt.Errorf("comando %s sem pose absoluta", cmd.Kind)
		}
		return e.moveJoints(cmd.Pose, cmd.Speed), nil
	case models.CmdCartesianDelta:
		return e.cartesianJog(cmd.Delta, cmd.Speed), nil
	case models.CmdStop:
		return e.Stop(), nil
	case models.CmdEmergencyStop:
		return e.EmergencyStop(), nil
	}
	return nil, nil
}

func (e *RobotEncoder) moveJoints(pose *models.RobotPose, speed float64) []byte {
	j := pose.Joints
	line := fmt.Sprintf("MJA%.3fB%.3fC%.3fD%.3fE%.3fF%.3fP%.3fS%dA%dD%d",
		j[0], j[1], j[2], j[3], j[4], j[5], pose.J7,
		firmwareSpeed(speed), e.Accel, e.Decel)
	return []byte(line)
}

// cartesianJog escolhe o eixo dominante do delta e emite o jog LC
// correspondente; código = eixo*10 + direção (0 negativa, 1 positiva)
func (e *RobotEncoder) cartesianJog(delta [6]float64, speed float64) []byte {
	axis, magnitude := 0, 0.0
	for i, v := range delta {
		if math.Abs(v) > magnitude {
			axis, magnitude = i, math.Abs(v)
		}
	}
	if magnitude == 0 {
		return nil
	}
	dir := 1
	if delta[axis] < 0 {
		dir = 0
	}
	code := (axis+1)*10 + dir
	line := fmt.Sprintf("LC%dS%dA%dD%d", code, firmwareSpeed(speed), e.Accel, e.Decel)
	return []byte(line)
}

func (e *RobotEncoder) Heartbeat() []byte     { return []byte("GP") }
func (e *RobotEncoder) Stop() []byte          { return []byte("S") }
func (e *RobotEncoder) EmergencyStop() []byte { return []byte("ES") }

// TrackEncoder fala o protocolo do trilho linear (J7), que reusa a
// gramática LJ do Teensy com os códigos de eixo 70/71
type TrackEncoder struct {
	Accel int
	Decel int
}

// NewTrackEncoder cria o codificador do trilho
func NewTrackEncoder() *TrackEncoder {
	return &TrackEncoder{Accel: 10, Decel: 10}
}

func (e *TrackEncoder) Encode(cmd models.MotionCommand) ([]byte, error) {
	switch cmd.Kind {
	case models.CmdTrackDelta:
		if cmd.Scalar == 0 {
			return nil, nil
		}
		code := 71
		if cmd.Scalar < 0 {
			code = 70
		}
		line := fmt.Sprintf("LJ%dS%dA%dD%d", code, firmwareSpeed(cmd.Speed), e.Accel, e.Decel)
		return []byte(line), nil
	case models.CmdStop:
		return e.Stop(), nil
	case models.CmdEmergencyStop:
		return e.EmergencyStop(), nil
	}
	return nil, nil
}

func (e *TrackEncoder) Heartbeat() []byte     { return []byte("GP") }
func (e *TrackEncoder) Stop() []byte          { return []byte("S") }
func (e *TrackEncoder) EmergencyStop() []byte { return []byte("ES") }

// FeederEncoder fala o protocolo do alimentador de tubos (Arduino):
// F avança, R recua, STOP interrompe, POS consulta a posição
type FeederEncoder struct{}

// NewFeederEncoder cria o codificador do alimentador
func NewFeederEncoder() *FeederEncoder {
	return &FeederEncoder{}
}

func (e *FeederEncoder) Encode(cmd models.MotionCommand) ([]byte, error) {
	switch cmd.Kind {
	case models.CmdFeederDelta:
		switch {
		case cmd.Scalar > 0:
			return []byte(fmt.Sprintf("F%.2f", cmd.Scalar)), nil
		case cmd.Scalar < 0:
			return []byte(fmt.Sprintf("R%.2f", -cmd.Scalar)), nil
		}
		return nil, nil
	case models.CmdStop, models.CmdEmergencyStop:
		return e.Stop(), nil
	}
	return nil, nil
}

func (e *FeederEncoder) Heartbeat() []byte     { return []byte("POS") }
func (e *FeederEncoder) Stop() []byte          { return []byte("STOP") }
func (e *FeederEncoder) EmergencyStop() []byte { return []byte("STOP") }
