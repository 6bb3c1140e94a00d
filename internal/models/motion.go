package models

// DeviceID identifica um dos quatro dispositivos controlados
type DeviceID string

const (
	DeviceRobot1 DeviceID = "robot1"
	DeviceRobot2 DeviceID = "robot2"
	DeviceTrack  DeviceID = "track"
	DeviceFeeder DeviceID = "feeder"
)

// AllDevices lista os dispositivos na ordem canônica
func AllDevices() []DeviceID {
	return []DeviceID{DeviceRobot1, DeviceRobot2, DeviceTrack, DeviceFeeder}
}

// SessionMode distingue operação manual de gravação de trajetórias
type SessionMode int

const (
	ModeMove SessionMode = iota
	ModeTrain
)

func (m SessionMode) String() string {
	if m == ModeTrain {
		return "train"
	}
	return "move"
}

// MotionSpace é o sub-modo de movimento manual
type MotionSpace int

const (
	SpaceJoint MotionSpace = iota
	SpaceCartesian
)

func (s MotionSpace) String() string {
	if s == SpaceCartesian {
		return "cartesian"
	}
	return "joint"
}

// RobotSelector indica quais braços recebem os comandos de movimento
type RobotSelector int

const (
	SelectRobot1 RobotSelector = iota
	SelectRobot2
	SelectBoth
)

// Cycle avança o seletor na ordem R1 -> R2 -> Both -> R1
func (r RobotSelector) Cycle() RobotSelector {
	switch r {
	case SelectRobot1:
		return SelectRobot2
	case SelectRobot2:
		return SelectBoth
	default:
		return SelectRobot1
	}
}

// Robots devolve os IDs dos braços selecionados
func (r RobotSelector) Robots() []DeviceID {
	switch r {
	case SelectRobot1:
		return []DeviceID{DeviceRobot1}
	case SelectRobot2:
		return []DeviceID{DeviceRobot2}
	default:
		return []DeviceID{DeviceRobot1, DeviceRobot2}
	}
}

// Includes informa se o braço está coberto pelo seletor
func (r RobotSelector) Includes(id DeviceID) bool {
	for _, d := range r.Robots() {
		if d == id {
			return true
		}
	}
	return false
}

func (r RobotSelector) String() string {
	switch r {
	case SelectRobot1:
		return "r1"
	case SelectRobot2:
		return "r2"
	default:
		return "both"
	}
}

// ParseRobotSelector interpreta o valor persistido em robot_mode
func ParseRobotSelector(s string) (RobotSelector, bool) {
	switch s {
	case "r1":
		return SelectRobot1, true
	case "r2":
		return SelectRobot2, true
	case "both":
		return SelectBoth, true
	}
	return SelectRobot1, false
}

// CommandKind classifica um MotionCommand
type CommandKind int

const (
	CmdJointDelta CommandKind = iota
	CmdCartesianDelta
	CmdTrackDelta
	CmdFeederDelta
	CmdAbsolute
	CmdStop
	CmdEmergencyStop
)

func (k CommandKind) String() string {
	switch k {
	case CmdJointDelta:
		return "joint_delta"
	case CmdCartesianDelta:
		return "cartesian_delta"
	case CmdTrackDelta:
		return "track_delta"
	case CmdFeederDelta:
		return "feeder_delta"
	case CmdAbsolute:
		return "absolute"
	case CmdStop:
		return "stop"
	default:
		return "emergency_stop"
	}
}

// MotionCommand é a saída do mapeador de movimento para um dispositivo.
// Delta carrega deslocamentos por eixo (junta ou cartesiano); Scalar carrega
// o deslocamento do trilho ou do alimentador; Pose carrega o alvo absoluto
// preenchido pelo dispatcher após aplicar o delta ao estado.
type MotionCommand struct {
	Device DeviceID    `json:"device"`
	Kind   CommandKind `json:"kind"`
	Delta  [6]float64  `json:"delta,omitempty"`
	Scalar float64     `json:"scalar,omitempty"`
	Pose   *RobotPose  `json:"pose,omitempty"`
	// Speed é a escala de velocidade vigente no momento do comando
	Speed float64 `json:"speed,omitempty"`
}
