package motion

import (
	"time"

	"teleop_go/internal/device"
	"teleop_go/internal/models"
)

// Config parametriza os passos máximos por tick e a rampa de velocidade
type Config struct {
	// Passo máximo por tick com escala 1.0
	MaxJointStep     float64 // graus por junta
	MaxCartesianStep float64 // mm (ou graus nos eixos de rotação)
	TrackStep        float64 // mm do trilho
	FeederStep       float64 // mm do alimentador

	// Rampa dos gatilhos
	SpeedStep        float64       // incremento por acionamento
	SpeedRateLimit   time.Duration // intervalo mínimo entre ajustes
	TriggerThreshold float64       // gatilho considerado acionado acima disto
}

// DefaultConfig devolve a parametrização padrão do mapeador
func DefaultConfig() Config {
	return Config{
		MaxJointStep:     0.5,
		MaxCartesianStep: 1.0,
		TrackStep:        1.0,
		FeederStep:       0.5,
		SpeedStep:        0.1,
		SpeedRateLimit:   200 * time.Millisecond,
		TriggerThreshold: 0.5,
	}
}

// Mapper traduz snapshots do gamepad em comandos de movimento relativos.
// Sem estado de dispositivo próprio: lê escala de velocidade do registro e
// guarda apenas o instante do último ajuste de rampa.
type Mapper struct {
	cfg       Config
	lastSpeed time.Time
	now       func() time.Time
}

// NewMapper cria um mapeador com a configuração indicada
func NewMapper(cfg Config) *Mapper {
	return &Mapper{cfg: cfg, now: time.Now}
}

// Map produz os comandos de movimento de um tick. O seletor Both gera um
// comando independente por braço, cada um derivado do próprio estado do
// braço; os braços nunca são acoplados.
func (m *Mapper) Map(snap models.ControllerSnapshot, space models.MotionSpace, sel models.RobotSelector, reg *device.Registry) []models.MotionCommand {
	m.adjustSpeed(snap, sel, reg)

	if snap.Stale {
		return nil
	}

	var cmds []models.MotionCommand

	for _, id := range sel.Robots() {
		speed := reg.Speed(id)
		var delta [6]float64
		var kind models.CommandKind
		if space == models.SpaceCartesian {
			delta = m.cartesianDelta(snap, speed)
			kind = models.CmdCartesianDelta
		} else {
			delta = m.jointDelta(snap, speed)
			kind = models.CmdJointDelta
		}
		if !isZero(delta) {
			cmds = append(cmds, models.MotionCommand{
				Device: id,
				Kind:   kind,
				Delta:  delta,
				Speed:  speed,
			})
		}
	}

	// Trilho e alimentador respondem independentemente do sub-modo
	if track := m.trackDelta(snap, reg.Speed(models.DeviceTrack)); track != 0 {
		cmds = append(cmds, models.MotionCommand{
			Device: models.DeviceTrack,
			Kind:   models.CmdTrackDelta,
			Scalar: track,
			Speed:  reg.Speed(models.DeviceTrack),
		})
	}
	if feeder := m.feederDelta(snap, reg.Speed(models.DeviceFeeder)); feeder != 0 {
		cmds = append(cmds, models.MotionCommand{
			Device: models.DeviceFeeder,
			Kind:   models.CmdFeederDelta,
			Scalar: feeder,
			Speed:  reg.Speed(models.DeviceFeeder),
		})
	}

	return cmds
}

// jointDelta mapeia LS->J1/J2, RS->J3/J4 e D-pad->J5/J6
func (m *Mapper) jointDelta(snap models.ControllerSnapshot, speed float64) [6]float64 {
	step := m.cfg.MaxJointStep * speed
	var d [6]float64
	d[0] = snap.LeftStick.X * step
	d[1] = snap.LeftStick.Y * step
	d[2] = snap.RightStick.X * step
	d[3] = snap.RightStick.Y * step
	d[4] = dpadAxis(snap, models.ButtonDPadDown, models.ButtonDPadUp) * step
	d[5] = dpadAxis(snap, models.ButtonDPadRight, models.ButtonDPadLeft) * step
	return d
}

// cartesianDelta mapeia LS->X/Y, RS->Z/Rz e D-pad->Rx/Ry, sem qualquer
// cinemática: o firmware do braço resolve a pose
func (m *Mapper) cartesianDelta(snap models.ControllerSnapshot, speed float64) [6]float64 {
	step := m.cfg.MaxCartesianStep * speed
	var d [6]float64
	// Índices: 0=X 1=Y 2=Z 3=Rx 4=Ry 5=Rz
	d[0] = snap.LeftStick.X * step
	d[1] = snap.LeftStick.Y * step
	d[2] = snap.RightStick.Y * step
	d[5] = snap.RightStick.X * step
	d[3] = dpadAxis(snap, models.ButtonDPadUp, models.ButtonDPadDown) * step
	d[4] = dpadAxis(snap, models.ButtonDPadRight, models.ButtonDPadLeft) * step
	return d
}

func (m *Mapper) trackDelta(snap models.ControllerSnapshot, speed float64) float64 {
	step := m.cfg.TrackStep * speed
	switch {
	case snap.Held.Has(models.ButtonY):
		return step
	case snap.Held.Has(models.ButtonX):
		return -step
	}
	return 0
}

func (m *Mapper) feederDelta(snap models.ControllerSnapshot, speed float64) float64 {
	step := m.cfg.FeederStep * speed
	switch {
	case snap.Held.Has(models.ButtonRB):
		return step
	case snap.Held.Has(models.ButtonLB):
		return -step
	}
	return 0
}

// adjustSpeed aplica a rampa dos gatilhos diretamente na escala dos
// dispositivos ativos, com limitação de taxa; não gera MotionCommand
func (m *Mapper) adjustSpeed(snap models.ControllerSnapshot, sel models.RobotSelector, reg *device.Registry) {
	up := snap.RightTrigger > m.cfg.TriggerThreshold
	down := snap.LeftTrigger > m.cfg.TriggerThreshold
	if up == down {
		return
	}
	now := m.now()
	if now.Sub(m.lastSpeed) < m.cfg.SpeedRateLimit {
		return
	}
	m.lastSpeed = now

	step := m.cfg.SpeedStep
	if down {
		step = -step
	}
	reg.AdjustSpeed(sel, step)
}

// dpadAxis converte um par de direções do D-pad em um eixo -1/0/+1
func dpadAxis(snap models.ControllerSnapshot, positive, negative models.Button) float64 {
	switch {
	case snap.Held.Has(positive) && !snap.Held.Has(negative):
		return 1
	case snap.Held.Has(negative) && !snap.Held.Has(positive):
		return -1
	}
	return 0
}

func isZero(d [6]float64) bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}
