package device

import (
	"sync"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/utils"
)

// Limites da escala de velocidade compartilhados com o mapeador
const (
	MinSpeedScale = 0.1
	MaxSpeedScale = 2.0
)

// state é o estado vivo de um dispositivo. Toda mutação acontece na
// goroutine do dispatcher; o mutex do registro protege apenas os leitores
// de snapshot (API, hub, redis).
type state struct {
	id         models.DeviceID
	status     models.ConnectionStatus
	robot      models.RobotPose
	cartesian  models.CartesianPose
	position   float64
	speed      float64
	halted     bool
	lastUpdate time.Time
}

// Registry guarda o estado dos quatro dispositivos da célula
type Registry struct {
	mu     sync.RWMutex
	states map[models.DeviceID]*state
}

// NewRegistry cria o registro com todos os dispositivos desconectados e
// escala de velocidade 1.0
func NewRegistry() *Registry {
	r := &Registry{states: make(map[models.DeviceID]*state)}
	for _, id := range models.AllDevices() {
		r.states[id] = &state{
			id:     id,
			status: models.StatusDisconnected,
			speed:  1.0,
		}
	}
	return r
}

func (r *Registry) get(id models.DeviceID) *state {
	return r.states[id]
}

// ApplyJointDelta soma deslocamentos articulares ao braço indicado
func (r *Registry) ApplyJointDelta(id models.DeviceID, delta [6]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(id)
	for i := range delta {
		s.robot.Joints[i] += delta[i]
	}
	s.lastUpdate = time.Now()
}

// ApplyCartesianDelta soma deslocamentos cartesianos ao braço indicado
func (r *Registry) ApplyCartesianDelta(id models.DeviceID, delta [6]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(id)
	for i := range delta {
		s.cartesian[i] += delta[i]
	}
	s.lastUpdate = time.Now()
}

// ApplyTrackDelta desloca o trilho e espelha o J7 dos braços selecionados,
// já que o carro é compartilhado mas cada firmware reporta sua posição
func (r *Registry) ApplyTrackDelta(delta float64, sel models.RobotSelector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	track := r.get(models.DeviceTrack)
	track.position += delta
	track.lastUpdate = now
	for _, id := range sel.Robots() {
		s := r.get(id)
		s.robot.J7 += delta
		s.lastUpdate = now
	}
}

// ApplyFeederDelta desloca o alimentador de tubos
func (r *Registry) ApplyFeederDelta(delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(models.DeviceFeeder)
	s.position += delta
	s.lastUpdate = time.Now()
}

// SetRobotPose aplica uma pose articular absoluta (playback)
func (r *Registry) SetRobotPose(id models.DeviceID, pose models.RobotPose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(id)
	s.robot = pose
	s.lastUpdate = time.Now()
}

// SetFeederPosition aplica uma posição absoluta ao alimentador (playback)
func (r *Registry) SetFeederPosition(pos float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(models.DeviceFeeder)
	s.position = pos
	s.lastUpdate = time.Now()
}

// RobotPose devolve a pose atual do braço
func (r *Registry) RobotPose(id models.DeviceID) models.RobotPose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id).robot
}

// FeederPosition devolve a posição atual do alimentador
func (r *Registry) FeederPosition() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(models.DeviceFeeder).position
}

// Speed devolve a escala de velocidade do dispositivo
func (r *Registry) Speed(id models.DeviceID) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id).speed
}

// AdjustSpeed soma um passo à escala dos braços selecionados, do trilho e
// do alimentador, limitada a [MinSpeedScale, MaxSpeedScale]
func (r *Registry) AdjustSpeed(sel models.RobotSelector, step float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	targets := append(sel.Robots(), models.DeviceTrack, models.DeviceFeeder)
	for _, id := range targets {
		s := r.get(id)
		s.speed = utils.Clamp(s.speed+step, MinSpeedScale, MaxSpeedScale)
	}
}

// SetStatus atualiza o estado de comunicação do dispositivo
func (r *Registry) SetStatus(id models.DeviceID, status models.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(id)
	s.status = status
	s.lastUpdate = time.Now()
}

// Status devolve o estado de comunicação do dispositivo
func (r *Registry) Status(id models.DeviceID) models.ConnectionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id).status
}

// HaltAll marca todos os dispositivos como parados (parada de emergência)
func (r *Registry) HaltAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, s := range r.states {
		s.halted = true
		s.lastUpdate = now
	}
}

// ClearHalt libera todos os dispositivos após a emergência ser desarmada
func (r *Registry) ClearHalt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, s := range r.states {
		s.halted = false
		s.lastUpdate = now
	}
}

// Snapshot devolve uma cópia somente leitura do estado de todos os
// dispositivos
func (r *Registry) Snapshot() map[models.DeviceID]models.DeviceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.DeviceID]models.DeviceSnapshot, len(r.states))
	for id, s := range r.states {
		snap := models.DeviceSnapshot{
			ID:         id,
			Status:     s.status,
			Speed:      s.speed,
			Halted:     s.halted,
			LastUpdate: s.lastUpdate,
		}
		switch id {
		case models.DeviceRobot1, models.DeviceRobot2:
			pose := s.robot
			cart := s.cartesian
			snap.Robot = &pose
			snap.Cartesian = &cart
		default:
			snap.Position = s.position
		}
		out[id] = snap
	}
	return out
}
