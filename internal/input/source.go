package input

import (
	"errors"
	"sync"
	"time"

	"teleop_go/internal/models"
)

// ErrSourceDisconnected indica que a fonte de entrada não tem estado recente
var ErrSourceDisconnected = errors.New("fonte de entrada desconectada")

// RawState é o estado bruto do gamepad entregue pelo driver, antes da
// aplicação de deadzone e da detecção de bordas
type RawState struct {
	LeftX, LeftY   float64
	RightX, RightY float64
	LeftTrigger    float64
	RightTrigger   float64
	Buttons        models.ButtonSet
}

// Source abstrai o driver do gamepad. Poll nunca bloqueia: devolve o último
// estado conhecido ou erro quando a fonte está desconectada.
type Source interface {
	Poll() (RawState, error)
}

// PushSource é uma fonte alimentada por um driver externo que empurra o
// estado decodificado. Poll devolve o último estado recebido; se nenhum
// estado chegar dentro da janela de validade, a fonte é tratada como
// desconectada.
type PushSource struct {
	mu       sync.RWMutex
	state    RawState
	lastPush time.Time
	maxAge   time.Duration
}

// NewPushSource cria uma fonte com a janela de validade indicada
func NewPushSource(maxAge time.Duration) *PushSource {
	return &PushSource{maxAge: maxAge}
}

// Push registra o estado mais recente do driver
func (s *PushSource) Push(state RawState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Buttons == nil {
		state.Buttons = models.ButtonSet{}
	}
	s.state = state
	s.lastPush = time.Now()
}

// Poll devolve o último estado, ou erro se a janela de validade expirou
func (s *PushSource) Poll() (RawState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPush.IsZero() || time.Since(s.lastPush) > s.maxAge {
		return RawState{}, ErrSourceDisconnected
	}
	return s.state, nil
}
