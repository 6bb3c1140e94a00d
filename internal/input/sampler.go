package input

import (
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
	"teleop_go/pkg/utils"
)

// Sampler transforma o estado bruto do gamepad em snapshots imutáveis com
// deadzone aplicada e bordas de botão detectadas contra o tick anterior.
type Sampler struct {
	source   Source
	deadzone float64

	// prev guarda apenas o conjunto de botões do snapshot anterior;
	// é tudo que a detecção de bordas precisa reter
	prev  models.ButtonSet
	stale bool
}

// NewSampler cria um sampler sobre a fonte indicada
func NewSampler(source Source, deadzone float64) *Sampler {
	return &Sampler{
		source:   source,
		deadzone: deadzone,
		prev:     models.ButtonSet{},
	}
}

// Sample colhe um snapshot do gamepad. Nunca bloqueia: se a fonte estiver
// desconectada devolve um snapshot neutro marcado como stale, sem bordas.
func (s *Sampler) Sample() models.ControllerSnapshot {
	raw, err := s.source.Poll()
	if err != nil {
		if !s.stale {
			logger.Warnf("Gamepad indisponível, entrando em estado neutro: %v", err)
			s.stale = true
		}
		// Sem bordas sintéticas: o conjunto anterior é descartado para que
		// a reconexão não dispare releases fantasmas
		s.prev = models.ButtonSet{}
		return models.NeutralSnapshot(true)
	}

	if s.stale {
		logger.Info("Gamepad novamente disponível")
		s.stale = false
	}

	held := raw.Buttons.Clone()
	pressed := models.ButtonSet{}
	released := models.ButtonSet{}

	for b := range held {
		if !s.prev.Has(b) {
			pressed[b] = true
		}
	}
	for b := range s.prev {
		if !held.Has(b) {
			released[b] = true
		}
	}
	s.prev = held

	return models.ControllerSnapshot{
		Timestamp: time.Now(),
		LeftStick: models.Stick{
			X: s.axis(raw.LeftX),
			Y: s.axis(raw.LeftY),
		},
		RightStick: models.Stick{
			X: s.axis(raw.RightX),
			Y: s.axis(raw.RightY),
		},
		LeftTrigger:  utils.Clamp(raw.LeftTrigger, 0, 1),
		RightTrigger: utils.Clamp(raw.RightTrigger, 0, 1),
		Held:         held,
		JustPressed:  pressed,
		JustReleased: released,
	}
}

// axis aplica a deadzone: abaixo do limiar o eixo vale exatamente zero,
// acima dele o valor passa inalterado (sem reescala)
func (s *Sampler) axis(v float64) float64 {
	return utils.ApplyDeadzone(v, s.deadzone)
}
