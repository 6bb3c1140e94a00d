package models

import "time"

// Button identifica um botão físico do gamepad
type Button string

const (
	ButtonA         Button = "A"
	ButtonB         Button = "B"
	ButtonX         Button = "X"
	ButtonY         Button = "Y"
	ButtonLB        Button = "LB"
	ButtonRB        Button = "RB"
	ButtonBack      Button = "BACK"
	ButtonStart     Button = "START"
	ButtonDPadUp    Button = "DPAD_UP"
	ButtonDPadDown  Button = "DPAD_DOWN"
	ButtonDPadLeft  Button = "DPAD_LEFT"
	ButtonDPadRight Button = "DPAD_RIGHT"
)

// Stick representa a posição de um analógico, já com deadzone aplicada
type Stick struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ButtonSet é o conjunto de botões em um dado estado
type ButtonSet map[Button]bool

// Has informa se o botão está presente no conjunto
func (s ButtonSet) Has(b Button) bool {
	return s[b]
}

// Clone devolve uma cópia independente do conjunto
func (s ButtonSet) Clone() ButtonSet {
	out := make(ButtonSet, len(s))
	for b, v := range s {
		if v {
			out[b] = true
		}
	}
	return out
}

// ControllerSnapshot é o retrato imutável do gamepad em um tick.
// Held contém os botões pressionados no momento; JustPressed e JustReleased
// contêm as bordas detectadas em relação ao snapshot anterior.
type ControllerSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	LeftStick    Stick     `json:"left_stick"`
	RightStick   Stick     `json:"right_stick"`
	LeftTrigger  float64   `json:"left_trigger"`
	RightTrigger float64   `json:"right_trigger"`
	Held         ButtonSet `json:"held"`
	JustPressed  ButtonSet `json:"just_pressed"`
	JustReleased ButtonSet `json:"just_released"`
	// Stale indica que a fonte está desconectada e o snapshot é neutro
	Stale bool `json:"stale"`
}

// NeutralSnapshot devolve um snapshot todo em repouso, sem bordas
func NeutralSnapshot(stale bool) ControllerSnapshot {
	return ControllerSnapshot{
		Timestamp:    time.Now(),
		Held:         ButtonSet{},
		JustPressed:  ButtonSet{},
		JustReleased: ButtonSet{},
		Stale:        stale,
	}
}
