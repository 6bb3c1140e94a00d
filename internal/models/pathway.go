package models

import (
	"fmt"
	"time"
)

// Waypoint é um ponto capturado de uma trajetória. Os campos presentes
// dependem do robot_mode da trajetória: r1 e/ou r2, e opcionalmente a
// posição do alimentador.
type Waypoint struct {
	R1     *RobotPose `json:"r1,omitempty"`
	R2     *RobotPose `json:"r2,omitempty"`
	Feeder *float64   `json:"feeder,omitempty"`
}

// Clone devolve uma cópia profunda do waypoint
func (w Waypoint) Clone() Waypoint {
	out := Waypoint{}
	if w.R1 != nil {
		p := *w.R1
		out.R1 = &p
	}
	if w.R2 != nil {
		p := *w.R2
		out.R2 = &p
	}
	if w.Feeder != nil {
		f := *w.Feeder
		out.Feeder = &f
	}
	return out
}

// Pathway é uma trajetória nomeada de waypoints. O layout JSON é contrato
// externo fixo: name, robot_mode, created e waypoints. O flag de loop é
// estado de execução e não é persistido.
type Pathway struct {
	Name      string     `json:"name"`
	RobotMode string     `json:"robot_mode"`
	Created   time.Time  `json:"created"`
	Waypoints []Waypoint `json:"waypoints"`

	Loop bool `json:"-"`
}

// Selector devolve o seletor de braços gravado na trajetória
func (p *Pathway) Selector() (RobotSelector, error) {
	sel, ok := ParseRobotSelector(p.RobotMode)
	if !ok {
		return sel, fmt.Errorf("robot_mode inválido: %q", p.RobotMode)
	}
	return sel, nil
}

// Validate confere a coerência estrutural entre robot_mode e os waypoints
func (p *Pathway) Validate() error {
	sel, err := p.Selector()
	if err != nil {
		return err
	}
	for i, wp := range p.Waypoints {
		if sel.Includes(DeviceRobot1) && wp.R1 == nil {
			return fmt.Errorf("waypoint %d sem pose r1 exigida por robot_mode=%s", i, p.RobotMode)
		}
		if sel.Includes(DeviceRobot2) && wp.R2 == nil {
			return fmt.Errorf("waypoint %d sem pose r2 exigida por robot_mode=%s", i, p.RobotMode)
		}
		if !sel.Includes(DeviceRobot1) && wp.R1 != nil {
			return fmt.Errorf("waypoint %d com pose r1 inesperada para robot_mode=%s", i, p.RobotMode)
		}
		if !sel.Includes(DeviceRobot2) && wp.R2 != nil {
			return fmt.Errorf("waypoint %d com pose r2 inesperada para robot_mode=%s", i, p.RobotMode)
		}
	}
	return nil
}

// PathwayState é o estado do motor de trajetórias
type PathwayState int

const (
	PathwayIdle PathwayState = iota
	PathwayRecording
	PathwayPlaybackRunning
	PathwayPlaybackPaused
)

func (s PathwayState) String() string {
	switch s {
	case PathwayRecording:
		return "recording"
	case PathwayPlaybackRunning:
		return "playback_running"
	case PathwayPlaybackPaused:
		return "playback_paused"
	default:
		return "idle"
	}
}

// PathwaySnapshot é a visão somente leitura do motor de trajetórias
type PathwaySnapshot struct {
	State         string `json:"state"`
	Name          string `json:"name"`
	RobotMode     string `json:"robot_mode"`
	WaypointCount int    `json:"waypoint_count"`
	Loop          bool   `json:"loop"`
	Cursor        int    `json:"cursor"`
	Busy          bool   `json:"busy"`
}
