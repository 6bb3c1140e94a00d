package models

import "time"

// ConnectionStatus é o estado de comunicação de um dispositivo
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusFaulted      ConnectionStatus = "faulted"
)

// RobotPose é a pose articular de um braço, incluindo a posição do carro
// no trilho (J7) reportada pelo firmware do próprio braço
type RobotPose struct {
	Joints [6]float64 `json:"joints"`
	J7     float64    `json:"j7"`
}

// CartesianPose é a pose cartesiana X, Y, Z, Rx, Ry, Rz
type CartesianPose [6]float64

// DeviceSnapshot é a visão somente leitura do estado de um dispositivo
type DeviceSnapshot struct {
	ID         DeviceID         `json:"id"`
	Status     ConnectionStatus `json:"status"`
	Robot      *RobotPose       `json:"robot,omitempty"`
	Cartesian  *CartesianPose   `json:"cartesian,omitempty"`
	Position   float64          `json:"position,omitempty"`
	Speed      float64          `json:"speed"`
	Halted     bool             `json:"halted"`
	LastUpdate time.Time        `json:"last_update"`
}
