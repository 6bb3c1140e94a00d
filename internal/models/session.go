package models

import "time"

// Event é uma ocorrência discreta reportada pelo dispatcher aos
// colaboradores externos (hub, redis, espelho PLC)
type Event struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Device    DeviceID  `json:"device,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Códigos de evento reportados pelo dispatcher
const (
	EventModeMismatch       = "mode_mismatch"
	EventEmptyPathway       = "empty_pathway"
	EventQueueFull          = "queue_full"
	EventTransportTimeout   = "transport_timeout"
	EventInputStale         = "input_stale"
	EventPersistenceFailure = "persistence_failure"
	EventEmergencyStop      = "emergency_stop"
	EventEmergencyCleared   = "emergency_cleared"
	EventPathwaySaved       = "pathway_saved"
	EventPathwayLoaded      = "pathway_loaded"
)

// SessionSnapshot é o retrato completo da sessão, somente leitura,
// difundido aos clientes WebSocket e publicado no Redis
type SessionSnapshot struct {
	Timestamp     time.Time                   `json:"timestamp"`
	Mode          string                      `json:"mode"`
	Space         string                      `json:"space"`
	Selector      string                      `json:"selector"`
	EmergencyStop bool                        `json:"emergency_stop"`
	InputStale    bool                        `json:"input_stale"`
	Devices       map[DeviceID]DeviceSnapshot `json:"devices"`
	Pathway       PathwaySnapshot             `json:"pathway"`
	Tick          uint64                      `json:"tick"`
}
