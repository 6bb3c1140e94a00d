package models

import "time"

// WebSocketMessage é a base de todas as mensagens enviadas aos clientes
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// StateMessage difunde o snapshot completo da sessão
type StateMessage struct {
	WebSocketMessage
	State SessionSnapshot `json:"state"`
}

// EventMessage difunde uma ocorrência discreta
type EventMessage struct {
	WebSocketMessage
	Event Event `json:"event"`
}

// PongMessage responde a um ping de cliente
type PongMessage struct {
	WebSocketMessage
	Echo string `json:"echo,omitempty"`
}

// ClientCommand é o comando recebido de um cliente WebSocket.
// Apenas consultas somente leitura são aceitas; o cliente nunca altera
// o estado da sessão.
type ClientCommand struct {
	Command string `json:"command"`
	Echo    string `json:"echo,omitempty"`
}
