package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
)

// StateProvider entrega o snapshot corrente da sessão sob demanda
type StateProvider interface {
	Snapshot() models.SessionSnapshot
}

// Hub gerencia os clientes WebSocket e a difusão de snapshots e eventos.
// Os clientes são estritamente observadores: nenhuma mensagem recebida
// altera o estado da sessão.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	state StateProvider

	mu            sync.RWMutex
	lastBroadcast time.Time
	// minInterval limita a difusão de snapshots para não saturar
	// clientes lentos com os 50Hz do laço de controle
	minInterval time.Duration

	running bool
	done    chan struct{}
}

// NewHub cria um hub de clientes WebSocket
func NewHub(state StateProvider) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 64),
		state:       state,
		minInterval: 100 * time.Millisecond,
		done:        make(chan struct{}),
	}
}

// Run processa registros, remoções e difusões até Stop ser chamado
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	logger.Info("Hub WebSocket iniciado")
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.running = false
			h.mu.Unlock()
			logger.Info("Hub WebSocket encerrado")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.Infof("Cliente WebSocket %s registrado (%d ativos)", client.id, count)

			// Snapshot imediato para o cliente recém-chegado
			if h.state != nil {
				client.sendState(h.state.Snapshot())
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logger.Infof("Cliente WebSocket %s removido (%d ativos)", client.id, count)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Cliente sem drenar o buffer é considerado morto
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop encerra o hub e desconecta todos os clientes
func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount devolve o número de clientes ativos
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastState difunde um snapshot de sessão, com limitação de taxa
func (h *Hub) BroadcastState(state models.SessionSnapshot) {
	h.mu.Lock()
	if time.Since(h.lastBroadcast) < h.minInterval {
		h.mu.Unlock()
		return
	}
	h.lastBroadcast = time.Now()
	h.mu.Unlock()

	msg := models.StateMessage{
		WebSocketMessage: models.WebSocketMessage{Type: "state", Timestamp: time.Now()},
		State:            state,
	}
	h.enqueue(msg)
}

// BroadcastEvent difunde uma ocorrência discreta, sem limitação de taxa
func (h *Hub) BroadcastEvent(ev models.Event) {
	msg := models.EventMessage{
		WebSocketMessage: models.WebSocketMessage{Type: "event", Timestamp: time.Now()},
		Event:            ev,
	}
	h.enqueue(msg)
}

func (h *Hub) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("Erro ao serializar mensagem WebSocket: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Debug("Difusão descartada: canal de broadcast cheio")
	}
}
