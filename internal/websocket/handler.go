package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"teleop_go/pkg/logger"

	"github.com/gorilla/websocket"
)

// Tamanho máximo de mensagem aceito de um cliente; os comandos de
// consulta são minúsculos, qualquer coisa maior é abuso
const maxClientMessageSize = 4 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// A GUI local e os painéis da oficina conectam de origens variadas
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler aceita conexões WebSocket e as registra no hub
type Handler struct {
	hub *Hub
}

// NewHandler cria o handler sobre o hub indicado
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP implementa http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("Erro ao fazer upgrade para WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(maxClientMessageSize)

	client := newClient(h.hub, conn, r.UserAgent(), clientAddress(r))
	logger.Infof("Nova conexão WebSocket de %s", client.ipAddress)

	h.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// clientAddress extrai o endereço do cliente, respeitando proxies
func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// GetHealthHandler devolve o estado do hub para monitoramento
func (h *Handler) GetHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Status    string    `json:"status"`
			Clients   int       `json:"clients"`
			Timestamp time.Time `json:"timestamp"`
		}{
			Status:    "ok",
			Clients:   h.hub.ClientCount(),
			Timestamp: time.Now(),
		})
	}
}
