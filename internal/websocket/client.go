package websocket

import (
	"bytes"
	"encoding/json"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Tempo máximo para escrever uma mensagem ao cliente
	writeWait = 10 * time.Second
	// Tempo máximo sem pong antes de considerar o cliente morto
	pongWait = 60 * time.Second
	// Período de envio de pings (deve ser menor que pongWait)
	pingPeriod = (pongWait * 9) / 10
	// Capacidade do buffer de envio por cliente
	sendBufferSize = 64
)

// Client é uma conexão WebSocket observadora da sessão
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userAgent string
	ipAddress string
}

// newClient cria um cliente a partir de uma conexão aceita
func newClient(hub *Hub, conn *websocket.Conn, userAgent, ipAddress string) *Client {
	return &Client{
		id:        uuid.New().String(),
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		userAgent: userAgent,
		ipAddress: ipAddress,
	}
}

// sendState entrega um snapshot diretamente a este cliente
func (c *Client) sendState(state models.SessionSnapshot) {
	msg := models.StateMessage{
		WebSocketMessage: models.WebSocketMessage{Type: "state", Timestamp: time.Now()},
		State:            state,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Erro ao serializar snapshot para %s: %v", c.id, err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump consome as mensagens do cliente até a conexão cair
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("Conexão de %s encerrada inesperadamente: %v", c.id, err)
			}
			return
		}
		c.processIncomingMessage(message)
	}
}

// processIncomingMessage interpreta um comando do cliente. Apenas
// consultas somente leitura são atendidas; qualquer outra coisa é
// registrada e ignorada.
func (c *Client) processIncomingMessage(message []byte) {
	decoder := json.NewDecoder(bytes.NewReader(message))
	decoder.DisallowUnknownFields()

	var cmd models.ClientCommand
	if err := decoder.Decode(&cmd); err != nil {
		logger.Debugf("Mensagem inválida de %s ignorada: %v", c.id, err)
		return
	}

	switch cmd.Command {
	case "get_state":
		if c.hub.state != nil {
			c.sendState(c.hub.state.Snapshot())
		}
	case "ping":
		pong := models.PongMessage{
			WebSocketMessage: models.WebSocketMessage{Type: "pong", Timestamp: time.Now()},
			Echo:             cmd.Echo,
		}
		if data, err := json.Marshal(pong); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	default:
		logger.Debugf("Comando desconhecido de %s ignorado: %q", c.id, cmd.Command)
	}
}

// writePump envia mensagens e pings ao cliente
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
