package plc

import (
	"fmt"
	"sync"
	"time"

	"teleop_go/pkg/logger"

	"github.com/robinson/gos7"
)

// S7Client encapsula a conexão com o CLP Siemens S7 usado como espelho
// de segurança da célula
type S7Client struct {
	handler *gos7.TCPClientHandler
	client  gos7.Client

	mutex     sync.Mutex
	connected bool
}

// NewS7Client cria o cliente para o CLP indicado
func NewS7Client(host string, rack, slot int) *S7Client {
	handler := gos7.NewTCPClientHandler(host, rack, slot)
	handler.Timeout = 5 * time.Second
	handler.IdleTimeout = 10 * time.Second

	return &S7Client{handler: handler}
}

// Connect estabelece a conexão com o CLP
func (c *S7Client) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.handler.Connect(); err != nil {
		c.connected = false
		return fmt.Errorf("erro ao conectar ao CLP %s: %w", c.handler.Address, err)
	}

	c.client = gos7.NewClient(c.handler)
	c.connected = true
	logger.Infof("Conectado ao CLP em %s", c.handler.Address)
	return nil
}

// IsConnected informa se a conexão está ativa
func (c *S7Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connected
}

// WriteDB grava um bloco de bytes no data block indicado
func (c *S7Client) WriteDB(dbNumber, start int, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.connected {
		return fmt.Errorf("CLP não conectado")
	}
	if err := c.client.AGWriteDB(dbNumber, start, len(data), data); err != nil {
		c.connected = false
		return fmt.Errorf("erro ao escrever DB%d: %w", dbNumber, err)
	}
	return nil
}

// Close encerra a conexão com o CLP
func (c *S7Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.connected = false
	return c.handler.Close()
}
