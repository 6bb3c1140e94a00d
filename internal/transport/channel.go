package transport

import (
	"bufio"
	"context"
	"errors"
	"sync"
	"time"

	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
)

// ErrQueueFull indica que a fila de envio está cheia; o comando mais
// recente é descartado (política reject-newest)
var ErrQueueFull = errors.New("fila de envio cheia")

// ErrChannelClosed indica envio após o encerramento do canal
var ErrChannelClosed = errors.New("canal de transporte encerrado")

// ChannelConfig parametriza um canal de transporte
type ChannelConfig struct {
	// QueueSize é a capacidade da fila de envio
	QueueSize int
	// AckTimeout é a janela de prova de vida; sem qualquer byte recebido
	// dentro dela o dispositivo é marcado Disconnected
	AckTimeout time.Duration
	// HeartbeatInterval é o período do pedido de posição
	HeartbeatInterval time.Duration
}

// DefaultChannelConfig devolve a parametrização padrão de um canal
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		QueueSize:         32,
		AckTimeout:        2 * time.Second,
		HeartbeatInterval: 500 * time.Millisecond,
	}
}

// Channel é o enlace de comandos de um dispositivo: uma fila SPSC
// limitada drenada por uma goroutine dedicada de envio, com prova de
// vida por heartbeat e um caminho prioritário para parada de emergência
// que contorna a fila.
type Channel struct {
	id   models.DeviceID
	port Port
	enc  Encoder
	cfg  ChannelConfig

	queue chan []byte
	estop chan []byte

	mu      sync.RWMutex
	status  models.ConnectionStatus
	lastAck time.Time
	dropped uint64

	// onStatus é chamado a cada transição de estado do enlace
	onStatus func(models.DeviceID, models.ConnectionStatus)
	// onFeedback recebe cada linha íntegra vinda do dispositivo
	onFeedback func(models.DeviceID, string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChannel cria o canal do dispositivo sobre a porta indicada
func NewChannel(id models.DeviceID, port Port, enc Encoder, cfg ChannelConfig) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		id:     id,
		port:   port,
		enc:    enc,
		cfg:    cfg,
		queue:  make(chan []byte, cfg.QueueSize),
		estop:  make(chan []byte, 1),
		status: models.StatusConnected,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetStatusHandler registra o observador de transições de estado
func (c *Channel) SetStatusHandler(fn func(models.DeviceID, models.ConnectionStatus)) {
	c.onStatus = fn
}

// SetFeedbackHandler registra o consumidor de linhas de posição
func (c *Channel) SetFeedbackHandler(fn func(models.DeviceID, string)) {
	c.onFeedback = fn
}

// Start inicia as goroutines de envio, leitura e prova de vida
func (c *Channel) Start() {
	c.mu.Lock()
	c.lastAck = time.Now()
	c.mu.Unlock()

	c.wg.Add(3)
	go c.senderLoop()
	go c.readLoop()
	go c.livenessLoop()
	logger.Infof("Canal de transporte de %s iniciado", c.id)
}

// Close encerra o canal e fecha a porta
func (c *Channel) Close() error {
	c.cancel()
	err := c.port.Close()
	c.wg.Wait()
	return err
}

// ID devolve o dispositivo servido pelo canal
func (c *Channel) ID() models.DeviceID {
	return c.id
}

// Status devolve o estado corrente do enlace
func (c *Channel) Status() models.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Dropped devolve o total de comandos rejeitados por fila cheia
func (c *Channel) Dropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// Send codifica e enfileira um comando. Nunca bloqueia: com a fila
// cheia o comando mais recente é rejeitado com ErrQueueFull.
func (c *Channel) Send(cmd models.MotionCommand) error {
	frame, err := c.enc.Encode(cmd)
	if err != nil {
		return err
	}
	if frame == nil {
		return nil
	}
	if c.ctx.Err() != nil {
		return ErrChannelClosed
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		logger.Debugf("Fila de %s cheia, comando %s descartado", c.id, cmd.Kind)
		return ErrQueueFull
	}
}

// EmergencyStop descarta todos os comandos pendentes e injeta a parada
// de emergência no caminho prioritário, à frente da fila normal
func (c *Channel) EmergencyStop() {
	c.drainQueue()
	select {
	case c.estop <- c.enc.EmergencyStop():
	default:
		// Já existe uma parada pendente no caminho prioritário
	}
	logger.Warnf("Parada de emergência injetada no canal de %s", c.id)
}

// ClearPending descarta os comandos de movimento ainda não transmitidos
func (c *Channel) ClearPending() {
	c.drainQueue()
}

func (c *Channel) drainQueue() {
	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

// senderLoop drena a fila de envio. O caminho de emergência é sempre
// consultado antes da fila normal.
func (c *Channel) senderLoop() {
	defer c.wg.Done()

	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		// Prioridade absoluta para a parada de emergência
		select {
		case frame := <-c.estop:
			c.write(frame)
			continue
		default:
		}

		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.estop:
			c.write(frame)
		case frame := <-c.queue:
			c.write(frame)
		case <-heartbeat.C:
			c.write(c.enc.Heartbeat())
		}
	}
}

func (c *Channel) write(frame []byte) {
	if len(frame) == 0 {
		return
	}
	line := make([]byte, 0, len(frame)+1)
	line = append(line, frame...)
	line = append(line, '\n')
	if _, err := c.port.Write(line); err != nil {
		logger.Errorf("Erro de escrita no canal de %s: %v", c.id, err)
		c.setStatus(models.StatusFaulted)
	}
}

// readLoop consome as linhas vindas do dispositivo. Qualquer byte
// recebido conta como prova de vida do enlace.
func (c *Channel) readLoop() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		if c.ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		c.mu.Lock()
		c.lastAck = time.Now()
		c.mu.Unlock()
		c.setStatus(models.StatusConnected)

		if c.onFeedback != nil && line != "" {
			c.onFeedback(c.id, line)
		}
	}
	if err := scanner.Err(); err != nil && c.ctx.Err() == nil {
		logger.Errorf("Erro de leitura no canal de %s: %v", c.id, err)
		c.setStatus(models.StatusFaulted)
	}
}

// livenessLoop vigia a janela de prova de vida
func (c *Channel) livenessLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AckTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			silent := time.Since(c.lastAck) > c.cfg.AckTimeout
			c.mu.RUnlock()
			if silent {
				c.setStatus(models.StatusDisconnected)
			}
		}
	}
}

func (c *Channel) setStatus(status models.ConnectionStatus) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	switch status {
	case models.StatusConnected:
		logger.Infof("Dispositivo %s conectado", c.id)
	case models.StatusDisconnected:
		logger.Warnf("Dispositivo %s sem resposta, marcado como desconectado", c.id)
	case models.StatusFaulted:
		logger.Errorf("Dispositivo %s em falha", c.id)
	}

	if c.onStatus != nil {
		c.onStatus(c.id, status)
	}
}
