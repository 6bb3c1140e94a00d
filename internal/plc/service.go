package plc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"teleop_go/internal/config"
	"teleop_go/internal/models"
	"teleop_go/pkg/logger"
)

// Layout do data block de segurança espelhado no CLP:
//
//	byte 0 bit 0: parada de emergência armada
//	byte 0 bit 1: gamepad indisponível
//	byte 0 bit 2: playback em execução
//	bytes 1-4:    estado de robot1, robot2, trilho, alimentador
//	              (0 conectado, 1 desconectado, 2 em falha)
//	bytes 6-7:    contagem de waypoints da trajetória corrente
const safetyBlockSize = 8

// Service espelha o estado de segurança da célula em um CLP S7, no seu
// próprio ritmo, alimentado por um canal limitado fora do laço de
// controle. Opcional e desabilitado por padrão.
type Service struct {
	client *S7Client
	cfg    config.PLCConfig

	updates chan models.SessionSnapshot

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewService cria o espelho de segurança
func NewService(cfg config.PLCConfig) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		client:  NewS7Client(cfg.Host, cfg.Rack, cfg.Slot),
		cfg:     cfg,
		updates: make(chan models.SessionSnapshot, 4),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start conecta ao CLP e inicia o laço de atualização
func (s *Service) Start() error {
	if err := s.client.Connect(); err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runUpdateLoop()
	return nil
}

// Stop encerra o laço e a conexão
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.client.Close()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	logger.Info("Espelho de segurança no CLP encerrado")
}

// IsRunning informa se o espelho está ativo
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// UpdateState entrega um snapshot ao espelho. Nunca bloqueia: com o
// canal cheio o snapshot é descartado, o próximo trará estado mais novo.
func (s *Service) UpdateState(state models.SessionSnapshot) {
	select {
	case s.updates <- state:
	default:
	}
}

// runUpdateLoop escreve o bloco de segurança no ritmo configurado,
// sempre com o snapshot mais recente disponível
func (s *Service) runUpdateLoop() {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.UpdateRateMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latest *models.SessionSnapshot

	for {
		select {
		case <-s.ctx.Done():
			return
		case state := <-s.updates:
			latest = &state
		case <-ticker.C:
			if latest == nil {
				continue
			}
			if err := s.writeSafetyBlock(*latest); err != nil {
				logger.Errorf("Erro ao espelhar estado no CLP: %v", err)
				// Tenta reconectar no próximo ciclo
				if !s.client.IsConnected() {
					if err := s.client.Connect(); err != nil {
						logger.Debugf("Reconexão ao CLP falhou: %v", err)
					}
				}
			}
			latest = nil
		}
	}
}

// writeSafetyBlock serializa o snapshot e o grava no data block
func (s *Service) writeSafetyBlock(state models.SessionSnapshot) error {
	return s.client.WriteDB(s.cfg.DBNumber, 0, encodeSafetyBlock(state))
}

// encodeSafetyBlock serializa o snapshot no layout do data block
func encodeSafetyBlock(state models.SessionSnapshot) []byte {
	buf := make([]byte, safetyBlockSize)

	if state.EmergencyStop {
		buf[0] |= 1 << 0
	}
	if state.InputStale {
		buf[0] |= 1 << 1
	}
	if state.Pathway.State == models.PathwayPlaybackRunning.String() {
		buf[0] |= 1 << 2
	}

	for i, id := range models.AllDevices() {
		buf[1+i] = statusCode(state.Devices[id].Status)
	}

	count := state.Pathway.WaypointCount
	if count > 0xFFFF {
		count = 0xFFFF
	}
	binary.BigEndian.PutUint16(buf[6:8], uint16(count))
	return buf
}

func statusCode(status models.ConnectionStatus) byte {
	switch status {
	case models.StatusConnected:
		return 0
	case models.StatusDisconnected:
		return 1
	default:
		return 2
	}
}
