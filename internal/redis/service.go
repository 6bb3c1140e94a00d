package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"teleop_go/internal/config"
	"teleop_go/internal/models"
	"teleop_go/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Service publica o estado da sessão de teleoperação no Redis para
// painéis e dashboards externos. Opcional: sem servidor disponível o
// serviço degrada para modo offline e o laço de controle segue intacto.
type Service struct {
	client *redis.Client
	cfg    config.RedisConfig

	mu          sync.RWMutex
	connected   bool
	lastAttempt time.Time
}

// NewService cria o publicador e testa a conexão uma vez
func NewService(cfg config.RedisConfig) *Service {
	s := &Service{cfg: cfg}
	if !cfg.Enabled {
		logger.Info("Publicação no Redis desabilitada")
		return s
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := s.TestConnection(); err != nil {
		logger.Warnf("Redis indisponível, operando em modo offline: %v", err)
		return s
	}
	s.connected = true
	logger.Infof("Conectado ao Redis em %s:%d", cfg.Host, cfg.Port)
	return s
}

// TestConnection verifica a disponibilidade do servidor
func (s *Service) TestConnection() error {
	if s.client == nil {
		return fmt.Errorf("cliente redis não configurado")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("erro ao pingar redis: %w", err)
	}
	return nil
}

// IsConnected informa se o publicador está ativo
func (s *Service) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Service) key(parts ...string) string {
	key := s.cfg.KeyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// PublishState grava o snapshot corrente e acrescenta as poses dos
// braços ao histórico, tudo em um único pipeline
func (s *Service) PublishState(state models.SessionSnapshot) error {
	if !s.IsConnected() && !s.tryReconnect() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("erro ao serializar sessão: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key("session"), stateJSON, 0)

	score := float64(state.Timestamp.UnixMilli())
	for id, dev := range state.Devices {
		devJSON, err := json.Marshal(dev)
		if err != nil {
			continue
		}
		pipe.Set(ctx, s.key("device", string(id)), devJSON, 0)

		if dev.Robot != nil {
			pipe.ZAdd(ctx, s.key("history", string(id)), &redis.Z{
				Score:  score,
				Member: devJSON,
			})
			// Mantém o histórico limitado aos N registros mais recentes
			pipe.ZRemRangeByRank(ctx, s.key("history", string(id)), 0, int64(-s.cfg.HistoryLimit-1))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.noteFailure(err)
		return fmt.Errorf("erro ao publicar sessão: %w", err)
	}
	return nil
}

// PublishEvent acrescenta uma ocorrência discreta à lista de eventos
func (s *Service) PublishEvent(ev models.Event) error {
	if !s.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("erro ao serializar evento: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.key("events"), evJSON)
	pipe.LTrim(ctx, s.key("events"), 0, int64(s.cfg.HistoryLimit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		s.noteFailure(err)
		return fmt.Errorf("erro ao publicar evento: %w", err)
	}
	return nil
}

// GetSession recupera o último snapshot publicado (usado pela API como
// atalho quando disponível)
func (s *Service) GetSession() (*models.SessionSnapshot, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("redis offline")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, s.key("session")).Bytes()
	if err != nil {
		return nil, fmt.Errorf("erro ao ler sessão do redis: %w", err)
	}
	var state models.SessionSnapshot
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("erro ao interpretar sessão do redis: %w", err)
	}
	return &state, nil
}

// noteFailure rebaixa o serviço para offline após erro de publicação;
// o próximo PublishState tenta restabelecer com um ping barato
func (s *Service) noteFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		logger.Warnf("Publicação no Redis falhou, rebaixando para offline: %v", err)
		s.connected = false
	}
}

// tryReconnect tenta restabelecer a conexão quando offline, no máximo
// uma vez a cada cinco segundos
func (s *Service) tryReconnect() bool {
	if s.client == nil {
		return false
	}
	s.mu.Lock()
	if time.Since(s.lastAttempt) < 5*time.Second {
		s.mu.Unlock()
		return false
	}
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	if err := s.TestConnection(); err != nil {
		return false
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	logger.Info("Conexão com o Redis restabelecida")
	return true
}

// Close encerra a conexão com o servidor
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
