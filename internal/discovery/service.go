package discovery

import (
	"fmt"
	"os"
	"sync"

	"teleop_go/pkg/logger"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceName identifica a célula de teleoperação na rede local
	ServiceName = "AR4 Teleop"
	// ServiceType é o tipo mDNS anunciado
	ServiceType = "_ar4teleop._tcp"
	// ServiceDomain é o domínio de descoberta
	ServiceDomain = "local."
)

// Service anuncia o servidor de estado via mDNS para que a GUI e os
// painéis da oficina encontrem a célula sem configuração manual
type Service struct {
	server       *zeroconf.Server
	instanceName string
	port         int

	mu      sync.RWMutex
	running bool
}

// NewService cria o anunciante para a porta indicada
func NewService(port int) *Service {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "teleop"
	}
	return &Service{
		instanceName: fmt.Sprintf("%s @ %s", ServiceName, hostname),
		port:         port,
	}
}

// Start registra o serviço na rede local
func (s *Service) Start() error {
	txt := []string{
		"api=/api",
		"ws=/ws",
		fmt.Sprintf("name=%s", ServiceName),
	}

	server, err := zeroconf.Register(s.instanceName, ServiceType, ServiceDomain, s.port, txt, nil)
	if err != nil {
		return fmt.Errorf("erro ao registrar serviço mDNS: %w", err)
	}

	s.mu.Lock()
	s.server = server
	s.running = true
	s.mu.Unlock()

	logger.Infof("Serviço mDNS registrado: %s (%s porta %d)", s.instanceName, ServiceType, s.port)
	return nil
}

// Stop remove o anúncio da rede
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false
	logger.Info("Serviço mDNS encerrado")
}

// IsRunning informa se o anúncio está ativo
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetInstanceName devolve o nome da instância anunciada
func (s *Service) GetInstanceName() string {
	return s.instanceName
}
