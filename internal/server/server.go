package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"teleop_go/internal/config"
	"teleop_go/internal/device"
	"teleop_go/internal/discovery"
	"teleop_go/internal/dispatcher"
	"teleop_go/internal/input"
	"teleop_go/internal/models"
	"teleop_go/internal/motion"
	"teleop_go/internal/pathway"
	"teleop_go/internal/plc"
	"teleop_go/internal/redis"
	"teleop_go/internal/transport"
	"teleop_go/internal/websocket"
	"teleop_go/pkg/logger"
)

// Server compõe todos os serviços da célula de teleoperação: o laço de
// controle, os canais série dos dispositivos, o motor de trajetórias e as
// superfícies de observação (WebSocket, REST, Redis, CLP, mDNS)
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler

	source     *input.PushSource
	devices    *device.Registry
	store      *pathway.Store
	engine     *pathway.Engine
	channels   map[models.DeviceID]*transport.Channel
	dispatcher *dispatcher.Dispatcher

	wsHub            *websocket.Hub
	redisService     *redis.Service
	plcService       *plc.Service
	discoveryService *discovery.Service

	// lastRedisPublish limita a publicação no Redis abaixo dos 50Hz do laço
	redisMu          sync.Mutex
	lastRedisPublish time.Time

	serverInfo ServerInfo
}

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	StartTime    time.Time
	Connections  int
	Version      string
	WebSocketURL string
	APIURL       string
}

// NewServer cria e interliga todos os componentes
func NewServer(cfg *config.Config) (*Server, error) {
	server := &Server{
		config:   cfg,
		router:   http.NewServeMux(),
		channels: make(map[models.DeviceID]*transport.Channel),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   cfg.Server.Version,
			Port:      cfg.Server.Port,
		},
	}

	ip, err := server.getLocalIP()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter IP local: %w", err)
	}
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	if err := server.initComponents(); err != nil {
		return nil, err
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// initComponents monta o grafo de componentes na ordem de dependência
func (s *Server) initComponents() error {
	cfg := s.config

	// Estado dos dispositivos e entrada do operador
	s.devices = device.NewRegistry()
	s.source = input.NewPushSource(time.Duration(cfg.Input.MaxAgeMs) * time.Millisecond)
	sampler := input.NewSampler(s.source, cfg.Input.DeadZone)

	// Persistência e motor de trajetórias
	dir := cfg.Pathways.Dir
	if dir == "" {
		var err error
		dir, err = pathway.DefaultDir()
		if err != nil {
			return fmt.Errorf("erro ao resolver diretório de trajetórias: %w", err)
		}
	}
	store, err := pathway.NewStore(dir)
	if err != nil {
		return fmt.Errorf("erro ao inicializar armazenamento de trajetórias: %w", err)
	}
	s.store = store
	segmentDur := time.Duration(cfg.Pathways.SegmentDurationMs) * time.Millisecond
	s.engine = pathway.NewEngine(store, segmentDur, s.handleEvent)

	// Canais série dos quatro dispositivos. Porta indisponível não aborta:
	// o dispositivo fica Disconnected até o enlace responder.
	sinks := make(map[models.DeviceID]dispatcher.CommandSink)
	for id, devCfg := range map[models.DeviceID]config.DeviceConfig{
		models.DeviceRobot1: cfg.Devices.Robot1,
		models.DeviceRobot2: cfg.Devices.Robot2,
		models.DeviceTrack:  cfg.Devices.Track,
		models.DeviceFeeder: cfg.Devices.Feeder,
	} {
		ch, err := s.openChannel(id, devCfg)
		if err != nil {
			logger.Warnf("Dispositivo %s indisponível: %v", id, err)
			s.devices.SetStatus(id, models.StatusDisconnected)
			continue
		}
		s.channels[id] = ch
		sinks[id] = ch
	}

	// Laço de controle
	mapper := motion.NewMapper(motion.Config{
		MaxJointStep:     cfg.Control.MaxJointStep,
		MaxCartesianStep: cfg.Control.MaxCartesianStep,
		TrackStep:        cfg.Control.TrackStep,
		FeederStep:       cfg.Control.FeederStep,
		SpeedStep:        cfg.Control.SpeedStep,
		SpeedRateLimit:   time.Duration(cfg.Control.SpeedRateLimitMs) * time.Millisecond,
		TriggerThreshold: cfg.Control.TriggerThreshold,
	})
	s.dispatcher = dispatcher.New(
		dispatcher.Config{TickRate: time.Duration(cfg.Control.TickRateMs) * time.Millisecond},
		sampler, mapper, s.devices, s.engine, sinks,
	)
	s.dispatcher.SetEventHandler(s.handleEvent)
	s.dispatcher.SetSnapshotHandler(s.handleSnapshot)

	for _, ch := range s.channels {
		ch.SetStatusHandler(s.dispatcher.HandleDeviceStatus)
		ch.SetFeedbackHandler(s.dispatcher.HandleDeviceFeedback)
	}

	// Superfícies de observação
	s.wsHub = websocket.NewHub(s.dispatcher)
	s.redisService = redis.NewService(cfg.Redis)
	if cfg.PLC.Enabled {
		s.plcService = plc.NewService(cfg.PLC)
	}
	s.discoveryService = discovery.NewService(cfg.Server.Port)

	return nil
}

// openChannel abre a porta série do dispositivo e monta o canal com o
// codificador do seu protocolo
func (s *Server) openChannel(id models.DeviceID, devCfg config.DeviceConfig) (*transport.Channel, error) {
	port, err := transport.OpenSerial(transport.SerialConfig{
		Device:      devCfg.Port,
		Baud:        devCfg.Baud,
		ReadTimeout: time.Duration(devCfg.ReadTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	var enc transport.Encoder
	switch id {
	case models.DeviceTrack:
		enc = transport.NewTrackEncoder()
	case models.DeviceFeeder:
		enc = transport.NewFeederEncoder()
	default:
		enc = transport.NewRobotEncoder()
	}

	return transport.NewChannel(id, port, enc, transport.ChannelConfig{
		QueueSize:         devCfg.QueueSize,
		AckTimeout:        time.Duration(devCfg.AckTimeoutMs) * time.Millisecond,
		HeartbeatInterval: time.Duration(devCfg.HeartbeatMs) * time.Millisecond,
	}), nil
}

// handleEvent distribui uma ocorrência discreta a todos os observadores
func (s *Server) handleEvent(ev models.Event) {
	if s.wsHub != nil {
		s.wsHub.BroadcastEvent(ev)
	}
	if s.redisService != nil {
		if err := s.redisService.PublishEvent(ev); err != nil {
			logger.Debugf("Evento não publicado no Redis: %v", err)
		}
	}
}

// handleSnapshot distribui o snapshot de cada tick aos observadores; o
// WebSocket e o Redis têm seus próprios limitadores de taxa
func (s *Server) handleSnapshot(state models.SessionSnapshot) {
	if s.wsHub != nil {
		s.wsHub.BroadcastState(state)
	}
	if s.plcService != nil {
		s.plcService.UpdateState(state)
	}
	if s.redisService != nil && s.shouldPublishRedis() {
		if err := s.redisService.PublishState(state); err != nil {
			logger.Debugf("Snapshot não publicado no Redis: %v", err)
		}
	}
}

func (s *Server) shouldPublishRedis() bool {
	s.redisMu.Lock()
	defer s.redisMu.Unlock()
	if time.Since(s.lastRedisPublish) < 250*time.Millisecond {
		return false
	}
	s.lastRedisPublish = time.Now()
	return true
}

// GamepadSource devolve a fonte de entrada para o driver do gamepad
func (s *Server) GamepadSource() *input.PushSource {
	return s.source
}

// Start inicia todos os serviços e bloqueia servindo HTTP
func (s *Server) Start() error {
	go s.wsHub.Run()

	for _, ch := range s.channels {
		ch.Start()
	}

	if err := s.discoveryService.Start(); err != nil {
		logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
		// Descoberta é conveniência, não abortar
	}

	if s.plcService != nil {
		if err := s.plcService.Start(); err != nil {
			logger.Errorf("Erro ao iniciar espelho no CLP: %v", err)
			// O laço de controle não depende do CLP
		}
	}

	s.dispatcher.Start()

	s.logServerInfo()

	logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
	}
	return nil
}

// Shutdown encerra graciosamente todos os serviços
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Iniciando shutdown do servidor")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Erro ao encerrar servidor HTTP: %v", err)
	}

	if s.discoveryService != nil {
		s.discoveryService.Stop()
	}

	// Primeiro o laço de controle, depois os canais que ele alimenta
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	for id, ch := range s.channels {
		if err := ch.Close(); err != nil {
			logger.Errorf("Erro ao fechar canal de %s: %v", id, err)
		}
	}

	// Aguarda gravações de trajetória pendentes
	if s.engine != nil {
		s.engine.WaitIdle()
	}

	if s.plcService != nil {
		s.plcService.Stop()
	}
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
	if s.redisService != nil {
		s.redisService.Close()
	}

	logger.Info("Shutdown completo")
	return nil
}

// getLocalIP obtém o endereço IPv4 local não-loopback
func (s *Server) getLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "localhost", nil
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	info := s.serverInfo
	info.Connections = s.wsHub.ClientCount()
	return info
}

// logServerInfo exibe informações do servidor no log
func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("            AR4 Teleop Server                  ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	logger.Infof("Trajetórias em: %s", s.store.Dir())
	logger.Infof("mDNS: %s.%s.%s",
		s.discoveryService.GetInstanceName(),
		discovery.ServiceType,
		discovery.ServiceDomain)
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}
