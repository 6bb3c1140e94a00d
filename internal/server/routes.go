package server

import (
	"encoding/json"
	"net/http"
	"time"

	"teleop_go/internal/api"
	"teleop_go/internal/input"
	"teleop_go/internal/models"
	"teleop_go/internal/websocket"
)

// setupRoutes configura todas as rotas do servidor
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.wsHub)
	apiHandler := api.NewHandler(s.dispatcher, s.store)

	// Endpoint de saúde
	s.router.HandleFunc("/health", s.healthHandler)

	// Endpoint de informações do servidor
	s.router.HandleFunc("/info", s.infoHandler)

	// Endpoints de descoberta
	s.router.HandleFunc("/api/discover", s.discoverHandler)

	// WebSocket
	s.router.Handle("/ws", wsHandler)
	s.router.HandleFunc("/ws/health", wsHandler.GetHealthHandler())

	// API REST
	s.router.HandleFunc("/api/status", apiHandler.GetStatus)
	s.router.HandleFunc("/api/state", apiHandler.GetState)
	s.router.HandleFunc("/api/pathways", apiHandler.GetPathways)
	s.router.HandleFunc("/api/pathways/command", apiHandler.PostPathwayCommand)
	s.router.HandleFunc("/api/server-info", s.serverInfoHandler)

	// Ingresso do driver do gamepad
	s.router.HandleFunc("/api/gamepad", s.gamepadHandler)

	// Middleware para recovery, logging e CORS
	s.handler = api.Chain(
		api.RecoveryMiddleware,
		api.LoggingMiddleware,
		api.CorsMiddleware,
	)(s.router)
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	dispatcherStatus := "ok"
	if s.dispatcher != nil && !s.dispatcher.IsRunning() {
		dispatcherStatus = "offline"
	}

	plcStatus := "disabled"
	if s.config.PLC.Enabled {
		if s.plcService != nil && s.plcService.IsRunning() {
			plcStatus = "ok"
		} else {
			plcStatus = "offline"
		}
	}

	redisStatus := "disabled"
	if s.config.Redis.Enabled {
		if s.redisService != nil && s.redisService.IsConnected() {
			redisStatus = "ok"
		} else {
			redisStatus = "offline"
		}
	}

	discoveryStatus := "ok"
	if s.discoveryService != nil && !s.discoveryService.IsRunning() {
		discoveryStatus = "offline"
	}

	devices := map[string]string{}
	for id, dev := range s.devices.Snapshot() {
		devices[string(id)] = string(dev.Status)
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"services": map[string]string{
			"dispatcher": dispatcherStatus,
			"redis":      redisStatus,
			"plc":        plcStatus,
			"websocket":  "ok",
			"discovery":  discoveryStatus,
		},
		"devices": devices,
	}

	// O laço de controle é o serviço crítico
	if dispatcherStatus == "offline" {
		response["status"] = "degraded"
	}

	json.NewEncoder(w).Encode(response)
}

// infoHandler retorna informações básicas sobre o servidor
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()
	uptime := time.Since(info.StartTime).Round(time.Second)

	response := map[string]interface{}{
		"name":        "AR4 Teleop Server",
		"version":     info.Version,
		"ip":          info.IP,
		"port":        info.Port,
		"websocket":   info.WebSocketURL,
		"api":         info.APIURL,
		"startTime":   info.StartTime,
		"uptime":      uptime.String(),
		"connections": info.Connections,
	}

	json.NewEncoder(w).Encode(response)
}

// serverInfoHandler retorna informações completas sobre o servidor
func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()
	uptime := time.Since(info.StartTime).Round(time.Second)

	discoveryInfo := map[string]interface{}{
		"enabled":      s.discoveryService != nil,
		"running":      s.discoveryService != nil && s.discoveryService.IsRunning(),
		"instanceName": s.discoveryService.GetInstanceName(),
		"serviceType":  "ar4-teleop",
	}

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":        "AR4 Teleop Server",
			"version":     info.Version,
			"ip":          info.IP,
			"port":        info.Port,
			"websocket":   info.WebSocketURL,
			"api":         info.APIURL,
			"startTime":   info.StartTime,
			"uptime":      uptime.String(),
			"connections": info.Connections,
		},
		"discovery": discoveryInfo,
		"services": map[string]interface{}{
			"dispatcher": map[string]interface{}{
				"running":    s.dispatcher != nil && s.dispatcher.IsRunning(),
				"tickRateMs": s.config.Control.TickRateMs,
			},
			"pathways": map[string]interface{}{
				"dir": s.store.Dir(),
			},
			"redis": map[string]interface{}{
				"enabled":   s.config.Redis.Enabled,
				"connected": s.redisService != nil && s.redisService.IsConnected(),
				"host":      s.config.Redis.Host,
				"port":      s.config.Redis.Port,
			},
			"plc": map[string]interface{}{
				"enabled": s.config.PLC.Enabled,
				"running": s.plcService != nil && s.plcService.IsRunning(),
				"host":    s.config.PLC.Host,
			},
		},
	}

	json.NewEncoder(w).Encode(response)
}

// discoverHandler fornece informações para descoberta manual
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	info := s.GetServerInfo()

	response := map[string]interface{}{
		"name":        "AR4 Teleop Server",
		"ip":          info.IP,
		"port":        info.Port,
		"wsUrl":       info.WebSocketURL,
		"apiUrl":      info.APIURL,
		"version":     info.Version,
		"wsEndpoint":  "/ws",
		"apiEndpoint": "/api",
	}

	json.NewEncoder(w).Encode(response)
}

// gamepadFrame é o estado decodificado empurrado pelo driver do gamepad
type gamepadFrame struct {
	LeftX        float64  `json:"left_x"`
	LeftY        float64  `json:"left_y"`
	RightX       float64  `json:"right_x"`
	RightY       float64  `json:"right_y"`
	LeftTrigger  float64  `json:"left_trigger"`
	RightTrigger float64  `json:"right_trigger"`
	Buttons      []string `json:"buttons"`
}

// gamepadHandler recebe o estado do gamepad do processo driver. O frame
// só alimenta a fonte de entrada; toda interpretação acontece no laço de
// controle.
func (s *Server) gamepadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "método não permitido", http.StatusMethodNotAllowed)
		return
	}

	var frame gamepadFrame
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&frame); err != nil {
		http.Error(w, "corpo inválido", http.StatusBadRequest)
		return
	}

	buttons := models.ButtonSet{}
	for _, name := range frame.Buttons {
		buttons[models.Button(name)] = true
	}

	s.source.Push(input.RawState{
		LeftX:        frame.LeftX,
		LeftY:        frame.LeftY,
		RightX:       frame.RightX,
		RightY:       frame.RightY,
		LeftTrigger:  frame.LeftTrigger,
		RightTrigger: frame.RightTrigger,
		Buttons:      buttons,
	})

	w.WriteHeader(http.StatusNoContent)
}
