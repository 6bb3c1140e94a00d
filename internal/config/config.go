package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"teleop_go/pkg/logger"
)

// Config reúne toda a configuração do serviço de teleoperação
type Config struct {
	Server   ServerConfig   `json:"server"`
	Input    InputConfig    `json:"input"`
	Control  ControlConfig  `json:"control"`
	Devices  DevicesConfig  `json:"devices"`
	Pathways PathwaysConfig `json:"pathways"`
	Redis    RedisConfig    `json:"redis"`
	PLC      PLCConfig      `json:"plc"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig configura o servidor HTTP/WebSocket de estado
type ServerConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Version string `json:"version"`
}

// InputConfig configura a amostragem do gamepad
type InputConfig struct {
	DeadZone float64 `json:"deadZone"`
	// MaxAgeMs é a validade do último estado empurrado pelo driver
	MaxAgeMs int `json:"maxAgeMs"`
}

// ControlConfig configura o laço de controle e o mapeador
type ControlConfig struct {
	TickRateMs       int     `json:"tickRateMs"`
	MaxJointStep     float64 `json:"maxJointStep"`
	MaxCartesianStep float64 `json:"maxCartesianStep"`
	TrackStep        float64 `json:"trackStep"`
	FeederStep       float64 `json:"feederStep"`
	SpeedStep        float64 `json:"speedStep"`
	SpeedRateLimitMs int     `json:"speedRateLimitMs"`
	TriggerThreshold float64 `json:"triggerThreshold"`
}

// DeviceConfig configura o enlace série de um dispositivo
type DeviceConfig struct {
	Port          string `json:"port"`
	Baud          int    `json:"baud"`
	QueueSize     int    `json:"queueSize"`
	AckTimeoutMs  int    `json:"ackTimeoutMs"`
	HeartbeatMs   int    `json:"heartbeatMs"`
	ReadTimeoutMs int    `json:"readTimeoutMs"`
}

// DevicesConfig reúne os quatro enlaces da célula
type DevicesConfig struct {
	Robot1 DeviceConfig `json:"robot1"`
	Robot2 DeviceConfig `json:"robot2"`
	Track  DeviceConfig `json:"track"`
	Feeder DeviceConfig `json:"feeder"`
}

// PathwaysConfig configura o motor de trajetórias
type PathwaysConfig struct {
	// Dir vazio usa o diretório de configuração do usuário
	Dir               string `json:"dir"`
	SegmentDurationMs int    `json:"segmentDurationMs"`
}

// RedisConfig configura a publicação de estado no Redis
type RedisConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Password     string `json:"password"`
	DB           int    `json:"db"`
	KeyPrefix    string `json:"keyPrefix"`
	HistoryLimit int    `json:"historyLimit"`
}

// PLCConfig configura o espelho de segurança no CLP S7
type PLCConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Rack         int    `json:"rack"`
	Slot         int    `json:"slot"`
	DBNumber     int    `json:"dbNumber"`
	UpdateRateMs int    `json:"updateRateMs"`
}

// LoggingConfig configura o logger
type LoggingConfig struct {
	Level       string `json:"level"`
	Dir         string `json:"dir"`
	FileEnabled bool   `json:"fileEnabled"`
}

// Load carrega a configuração: padrões, depois o arquivo opcional,
// depois as variáveis de ambiente
func Load(path string) (*Config, error) {
	cfg := getDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("erro ao interpretar %s: %w", path, err)
			}
			logger.Infof("Configuração carregada de %s", path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("erro ao ler %s: %w", path, err)
		} else {
			logger.Infof("Arquivo %s não encontrado, usando padrões", path)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides sobrepõe valores vindos do ambiente
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("TELEOP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TELEOP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TELEOP_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("TELEOP_ROBOT1_PORT"); v != "" {
		cfg.Devices.Robot1.Port = v
	}
	if v := os.Getenv("TELEOP_ROBOT2_PORT"); v != "" {
		cfg.Devices.Robot2.Port = v
	}
	if v := os.Getenv("TELEOP_TRACK_PORT"); v != "" {
		cfg.Devices.Track.Port = v
	}
	if v := os.Getenv("TELEOP_FEEDER_PORT"); v != "" {
		cfg.Devices.Feeder.Port = v
	}
	if v := os.Getenv("TELEOP_PATHWAYS_DIR"); v != "" {
		cfg.Pathways.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Control.TickRateMs <= 0 {
		return fmt.Errorf("control.tickRateMs deve ser positivo, obtido %d", c.Control.TickRateMs)
	}
	if c.Input.DeadZone < 0 || c.Input.DeadZone >= 1 {
		return fmt.Errorf("input.deadZone deve estar em [0,1), obtido %v", c.Input.DeadZone)
	}
	if c.Pathways.SegmentDurationMs <= 0 {
		return fmt.Errorf("pathways.segmentDurationMs deve ser positivo, obtido %d", c.Pathways.SegmentDurationMs)
	}
	return nil
}
