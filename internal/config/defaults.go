package config

// getDefaultConfig devolve a configuração padrão completa do serviço
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8765,
			Version: "1.0.0",
		},
		Input: InputConfig{
			DeadZone: 0.25,
			MaxAgeMs: 250,
		},
		Control: ControlConfig{
			TickRateMs:       20,
			MaxJointStep:     0.5,
			MaxCartesianStep: 1.0,
			TrackStep:        1.0,
			FeederStep:       0.5,
			SpeedStep:        0.1,
			SpeedRateLimitMs: 200,
			TriggerThreshold: 0.5,
		},
		Devices: DevicesConfig{
			Robot1: DeviceConfig{
				Port:          "/dev/ttyACM0",
				Baud:          115200,
				QueueSize:     32,
				AckTimeoutMs:  2000,
				HeartbeatMs:   500,
				ReadTimeoutMs: 100,
			},
			Robot2: DeviceConfig{
				Port:          "/dev/ttyACM1",
				Baud:          115200,
				QueueSize:     32,
				AckTimeoutMs:  2000,
				HeartbeatMs:   500,
				ReadTimeoutMs: 100,
			},
			Track: DeviceConfig{
				Port:          "/dev/ttyACM2",
				Baud:          115200,
				QueueSize:     32,
				AckTimeoutMs:  2000,
				HeartbeatMs:   500,
				ReadTimeoutMs: 100,
			},
			Feeder: DeviceConfig{
				Port:          "/dev/ttyUSB0",
				Baud:          115200,
				QueueSize:     16,
				AckTimeoutMs:  3000,
				HeartbeatMs:   1000,
				ReadTimeoutMs: 100,
			},
		},
		Pathways: PathwaysConfig{
			Dir:               "",
			SegmentDurationMs: 2000,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         6379,
			Password:     "",
			DB:           0,
			KeyPrefix:    "teleop",
			HistoryLimit: 1000,
		},
		PLC: PLCConfig{
			Enabled:      false,
			Host:         "192.168.0.1",
			Rack:         0,
			Slot:         1,
			DBNumber:     100,
			UpdateRateMs: 500,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Dir:         "logs",
			FileEnabled: false,
		},
	}
}
