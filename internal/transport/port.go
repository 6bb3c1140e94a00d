package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port abstrai a porta série de um dispositivo. A implementação nativa
// usa tarm/serial; os testes usam uma porta em memória.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// SerialConfig descreve a porta série de um dispositivo
type SerialConfig struct {
	Device      string        `json:"device"`
	Baud        int           `json:"baud"`
	ReadTimeout time.Duration `json:"readTimeout"`
}

// OpenSerial abre a porta série nativa do dispositivo
func OpenSerial(cfg SerialConfig) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir porta %s: %w", cfg.Device, err)
	}
	return port, nil
}
