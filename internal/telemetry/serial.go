package telemetry

import (
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/micromouse_core/internal/config"
)

// SerialEmitter writes lines to the robot's bluetooth serial link.
type SerialEmitter struct {
	port io.WriteCloser
}

// OpenSerial opens the configured telemetry port (921600 8N1 by default).
func OpenSerial(cfg *config.Config) (*SerialEmitter, error) {
	opts := serial.OpenOptions{
		PortName:        cfg.SerialPort,
		BaudRate:        uint(cfg.SerialBaudRate),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry serial open (%s): %w", cfg.SerialPort, err)
	}
	log.Printf("telemetry: serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)
	return &SerialEmitter{port: port}, nil
}

func (s *SerialEmitter) Emit(line string) error {
	if _, err := s.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("telemetry serial write: %w", err)
	}
	return nil
}

func (s *SerialEmitter) Close() error {
	return s.port.Close()
}
