package modbusact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/fermlab/fermentd/internal/thermal"
)

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// Config for a relay board reached over Modbus TCP.
type Config struct {
	Addr   string
	UnitID byte // Modbus slave/unit ID, 1..247.

	// Coil addresses on the relay board. CoolerCoil is nil for a
	// heater-only rig.
	HeaterCoil uint16
	CoolerCoil *uint16

	Timeout time.Duration
}

// Switch drives a vessel's heater and cooler relays. It keeps the two
// mutually exclusive at the wire level: the opposing coil is opened
// before the requested one is closed, so no write ordering can leave
// both energized.
type Switch struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client

	heaterOn bool
	coolerOn bool
}

func New(cfg Config, log *slog.Logger) (*Switch, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CoolerCoil != nil && *cfg.CoolerCoil == cfg.HeaterCoil {
		return nil, errors.New("modbus: heater and cooler coils must differ")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Switch{cfg: cfg, log: log}, nil
}

// Apply drives the relays to the requested state. Coils being switched
// off are written first.
func (s *Switch) Apply(ctx context.Context, heaterOn, coolerOn bool) error {
	if heaterOn && coolerOn {
		return thermal.ErrMutualExclusion
	}
	if coolerOn && s.cfg.CoolerCoil == nil {
		return errors.New("modbus: no cooler coil configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.clientLocked()
	if err != nil {
		return err
	}

	type coilWrite struct {
		addr  uint16
		value uint16
	}
	var writes []coilWrite
	if !heaterOn {
		writes = append(writes, coilWrite{s.cfg.HeaterCoil, coilOff})
	}
	if s.cfg.CoolerCoil != nil && !coolerOn {
		writes = append(writes, coilWrite{*s.cfg.CoolerCoil, coilOff})
	}
	if heaterOn {
		writes = append(writes, coilWrite{s.cfg.HeaterCoil, coilOn})
	}
	if coolerOn {
		writes = append(writes, coilWrite{*s.cfg.CoolerCoil, coilOn})
	}

	for _, w := range writes {
		if _, err := client.WriteSingleCoil(w.addr, w.value); err != nil {
			s.dropClientLocked()
			return fmt.Errorf("write coil %d: %w", w.addr, err)
		}
	}

	s.heaterOn = heaterOn
	s.coolerOn = coolerOn
	return nil
}

// State reports the last state Apply reached. Before the first
// successful Apply both relays are assumed open.
func (s *Switch) State() (heaterOn, coolerOn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heaterOn, s.coolerOn
}

// Close releases the TCP connection if one is open.
func (s *Switch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return nil
	}
	err := s.handler.Close()
	s.handler = nil
	s.client = nil
	return err
}

func (s *Switch) clientLocked() (modbus.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	handler := modbus.NewTCPClientHandler(s.cfg.Addr)
	handler.Timeout = s.cfg.Timeout
	handler.SlaveId = s.cfg.UnitID
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("modbus connect %s: %w", s.cfg.Addr, err)
	}
	s.handler = handler
	s.client = modbus.NewClient(handler)
	return s.client, nil
}

// dropClientLocked forces a reconnect on the next Apply.
func (s *Switch) dropClientLocked() {
	if s.handler != nil {
		_ = s.handler.Close()
	}
	s.handler = nil
	s.client = nil
}
