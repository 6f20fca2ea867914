// Package i2cbus wraps a periph.io I2C bus into a blocking, bounded driver.
//
// Every transaction either completes or fails with a classified fault:
// bus_timeout when a bus condition is not reached in time, bus_nack when
// the addressed device does not acknowledge, bus_busy when the start
// condition could not be generated after all retries.
package i2cbus

import (
	"errors"
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"sync"
	"time"
)

// Config is fixed at construction.
type Config struct {
	Mode      Mode
	Frequency physic.Frequency
	DutyCycle DutyCycle

	StartTimeout time.Duration // waiting for the start condition
	StartRetries int           // extra attempts when the bus is busy
	AddrTimeout  time.Duration // waiting for the address acknowledge
	DataTimeout  time.Duration // per byte transferred
}

// DefaultConfig is fast mode at 400kHz with a 2:1 duty cycle.
var DefaultConfig = Config{
	Mode:         Fast,
	Frequency:    400 * physic.KiloHertz,
	DutyCycle:    Ratio2to1,
	StartTimeout: 1000 * time.Microsecond,
	StartRetries: 10,
	AddrTimeout:  1000 * time.Microsecond,
	DataTimeout:  1000 * time.Microsecond,
}

// Blocking is the exclusive owner of all traffic on one bus.
type Blocking struct {
	mu     sync.Mutex
	bus    i2c.Bus
	cfg    Config
	timing Timing
	wedged error
}

// New configures bus for cfg, with pclk1 the clock feeding the peripheral.
//
// A bus that refuses to change speed (most Linux adapters have it fixed in
// the device tree) is logged and kept at its current speed.
func New(bus i2c.Bus, pclk1 physic.Frequency, cfg Config) (*Blocking, error) {
	if bus == nil {
		return nil, fault.New(fault.InvalidConfig, "i2cbus: new", "no bus")
	}
	if cfg.StartRetries < 0 {
		return nil, fault.New(fault.InvalidConfig, "i2cbus: new", "negative start retries")
	}
	if cfg.StartTimeout <= 0 || cfg.AddrTimeout <= 0 || cfg.DataTimeout <= 0 {
		return nil, fault.New(fault.InvalidConfig, "i2cbus: new", "timeouts must be positive")
	}
	timing, err := NewTiming(pclk1, cfg)
	if err != nil {
		return nil, err
	}
	if err := bus.SetSpeed(timing.Frequency); err != nil {
		logrus.Warnf("Unable to set %s speed to %s, keeping current speed: %v", bus, timing.Frequency, err)
	}
	logrus.Infof("I2C %s mode, %s", cfg.Mode, timing)
	return &Blocking{bus: bus, cfg: cfg, timing: timing}, nil
}

// Timing returns the derived SCL timing.
func (b *Blocking) Timing() Timing {
	return b.timing
}

// Config returns the configuration the driver was built with.
func (b *Blocking) Config() Config {
	return b.cfg
}

func (b *Blocking) String() string {
	return fmt.Sprintf("blocking(%s)", b.bus)
}

// SetSpeed is refused, speed is fixed at construction.
func (b *Blocking) SetSpeed(f physic.Frequency) error {
	return fault.New(fault.InvalidConfig, "i2cbus: set speed", "speed is fixed at construction")
}

// Tx performs one write-then-read transaction and blocks until it completes
// or fails.
func (b *Blocking) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fault.New(fault.InvalidConfig, txOp(addr), "address is not 7 bit")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wedged != nil {
		return b.wedged
	}

	var err error
	for attempt := 0; attempt <= b.cfg.StartRetries; attempt++ {
		err = b.attempt(addr, w, r)
		if !errors.Is(err, fault.BusBusy) {
			break
		}
		logrus.Debugf("I2C start on 0x%02X busy, attempt %d/%d", addr, attempt+1, b.cfg.StartRetries+1)
	}
	if errors.Is(err, fault.BusTimeout) {
		b.wedged = err
	}
	return err
}

// Close closes the underlying bus when it can be closed.
func (b *Blocking) Close() error {
	if c, ok := b.bus.(i2c.BusCloser); ok {
		return c.Close()
	}
	return nil
}

// Budget is the longest one attempt carrying n bytes may take.
func (b *Blocking) Budget(n int) time.Duration {
	return b.cfg.StartTimeout + b.cfg.AddrTimeout + time.Duration(n)*(b.cfg.DataTimeout+b.timing.ByteTime())
}

func (b *Blocking) attempt(addr uint16, w, r []byte) error {
	// The read buffer is only handed back once the transfer fully completed.
	rbuf := r
	if len(r) > 0 {
		rbuf = make([]byte, len(r))
	}
	done := make(chan error, 1)
	go func() {
		done <- b.bus.Tx(addr, w, rbuf)
	}()

	timer := time.NewTimer(b.Budget(len(w) + len(r)))
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return classify(addr, err)
		}
		copy(r, rbuf)
		return nil
	case <-timer.C:
		return &fault.Error{Kind: fault.BusTimeout, Op: txOp(addr), Msg: fmt.Sprintf("no completion after %s", b.Budget(len(w)+len(r)))}
	}
}

// classify keeps kinds reported by the bus. Adapter errors without a kind
// (EREMOTEIO, ENXIO on Linux) mean the address or a data byte was not
// acknowledged.
func classify(addr uint16, err error) error {
	if fault.Classified(err) {
		return fmt.Errorf("%s: %w", txOp(addr), err)
	}
	return fault.Wrap(fault.BusNack, txOp(addr), err)
}

func txOp(addr uint16) string {
	return fmt.Sprintf("i2c tx 0x%02X", addr)
}

var _ i2c.BusCloser = &Blocking{}
