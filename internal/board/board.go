// Package board performs the one-time hardware bring-up: it freezes the
// clock tree and hands out the I2C peripheral with its two lines.
//
// Ownership is take-once. The first Take returns the peripherals, every
// later call returns nil and a resource_taken fault without touching the
// hardware.
package board

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/sim"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"strings"
	"sync/atomic"
)

// PinMode is the electrical configuration of a line.
type PinMode int

const (
	Floating PinMode = iota
	AlternateOpenDrain
)

func (m PinMode) String() string {
	if m == AlternateOpenDrain {
		return "alternate open-drain"
	}
	return "floating input"
}

// Line is one GPIO line dedicated to a peripheral.
type Line struct {
	Name     string
	Function string
	Mode     PinMode
}

func (l Line) String() string {
	return fmt.Sprintf("%s(%s, %s)", l.Name, l.Function, l.Mode)
}

// I2CPort is the I2C1 peripheral and its lines. Bus is the only path to
// the wire.
type I2CPort struct {
	Bus      i2c.BusCloser
	SCL      Line
	SDA      Line
	Remapped bool
}

// Peripherals are handed out once per process.
type Peripherals struct {
	Clocks Clocks
	I2C1   *I2CPort
}

// Opts describes the board wiring.
type Opts struct {
	Simulation bool
	Clocks     ClockConfig

	BusName string // i2creg name, "" for the first available bus
	SCL     string
	SDA     string

	// Panel is the device emulated on the bus in simulation mode.
	Panel sim.Opts
}

// i2c1Pins are the allowed SCL/SDA pairs of I2C1, the second one needs the
// remap bit.
var i2c1Pins = [2][2]string{
	{"PB6", "PB7"},
	{"PB8", "PB9"},
}

// Board is an ownership domain for the peripherals.
type Board struct {
	taken int32
}

var process Board

// New returns a fresh ownership domain. Firmware code uses Take.
func New() *Board {
	return &Board{}
}

// Take claims the process peripherals.
func Take(opts Opts) (*Peripherals, error) {
	return process.Take(opts)
}

// Take claims the peripherals of b. The claim is consumed even when the
// bring-up fails.
func (b *Board) Take(opts Opts) (*Peripherals, error) {
	if !atomic.CompareAndSwapInt32(&b.taken, 0, 1) {
		return nil, fault.New(fault.ResourceTaken, "board: take", "peripherals already taken")
	}

	clocks, err := opts.Clocks.Freeze()
	if err != nil {
		return nil, err
	}
	logrus.Infof("Clocks frozen: %s", clocks)

	port, err := configureI2C1(opts)
	if err != nil {
		return nil, err
	}
	logrus.Infof("I2C1 on %s, %s (remapped: %v)", port.SCL, port.SDA, port.Remapped)

	return &Peripherals{Clocks: clocks, I2C1: port}, nil
}

func configureI2C1(opts Opts) (*I2CPort, error) {
	scl, sda := strings.ToUpper(opts.SCL), strings.ToUpper(opts.SDA)
	remapped := -1
	for i, pair := range i2c1Pins {
		if pair[0] == scl && pair[1] == sda {
			remapped = i
		}
	}
	if remapped < 0 {
		return nil, fault.New(fault.InvalidConfig, "board: i2c1 pins", fmt.Sprintf("%s/%s is not an I2C1 SCL/SDA pair", opts.SCL, opts.SDA))
	}

	port := &I2CPort{
		SCL:      Line{Name: scl, Function: "I2C1_SCL", Mode: AlternateOpenDrain},
		SDA:      Line{Name: sda, Function: "I2C1_SDA", Mode: AlternateOpenDrain},
		Remapped: remapped == 1,
	}

	if opts.Simulation {
		port.Bus = sim.NewPanel(opts.Panel)
		return port, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fault.Wrap(fault.NotReady, "board: host init", err)
	}
	bus, err := i2creg.Open(opts.BusName)
	if err != nil {
		return nil, fault.Wrap(fault.NotReady, "board: open i2c bus", err)
	}
	if p, ok := bus.(i2c.Pins); ok {
		logrus.Debugf("I2C adapter %s uses SCL %s, SDA %s", bus, p.SCL(), p.SDA())
	}
	port.Bus = bus
	return port, nil
}
