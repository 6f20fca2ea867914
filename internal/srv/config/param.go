package config

import (
	_ "embed"
	"fmt"
	"github.com/jypelle/oledhello/internal/board"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/i2cbus"
	"github.com/jypelle/oledhello/internal/sim"
	"github.com/jypelle/oledhello/internal/ssd1306"
	"github.com/jypelle/oledhello/internal/text"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"time"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

type ServerParam struct {
	Clocks  ClocksParam  `yaml:"clocks"`
	Bus     BusParam     `yaml:"bus"`
	Display DisplayParam `yaml:"display"`
	Render  RenderParam  `yaml:"render"`
}

type ClocksParam struct {
	HseHz    int64 `yaml:"hse_hz"`
	SysclkHz int64 `yaml:"sysclk_hz"`
	HclkHz   int64 `yaml:"hclk_hz"`
	Pclk1Hz  int64 `yaml:"pclk1_hz"`
}

type BusParam struct {
	Name           string `yaml:"name"`
	Scl            string `yaml:"scl"`
	Sda            string `yaml:"sda"`
	Mode           string `yaml:"mode"`
	FrequencyHz    int64  `yaml:"frequency_hz"`
	DutyCycle      string `yaml:"duty_cycle"`
	StartTimeoutUs int64  `yaml:"start_timeout_us"`
	StartRetries   int    `yaml:"start_retries"`
	AddrTimeoutUs  int64  `yaml:"addr_timeout_us"`
	DataTimeoutUs  int64  `yaml:"data_timeout_us"`
}

type DisplayParam struct {
	Address  uint16 `yaml:"address"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Rotation int    `yaml:"rotation"`
	Contrast uint8  `yaml:"contrast"`
}

type RenderParam struct {
	Text     string `yaml:"text"`
	X        int    `yaml:"x"`
	Y        int    `yaml:"y"`
	Font     string `yaml:"font"`
	Baseline string `yaml:"baseline"`
	OnMs     int64  `yaml:"on_ms"`
	OffMs    int64  `yaml:"off_ms"`
}

// ClockConfig is the requested clock tree.
func (p ClocksParam) ClockConfig() board.ClockConfig {
	return board.ClockConfig{
		HSE:    physic.Frequency(p.HseHz) * physic.Hertz,
		SysClk: physic.Frequency(p.SysclkHz) * physic.Hertz,
		HClk:   physic.Frequency(p.HclkHz) * physic.Hertz,
		PClk1:  physic.Frequency(p.Pclk1Hz) * physic.Hertz,
	}
}

// I2CConfig is the blocking bus configuration.
func (p BusParam) I2CConfig() (i2cbus.Config, error) {
	mode, err := i2cbus.ParseMode(p.Mode)
	if err != nil {
		return i2cbus.Config{}, err
	}
	duty, err := i2cbus.ParseDutyCycle(p.DutyCycle)
	if err != nil {
		return i2cbus.Config{}, err
	}
	return i2cbus.Config{
		Mode:         mode,
		Frequency:    physic.Frequency(p.FrequencyHz) * physic.Hertz,
		DutyCycle:    duty,
		StartTimeout: time.Duration(p.StartTimeoutUs) * time.Microsecond,
		StartRetries: p.StartRetries,
		AddrTimeout:  time.Duration(p.AddrTimeoutUs) * time.Microsecond,
		DataTimeout:  time.Duration(p.DataTimeoutUs) * time.Microsecond,
	}, nil
}

// BoardOpts is the board wiring, with the panel emulated on the bus when
// simulationMode is set.
func (sc *ServerConfig) BoardOpts() board.Opts {
	return board.Opts{
		Simulation: sc.SimulationMode,
		Clocks:     sc.Clocks.ClockConfig(),
		BusName:    sc.Bus.Name,
		SCL:        sc.Bus.Scl,
		SDA:        sc.Bus.Sda,
		Panel:      sim.Opts{Addr: sc.Display.Address, W: sc.Display.Width, H: sc.Display.Height},
	}
}

// Opts is the display wiring.
func (p DisplayParam) Opts() (ssd1306.Opts, error) {
	if p.Rotation != 0 && p.Rotation != 180 {
		return ssd1306.Opts{}, fault.New(fault.InvalidConfig, "config: display", fmt.Sprintf("rotation %d is neither 0 nor 180", p.Rotation))
	}
	return ssd1306.Opts{
		W:        p.Width,
		H:        p.Height,
		Addr:     p.Address,
		Rotated:  p.Rotation == 180,
		Contrast: p.Contrast,
	}, nil
}

// Style is the text style, lit pixels on a transparent background.
func (p RenderParam) Style() (text.Style, text.Baseline, error) {
	face, err := text.FaceByName(p.Font)
	if err != nil {
		return text.Style{}, text.Top, fault.Wrap(fault.InvalidConfig, "config: render", err)
	}
	baseline, err := text.ParseBaseline(p.Baseline)
	if err != nil {
		return text.Style{}, text.Top, fault.Wrap(fault.InvalidConfig, "config: render", err)
	}
	return text.NewStyle(face, image1bit.On), baseline, nil
}

func (p RenderParam) OnDuration() time.Duration {
	return time.Duration(p.OnMs) * time.Millisecond
}

func (p RenderParam) OffDuration() time.Duration {
	return time.Duration(p.OffMs) * time.Millisecond
}
