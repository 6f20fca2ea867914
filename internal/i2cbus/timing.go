package i2cbus

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"periph.io/x/conn/v3/physic"
	"strings"
	"time"
)

// Mode selects the I2C speed class.
type Mode int

const (
	Standard Mode = iota // up to 100kHz, 1:1 duty cycle
	Fast                 // up to 400kHz
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case Fast:
		return "fast"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Standard, Fast} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Fast, fault.New(fault.InvalidConfig, "i2cbus: mode", fmt.Sprintf("unknown mode %q", s))
}

// DutyCycle is the SCL low:high ratio used in fast mode.
type DutyCycle int

const (
	Ratio2to1 DutyCycle = iota
	Ratio16to9
)

func (d DutyCycle) String() string {
	switch d {
	case Ratio2to1:
		return "2:1"
	case Ratio16to9:
		return "16:9"
	}
	return fmt.Sprintf("DutyCycle(%d)", int(d))
}

// ParseDutyCycle is the inverse of DutyCycle.String.
func ParseDutyCycle(s string) (DutyCycle, error) {
	for _, d := range []DutyCycle{Ratio2to1, Ratio16to9} {
		if s == d.String() {
			return d, nil
		}
	}
	return Ratio2to1, fault.New(fault.InvalidConfig, "i2cbus: duty cycle", fmt.Sprintf("unknown duty cycle %q", s))
}

// parts returns the low and high weights of one SCL period.
func (d DutyCycle) parts() (low, high int64) {
	if d == Ratio16to9 {
		return 16, 9
	}
	return 2, 1
}

const (
	maxStandardFrequency = 100 * physic.KiloHertz
	maxFastFrequency     = 400 * physic.KiloHertz
	minStandardPClk      = 2 * physic.MegaHertz
	minFastPClk          = 4 * physic.MegaHertz
	maxPClk              = 50 * physic.MegaHertz
)

// Timing holds the SCL parameters derived from the peripheral clock.
type Timing struct {
	PClk1     physic.Frequency
	CCR       int64            // clock control value, in PCLK1 cycles per duty unit
	High      time.Duration    // SCL high period
	Low       time.Duration    // SCL low period
	Frequency physic.Frequency // achieved SCL frequency
	Rise      int64            // maximum rise time, in PCLK1 cycles + 1
}

// Period is one full SCL period.
func (t Timing) Period() time.Duration {
	return t.High + t.Low
}

// ByteTime is the wire time of one byte plus its acknowledge bit.
func (t Timing) ByteTime() time.Duration {
	return 9 * t.Period()
}

func (t Timing) String() string {
	return fmt.Sprintf("SCL %s (high %s, low %s, CCR %d)", t.Frequency, t.High, t.Low, t.CCR)
}

// NewTiming derives SCL timing from the APB1 clock the peripheral runs on.
func NewTiming(pclk1 physic.Frequency, cfg Config) (Timing, error) {
	const op = "i2cbus: timing"
	if cfg.Frequency <= 0 {
		return Timing{}, fault.New(fault.InvalidConfig, op, "frequency must be positive")
	}
	if pclk1 > maxPClk {
		return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("PCLK1 %s above %s", pclk1, maxPClk))
	}

	hz := int64(pclk1 / physic.Hertz)
	scl := int64(cfg.Frequency / physic.Hertz)
	t := Timing{PClk1: pclk1}

	var low, high int64
	switch cfg.Mode {
	case Standard:
		if cfg.Frequency > maxStandardFrequency {
			return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("%s above standard mode limit", cfg.Frequency))
		}
		if pclk1 < minStandardPClk {
			return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("PCLK1 %s below %s", pclk1, minStandardPClk))
		}
		low, high = 1, 1
		t.CCR = ceilDiv(hz, 2*scl)
		if t.CCR < 4 {
			t.CCR = 4
		}
		t.Rise = hz/1000000 + 1
	case Fast:
		if cfg.Frequency > maxFastFrequency {
			return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("%s above fast mode limit", cfg.Frequency))
		}
		if pclk1 < minFastPClk {
			return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("PCLK1 %s below %s", pclk1, minFastPClk))
		}
		low, high = cfg.DutyCycle.parts()
		t.CCR = ceilDiv(hz, scl*(low+high))
		if t.CCR < 1 {
			t.CCR = 1
		}
		t.Rise = hz*300/1000000000 + 1
	default:
		return Timing{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("unknown mode %d", cfg.Mode))
	}

	t.High = time.Duration(high*t.CCR) * time.Second / time.Duration(hz)
	t.Low = time.Duration(low*t.CCR) * time.Second / time.Duration(hz)
	t.Frequency = physic.Frequency(hz/((low+high)*t.CCR)) * physic.Hertz
	return t, nil
}

// ceilDiv rounds up so the achieved frequency never exceeds the request.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
