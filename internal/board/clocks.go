package board

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"periph.io/x/conn/v3/physic"
)

const (
	hsiFrequency = 8 * physic.MegaHertz
	maxSysClk    = 72 * physic.MegaHertz
	maxPClk1     = 36 * physic.MegaHertz
)

var (
	ahbPrescalers  = []int64{1, 2, 4, 8, 16, 64, 128, 256, 512}
	apb1Prescalers = []int64{1, 2, 4, 8, 16}
)

// ClockConfig is the requested clock tree. Zero fields keep the reset
// defaults: internal 8MHz oscillator, no PLL, no prescaler.
type ClockConfig struct {
	HSE    physic.Frequency // external oscillator, 0 when absent
	SysClk physic.Frequency
	HClk   physic.Frequency
	PClk1  physic.Frequency
}

// Clocks are the frequencies the clock tree was frozen at.
type Clocks struct {
	SysClk physic.Frequency
	HClk   physic.Frequency
	PClk1  physic.Frequency

	Source string // "HSI" or "HSE"
	PllMul int64  // 0 when the PLL is bypassed
	HPre   int64
	PPre1  int64
}

func (c Clocks) String() string {
	pll := "off"
	if c.PllMul != 0 {
		pll = fmt.Sprintf("x%d", c.PllMul)
	}
	return fmt.Sprintf("%s PLL %s SYSCLK %s HCLK %s PCLK1 %s", c.Source, pll, c.SysClk, c.HClk, c.PClk1)
}

// Freeze derives the achievable clock tree closest to c without exceeding
// any request.
func (c ClockConfig) Freeze() (Clocks, error) {
	const op = "board: freeze clocks"
	out := Clocks{Source: "HSI"}
	source := hsiFrequency
	pllInput := hsiFrequency / 2
	if c.HSE != 0 {
		if c.HSE < 4*physic.MegaHertz || c.HSE > 16*physic.MegaHertz {
			return Clocks{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("HSE %s out of 4-16MHz", c.HSE))
		}
		out.Source = "HSE"
		source = c.HSE
		pllInput = c.HSE
	}

	out.SysClk = source
	if c.SysClk != 0 && c.SysClk != source {
		if c.SysClk > maxSysClk {
			return Clocks{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("SYSCLK %s above %s", c.SysClk, maxSysClk))
		}
		mul := int64(c.SysClk / pllInput)
		if mul < 2 || mul > 16 || pllInput*physic.Frequency(mul) != c.SysClk {
			return Clocks{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("SYSCLK %s not reachable from %s", c.SysClk, pllInput))
		}
		out.PllMul = mul
		out.SysClk = c.SysClk
	}

	out.HPre = prescaler(out.SysClk, c.HClk, ahbPrescalers)
	out.HClk = out.SysClk / physic.Frequency(out.HPre)

	pclk1 := c.PClk1
	if pclk1 > maxPClk1 {
		return Clocks{}, fault.New(fault.InvalidConfig, op, fmt.Sprintf("PCLK1 %s above %s", pclk1, maxPClk1))
	}
	if pclk1 == 0 {
		pclk1 = out.HClk
		if pclk1 > maxPClk1 {
			pclk1 = maxPClk1
		}
	}
	out.PPre1 = prescaler(out.HClk, pclk1, apb1Prescalers)
	out.PClk1 = out.HClk / physic.Frequency(out.PPre1)
	return out, nil
}

// prescaler returns the smallest divider bringing in at or below want.
func prescaler(in, want physic.Frequency, dividers []int64) int64 {
	if want == 0 {
		return 1
	}
	for _, d := range dividers {
		if in/physic.Frequency(d) <= want {
			return d
		}
	}
	return dividers[len(dividers)-1]
}
