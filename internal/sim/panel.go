// Package sim emulates an SSD1306 panel sitting on an I2C bus.
//
// Panel implements i2c.BusCloser, so everything that talks to a real
// adapter can talk to it. It decodes the control byte protocol, keeps the
// controller registers and the graphic RAM, and renders what the glass
// would show.
package sim

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"image"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"strings"
	"sync"
)

// Opts configures the emulated panel.
type Opts struct {
	Addr uint16 `yaml:"address"`
	W    int    `yaml:"width"`
	H    int    `yaml:"height"`
}

// Addressing modes of the graphic RAM.
const (
	HorizontalAddressing = 0
	VerticalAddressing   = 1
	PageAddressing       = 2
)

const statusDisplayOff = 0x40

// Panel is an emulated SSD1306 controller and its glass.
type Panel struct {
	mu   sync.Mutex
	opts Opts
	ram  *image1bit.VerticalLSB

	// controller registers
	on         bool
	entireOn   bool
	inverted   bool
	contrast   byte
	mux        byte
	startLine  int
	segRemap   bool
	comReverse bool
	chargePump bool
	scrolling  bool
	mode       byte
	colStart   int
	colEnd     int
	pageStart  int
	pageEnd    int
	col        int
	page       int

	pending []byte
	need    int

	speed     physic.Frequency
	transfers int
	frames    int
	closed    bool

	busyStarts int
	failAfter  int
	failErr    error
	observers  []func(image.Image)
}

// NewPanel returns a panel in its reset state: display off, page
// addressing, no remap.
func NewPanel(opts Opts) *Panel {
	if opts.Addr == 0 {
		opts.Addr = 0x3C
	}
	if opts.W == 0 {
		opts.W = 128
	}
	if opts.H == 0 {
		opts.H = 64
	}
	return &Panel{
		opts:      opts,
		ram:       image1bit.NewVerticalLSB(image.Rect(0, 0, opts.W, opts.H)),
		contrast:  0x7F,
		mux:       byte(opts.H - 1),
		mode:      PageAddressing,
		colEnd:    opts.W - 1,
		pageEnd:   opts.H/8 - 1,
		failAfter: -1,
	}
}

func (p *Panel) String() string {
	return fmt.Sprintf("sim-ssd1306@0x%02X", p.opts.Addr)
}

// SetSpeed records the bus speed.
func (p *Panel) SetSpeed(f physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = f
	return nil
}

// Close detaches the panel, later transactions fail.
func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Tx handles one addressed transaction. A write is decoded as control
// byte / payload pairs, a read returns the status byte.
func (p *Panel) Tx(addr uint16, w, r []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fault.New(fault.NotReady, "sim: tx", "bus closed")
	}
	if p.busyStarts > 0 {
		p.busyStarts--
		p.mu.Unlock()
		return fault.New(fault.BusBusy, "sim: start", "bus busy")
	}
	p.transfers++
	if p.failAfter >= 0 && p.transfers > p.failAfter {
		err := p.failErr
		p.mu.Unlock()
		return err
	}
	if addr != p.opts.Addr {
		p.mu.Unlock()
		return fault.New(fault.BusNack, "sim: address", fmt.Sprintf("no device at 0x%02X", addr))
	}

	for i := range r {
		r[i] = 0x06
		if !p.on {
			r[i] |= statusDisplayOff
		}
	}
	wroteData, err := p.decode(w)
	var frame image.Image
	var observers []func(image.Image)
	if wroteData {
		p.frames++
		if len(p.observers) > 0 {
			frame = p.visible()
			observers = append(observers, p.observers...)
		}
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(frame)
	}
	return err
}

// FailAfter makes every transaction after the first n fail with err.
func (p *Panel) FailAfter(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = fault.New(fault.BusNack, "sim: tx", "injected failure")
	}
	p.failAfter = p.transfers + n
	p.failErr = err
}

// BusyStarts makes the next n start conditions report a busy bus.
func (p *Panel) BusyStarts(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busyStarts = n
}

// OnFrame registers fn to receive the visible image after every data
// transfer.
func (p *Panel) OnFrame(fn func(image.Image)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Image returns what the glass shows.
func (p *Panel) Image() *image1bit.VerticalLSB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible()
}

// RAM returns a copy of the graphic RAM.
func (p *Panel) RAM() *image1bit.VerticalLSB {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := image1bit.NewVerticalLSB(p.ram.Rect)
	copy(img.Pix, p.ram.Pix)
	return img
}

// On reports whether the display is switched on.
func (p *Panel) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

// Contrast returns the contrast register.
func (p *Panel) Contrast() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contrast
}

// AddressingMode returns the memory addressing mode register.
func (p *Panel) AddressingMode() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// ChargePump reports whether the charge pump is enabled.
func (p *Panel) ChargePump() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chargePump
}

// Frames counts the transactions that carried graphic data.
func (p *Panel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Transfers counts the transactions addressed past the start condition.
func (p *Panel) Transfers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transfers
}

// Speed returns the last bus speed set.
func (p *Panel) Speed() physic.Frequency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Dump renders the glass as text, one line per row.
func (p *Panel) Dump() string {
	return Dump(p.Image())
}

// Dump renders img as text, '#' for lit pixels.
func Dump(img *image1bit.VerticalLSB) string {
	var sb strings.Builder
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Panel) visible() *image1bit.VerticalLSB {
	w, h := p.opts.W, p.opts.H
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, w, h))
	if !p.on {
		return img
	}
	for y := 0; y < h; y++ {
		row := y
		if !p.comReverse {
			row = h - 1 - y
		}
		row = (row + p.startLine) % h
		for x := 0; x < w; x++ {
			seg := x
			if !p.segRemap {
				seg = w - 1 - x
			}
			lit := bool(p.ram.BitAt(seg, row))
			if p.entireOn {
				lit = true
			}
			if p.inverted {
				lit = !lit
			}
			img.SetBit(x, y, image1bit.Bit(lit))
		}
	}
	return img
}

var _ i2c.BusCloser = &Panel{}
