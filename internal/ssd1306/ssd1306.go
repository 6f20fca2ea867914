// Package ssd1306 drives a monochrome SSD1306 OLED controller over I2C.
//
// The driver keeps a framebuffer in the controller's page layout. Clear and
// DrawText only touch the framebuffer, Flush sends all of it. Bus traffic
// is refused until Init has configured the controller.
package ssd1306

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/text"
	"github.com/sirupsen/logrus"
	"image"
	"image/color"
	"image/draw"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Control bytes preceding every transfer.
const (
	controlCommand = 0x00
	controlData    = 0x40
)

// Opts is the panel wiring.
type Opts struct {
	W        int
	H        int
	Addr     uint16
	Rotated  bool // 180° rotation
	Contrast byte
}

// Validate checks the panel geometry and address.
func (o *Opts) Validate() error {
	if o.W <= 0 || o.W > 128 {
		return fault.New(fault.InvalidConfig, "ssd1306: opts", "width must be between 1 and 128")
	}
	if o.H != 32 && o.H != 64 {
		return fault.New(fault.InvalidConfig, "ssd1306: opts", "height must be 32 or 64")
	}
	if o.Addr == 0 || o.Addr > 0x7F {
		return fault.New(fault.InvalidConfig, "ssd1306: opts", fmt.Sprintf("invalid address 0x%02X", o.Addr))
	}
	return nil
}

// DefaultOpts is a 128x64 panel at the usual address.
var DefaultOpts = Opts{W: 128, H: 64, Addr: 0x3C, Contrast: 0x8F}

// ErrAlreadyInitialized is returned by a second Init.
var ErrAlreadyInitialized = fault.New(fault.CommandRejected, "ssd1306: init", "already initialized")

// Dev is one display session. It starts uninitialized and becomes ready
// once Init succeeds, for the rest of its life.
type Dev struct {
	c      conn.Conn
	opts   Opts
	rect   image.Rectangle
	buffer *image1bit.VerticalLSB
	ready  bool
}

// NewI2C returns an uninitialized session on bus with an all-off
// framebuffer. Nothing is sent.
//
// opts can be nil to use DefaultOpts.
func NewI2C(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, fault.New(fault.InvalidConfig, "ssd1306: new", "no bus")
	}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, opts.W, opts.H)
	return &Dev{
		c:      &i2c.Dev{Bus: bus, Addr: opts.Addr},
		opts:   *opts,
		rect:   rect,
		buffer: image1bit.NewVerticalLSB(rect),
	}, nil
}

// Init sends the controller bring-up sequence, one command per
// transaction. It must succeed exactly once before Flush.
func (d *Dev) Init() error {
	if d.ready {
		return ErrAlreadyInitialized
	}
	for _, cmd := range d.initCommands() {
		if err := d.command(cmd...); err != nil {
			return err
		}
	}
	d.ready = true
	logrus.Debugf("Display %s initialized", d)
	return nil
}

func (d *Dev) initCommands() [][]byte {
	remap, scan := byte(0xA1), byte(0xC8)
	if d.opts.Rotated {
		remap, scan = 0xA0, 0xC0
	}
	comPins := byte(0x12)
	if d.rect.Dy() == 32 {
		comPins = 0x02
	}
	return [][]byte{
		{0xAE},                        // display off
		{0xD5, 0x80},                  // clock divide ratio, oscillator frequency
		{0xA8, byte(d.rect.Dy() - 1)}, // multiplex ratio
		{0xD3, 0x00},                  // display offset
		{0x40},                        // start line 0
		{0x8D, 0x14},                  // charge pump on
		{0x20, 0x00},                  // horizontal addressing
		{remap},                       // segment remap
		{scan},                        // COM scan direction
		{0xDA, comPins},               // COM pins configuration
		{0xD9, 0x21},                  // pre-charge period
		{0x81, d.opts.Contrast},       // contrast
		{0xDB, 0x20},                  // VCOMH deselect level
		{0xA4},                        // follow RAM content
		{0xA6},                        // normal, not inverted
		{0x2E},                        // scroll off
		{0xAF},                        // display on
	}
}

// Clear turns every framebuffer pixel off.
func (d *Dev) Clear() {
	for i := range d.buffer.Pix {
		d.buffer.Pix[i] = 0
	}
}

// DrawText rasterizes s into the framebuffer. Pixels outside the glyphs
// keep their value and anything off the panel is clipped.
func (d *Dev) DrawText(s string, origin image.Point, style text.Style, baseline text.Baseline) error {
	if _, err := text.Draw(d.buffer, s, origin, style, baseline); err != nil {
		return err
	}
	return nil
}

// Flush sends the whole framebuffer.
func (d *Dev) Flush() error {
	if !d.ready {
		return fault.New(fault.NotReady, "ssd1306: flush", "display not initialized")
	}
	if err := d.command(0x21, 0x00, byte(d.rect.Dx()-1)); err != nil {
		return err
	}
	if err := d.command(0x22, 0x00, byte(d.rect.Dy()/8-1)); err != nil {
		return err
	}
	buf := make([]byte, 1+len(d.buffer.Pix))
	buf[0] = controlData
	copy(buf[1:], d.buffer.Pix)
	if err := d.c.Tx(buf, nil); err != nil {
		return wrap("ssd1306: write frame", err)
	}
	return nil
}

// Buffer returns the framebuffer. It stays owned by d.
func (d *Dev) Buffer() *image1bit.VerticalLSB {
	return d.buffer
}

// Ready reports whether Init succeeded.
func (d *Dev) Ready() bool {
	return d.ready
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw composes src into the framebuffer and flushes it.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.buffer, r, src, sp, draw.Src)
	return d.Flush()
}

// Halt switches the panel off. The framebuffer is kept.
func (d *Dev) Halt() error {
	if !d.ready {
		return nil
	}
	return d.command(0xAE)
}

func (d *Dev) String() string {
	return fmt.Sprintf("ssd1306.Dev{%s, %dx%d}", d.c, d.rect.Dx(), d.rect.Dy())
}

func (d *Dev) command(cmd ...byte) error {
	if err := d.c.Tx(append([]byte{controlCommand}, cmd...), nil); err != nil {
		return wrap(fmt.Sprintf("ssd1306: command 0x%02X", cmd[0]), err)
	}
	return nil
}

// wrap keeps the kind reported by the bus, anything else is a rejected
// command.
func wrap(op string, err error) error {
	kind := fault.CommandRejected
	if fault.Classified(err) {
		kind = fault.Of(err)
	}
	return fault.Wrap(kind, op, err)
}

var _ display.Drawer = &Dev{}
