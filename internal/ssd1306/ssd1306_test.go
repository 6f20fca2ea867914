package ssd1306

import (
	"bytes"
	"errors"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/sim"
	"github.com/jypelle/oledhello/internal/text"
	"image"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"testing"
)

var style = text.NewStyle(text.Face6x10, image1bit.On)

func initOps(addr uint16, contrast byte, remap, scan byte) []i2ctest.IO {
	cmds := [][]byte{
		{0x00, 0xAE},
		{0x00, 0xD5, 0x80},
		{0x00, 0xA8, 0x3F},
		{0x00, 0xD3, 0x00},
		{0x00, 0x40},
		{0x00, 0x8D, 0x14},
		{0x00, 0x20, 0x00},
		{0x00, remap},
		{0x00, scan},
		{0x00, 0xDA, 0x12},
		{0x00, 0xD9, 0x21},
		{0x00, 0x81, contrast},
		{0x00, 0xDB, 0x20},
		{0x00, 0xA4},
		{0x00, 0xA6},
		{0x00, 0x2E},
		{0x00, 0xAF},
	}
	ops := make([]i2ctest.IO, len(cmds))
	for i, w := range cmds {
		ops[i] = i2ctest.IO{Addr: addr, W: w}
	}
	return ops
}

func newRecorded(t *testing.T) (*Dev, *i2ctest.Record) {
	t.Helper()
	rec := &i2ctest.Record{}
	d, err := NewI2C(rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d, rec
}

func TestNewI2COpts(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		wantErr bool
	}{
		{"nil options (uses defaults)", nil, false},
		{"128x64", &Opts{W: 128, H: 64, Addr: 0x3C}, false},
		{"128x32", &Opts{W: 128, H: 32, Addr: 0x3D}, false},
		{"width zero", &Opts{W: 0, H: 64, Addr: 0x3C}, true},
		{"width > 128", &Opts{W: 132, H: 64, Addr: 0x3C}, true},
		{"height 48", &Opts{W: 128, H: 48, Addr: 0x3C}, true},
		{"no address", &Opts{W: 128, H: 64}, true},
		{"10-bit address", &Opts{W: 128, H: 64, Addr: 0x13C}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewI2C(&i2ctest.Record{}, tt.opts)
			if tt.wantErr {
				if !errors.Is(err, fault.InvalidConfig) {
					t.Errorf("NewI2C() error = %v, want invalid_config", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewI2C() error = %v", err)
			}
			if d.Ready() {
				t.Error("new session already ready")
			}
		})
	}
	if _, err := NewI2C(nil, nil); !errors.Is(err, fault.InvalidConfig) {
		t.Errorf("NewI2C(nil) error = %v, want invalid_config", err)
	}
}

func TestNewI2CBlankFramebuffer(t *testing.T) {
	d, rec := newRecorded(t)
	if d.Bounds() != image.Rect(0, 0, 128, 64) {
		t.Errorf("Bounds() = %v", d.Bounds())
	}
	if len(d.Buffer().Pix) != 1024 {
		t.Fatalf("framebuffer holds %d bytes, want 1024", len(d.Buffer().Pix))
	}
	for _, b := range d.Buffer().Pix {
		if b != 0 {
			t.Fatal("new framebuffer not blank")
		}
	}
	if len(rec.Ops) != 0 {
		t.Errorf("NewI2C() sent %d transactions", len(rec.Ops))
	}
}

func TestInitSequence(t *testing.T) {
	tests := []struct {
		name        string
		opts        Opts
		remap, scan byte
	}{
		{"upright", Opts{W: 128, H: 64, Addr: 0x3C, Contrast: 0x8F}, 0xA1, 0xC8},
		{"rotated", Opts{W: 128, H: 64, Addr: 0x3D, Contrast: 0x01, Rotated: true}, 0xA0, 0xC0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &i2ctest.Playback{Ops: initOps(tt.opts.Addr, tt.opts.Contrast, tt.remap, tt.scan), DontPanic: true}
			d, err := NewI2C(bus, &tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if err := d.Init(); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if err := bus.Close(); err != nil {
				t.Errorf("unplayed transactions: %v", err)
			}
			if !d.Ready() {
				t.Error("not ready after Init()")
			}
		})
	}
}

func TestInitTwice(t *testing.T) {
	d, rec := newRecorded(t)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	n := len(rec.Ops)
	if err := d.Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() error = %v, want %v", err, ErrAlreadyInitialized)
	}
	if len(rec.Ops) != n {
		t.Errorf("second Init() sent %d transactions", len(rec.Ops)-n)
	}
}

func TestFlushBeforeInit(t *testing.T) {
	d, rec := newRecorded(t)
	err := d.Flush()
	if !errors.Is(err, fault.NotReady) {
		t.Errorf("Flush() error = %v, want not_ready", err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("Flush() before Init() sent %d transactions", len(rec.Ops))
	}
	if err := d.Halt(); err != nil || len(rec.Ops) != 0 {
		t.Errorf("Halt() before Init() = %v, %d transactions", err, len(rec.Ops))
	}
}

func TestClearIdempotent(t *testing.T) {
	fills := map[string]func(t *testing.T, d *Dev){
		"blank": func(t *testing.T, d *Dev) {},
		"full": func(t *testing.T, d *Dev) {
			for i := range d.Buffer().Pix {
				d.Buffer().Pix[i] = 0xFF
			}
		},
		"pattern": func(t *testing.T, d *Dev) {
			for i := range d.Buffer().Pix {
				d.Buffer().Pix[i] = byte(i * 37)
			}
		},
		"text": func(t *testing.T, d *Dev) {
			if err := d.DrawText("Hello world!", image.Pt(3, 20), style, text.Middle); err != nil {
				t.Fatal(err)
			}
		},
	}
	for name, fill := range fills {
		t.Run(name, func(t *testing.T) {
			d, rec := newRecorded(t)
			fill(t, d)
			d.Clear()
			once := append([]byte(nil), d.Buffer().Pix...)
			d.Clear()
			if !bytes.Equal(once, d.Buffer().Pix) {
				t.Error("clear twice differs from clear once")
			}
			if !bytes.Equal(once, make([]byte, 1024)) {
				t.Error("cleared framebuffer not blank")
			}
			if len(rec.Ops) != 0 {
				t.Errorf("Clear() sent %d transactions", len(rec.Ops))
			}
		})
	}
}

func TestBlankRoundTrip(t *testing.T) {
	d, rec := newRecorded(t)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.DrawText("noise", image.Pt(0, 0), style, text.Top); err != nil {
		t.Fatal(err)
	}
	d.Clear()
	n := len(rec.Ops)
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	ops := rec.Ops[n:]
	if len(ops) != 3 {
		t.Fatalf("Flush() sent %d transactions, want 3", len(ops))
	}
	if !bytes.Equal(ops[0].W, []byte{0x00, 0x21, 0x00, 0x7F}) {
		t.Errorf("column window = % X", ops[0].W)
	}
	if !bytes.Equal(ops[1].W, []byte{0x00, 0x22, 0x00, 0x07}) {
		t.Errorf("page window = % X", ops[1].W)
	}
	want := append([]byte{0x40}, make([]byte, 1024)...)
	if !bytes.Equal(ops[2].W, want) {
		t.Error("blank frame payload not 0x40 followed by 1024 zero bytes")
	}
	if ops[2].Addr != 0x3C {
		t.Errorf("frame sent to 0x%02X", ops[2].Addr)
	}
}

// helloWorld is "Hello world!" in the 6x10 face, Top baseline at (0,0).
var helloWorld = []string{
	"........................................................................",
	"#...#........##....##..................................##.......#...#...",
	"#...#.........#.....#...................................#.......#...#...",
	"#...#..###....#.....#....###........#...#..###..#.##....#....##.#...#...",
	"#####.#...#...#.....#...#...#.......#...#.#...#.##..#...#...#..##...#...",
	"#...#.#####...#.....#...#...#.......#.#.#.#...#.#.......#...#...#...#...",
	"#...#.#.......#.....#...#...#.......#.#.#.#...#.#.......#...#..##.......",
	"#...#..###...###...###...###.........#.#...###..#......###...##.#...#...",
	"........................................................................",
	"........................................................................",
}

func TestHelloWorldRoundTrip(t *testing.T) {
	panel := sim.NewPanel(sim.Opts{})
	d, err := NewI2C(panel, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	// Prior content is not cleared by drawing.
	d.Buffer().SetBit(100, 50, image1bit.On)
	d.Buffer().SetBit(2, 0, image1bit.On)
	if err := d.DrawText("Hello world!", image.Pt(0, 0), style, text.Top); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	want := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	want.SetBit(100, 50, image1bit.On)
	want.SetBit(2, 0, image1bit.On)
	for y, row := range helloWorld {
		for x, c := range row {
			if c == '#' {
				want.SetBit(x, y, image1bit.On)
			}
		}
	}

	if got := panel.RAM(); !bytes.Equal(got.Pix, want.Pix) {
		t.Errorf("panel RAM differs from the expected text")
	}
	// First page, columns 0..5: 'H' with bit 0 the top row, plus the prior pixel at (2,0).
	if got := panel.RAM().Pix[:6]; !bytes.Equal(got, []byte{0xFE, 0x10, 0x11, 0x10, 0xFE, 0x00}) {
		t.Errorf("page 0 of 'H' = % X", got)
	}
	if got := panel.Dump(); got != sim.Dump(want) {
		t.Errorf("panel shows\n%s", got)
	}
	if !panel.On() || panel.Contrast() != DefaultOpts.Contrast {
		t.Errorf("panel on = %v, contrast 0x%02X", panel.On(), panel.Contrast())
	}
}

func TestFailurePropagates(t *testing.T) {
	t.Run("nack during init", func(t *testing.T) {
		panel := sim.NewPanel(sim.Opts{})
		panel.FailAfter(3, nil)
		d, err := NewI2C(panel, nil)
		if err != nil {
			t.Fatal(err)
		}
		err = d.Init()
		if !errors.Is(err, fault.BusNack) {
			t.Errorf("Init() error = %v, want bus_nack", err)
		}
		if op := fault.Op(err); op != "ssd1306: command 0xD3" {
			t.Errorf("failing op = %q", op)
		}
		if d.Ready() {
			t.Error("ready after failed Init()")
		}
	})

	t.Run("timeout during flush", func(t *testing.T) {
		panel := sim.NewPanel(sim.Opts{})
		d, err := NewI2C(panel, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := d.Init(); err != nil {
			t.Fatal(err)
		}
		panel.FailAfter(2, fault.New(fault.BusTimeout, "test", "stretched clock"))
		err = d.Flush()
		if !errors.Is(err, fault.BusTimeout) {
			t.Errorf("Flush() error = %v, want bus_timeout", err)
		}
		if fault.Op(err) != "ssd1306: write frame" {
			t.Errorf("failing op = %q", fault.Op(err))
		}
		if panel.Frames() != 0 {
			t.Errorf("panel received %d frames", panel.Frames())
		}
	})

	t.Run("unclassified bus error", func(t *testing.T) {
		d, err := NewI2C(&i2ctest.Playback{DontPanic: true}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := d.Init(); !errors.Is(err, fault.CommandRejected) {
			t.Errorf("Init() error = %v, want command_rejected", err)
		}
	})
}

func TestDrawerInterface(t *testing.T) {
	panel := sim.NewPanel(sim.Opts{})
	d, err := NewI2C(panel, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	src := image1bit.NewVerticalLSB(d.Bounds())
	src.SetBit(64, 32, image1bit.On)
	if err := d.Draw(d.Bounds(), src, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if !panel.Image().BitAt(64, 32) {
		t.Error("drawn pixel not shown")
	}
	if d.ColorModel() != image1bit.BitModel {
		t.Error("ColorModel() is not BitModel")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if panel.On() {
		t.Error("panel still on after Halt()")
	}
}
