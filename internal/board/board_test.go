package board

import (
	"errors"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/sim"
	"periph.io/x/conn/v3/physic"
	"testing"
)

var simOpts = Opts{
	Simulation: true,
	SCL:        "PB8",
	SDA:        "PB9",
	Panel:      sim.Opts{Addr: 0x3C, W: 128, H: 64},
}

func TestTakeOnce(t *testing.T) {
	b := New()
	p, err := b.Take(simOpts)
	if err != nil {
		t.Fatalf("first Take() error = %v", err)
	}
	if p == nil || p.I2C1 == nil || p.I2C1.Bus == nil {
		t.Fatal("first Take() returned no peripherals")
	}

	p2, err := b.Take(simOpts)
	if !errors.Is(err, fault.ResourceTaken) {
		t.Errorf("second Take() error = %v, want resource_taken", err)
	}
	if p2 != nil {
		t.Error("second Take() returned peripherals")
	}
}

func TestTakeConsumedOnFailure(t *testing.T) {
	b := New()
	bad := simOpts
	bad.SCL = "PA0"
	if _, err := b.Take(bad); !errors.Is(err, fault.InvalidConfig) {
		t.Fatalf("Take() error = %v, want invalid_config", err)
	}
	if _, err := b.Take(simOpts); !errors.Is(err, fault.ResourceTaken) {
		t.Errorf("Take() after failure error = %v, want resource_taken", err)
	}
}

func TestI2C1Lines(t *testing.T) {
	tests := []struct {
		name     string
		scl, sda string
		remapped bool
		wantErr  bool
	}{
		{"default pair", "PB6", "PB7", false, false},
		{"remapped pair", "PB8", "PB9", true, false},
		{"lower case", "pb8", "pb9", true, false},
		{"swapped", "PB9", "PB8", false, true},
		{"mixed", "PB6", "PB9", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := simOpts
			opts.SCL, opts.SDA = tt.scl, tt.sda
			p, err := New().Take(opts)
			if tt.wantErr {
				if !errors.Is(err, fault.InvalidConfig) {
					t.Errorf("Take() error = %v, want invalid_config", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Take() error = %v", err)
			}
			if p.I2C1.Remapped != tt.remapped {
				t.Errorf("Remapped = %v, want %v", p.I2C1.Remapped, tt.remapped)
			}
			if p.I2C1.SCL.Mode != AlternateOpenDrain || p.I2C1.SDA.Mode != AlternateOpenDrain {
				t.Errorf("lines not open-drain: %s %s", p.I2C1.SCL, p.I2C1.SDA)
			}
			if p.I2C1.SCL.Function != "I2C1_SCL" || p.I2C1.SDA.Function != "I2C1_SDA" {
				t.Errorf("functions = %q %q", p.I2C1.SCL.Function, p.I2C1.SDA.Function)
			}
		})
	}
}

func TestFreeze(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClockConfig
		want    Clocks
		wantErr bool
	}{
		{
			name: "reset defaults",
			cfg:  ClockConfig{},
			want: Clocks{SysClk: 8 * physic.MegaHertz, HClk: 8 * physic.MegaHertz, PClk1: 8 * physic.MegaHertz, Source: "HSI", HPre: 1, PPre1: 1},
		},
		{
			name: "72MHz from 8MHz crystal",
			cfg:  ClockConfig{HSE: 8 * physic.MegaHertz, SysClk: 72 * physic.MegaHertz},
			want: Clocks{SysClk: 72 * physic.MegaHertz, HClk: 72 * physic.MegaHertz, PClk1: 36 * physic.MegaHertz, Source: "HSE", PllMul: 9, HPre: 1, PPre1: 2},
		},
		{
			name: "64MHz from HSI",
			cfg:  ClockConfig{SysClk: 64 * physic.MegaHertz, PClk1: 16 * physic.MegaHertz},
			want: Clocks{SysClk: 64 * physic.MegaHertz, HClk: 64 * physic.MegaHertz, PClk1: 16 * physic.MegaHertz, Source: "HSI", PllMul: 16, HPre: 1, PPre1: 4},
		},
		{
			name: "slow AHB",
			cfg:  ClockConfig{HClk: 3 * physic.MegaHertz},
			want: Clocks{SysClk: 8 * physic.MegaHertz, HClk: 2 * physic.MegaHertz, PClk1: 2 * physic.MegaHertz, Source: "HSI", HPre: 4, PPre1: 1},
		},
		{name: "sysclk too fast", cfg: ClockConfig{HSE: 8 * physic.MegaHertz, SysClk: 80 * physic.MegaHertz}, wantErr: true},
		{name: "sysclk unreachable", cfg: ClockConfig{SysClk: 30 * physic.MegaHertz}, wantErr: true},
		{name: "pclk1 too fast", cfg: ClockConfig{HSE: 8 * physic.MegaHertz, SysClk: 72 * physic.MegaHertz, PClk1: 72 * physic.MegaHertz}, wantErr: true},
		{name: "bad crystal", cfg: ClockConfig{HSE: 25 * physic.MegaHertz}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Freeze()
			if tt.wantErr {
				if !errors.Is(err, fault.InvalidConfig) {
					t.Errorf("Freeze() error = %v, want invalid_config", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Freeze() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Freeze() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
