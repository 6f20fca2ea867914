package sim

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/sirupsen/logrus"
)

// Control byte bits.
const (
	controlContinuation = 0x80 // Co: one payload byte, then another control byte
	controlData         = 0x40 // D/C#: payload goes to graphic RAM
)

// decode walks a write transaction. It reports whether graphic data was
// written.
func (p *Panel) decode(w []byte) (bool, error) {
	wroteData := false
	for i := 0; i < len(w); {
		ctrl := w[i]
		i++
		if ctrl&^(controlContinuation|controlData) != 0 {
			return wroteData, fault.New(fault.CommandRejected, "sim: control", fmt.Sprintf("invalid control byte 0x%02X", ctrl))
		}
		end := len(w)
		if ctrl&controlContinuation != 0 {
			if i >= len(w) {
				return wroteData, fault.New(fault.CommandRejected, "sim: control", "control byte without payload")
			}
			end = i + 1
		}
		payload := w[i:end]
		i = end
		if ctrl&controlData != 0 {
			p.writeData(payload)
			wroteData = true
			continue
		}
		for _, b := range payload {
			if err := p.feed(b); err != nil {
				return wroteData, err
			}
		}
	}
	return wroteData, nil
}

// argCount returns the number of argument bytes following cmd.
func argCount(cmd byte) (int, bool) {
	switch {
	case cmd <= 0x1F: // page mode column start, low and high nibble
		return 0, true
	case cmd >= 0x40 && cmd <= 0x7F: // display start line
		return 0, true
	case cmd >= 0xB0 && cmd <= 0xB7: // page mode page start
		return 0, true
	}
	switch cmd {
	case 0x20, 0x81, 0x8D, 0xA8, 0xD3, 0xD5, 0xD9, 0xDA, 0xDB:
		return 1, true
	case 0x21, 0x22, 0xA3:
		return 2, true
	case 0x26, 0x27:
		return 6, true
	case 0x29, 0x2A:
		return 5, true
	case 0x2E, 0x2F, 0xA0, 0xA1, 0xA4, 0xA5, 0xA6, 0xA7, 0xAE, 0xAF, 0xC0, 0xC8, 0xE3:
		return 0, true
	}
	return 0, false
}

// feed accumulates one command byte and executes the command once its
// arguments are complete. Arguments may span transactions.
func (p *Panel) feed(b byte) error {
	if len(p.pending) == 0 {
		n, ok := argCount(b)
		if !ok {
			return fault.New(fault.CommandRejected, "sim: command", fmt.Sprintf("unknown command 0x%02X", b))
		}
		p.need = n
	}
	p.pending = append(p.pending, b)
	if len(p.pending) < p.need+1 {
		return nil
	}
	cmd := p.pending
	p.pending = nil
	logrus.Tracef("SSD1306 command % X", cmd)
	return p.exec(cmd[0], cmd[1:])
}

func (p *Panel) exec(cmd byte, args []byte) error {
	pages := p.opts.H / 8
	switch {
	case cmd <= 0x0F:
		p.col = p.col&0xF0 | int(cmd&0x0F)
		return nil
	case cmd <= 0x1F:
		p.col = p.col&0x0F | int(cmd&0x0F)<<4
		return nil
	case cmd >= 0x40 && cmd <= 0x7F:
		p.startLine = int(cmd-0x40) % p.opts.H
		return nil
	case cmd >= 0xB0 && cmd <= 0xB7:
		p.page = int(cmd-0xB0) % pages
		return nil
	}

	switch cmd {
	case 0x20:
		if args[0] > PageAddressing {
			return fault.New(fault.CommandRejected, "sim: addressing mode", fmt.Sprintf("invalid mode %d", args[0]))
		}
		p.mode = args[0]
	case 0x21:
		start, end := int(args[0]), int(args[1])
		if start > end || end >= p.opts.W {
			return fault.New(fault.CommandRejected, "sim: column address", fmt.Sprintf("invalid range %d-%d", start, end))
		}
		p.colStart, p.colEnd, p.col = start, end, start
	case 0x22:
		start, end := int(args[0]&0x07), int(args[1]&0x07)
		if start > end || end >= pages {
			return fault.New(fault.CommandRejected, "sim: page address", fmt.Sprintf("invalid range %d-%d", start, end))
		}
		p.pageStart, p.pageEnd, p.page = start, end, start
	case 0x81:
		p.contrast = args[0]
	case 0x8D:
		p.chargePump = args[0]&0x04 != 0
	case 0xA8:
		if args[0] < 15 {
			return fault.New(fault.CommandRejected, "sim: multiplex", fmt.Sprintf("invalid ratio %d", args[0]))
		}
		p.mux = args[0]
	case 0xA0, 0xA1:
		p.segRemap = cmd == 0xA1
	case 0xA4, 0xA5:
		p.entireOn = cmd == 0xA5
	case 0xA6, 0xA7:
		p.inverted = cmd == 0xA7
	case 0xAE, 0xAF:
		p.on = cmd == 0xAF
	case 0xC0, 0xC8:
		p.comReverse = cmd == 0xC8
	case 0x2E:
		p.scrolling = false
	case 0x2F:
		p.scrolling = true
	}
	// Remaining commands tune the analog side and do not change the image.
	return nil
}

// writeData stores payload at the RAM pointer and advances it according to
// the addressing mode.
func (p *Panel) writeData(payload []byte) {
	for _, b := range payload {
		if p.col >= p.opts.W {
			// page addressing past the last column, the controller drops it
			continue
		}
		p.ram.Pix[p.page*p.ram.Stride+p.col] = b
		switch p.mode {
		case HorizontalAddressing:
			p.col++
			if p.col > p.colEnd {
				p.col = p.colStart
				p.page++
				if p.page > p.pageEnd {
					p.page = p.pageStart
				}
			}
		case VerticalAddressing:
			p.page++
			if p.page > p.pageEnd {
				p.page = p.pageStart
				p.col++
				if p.col > p.colEnd {
					p.col = p.colStart
				}
			}
		default:
			p.col++
			if p.col >= p.opts.W {
				p.col = 0
			}
		}
	}
}
