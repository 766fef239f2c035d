// Package flash programs SPI NOR flash chips through any spi.Conn. It
// speaks the classic 25-series command set: JEDEC identification, page
// program, sector and block erase, and busy polling on the status
// register.
package flash

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/spi"
)

// Flash command opcodes.
const (
	cmdWriteEnable  = 0x06
	cmdReadStatus   = 0x05
	cmdReadData     = 0x03
	cmdPageProgram  = 0x02
	cmdSectorErase  = 0x20
	cmdBlockErase   = 0xD8
	cmdChipErase    = 0xC7
	cmdReadJEDECID  = 0x9F
	cmdReleasePower = 0xAB
)

// Status register bits.
const (
	statusBusy        = 0x01
	statusWriteEnable = 0x02
)

// Busy-poll deadlines. Chip erase on large parts genuinely takes this
// long.
const (
	programTimeout   = 100 * time.Millisecond
	eraseTimeout     = 3 * time.Second
	chipEraseTimeout = 200 * time.Second
)

// readChunk bounds one read transfer. Each chunk is an independent
// transaction reissuing the read command, since chip select drops between
// transfers.
const readChunk = 4096

// LogFunc receives progress diagnostics.
type LogFunc func(format string, params ...interface{})

// ProgressFunc is called as long operations advance, with bytes done out
// of the total.
type ProgressFunc func(done, total int)

// ErrMismatch is returned by Verify when the chip contents differ from the
// reference image.
var ErrMismatch = errors.New("flash: contents do not match")

// Programmer drives one flash chip over a SPI connection. Call Detect
// before the data operations; they need the chip geometry.
type Programmer struct {
	conn    spi.Conn
	chip    Chip
	known   bool
	logFunc LogFunc
}

// New returns a programmer over conn. logFunc may be nil.
func New(conn spi.Conn, logFunc LogFunc) *Programmer {
	return &Programmer{conn: conn, logFunc: logFunc}
}

func (p *Programmer) log(format string, params ...interface{}) {
	if p.logFunc != nil {
		p.logFunc(format, params...)
	}
}

// command sends cmd and clocks readLen further bytes, returning them.
func (p *Programmer) command(cmd []byte, readLen int) ([]byte, error) {
	w := make([]byte, len(cmd)+readLen)
	copy(w, cmd)
	for i := len(cmd); i < len(w); i++ {
		w[i] = 0xFF
	}
	r := make([]byte, len(w))
	if err := p.conn.Tx(w, r); err != nil {
		return nil, err
	}
	return r[len(cmd):], nil
}

func addrCmd(op byte, addr uint32) []byte {
	return []byte{op, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// ReadJEDECID reads the 3-byte manufacturer/device identifier.
func (p *Programmer) ReadJEDECID() ([3]byte, error) {
	var id [3]byte
	r, err := p.command([]byte{cmdReadJEDECID}, 3)
	if err != nil {
		return id, err
	}
	copy(id[:], r)
	return id, nil
}

// Detect wakes the chip, reads its JEDEC ID and resolves the geometry.
// An unlisted part with a readable capacity byte is still usable; a bus
// stuck at all ones or all zeros is reported as no chip present.
func (p *Programmer) Detect() (Chip, error) {
	// Release from deep power-down first; harmless when already awake.
	if _, err := p.command([]byte{cmdReleasePower}, 0); err != nil {
		return Chip{}, err
	}

	id, err := p.ReadJEDECID()
	if err != nil {
		return Chip{}, err
	}
	if (id[0] == 0xFF && id[1] == 0xFF && id[2] == 0xFF) ||
		(id[0] == 0x00 && id[1] == 0x00 && id[2] == 0x00) {
		return Chip{}, fmt.Errorf("flash: no chip detected (JEDEC %02X%02X%02X)", id[0], id[1], id[2])
	}

	chip, known := Identify(id)
	if chip.Size == 0 {
		return Chip{}, fmt.Errorf("flash: unknown chip %02X%02X%02X with unreadable capacity", id[0], id[1], id[2])
	}
	if !known {
		p.log("unlisted chip %02X%02X%02X, assuming %s", id[0], id[1], id[2], sizeString(chip.Size))
	}

	p.chip, p.known = chip, true
	return chip, nil
}

// Chip returns the detected chip. ok is false before a successful Detect.
func (p *Programmer) Chip() (Chip, bool) {
	return p.chip, p.known
}

// ReadStatus reads the status register.
func (p *Programmer) ReadStatus() (byte, error) {
	r, err := p.command([]byte{cmdReadStatus}, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// waitReady polls the busy bit until it clears or the deadline passes.
func (p *Programmer) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		status, err := p.ReadStatus()
		if err != nil {
			return err
		}
		if status&statusBusy == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("flash: chip busy after %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

// writeEnable sets the write-enable latch and confirms it took.
func (p *Programmer) writeEnable() error {
	if _, err := p.command([]byte{cmdWriteEnable}, 0); err != nil {
		return err
	}
	status, err := p.ReadStatus()
	if err != nil {
		return err
	}
	if status&statusWriteEnable == 0 {
		return errors.New("flash: write enable did not latch (chip protected?)")
	}
	return nil
}

func (p *Programmer) checkRange(addr uint32, length int) error {
	if !p.known {
		return errors.New("flash: no chip detected")
	}
	if int(addr)+length > p.chip.Size {
		return fmt.Errorf("flash: range %#x+%#x exceeds chip size %#x", addr, length, p.chip.Size)
	}
	return nil
}

// Read fills buf from the chip starting at addr. progress may be nil.
func (p *Programmer) Read(addr uint32, buf []byte, progress ProgressFunc) error {
	if err := p.checkRange(addr, len(buf)); err != nil {
		return err
	}

	for done := 0; done < len(buf); {
		n := len(buf) - done
		if n > readChunk {
			n = readChunk
		}
		r, err := p.command(addrCmd(cmdReadData, addr+uint32(done)), n)
		if err != nil {
			return err
		}
		copy(buf[done:], r)
		done += n
		if progress != nil {
			progress(done, len(buf))
		}
	}
	return nil
}

// programPage programs data into a single page. data must not cross a page
// boundary.
func (p *Programmer) programPage(addr uint32, data []byte) error {
	if err := p.writeEnable(); err != nil {
		return err
	}
	cmd := append(addrCmd(cmdPageProgram, addr), data...)
	if _, err := p.command(cmd, 0); err != nil {
		return err
	}
	return p.waitReady(programTimeout)
}

// Write programs data starting at addr, splitting it on page boundaries.
// The target range must already be erased; use EraseRange first.
func (p *Programmer) Write(addr uint32, data []byte, progress ProgressFunc) error {
	if err := p.checkRange(addr, len(data)); err != nil {
		return err
	}

	pageSize := uint32(p.chip.PageSize)
	for done := 0; done < len(data); {
		cur := addr + uint32(done)
		n := int(pageSize - cur%pageSize)
		if n > len(data)-done {
			n = len(data) - done
		}
		if err := p.programPage(cur, data[done:done+n]); err != nil {
			return err
		}
		done += n
		if progress != nil {
			progress(done, len(data))
		}
	}
	return nil
}

// Verify compares the chip contents at addr against data, returning
// ErrMismatch with the first differing offset on any difference.
func (p *Programmer) Verify(addr uint32, data []byte, progress ProgressFunc) error {
	if err := p.checkRange(addr, len(data)); err != nil {
		return err
	}

	buf := make([]byte, readChunk)
	for done := 0; done < len(data); {
		n := len(data) - done
		if n > len(buf) {
			n = len(buf)
		}
		if err := p.Read(addr+uint32(done), buf[:n], nil); err != nil {
			return err
		}
		if !bytes.Equal(buf[:n], data[done:done+n]) {
			off := done
			for i := 0; i < n; i++ {
				if buf[i] != data[done+i] {
					off = done + i
					break
				}
			}
			return fmt.Errorf("%w at offset %#x", ErrMismatch, uint32(off)+addr)
		}
		done += n
		if progress != nil {
			progress(done, len(data))
		}
	}
	return nil
}

// EraseSector erases the 4KiB sector containing addr.
func (p *Programmer) EraseSector(addr uint32) error {
	if err := p.checkRange(addr, 1); err != nil {
		return err
	}
	if err := p.writeEnable(); err != nil {
		return err
	}
	if _, err := p.command(addrCmd(cmdSectorErase, addr), 0); err != nil {
		return err
	}
	return p.waitReady(eraseTimeout)
}

// EraseBlock erases the 64KiB block containing addr.
func (p *Programmer) EraseBlock(addr uint32) error {
	if err := p.checkRange(addr, 1); err != nil {
		return err
	}
	if err := p.writeEnable(); err != nil {
		return err
	}
	if _, err := p.command(addrCmd(cmdBlockErase, addr), 0); err != nil {
		return err
	}
	return p.waitReady(eraseTimeout)
}

// EraseChip erases the entire chip.
func (p *Programmer) EraseChip() error {
	if !p.known {
		return errors.New("flash: no chip detected")
	}
	if err := p.writeEnable(); err != nil {
		return err
	}
	if _, err := p.command([]byte{cmdChipErase}, 0); err != nil {
		return err
	}
	return p.waitReady(chipEraseTimeout)
}

// EraseRange erases every sector overlapping [addr, addr+length), using
// block erase where a whole block is covered. addr is rounded down to a
// sector boundary.
func (p *Programmer) EraseRange(addr uint32, length int, progress ProgressFunc) error {
	if err := p.checkRange(addr, length); err != nil {
		return err
	}

	sector := uint32(p.chip.SectorSize)
	block := uint32(p.chip.BlockSize)
	start := addr - addr%sector
	end := addr + uint32(length)
	total := int(end - start)

	for cur := start; cur < end; {
		if cur%block == 0 && cur+block <= end {
			if err := p.EraseBlock(cur); err != nil {
				return err
			}
			cur += block
		} else {
			if err := p.EraseSector(cur); err != nil {
				return err
			}
			cur += sector
		}
		if progress != nil {
			done := int(cur - start)
			if done > total {
				done = total
			}
			progress(done, total)
		}
	}
	return nil
}
