// Package compatio adapts an open shim slot to the periph.io bus
// interfaces, so drivers written against i2c.Bus or spi.Conn run on the
// adapter without knowing about the legacy API underneath.
package compatio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"ch341compat/ch347"
	"ch341compat/compat"
)

// I2CBus exposes one shim slot as an i2c.Bus.
type I2CBus struct {
	shim  *compat.Shim
	index uint32
}

// NewI2CBus wraps the device at index. The slot should already be open.
func NewI2CBus(s *compat.Shim, index uint32) *I2CBus {
	return &I2CBus{shim: s, index: index}
}

func (b *I2CBus) String() string {
	return fmt.Sprintf("ch341-%d", b.index)
}

// Tx runs one transaction against a 7-bit address: w is shifted out after
// the address byte, then len(r) bytes are read back with a repeated start.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return errors.New("compatio: 10-bit addresses are not supported")
	}

	buf := make([]byte, 0, len(w)+1)
	buf = append(buf, byte(addr)<<1)
	buf = append(buf, w...)
	if !b.shim.StreamI2C(b.index, buf, r) {
		return fmt.Errorf("compatio: i2c transaction with %#x failed", addr)
	}
	return nil
}

// SetSpeed selects the nearest supported clock at or below f.
func (b *I2CBus) SetSpeed(f physic.Frequency) error {
	var mode uint32
	switch {
	case f >= 750*physic.KiloHertz:
		mode = ch347.I2CSpeed750KHz
	case f >= 400*physic.KiloHertz:
		mode = ch347.I2CSpeed400KHz
	case f >= 100*physic.KiloHertz:
		mode = ch347.I2CSpeed100KHz
	default:
		mode = ch347.I2CSpeed20KHz
	}
	if !b.shim.SetStream(b.index, mode) {
		return fmt.Errorf("compatio: setting i2c clock to %s failed", f)
	}
	return nil
}

var _ i2c.Bus = (*I2CBus)(nil)

// SPIConn exposes one shim slot and chip select as a full-duplex spi.Conn.
type SPIConn struct {
	shim       *compat.Shim
	index      uint32
	chipSelect uint32
}

// NewSPIConn wraps the device at index, asserting the given chip select for
// every transfer. The slot should already be open.
func NewSPIConn(s *compat.Shim, index, chipSelect uint32) *SPIConn {
	return &SPIConn{shim: s, index: index, chipSelect: chipSelect}
}

func (c *SPIConn) String() string {
	return fmt.Sprintf("ch341-%d-cs%d", c.index, c.chipSelect)
}

func (c *SPIConn) Duplex() conn.Duplex {
	return conn.Full
}

// Tx shifts w out while filling r, one of which may be shorter or nil.
// Padding past the end of w is 0xFF, the idle level flash chips expect.
func (c *SPIConn) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if n == 0 {
		return nil
	}

	buf := make([]byte, n)
	copy(buf, w)
	for i := len(w); i < n; i++ {
		buf[i] = 0xFF
	}

	if !c.shim.StreamSPI4(c.index, c.chipSelect, buf) {
		return errors.New("compatio: spi transfer failed")
	}
	copy(r, buf)
	return nil
}

// TxPackets runs each packet as an independent transfer. The adapter
// deasserts chip select after every transfer, so packets asking to keep it
// asserted cannot be honoured.
func (c *SPIConn) TxPackets(p []spi.Packet) error {
	for i := range p {
		if p[i].KeepCS {
			return errors.New("compatio: KeepCS is not supported")
		}
		if err := c.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

var _ spi.Conn = (*SPIConn)(nil)
