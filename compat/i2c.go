package compat

// SetStream selects the I2C clock rate. Only the low two bits of mode are
// meaningful, exactly as in the legacy encoding: 0=20kHz, 1=100kHz,
// 2=400kHz, 3=750kHz. The remaining legacy mode bits configured pin modes
// that no longer exist and are ignored.
func (s *Shim) SetStream(index, mode uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() {
		return false
	}

	s.mu.Lock()
	s.slots[index].streamMode = mode
	s.mu.Unlock()

	if s.lib.I2CSet == nil {
		// Interface still usable at the driver default speed.
		return true
	}
	return s.lib.I2CSet(index, mode&0x03)
}

// SetDelay inserts a delay, in milliseconds, after each I2C byte. Used by
// slow EEPROMs that need write-cycle time between operations.
func (s *Shim) SetDelay(index, delayMS uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.I2CSetDelay == nil {
		return false
	}
	return s.lib.I2CSetDelay(index, delayMS)
}

// ReadI2C reads one register byte from a 7-bit device address. The target
// driver only speaks whole transactions, so the single-byte form is
// synthesized as a two-byte address/register write followed by a one-byte
// read.
func (s *Shim) ReadI2C(index uint32, device, addr uint8) (uint8, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.StreamI2C == nil {
		return 0, false
	}

	wbuf := [2]byte{device << 1, addr}
	var rbuf [1]byte
	if !s.lib.StreamI2C(index, 2, &wbuf[0], 1, &rbuf[0]) {
		return 0, false
	}
	return rbuf[0], true
}

// WriteI2C writes one register byte to a 7-bit device address.
func (s *Shim) WriteI2C(index uint32, device, addr, data uint8) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.StreamI2C == nil {
		return false
	}

	wbuf := [3]byte{device << 1, addr, data}
	return s.lib.StreamI2C(index, 3, &wbuf[0], 0, nil)
}

// StreamI2C runs one combined I2C transaction: writeBuf (address byte
// first) is shifted out, then len(readBuf) bytes are read with a repeated
// start. Either phase may be empty.
func (s *Shim) StreamI2C(index uint32, writeBuf, readBuf []byte) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.StreamI2C == nil {
		return false
	}
	return s.lib.StreamI2C(index,
		uint32(len(writeBuf)), bufPtr(writeBuf),
		uint32(len(readBuf)), bufPtr(readBuf))
}
