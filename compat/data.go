package compat

// EEPROMType selects the device geometry for the EEPROM helpers. The codes
// are positional and shared with the target driver.
type EEPROMType uint32

const (
	EEPROM24C01 EEPROMType = iota
	EEPROM24C02
	EEPROM24C04
	EEPROM24C08
	EEPROM24C16
	EEPROM24C32
	EEPROM24C64
	EEPROM24C128
	EEPROM24C256
	EEPROM24C512
	EEPROM24C1024
	EEPROM24C2048
	EEPROM24C4096
)

// ReadData reads up to len(buf) bytes from the device's bulk input pipe and
// reports how many arrived.
func (s *Shim) ReadData(index uint32, buf []byte) (int, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.ReadData == nil {
		return 0, false
	}

	l := uint32(len(buf))
	if !s.lib.ReadData(index, bufPtr(buf), &l) {
		return 0, false
	}
	return int(l), true
}

// WriteData writes buf to the device's bulk output pipe and reports how
// many bytes were accepted.
func (s *Shim) WriteData(index uint32, buf []byte) (int, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.WriteData == nil {
		return 0, false
	}

	l := uint32(len(buf))
	if !s.lib.WriteData(index, bufPtr(buf), &l) {
		return 0, false
	}
	return int(l), true
}

// ReadData0 and ReadData1 addressed the two bulk pipes of the old part.
// The new controller multiplexes one pipe, so both map onto ReadData.
func (s *Shim) ReadData0(index uint32, buf []byte) (int, bool) {
	return s.ReadData(index, buf)
}

func (s *Shim) ReadData1(index uint32, buf []byte) (int, bool) {
	return s.ReadData(index, buf)
}

func (s *Shim) WriteData0(index uint32, buf []byte) (int, bool) {
	return s.WriteData(index, buf)
}

func (s *Shim) WriteData1(index uint32, buf []byte) (int, bool) {
	return s.WriteData(index, buf)
}

// WriteRead writes writeBuf, then performs up to readTimes reads of
// readStep bytes each into readBuf, stopping early when a read fails or
// readBuf is full. A failed read ends accumulation but the call still
// succeeds with the partial total; only a failed write phase fails the
// whole call.
func (s *Shim) WriteRead(index uint32, writeBuf []byte, readStep, readTimes int, readBuf []byte) (int, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.ReadData == nil || s.lib.WriteData == nil {
		return 0, false
	}

	if len(writeBuf) > 0 {
		l := uint32(len(writeBuf))
		if !s.lib.WriteData(index, &writeBuf[0], &l) {
			return 0, false
		}
	}

	if readStep <= 0 || readTimes <= 0 {
		return 0, true
	}

	total := 0
	for i := 0; i < readTimes; i++ {
		if total+readStep > len(readBuf) {
			break
		}
		l := uint32(readStep)
		if !s.lib.ReadData(index, &readBuf[total], &l) {
			break
		}
		total += int(l)
	}
	return total, true
}

// ReadEEPROM reads from a 24Cxx EEPROM attached to the I2C interface.
func (s *Shim) ReadEEPROM(index uint32, eeprom EEPROMType, addr uint32, buf []byte) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.ReadEEPROM == nil {
		return false
	}
	return s.lib.ReadEEPROM(index, uint32(eeprom), addr, uint32(len(buf)), bufPtr(buf))
}

// WriteEEPROM writes to a 24Cxx EEPROM attached to the I2C interface.
func (s *Shim) WriteEEPROM(index uint32, eeprom EEPROMType, addr uint32, buf []byte) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.WriteEEPROM == nil {
		return false
	}
	return s.lib.WriteEEPROM(index, uint32(eeprom), addr, uint32(len(buf)), bufPtr(buf))
}

// AbortRead cancels pending input transfers. The target driver cancels on
// close only, so this is accepted as a no-op.
func (s *Shim) AbortRead(index uint32) bool {
	return validIndex(index)
}

// AbortWrite cancels pending output transfers; accepted as a no-op.
func (s *Shim) AbortWrite(index uint32) bool {
	return validIndex(index)
}

func (s *Shim) ResetRead(index uint32) bool {
	return s.AbortRead(index)
}

func (s *Shim) ResetWrite(index uint32) bool {
	return s.AbortWrite(index)
}

// SetBufUpload toggles the legacy internal upload buffer flag. The target
// driver buffers internally regardless; the flag only changes what
// QueryBufUpload reports.
func (s *Shim) SetBufUpload(index uint32, enable bool) bool {
	if !validIndex(index) {
		return false
	}
	s.mu.Lock()
	s.slots[index].bufUpload = enable
	s.mu.Unlock()
	return true
}

// QueryBufUpload reports the number of buffered upload packets: 0 when
// buffering is enabled, -1 when it is not. Packet counts are not exposed by
// the target driver.
func (s *Shim) QueryBufUpload(index uint32) int {
	if !validIndex(index) {
		return -1
	}
	s.mu.Lock()
	enabled := s.slots[index].bufUpload
	s.mu.Unlock()
	if !enabled {
		return -1
	}
	return 0
}

// SetBufDownload toggles the legacy internal download buffer flag.
func (s *Shim) SetBufDownload(index uint32, enable bool) bool {
	if !validIndex(index) {
		return false
	}
	s.mu.Lock()
	s.slots[index].bufDownload = enable
	s.mu.Unlock()
	return true
}

// QueryBufDownload mirrors QueryBufUpload for the output direction.
func (s *Shim) QueryBufDownload(index uint32) int {
	if !validIndex(index) {
		return -1
	}
	s.mu.Lock()
	enabled := s.slots[index].bufDownload
	s.mu.Unlock()
	if !enabled {
		return -1
	}
	return 0
}
