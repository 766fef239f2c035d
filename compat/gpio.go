package compat

// GetInput samples the GPIO pins and reports them in the legacy status
// word: data bits D7-D0 in the low byte, everything above clear. The old
// part also reported ERR/PEMP/INT/SLCT handshake lines in bits 8-23; those
// pins do not exist on the new controller.
func (s *Shim) GetInput(index uint32) (uint32, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.GPIOGet == nil {
		return 0, false
	}

	var dir, data uint8
	if !s.lib.GPIOGet(index, &dir, &data) {
		return 0, false
	}
	return uint32(data), true
}

// GetStatus is the historical alias for GetInput.
func (s *Shim) GetStatus(index uint32) (uint32, bool) {
	return s.GetInput(index)
}

// SetOutput drives the GPIO pins. iEnable gates which parts of the request
// apply: bit 2 covers the data bits, bit 3 the direction bits, matching the
// legacy encoding. Bits 0, 1 and 4 gated handshake lines that no longer
// exist and are ignored. The full 8-pin enable vector is always forwarded,
// with ungated bytes zeroed; a gateless call therefore resets every pin to
// input, as it did on the old part.
func (s *Shim) SetOutput(index, iEnable, iSetDirOut, iSetDataOut uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.GPIOSet == nil {
		return false
	}

	var dirOut, dataOut uint8
	if iEnable&0x04 != 0 {
		dataOut = uint8(iSetDataOut)
	}
	if iEnable&0x08 != 0 {
		dirOut = uint8(iSetDirOut)
	}
	return s.lib.GPIOSet(index, 0xFF, dirOut, dataOut)
}

// SetD5D0 drives pins D5-D0 in one call. Only the low six bits of the
// direction and data vectors are used.
func (s *Shim) SetD5D0(index, iSetDirOut, iSetDataOut uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.GPIOSet == nil {
		return false
	}
	return s.lib.GPIOSet(index, 0x3F, uint8(iSetDirOut&0x3F), uint8(iSetDataOut&0x3F))
}
