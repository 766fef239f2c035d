package compat

// The CH341's parallel port personality (EPP/MEM modes, printer port) has
// no counterpart on the CH347, and its serial setup call configured a UART
// that now lives on a separate USB interface. Every operation in this file
// fails unconditionally so legacy callers detect the absence immediately
// instead of corrupting a transaction half way.

func (s *Shim) unsupported(what string, index uint32) bool {
	s.log("%s not available on device %d", what, index)
	return false
}

// SetParaMode selected EPP or MEM parallel mode.
func (s *Shim) SetParaMode(index, mode uint32) bool {
	return s.unsupported("parallel port mode", index)
}

// InitParallel reset the parallel port into the given mode.
func (s *Shim) InitParallel(index, mode uint32) bool {
	return s.unsupported("parallel port init", index)
}

// EppReadData read EPP data cycles.
func (s *Shim) EppReadData(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("epp data read", index)
}

// EppReadAddr read EPP address cycles.
func (s *Shim) EppReadAddr(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("epp address read", index)
}

// EppWriteData wrote EPP data cycles.
func (s *Shim) EppWriteData(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("epp data write", index)
}

// EppWriteAddr wrote EPP address cycles.
func (s *Shim) EppWriteAddr(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("epp address write", index)
}

// EppSetAddr latched an EPP address byte.
func (s *Shim) EppSetAddr(index uint32, addr uint8) bool {
	return s.unsupported("epp address latch", index)
}

// MemReadAddr0 and MemReadAddr1 read MEM mode cycles on A0=0 and A0=1.
func (s *Shim) MemReadAddr0(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("mem mode read", index)
}

func (s *Shim) MemReadAddr1(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("mem mode read", index)
}

func (s *Shim) MemWriteAddr0(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("mem mode write", index)
}

func (s *Shim) MemWriteAddr1(index uint32, buf []byte) (int, bool) {
	return 0, s.unsupported("mem mode write", index)
}

// SetupSerial configured the UART personality. The UART is a separate USB
// interface on the new part and is not reachable through this API.
func (s *Shim) SetupSerial(index, parityMode, baudRate uint32) bool {
	return s.unsupported("serial setup", index)
}
