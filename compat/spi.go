package compat

import "ch341compat/ch347"

// spiDefaults reproduces the legacy adapter's electrical behaviour on the
// new controller: mode 0, 30MHz clock, MSB first, 0xFF shifted out while
// reading, active-low chip select deasserted automatically after each
// transfer.
func spiDefaults(chipSelect uint32) *ch347.SPIConfig {
	return &ch347.SPIConfig{
		Mode:             0,
		Clock:            ch347.SPIClock30MHz,
		ByteOrder:        1,
		OutDefaultData:   0xFF,
		ChipSelect:       chipSelect,
		AutoDeactivateCS: 1,
	}
}

// ensureSPI initialises the SPI controller for a slot on first use. The
// legacy API had no explicit SPI init call, so it happens lazily before the
// first transfer. A failed init is retried on the next transfer.
func (s *Shim) ensureSPI(index, chipSelect uint32) bool {
	s.mu.Lock()
	done := s.slots[index].spiInitialized
	s.mu.Unlock()
	if done {
		return true
	}

	if !s.lib.SPIInitConfig(index, spiDefaults(chipSelect)) {
		s.log("spi init failed on device %d", index)
		return false
	}

	s.mu.Lock()
	s.slots[index].spiInitialized = true
	s.mu.Unlock()
	return true
}

// StreamSPI4 clocks buf out on the single MOSI lane while simultaneously
// filling it with the bytes read back, holding the selected chip select for
// the whole transfer.
func (s *Shim) StreamSPI4(index, chipSelect uint32, buf []byte) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() {
		return false
	}
	if !s.ensureSPI(index, chipSelect) {
		return false
	}

	switch {
	case s.lib.StreamSPI4 != nil:
		return s.lib.StreamSPI4(index, chipSelect, uint32(len(buf)), bufPtr(buf))
	case s.lib.SPIWriteRead != nil:
		return s.lib.SPIWriteRead(index, chipSelect, uint32(len(buf)), bufPtr(buf))
	}
	return false
}

// StreamSPI3 is the legacy SIO alias; the target controller has one SPI
// engine, so it behaves identically to StreamSPI4.
func (s *Shim) StreamSPI3(index, chipSelect uint32, buf []byte) bool {
	return s.StreamSPI4(index, chipSelect, buf)
}

// StreamSPI5 drove two SPI lanes in one call on the old part. The new
// controller has a single lane, so only buf is transferred; buf2 is left
// untouched and the degradation is logged.
func (s *Shim) StreamSPI5(index, chipSelect uint32, buf, buf2 []byte) bool {
	if len(buf2) > 0 {
		s.log("dual-lane spi not available, second lane dropped on device %d", index)
	}
	return s.StreamSPI4(index, chipSelect, buf)
}

// BitStreamSPI shifted raw bit patterns on the old part. The target
// controller is byte oriented and cannot express it.
func (s *Shim) BitStreamSPI(index uint32, buf []byte) bool {
	s.log("bit-level spi not available on device %d", index)
	return false
}
