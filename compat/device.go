package compat

import "ch341compat/ch347"

// shimVersion is the version word reported by Version, bumped past the last
// standalone CH341 library release.
const shimVersion uint32 = 0x0210

// fallbackDrvVersion is reported when the target driver has no version
// query.
const fallbackDrvVersion uint32 = 0x0350

// deviceDescriptor is the fixed USB device descriptor reported for every
// slot. Legacy callers only ever inspect the VID/PID words, so a canned
// CH341A descriptor keeps them happy.
var deviceDescriptor = []byte{
	18, 0x01, 0x00, 0x02, 0xFF, 0x00, 0x00, 0x40,
	0x86, 0x1A, 0x55, 0x55, 0x00, 0x03, 0x01, 0x02,
	0x00, 0x01,
}

// configDescriptor is the matching canned configuration descriptor.
var configDescriptor = []byte{9, 0x02, 32, 0, 0x01, 0x01, 0x00, 0x80, 250}

// OpenDevice opens the device at index and returns its handle, or
// InvalidHandle on failure. Reopening an already open slot is allowed and
// refreshes the recorded handle.
func (s *Shim) OpenDevice(index uint32) Handle {
	if !validIndex(index) {
		return InvalidHandle
	}
	if !s.ensureLoaded() {
		return InvalidHandle
	}

	h := s.lib.OpenDevice(index)
	if h == 0 || h == ^uintptr(0) {
		s.log("open device %d failed", index)
		return InvalidHandle
	}

	s.mu.Lock()
	s.slots[index].handle = Handle(h)
	s.slots[index].name = deviceName(index)
	s.mu.Unlock()

	return Handle(h)
}

// CloseDevice closes the device at index. Closing an already closed slot is
// a no-op; the call is always forwarded so a handle opened outside the shim
// is released too.
func (s *Shim) CloseDevice(index uint32) {
	if !validIndex(index) {
		return
	}
	if !s.ensureLoaded() || s.lib.CloseDevice == nil {
		return
	}

	s.lib.CloseDevice(index)

	s.mu.Lock()
	sl := &s.slots[index]
	sl.handle = InvalidHandle
	sl.name = ""
	sl.spiInitialized = false
	sl.bufUpload = false
	sl.bufDownload = false
	s.mu.Unlock()
}

// ResetDevice performs the closest available equivalent of a USB reset: a
// close/open cycle. Per-slot transient state (SPI init, buffer flags) is
// discarded.
func (s *Shim) ResetDevice(index uint32) bool {
	if !validIndex(index) {
		return false
	}
	s.CloseDevice(index)
	return s.OpenDevice(index) != InvalidHandle
}

// DeviceDescriptor copies the canned USB device descriptor into buf and
// returns the number of bytes written. Fails when buf is too small.
func (s *Shim) DeviceDescriptor(index uint32, buf []byte) (int, bool) {
	if !validIndex(index) || len(buf) < len(deviceDescriptor) {
		return 0, false
	}
	return copy(buf, deviceDescriptor), true
}

// ConfigDescriptor copies the canned USB configuration descriptor into buf.
func (s *Shim) ConfigDescriptor(index uint32, buf []byte) (int, bool) {
	if !validIndex(index) || len(buf) < len(configDescriptor) {
		return 0, false
	}
	return copy(buf, configDescriptor), true
}

// ChipVersion reports the legacy chip version code. CH347 family parts
// identify as the CH341A3 revision; anything unknown, including an absent
// driver or chip-type query, falls back to the plain CH341A code so legacy
// feature gates stay conservative.
func (s *Shim) ChipVersion(index uint32) uint32 {
	if !validIndex(index) || !s.ensureLoaded() || s.lib.GetChipType == nil {
		return ICVerCH341A
	}
	switch s.lib.GetChipType(index) {
	case ch347.ChipCH347T, ch347.ChipCH347F, ch347.ChipCH339W:
		return ICVerCH341A3
	default:
		return ICVerCH341A
	}
}

// DeviceName reports the synthesized name of an open slot, or "" when the
// slot is closed.
func (s *Shim) DeviceName(index uint32) string {
	if !validIndex(index) {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[index].name
}

// Version reports the compatibility layer's own version word.
func (s *Shim) Version() uint32 {
	return shimVersion
}

// DrvVersion reports the target driver's version, probed on device 0: zero
// without a binding or version query, a fixed known-good value when the
// probe itself fails.
func (s *Shim) DrvVersion() uint32 {
	if !s.ensureLoaded() || s.lib.GetVersion == nil {
		return 0
	}
	var driverVer, dllVer, bcdDevice, chipType uint8
	if !s.lib.GetVersion(0, &driverVer, &dllVer, &bcdDevice, &chipType) {
		return fallbackDrvVersion
	}
	return uint32(driverVer)
}

// SetTimeout configures the USB transfer timeouts, in milliseconds, for the
// data pipes of the device at index.
func (s *Shim) SetTimeout(index, writeTimeout, readTimeout uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.SetTimeout == nil {
		return false
	}
	return s.lib.SetTimeout(index, writeTimeout, readTimeout)
}

// SetExclusive is accepted and ignored: the target driver always opens
// devices exclusively.
func (s *Shim) SetExclusive(index uint32, exclusive bool) bool {
	return validIndex(index)
}

// FlushBuffer drains any pending input so a fresh transaction starts clean.
// The drain read is best effort; the call succeeds either way.
func (s *Shim) FlushBuffer(index uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() {
		return false
	}
	if s.lib.ReadData != nil {
		var drain [512]byte
		l := uint32(len(drain))
		s.lib.ReadData(index, &drain[0], &l)
	}
	return true
}

// DriverCommand passed raw IOCTLs through to the old kernel driver. There
// is no equivalent pass-through, so it reports zero bytes handled.
func (s *Shim) DriverCommand(index uint32, cmd []byte) uint32 {
	s.log("raw driver command not supported on device %d", index)
	return 0
}
