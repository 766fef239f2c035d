package compat

import (
	"github.com/ebitengine/purego"

	"ch341compat/ch347"
)

// Interrupt plumbing. The target driver invokes a C function pointer from
// its own reader thread, so each slot gets a trampoline created with
// purego.NewCallback. Trampolines are permanent allocations; they are
// created at most once per slot and re-pointed at the current Go callback
// through the slot table.

// intTrampoline returns the slot's interrupt trampoline, creating it on
// first use. Caller holds s.mu.
func (s *Shim) intTrampoline(index uint32) uintptr {
	sl := &s.slots[index]
	if sl.intTramp == 0 {
		sl.intTramp = purego.NewCallback(func(status *uint8) uintptr {
			s.deliverInterrupt(index, status)
			return 0
		})
	}
	return sl.intTramp
}

// notifyTrampoline returns the slot's hot-plug trampoline, creating it on
// first use. Caller holds s.mu.
func (s *Shim) notifyTrampoline(index uint32) uintptr {
	sl := &s.slots[index]
	if sl.notifyTramp == 0 {
		sl.notifyTramp = purego.NewCallback(func(event uint32) uintptr {
			s.deliverNotify(index, event)
			return 0
		})
	}
	return sl.notifyTramp
}

// deliverInterrupt hands a raw interrupt status vector to the slot's
// registered callback, narrowing the 8-byte GPIO vector to the one-byte
// legacy status word. Fires only the owning slot's callback.
func (s *Shim) deliverInterrupt(index uint32, status *uint8) {
	s.mu.Lock()
	fn := s.slots[index].intFn
	s.mu.Unlock()
	if fn == nil {
		return
	}

	var word uint32
	if status != nil {
		word = uint32(*status)
	}
	fn(word)
}

// deliverNotify hands a hot-plug event to the slot's registered callback.
func (s *Shim) deliverNotify(index uint32, event uint32) {
	s.mu.Lock()
	fn := s.slots[index].notifyFn
	s.mu.Unlock()
	if fn == nil {
		return
	}
	fn(event)
}

// SetIntRoutine registers fn as the interrupt handler for the device at
// index, arming pin 0 on a falling edge to match the legacy INT# line. A
// nil fn disarms the interrupt. The callback reference is recorded even
// when arming the hardware fails, matching the legacy behaviour.
func (s *Shim) SetIntRoutine(index uint32, fn IntFunc) bool {
	if !validIndex(index) {
		return false
	}

	s.mu.Lock()
	s.slots[index].intFn = fn
	s.mu.Unlock()

	if !s.ensureLoaded() || s.lib.SetIntRoutine == nil {
		return false
	}

	if fn == nil {
		return s.lib.SetIntRoutine(index,
			ch347.IntPinDisabled, ch347.IntTripFalling,
			ch347.IntPinDisabled, ch347.IntTripFalling, 0)
	}

	s.mu.Lock()
	tramp := s.intTrampoline(index)
	s.mu.Unlock()

	return s.lib.SetIntRoutine(index,
		0, ch347.IntTripFalling,
		ch347.IntPinDisabled, ch347.IntTripFalling, tramp)
}

// ReadInter blocks until the next interrupt and returns its status word,
// narrowed from the driver's 8-byte GPIO vector.
func (s *Shim) ReadInter(index uint32) (uint32, bool) {
	if !validIndex(index) {
		return 0, false
	}
	if !s.ensureLoaded() || s.lib.ReadInter == nil {
		return 0, false
	}

	var status [ch347.InterStatusLen]uint8
	if !s.lib.ReadInter(index, &status[0]) {
		return 0, false
	}
	return uint32(status[0]), true
}

// AbortInter cancels a blocking ReadInter.
func (s *Shim) AbortInter(index uint32) bool {
	if !validIndex(index) {
		return false
	}
	if !s.ensureLoaded() || s.lib.AbortInter == nil {
		return false
	}
	return s.lib.AbortInter(index)
}

// ResetInter aborts any pending interrupt wait and, when a handler is
// registered, re-arms it.
func (s *Shim) ResetInter(index uint32) bool {
	if !validIndex(index) {
		return false
	}

	s.AbortInter(index)

	s.mu.Lock()
	fn := s.slots[index].intFn
	s.mu.Unlock()

	if fn == nil {
		return true
	}
	return s.SetIntRoutine(index, fn)
}

// SetDeviceNotify registers fn to receive hot-plug events for the device at
// index. deviceID optionally restricts matching to one specific device
// path; empty matches any. A nil fn unregisters.
func (s *Shim) SetDeviceNotify(index uint32, deviceID string, fn NotifyFunc) bool {
	if !validIndex(index) {
		return false
	}

	s.mu.Lock()
	s.slots[index].notifyFn = fn
	s.mu.Unlock()

	if !s.ensureLoaded() || s.lib.SetDeviceNotify == nil {
		return false
	}

	var id *byte
	if deviceID != "" {
		b := append([]byte(deviceID), 0)
		id = &b[0]
	}

	if fn == nil {
		return s.lib.SetDeviceNotify(index, id, 0)
	}

	s.mu.Lock()
	tramp := s.notifyTrampoline(index)
	s.mu.Unlock()

	return s.lib.SetDeviceNotify(index, id, tramp)
}
