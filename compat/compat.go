// Package compat emulates the CH341 control API on top of the CH347 vendor
// driver. Existing CH341 call sequences keep working unchanged: the shim
// tracks per-device state in a fixed slot table, loads the CH347 library on
// first use, and translates each legacy operation onto the newer driver's
// primitives (streaming I2C transactions, byte-vector GPIO, multi-pin
// interrupts).
//
// The public surface keeps the legacy flat success/failure contract: every
// operation reports a plain boolean or a sentinel value, never a structured
// error. Conditions the target hardware cannot emulate at all (parallel
// port modes, bit-level SPI, serial setup) fail unconditionally.
package compat

import (
	"fmt"
	"sync"

	"ch341compat/ch347"
)

// LogFunc receives internal diagnostics. The public boolean results carry no
// detail, so anything worth knowing (capability gaps, load failures) goes
// through here.
type LogFunc func(format string, params ...interface{})

// MaxDevices is the number of device slots, matching the legacy driver's
// fixed table.
const MaxDevices = 16

// Handle identifies an open device. InvalidHandle mirrors the legacy
// INVALID_HANDLE_VALUE failure sentinel.
type Handle uintptr

// InvalidHandle is returned when an open fails.
const InvalidHandle = ^Handle(0)

// IntFunc receives the legacy interrupt status word when a pin edge fires.
type IntFunc func(status uint32)

// NotifyFunc receives hot-plug events (DeviceArrival and friends).
type NotifyFunc func(event uint32)

// Hot-plug event codes, identical in both drivers.
const (
	DeviceRemove     uint32 = 0
	DeviceRemovePend uint32 = 1
	DeviceArrival    uint32 = 3
)

// Legacy chip version codes returned by ChipVersion.
const (
	ICVerCH341A  uint32 = 0x20
	ICVerCH341A3 uint32 = 0x30
)

// slot is the per-device-index state record. handle is InvalidHandle while
// the slot is closed; the callback references and buffer flags may be set
// independently of open state, as the legacy contract allows.
type slot struct {
	handle Handle
	name   string

	streamMode     uint32
	spiInitialized bool

	intFn       IntFunc
	intTramp    uintptr
	notifyFn    NotifyFunc
	notifyTramp uintptr

	bufUpload   bool
	bufDownload bool
}

// Shim owns the slot table and the lazily resolved driver binding. All
// methods are safe for concurrent use; the mutex also shields the slot
// table against the driver's interrupt threads calling back in.
type Shim struct {
	mu    sync.Mutex
	slots [MaxDevices]slot

	loadOnce sync.Once
	injected bool
	lib      *ch347.Library
	loadErr  error

	logFunc LogFunc
}

// New returns a shim that resolves the CH347 library on first use.
func New(logFunc LogFunc) *Shim {
	s := &Shim{logFunc: logFunc}
	for i := range s.slots {
		s.slots[i].handle = InvalidHandle
	}
	return s
}

// NewWithLibrary builds a shim over an already resolved binding, skipping
// the lazy load. A nil lib yields a shim whose operations all fail, the
// same as when no driver is installed.
func NewWithLibrary(lib *ch347.Library, logFunc LogFunc) *Shim {
	s := New(logFunc)
	s.injected = true
	s.lib = lib
	return s
}

func (s *Shim) log(format string, params ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, params...)
	}
}

// ensureLoaded resolves the binding exactly once, process-wide for this
// shim. A failed attempt is cached; later calls fail fast without retrying.
func (s *Shim) ensureLoaded() bool {
	s.loadOnce.Do(func() {
		if s.injected {
			return
		}
		s.lib, s.loadErr = ch347.Load()
		if s.loadErr != nil {
			s.log("target driver unavailable: %v", s.loadErr)
		}
	})
	return s.lib != nil
}

// validIndex guards every slot access. Out-of-range indices fail before the
// target driver is consulted.
func validIndex(index uint32) bool {
	return index < MaxDevices
}

func bufPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// deviceName synthesizes the label reported by DeviceName while a slot is
// open. The target driver has no name query.
func deviceName(index uint32) string {
	return fmt.Sprintf("CH347_%d", index)
}
