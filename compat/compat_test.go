package compat

import (
	"testing"
	"unsafe"

	"ch341compat/ch347"
)

// countingLib is a stub function table that records every invocation, so
// tests can assert both results and whether the target was touched at all.
type countingLib struct {
	lib   *ch347.Library
	calls int
}

func newCountingLib() *countingLib {
	c := &countingLib{lib: &ch347.Library{}}
	c.lib.OpenDevice = func(index uint32) uintptr { c.calls++; return uintptr(index) + 1 }
	c.lib.CloseDevice = func(index uint32) bool { c.calls++; return true }
	c.lib.GetVersion = func(index uint32, driverVer, dllVer, bcdDevice, chipType *uint8) bool {
		c.calls++
		*driverVer, *dllVer = 0x03, 0x52
		return true
	}
	c.lib.GetChipType = func(index uint32) uint8 { c.calls++; return ch347.ChipCH347T }
	c.lib.SetTimeout = func(index, w, r uint32) bool { c.calls++; return true }
	c.lib.ReadData = func(index uint32, buf *byte, length *uint32) bool { c.calls++; return true }
	c.lib.WriteData = func(index uint32, buf *byte, length *uint32) bool { c.calls++; return true }
	c.lib.I2CSet = func(index, mode uint32) bool { c.calls++; return true }
	c.lib.I2CSetDelay = func(index, delayMS uint32) bool { c.calls++; return true }
	c.lib.StreamI2C = func(index, wl uint32, wb *byte, rl uint32, rb *byte) bool { c.calls++; return true }
	c.lib.ReadEEPROM = func(index, id, addr, length uint32, buf *byte) bool { c.calls++; return true }
	c.lib.WriteEEPROM = func(index, id, addr, length uint32, buf *byte) bool { c.calls++; return true }
	c.lib.SPIInit = func(index uint32, cfg *byte) bool { c.calls++; return true }
	c.lib.SPIWriteRead = func(index, cs, length uint32, buf *byte) bool { c.calls++; return true }
	c.lib.StreamSPI4 = func(index, cs, length uint32, buf *byte) bool { c.calls++; return true }
	c.lib.GPIOGet = func(index uint32, dir, data *uint8) bool { c.calls++; return true }
	c.lib.GPIOSet = func(index uint32, enable, dirOut, dataOut uint8) bool { c.calls++; return true }
	c.lib.SetIntRoutine = func(index uint32, p0, t0, p1, t1 uint8, routine uintptr) bool { c.calls++; return true }
	c.lib.ReadInter = func(index uint32, status *uint8) bool { c.calls++; return true }
	c.lib.AbortInter = func(index uint32) bool { c.calls++; return true }
	c.lib.SetDeviceNotify = func(index uint32, deviceID *byte, routine uintptr) bool { c.calls++; return true }
	return c
}

func bytesAt(p *byte, n uint32) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}

func TestOutOfRangeIndexFailsWithoutDriverCall(t *testing.T) {
	c := newCountingLib()
	s := NewWithLibrary(c.lib, nil)

	const bad = MaxDevices

	if s.OpenDevice(bad) != InvalidHandle {
		t.Error("open accepted out-of-range index")
	}
	s.CloseDevice(bad)
	if s.ResetDevice(bad) {
		t.Error("reset accepted out-of-range index")
	}
	if _, ok := s.DeviceDescriptor(bad, make([]byte, 64)); ok {
		t.Error("descriptor accepted out-of-range index")
	}
	if s.SetStream(bad, 1) || s.SetDelay(bad, 1) {
		t.Error("i2c setup accepted out-of-range index")
	}
	if _, ok := s.ReadI2C(bad, 0x50, 0); ok {
		t.Error("i2c read accepted out-of-range index")
	}
	if s.WriteI2C(bad, 0x50, 0, 1) || s.StreamI2C(bad, []byte{0xA0}, nil) {
		t.Error("i2c write accepted out-of-range index")
	}
	if s.StreamSPI4(bad, 0, make([]byte, 4)) {
		t.Error("spi accepted out-of-range index")
	}
	if _, ok := s.GetInput(bad); ok {
		t.Error("gpio read accepted out-of-range index")
	}
	if s.SetOutput(bad, 0x0C, 0, 0) || s.SetD5D0(bad, 0, 0) {
		t.Error("gpio write accepted out-of-range index")
	}
	if s.SetIntRoutine(bad, func(uint32) {}) {
		t.Error("interrupt arm accepted out-of-range index")
	}
	if _, ok := s.ReadInter(bad); ok {
		t.Error("interrupt read accepted out-of-range index")
	}
	if _, ok := s.ReadData(bad, make([]byte, 4)); ok {
		t.Error("bulk read accepted out-of-range index")
	}
	if _, ok := s.WriteRead(bad, []byte{1}, 4, 2, make([]byte, 8)); ok {
		t.Error("write-read accepted out-of-range index")
	}
	if s.ReadEEPROM(bad, EEPROM24C02, 0, make([]byte, 4)) {
		t.Error("eeprom read accepted out-of-range index")
	}

	if c.calls != 0 {
		t.Errorf("target driver invoked %d times for out-of-range indices", c.calls)
	}
}

func TestUnboundShimFailsEverything(t *testing.T) {
	s := NewWithLibrary(nil, nil)

	if s.OpenDevice(0) != InvalidHandle {
		t.Error("open succeeded without a driver binding")
	}
	if s.OpenDevice(MaxDevices + 1) != InvalidHandle {
		t.Error("out-of-range open succeeded without a driver binding")
	}
	if s.StreamI2C(0, []byte{0xA0}, nil) {
		t.Error("i2c succeeded without a driver binding")
	}
	if _, ok := s.GetInput(0); ok {
		t.Error("gpio succeeded without a driver binding")
	}
	if got := s.ChipVersion(0); got != ICVerCH341A {
		t.Errorf("chip version without binding = %#x, want %#x", got, ICVerCH341A)
	}
	if got := s.DrvVersion(); got != 0 {
		t.Errorf("driver version without binding = %#x, want 0", got)
	}
}

func TestOpenCloseLifecycle(t *testing.T) {
	c := newCountingLib()
	s := NewWithLibrary(c.lib, nil)

	h := s.OpenDevice(2)
	if h == InvalidHandle {
		t.Fatal("open failed")
	}
	if got := s.DeviceName(2); got != "CH347_2" {
		t.Errorf("device name = %q", got)
	}

	s.CloseDevice(2)
	if got := s.DeviceName(2); got != "" {
		t.Errorf("device name after close = %q", got)
	}

	// Idempotent: a second close must not fail or disturb anything.
	s.CloseDevice(2)
	if got := s.DeviceName(2); got != "" {
		t.Errorf("device name after double close = %q", got)
	}
}

func TestOpenFailureYieldsInvalidHandle(t *testing.T) {
	c := newCountingLib()
	c.lib.OpenDevice = func(index uint32) uintptr { return ^uintptr(0) }
	s := NewWithLibrary(c.lib, nil)

	if s.OpenDevice(0) != InvalidHandle {
		t.Error("failed open did not yield the invalid handle")
	}
	if got := s.DeviceName(0); got != "" {
		t.Errorf("slot recorded a name after failed open: %q", got)
	}
}

func TestReadI2CTransactionShape(t *testing.T) {
	c := newCountingLib()
	var gotWrite []byte
	var gotReadLen uint32
	c.lib.StreamI2C = func(index, wl uint32, wb *byte, rl uint32, rb *byte) bool {
		gotWrite = append([]byte(nil), bytesAt(wb, wl)...)
		gotReadLen = rl
		if rl == 1 {
			*rb = 0x5A
		}
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	v, ok := s.ReadI2C(0, 0x48, 0x0F)
	if !ok || v != 0x5A {
		t.Fatalf("ReadI2C = %#x, %v", v, ok)
	}
	if len(gotWrite) != 2 || gotWrite[0] != 0x48<<1 || gotWrite[1] != 0x0F {
		t.Errorf("write phase = %#v, want [0x90 0x0F]", gotWrite)
	}
	if gotReadLen != 1 {
		t.Errorf("read phase length = %d, want 1", gotReadLen)
	}
}

func TestWriteI2CTransactionShape(t *testing.T) {
	c := newCountingLib()
	var gotWrite []byte
	var gotReadLen uint32
	c.lib.StreamI2C = func(index, wl uint32, wb *byte, rl uint32, rb *byte) bool {
		gotWrite = append([]byte(nil), bytesAt(wb, wl)...)
		gotReadLen = rl
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	if !s.WriteI2C(0, 0x48, 0x0F, 0xAA) {
		t.Fatal("WriteI2C failed")
	}
	if len(gotWrite) != 3 || gotWrite[0] != 0x48<<1 || gotWrite[1] != 0x0F || gotWrite[2] != 0xAA {
		t.Errorf("write phase = %#v, want [0x90 0x0F 0xAA]", gotWrite)
	}
	if gotReadLen != 0 {
		t.Errorf("read phase length = %d, want 0", gotReadLen)
	}
}

func TestSetStreamMasksMode(t *testing.T) {
	c := newCountingLib()
	var gotMode uint32
	c.lib.I2CSet = func(index, mode uint32) bool {
		gotMode = mode
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	if !s.SetStream(0, 0x82) {
		t.Fatal("SetStream failed")
	}
	if gotMode != 0x02 {
		t.Errorf("driver saw mode %#x, want 0x02", gotMode)
	}
}

func TestSPIInitOncePerSlot(t *testing.T) {
	c := newCountingLib()
	inits := 0
	c.lib.SPIInit = func(index uint32, cfg *byte) bool { inits++; return true }
	s := NewWithLibrary(c.lib, nil)

	buf := make([]byte, 8)
	for i := 0; i < 3; i++ {
		if !s.StreamSPI4(0, 0, buf) {
			t.Fatalf("transfer %d failed", i)
		}
	}
	if inits != 1 {
		t.Errorf("spi initialised %d times, want 1", inits)
	}

	// Close discards the init, reopen requires a fresh one.
	s.CloseDevice(0)
	s.OpenDevice(0)
	if !s.StreamSPI4(0, 0, buf) {
		t.Fatal("transfer after reopen failed")
	}
	if inits != 2 {
		t.Errorf("spi initialised %d times after reopen, want 2", inits)
	}
}

func TestSPIInitFailureRetriesNextTransfer(t *testing.T) {
	c := newCountingLib()
	inits := 0
	c.lib.SPIInit = func(index uint32, cfg *byte) bool {
		inits++
		return inits > 1
	}
	s := NewWithLibrary(c.lib, nil)

	buf := make([]byte, 4)
	if s.StreamSPI4(0, 0, buf) {
		t.Fatal("transfer succeeded despite failed init")
	}
	if !s.StreamSPI4(0, 0, buf) {
		t.Fatal("retry after failed init did not recover")
	}
	if inits != 2 {
		t.Errorf("spi init attempted %d times, want 2", inits)
	}
}

func TestSPIFallsBackToWriteRead(t *testing.T) {
	c := newCountingLib()
	c.lib.StreamSPI4 = nil
	used := false
	c.lib.SPIWriteRead = func(index, cs, length uint32, buf *byte) bool {
		used = true
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	if !s.StreamSPI4(0, 0, make([]byte, 4)) {
		t.Fatal("transfer failed")
	}
	if !used {
		t.Error("fallback entry point not used")
	}
}

func TestGetInputHighBitsClear(t *testing.T) {
	c := newCountingLib()
	c.lib.GPIOGet = func(index uint32, dir, data *uint8) bool {
		*dir, *data = 0xFF, 0xFF
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	status, ok := s.GetInput(0)
	if !ok {
		t.Fatal("GetInput failed")
	}
	if status != 0xFF {
		t.Errorf("status = %#x, want 0xFF", status)
	}
	if status&^uint32(0xFF) != 0 {
		t.Errorf("status has bits above the data byte set: %#x", status)
	}
}

func TestSetOutputGating(t *testing.T) {
	c := newCountingLib()
	var gotEnable, gotDir, gotData uint8
	sets := 0
	c.lib.GPIOSet = func(index uint32, enable, dirOut, dataOut uint8) bool {
		sets++
		gotEnable, gotDir, gotData = enable, dirOut, dataOut
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	// Only the data gate set: direction must stay zero.
	if !s.SetOutput(0, 0x04, 0x3F, 0xAA) {
		t.Fatal("SetOutput failed")
	}
	if gotEnable != 0xFF || gotDir != 0 || gotData != 0xAA {
		t.Errorf("data-only update: enable=%#x dir=%#x data=%#x", gotEnable, gotDir, gotData)
	}

	// Neither gate set: still forwarded with both bytes zeroed, which
	// resets every pin to input.
	if !s.SetOutput(0, 0x03, 0x3F, 0xAA) {
		t.Fatal("gateless SetOutput failed")
	}
	if sets != 2 {
		t.Errorf("driver saw %d updates, want 2", sets)
	}
	if gotEnable != 0xFF || gotDir != 0 || gotData != 0 {
		t.Errorf("gateless update: enable=%#x dir=%#x data=%#x, want 0xFF 0 0", gotEnable, gotDir, gotData)
	}
}

func TestSetD5D0Masks(t *testing.T) {
	c := newCountingLib()
	var gotEnable, gotDir, gotData uint8
	c.lib.GPIOSet = func(index uint32, enable, dirOut, dataOut uint8) bool {
		gotEnable, gotDir, gotData = enable, dirOut, dataOut
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	if !s.SetD5D0(0, 0xFF, 0xFF) {
		t.Fatal("SetD5D0 failed")
	}
	if gotEnable != 0x3F || gotDir != 0x3F || gotData != 0x3F {
		t.Errorf("enable=%#x dir=%#x data=%#x, want 0x3F each", gotEnable, gotDir, gotData)
	}
}

func TestWriteReadPartialAccumulation(t *testing.T) {
	c := newCountingLib()
	reads := 0
	c.lib.ReadData = func(index uint32, buf *byte, length *uint32) bool {
		reads++
		if reads > 2 {
			return false
		}
		*length = 4
		return true
	}
	s := NewWithLibrary(c.lib, nil)

	out := make([]byte, 64)
	n, ok := s.WriteRead(0, []byte{0x01}, 4, 5, out)
	if !ok {
		t.Fatal("WriteRead reported failure for a partial result")
	}
	if n != 8 {
		t.Errorf("total = %d, want 8", n)
	}
}

func TestWriteReadFailedWritePhase(t *testing.T) {
	c := newCountingLib()
	c.lib.WriteData = func(index uint32, buf *byte, length *uint32) bool { return false }
	reads := 0
	c.lib.ReadData = func(index uint32, buf *byte, length *uint32) bool { reads++; return true }
	s := NewWithLibrary(c.lib, nil)

	if _, ok := s.WriteRead(0, []byte{0x01}, 4, 2, make([]byte, 8)); ok {
		t.Error("WriteRead succeeded despite failed write phase")
	}
	if reads != 0 {
		t.Error("read phase ran after failed write")
	}
}

func TestDeviceDescriptor(t *testing.T) {
	s := NewWithLibrary(newCountingLib().lib, nil)

	if _, ok := s.DeviceDescriptor(0, make([]byte, 17)); ok {
		t.Error("descriptor accepted a short buffer")
	}

	buf := make([]byte, 64)
	n, ok := s.DeviceDescriptor(0, buf)
	if !ok || n != 18 {
		t.Fatalf("descriptor = %d, %v", n, ok)
	}
	if buf[8] != 0x86 || buf[9] != 0x1A {
		t.Errorf("vendor id bytes = %#x %#x", buf[8], buf[9])
	}

	n, ok = s.ConfigDescriptor(0, buf)
	if !ok || n != 9 {
		t.Fatalf("config descriptor = %d, %v", n, ok)
	}
}

func TestChipVersionMapping(t *testing.T) {
	tests := []struct {
		chip uint8
		want uint32
	}{
		{ch347.ChipCH341, ICVerCH341A},
		{ch347.ChipCH347T, ICVerCH341A3},
		{ch347.ChipCH347F, ICVerCH341A3},
		{ch347.ChipCH339W, ICVerCH341A3},
		{0x7F, ICVerCH341A},
	}
	for _, tc := range tests {
		c := newCountingLib()
		c.lib.GetChipType = func(index uint32) uint8 { return tc.chip }
		s := NewWithLibrary(c.lib, nil)
		if got := s.ChipVersion(0); got != tc.want {
			t.Errorf("chip %d: version = %#x, want %#x", tc.chip, got, tc.want)
		}
	}
}

func TestDrvVersion(t *testing.T) {
	// The probe reports the driver version byte alone.
	c := newCountingLib()
	s := NewWithLibrary(c.lib, nil)
	if got := s.DrvVersion(); got != 0x03 {
		t.Errorf("driver version = %#x, want 0x03", got)
	}

	c = newCountingLib()
	c.lib.GetVersion = nil
	s = NewWithLibrary(c.lib, nil)
	if got := s.DrvVersion(); got != 0 {
		t.Errorf("driver version without query = %#x, want 0", got)
	}

	c = newCountingLib()
	c.lib.GetVersion = func(index uint32, driverVer, dllVer, bcdDevice, chipType *uint8) bool {
		return false
	}
	s = NewWithLibrary(c.lib, nil)
	if got := s.DrvVersion(); got != fallbackDrvVersion {
		t.Errorf("driver version on failed probe = %#x, want %#x", got, fallbackDrvVersion)
	}
}

func TestUnsupportedOperationsFail(t *testing.T) {
	var logged int
	s := NewWithLibrary(newCountingLib().lib, func(format string, params ...interface{}) {
		logged++
	})

	if s.SetParaMode(0, 1) || s.InitParallel(0, 1) {
		t.Error("parallel mode reported success")
	}
	if _, ok := s.EppReadData(0, make([]byte, 4)); ok {
		t.Error("epp read reported success")
	}
	if _, ok := s.MemWriteAddr0(0, make([]byte, 4)); ok {
		t.Error("mem write reported success")
	}
	if s.SetupSerial(0, 0, 9600) {
		t.Error("serial setup reported success")
	}
	if s.BitStreamSPI(0, make([]byte, 2)) {
		t.Error("bit-level spi reported success")
	}
	if logged == 0 {
		t.Error("capability gaps were not logged")
	}
}

func TestBufferFlags(t *testing.T) {
	s := NewWithLibrary(newCountingLib().lib, nil)

	if got := s.QueryBufUpload(0); got != -1 {
		t.Errorf("upload query before enable = %d, want -1", got)
	}
	if !s.SetBufUpload(0, true) {
		t.Fatal("enable failed")
	}
	if got := s.QueryBufUpload(0); got != 0 {
		t.Errorf("upload query after enable = %d, want 0", got)
	}

	if got := s.QueryBufDownload(0); got != -1 {
		t.Errorf("download query before enable = %d, want -1", got)
	}
	s.SetBufDownload(0, true)
	if got := s.QueryBufDownload(0); got != 0 {
		t.Errorf("download query after enable = %d, want 0", got)
	}

	// Close clears both flags.
	s.OpenDevice(0)
	s.CloseDevice(0)
	if got := s.QueryBufUpload(0); got != -1 {
		t.Errorf("upload query after close = %d, want -1", got)
	}
}
