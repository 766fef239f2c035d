// Package ch347 binds the WCH CH347 vendor driver library at runtime.
// The driver is distributed as a shared library only; this package locates
// it by its known file names, resolves the entry points it exports, and
// exposes them as typed Go functions. Symbols the installed driver does not
// export stay nil, so callers can degrade feature by feature instead of
// failing outright.
package ch347

import (
	"encoding/binary"
	"fmt"
)

// Chip type codes reported by CH347GetChipType.
const (
	ChipCH341  uint8 = 0
	ChipCH347T uint8 = 1
	ChipCH347F uint8 = 2
	ChipCH339W uint8 = 3
)

// I2C interface speed codes accepted by CH347I2C_Set. The low three bits
// select the clock; codes 0-3 line up with the CH341 encoding.
const (
	I2CSpeed20KHz  uint32 = 0
	I2CSpeed100KHz uint32 = 1
	I2CSpeed400KHz uint32 = 2
	I2CSpeed750KHz uint32 = 3
	I2CSpeed50KHz  uint32 = 4
	I2CSpeed200KHz uint32 = 5
	I2CSpeed1MHz   uint32 = 6
)

// SPI clock divisor codes for SPIConfig.Clock.
const (
	SPIClock60MHz uint8 = iota
	SPIClock30MHz
	SPIClock15MHz
	SPIClock7M5Hz
	SPIClock3M75Hz
	SPIClock1M875Hz
	SPIClock937K5Hz
	SPIClock468K75Hz
)

// Interrupt pin configuration values for SetIntRoutine.
const (
	IntPinDisabled uint8 = 255
	IntTripFalling uint8 = 0
	IntTripRising  uint8 = 1
	IntTripBoth    uint8 = 2
)

// InterStatusLen is the size of the GPIO status vector the driver hands to
// interrupt routines and ReadInter.
const InterStatusLen = 8

// USB identifiers of the supported adapters.
const (
	VendorID   uint16 = 0x1A86
	ProductIDT uint16 = 0x55DB // CH347T
	ProductIDF uint16 = 0x55DE // CH347F
)

// SPIConfig mirrors the driver's SPI initialisation record. The C struct is
// byte packed, so it is marshalled by hand (see pack) rather than passed as
// a Go struct pointer.
type SPIConfig struct {
	Mode              uint8  // SPI mode 0-3
	Clock             uint8  // clock divisor code, SPIClock*
	ByteOrder         uint8  // 0=LSB first, 1=MSB first
	WriteReadInterval uint16 // microseconds between write and read
	OutDefaultData    uint8  // byte shifted out while reading
	ChipSelect        uint32
	CS1Polarity       uint8 // 0=active low
	CS2Polarity       uint8
	AutoDeactivateCS  uint16
	ActiveDelay       uint16 // microseconds after CS activation
	DelayDeactivate   uint32 // microseconds before CS deactivation
}

// packedSPIConfigLen is the on-wire size of the packed record.
const packedSPIConfigLen = 20

// pack marshals the config into the packed little-endian layout the driver
// expects.
func (c *SPIConfig) pack() []byte {
	b := make([]byte, packedSPIConfigLen)
	b[0] = c.Mode
	b[1] = c.Clock
	b[2] = c.ByteOrder
	binary.LittleEndian.PutUint16(b[3:], c.WriteReadInterval)
	b[5] = c.OutDefaultData
	binary.LittleEndian.PutUint32(b[6:], c.ChipSelect)
	b[10] = c.CS1Polarity
	b[11] = c.CS2Polarity
	binary.LittleEndian.PutUint16(b[12:], c.AutoDeactivateCS)
	binary.LittleEndian.PutUint16(b[14:], c.ActiveDelay)
	binary.LittleEndian.PutUint32(b[16:], c.DelayDeactivate)
	return b
}

// Library holds the resolved driver entry points. Fields other than
// OpenDevice and CloseDevice may be nil when the installed driver does not
// export them; callers must check before use.
type Library struct {
	handle uintptr

	OpenDevice  func(index uint32) uintptr
	CloseDevice func(index uint32) bool
	GetVersion  func(index uint32, driverVer, dllVer, bcdDevice, chipType *uint8) bool
	GetChipType func(index uint32) uint8
	SetTimeout  func(index, writeTimeout, readTimeout uint32) bool

	ReadData  func(index uint32, buf *byte, length *uint32) bool
	WriteData func(index uint32, buf *byte, length *uint32) bool

	I2CSet      func(index, mode uint32) bool
	I2CSetDelay func(index, delayMS uint32) bool
	StreamI2C   func(index, writeLen uint32, writeBuf *byte, readLen uint32, readBuf *byte) bool
	ReadEEPROM  func(index, eepromID, addr, length uint32, buf *byte) bool
	WriteEEPROM func(index, eepromID, addr, length uint32, buf *byte) bool

	SPIInit      func(index uint32, packedCfg *byte) bool
	SPIWriteRead func(index, chipSelect, length uint32, buf *byte) bool
	StreamSPI4   func(index, chipSelect, length uint32, buf *byte) bool

	GPIOGet func(index uint32, dir, data *uint8) bool
	GPIOSet func(index uint32, enable, dirOut, dataOut uint8) bool

	SetIntRoutine   func(index uint32, int0Pin, int0Trip, int1Pin, int1Trip uint8, routine uintptr) bool
	ReadInter       func(index uint32, status *uint8) bool
	AbortInter      func(index uint32) bool
	SetDeviceNotify func(index uint32, deviceID *byte, routine uintptr) bool
}

// SPIInitConfig packs cfg and calls SPIInit.
func (l *Library) SPIInitConfig(index uint32, cfg *SPIConfig) bool {
	if l.SPIInit == nil {
		return false
	}
	packed := cfg.pack()
	return l.SPIInit(index, &packed[0])
}

// Load resolves the driver library, trying each known file name in order.
// It fails only when no candidate loads or when a loaded candidate is
// missing the open/close pair every other operation depends on.
func Load() (*Library, error) {
	var firstErr error
	for _, name := range libraryNames {
		lib, err := loadLibrary(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if lib.OpenDevice == nil || lib.CloseDevice == nil {
			lib.close()
			return nil, fmt.Errorf("ch347: %s is missing essential symbols", name)
		}
		return lib, nil
	}
	return nil, fmt.Errorf("ch347: driver library not found: %w", firstErr)
}

// Close releases the loaded library. Call once at process teardown; the
// function table must not be used afterwards.
func (l *Library) Close() error {
	return l.close()
}
