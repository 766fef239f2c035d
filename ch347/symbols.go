package ch347

// register resolves every known entry point through reg, which leaves the
// field nil when the symbol is absent. Only OpenDevice and CloseDevice are
// essential; Load enforces that.
func (l *Library) register(reg func(fptr interface{}, sym string)) {
	reg(&l.OpenDevice, "CH347OpenDevice")
	reg(&l.CloseDevice, "CH347CloseDevice")
	reg(&l.GetVersion, "CH347GetVersion")
	reg(&l.GetChipType, "CH347GetChipType")
	reg(&l.SetTimeout, "CH347SetTimeout")

	reg(&l.ReadData, "CH347ReadData")
	reg(&l.WriteData, "CH347WriteData")

	reg(&l.I2CSet, "CH347I2C_Set")
	reg(&l.I2CSetDelay, "CH347I2C_SetDelaymS")
	reg(&l.StreamI2C, "CH347StreamI2C")
	reg(&l.ReadEEPROM, "CH347ReadEEPROM")
	reg(&l.WriteEEPROM, "CH347WriteEEPROM")

	reg(&l.SPIInit, "CH347SPI_Init")
	reg(&l.SPIWriteRead, "CH347SPI_WriteRead")
	reg(&l.StreamSPI4, "CH347StreamSPI4")

	reg(&l.GPIOGet, "CH347GPIO_Get")
	reg(&l.GPIOSet, "CH347GPIO_Set")

	reg(&l.SetIntRoutine, "CH347SetIntRoutine")
	reg(&l.ReadInter, "CH347ReadInter")
	reg(&l.AbortInter, "CH347AbortInter")
	reg(&l.SetDeviceNotify, "CH347SetDeviceNotify")
}
